// Package pricelevel provides the balanced-tree price-level index AXOB
// keeps per side. spec.md §9 calls out the original's "ad-hoc resorted
// dict" as a design smell to replace; this index uses
// github.com/emirpasic/gods's red-black tree (already load-bearing in the
// teacher's transitive dependency graph via go-git) for O(log n)
// insert/remove/best/neighbor instead of a resort-on-every-mutation dict.
package pricelevel

import (
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

// RestingOrder is one order resting in the book, indexed by both the
// registry (by ApplSeqNum/OrderNo) and a price level's FIFO queue.
type RestingOrder struct {
	ApplSeqNum int64
	OrderNo    int64 // SSE identity; 0 on SZSE
	Side       axsbe.Side
	Price      int64
	Qty        int64 // remaining quantity
	Original   int64 // original quantity, for diagnostics
}

// Level is one price level: a price and the FIFO queue of resting orders
// at that price, plus the level's own aggregate quantity.
type Level struct {
	Price int64
	Qty   int64
	Queue []*RestingOrder
}

// Index is a balanced-tree, price-ordered set of Levels for one side of
// one instrument's book. Bid and Ask sides each get their own Index; the
// comparator direction differentiates "best" (front of iteration) between
// the two sides.
type Index struct {
	tree       *redblacktree.Tree
	descending bool // true for Bid (best = highest price), false for Ask
}

// New builds an empty Index. descending=true orders the tree so that the
// Bid side's best price (highest) iterates first; descending=false gives
// the Ask side's best price (lowest) first.
func New(descending bool) *Index {
	cmp := utils.Int64Comparator
	if descending {
		cmp = func(a, b interface{}) int {
			return -utils.Int64Comparator(a, b)
		}
	}
	return &Index{tree: redblacktree.NewWith(cmp), descending: descending}
}

// Get returns the Level at price, or nil if the side has no orders there.
func (ix *Index) Get(price int64) *Level {
	v, ok := ix.tree.Get(price)
	if !ok {
		return nil
	}
	return v.(*Level)
}

// GetOrCreate returns the Level at price, creating an empty one if absent.
func (ix *Index) GetOrCreate(price int64) *Level {
	if lvl := ix.Get(price); lvl != nil {
		return lvl
	}
	lvl := &Level{Price: price}
	ix.tree.Put(price, lvl)
	return lvl
}

// Remove deletes the level at price entirely (called once its queue and
// aggregate quantity both reach zero).
func (ix *Index) Remove(price int64) {
	ix.tree.Remove(price)
}

// Empty reports whether the side currently has no levels at all.
func (ix *Index) Empty() bool {
	return ix.tree.Size() == 0
}

// Size returns the number of distinct price levels on this side.
func (ix *Index) Size() int {
	return ix.tree.Size()
}

// Best returns this side's top-of-book level (highest price for Bid,
// lowest for Ask), or nil if the side is empty.
func (ix *Index) Best() *Level {
	node := ix.tree.Left()
	if node == nil {
		return nil
	}
	return node.Value.(*Level)
}

// Crosses reports whether price crosses (is at least as aggressive as)
// this side's current best — i.e. whether an incoming order at price on
// the opposite side would trade against this side's top.
//
// For the Bid side (descending index), an incoming ask at `price` crosses
// if price <= best bid price. For the Ask side (ascending index), an
// incoming bid crosses if price >= best ask price. Callers invoke this on
// the resting side's Index, passing the incoming order's price.
func (ix *Index) Crosses(price int64) bool {
	best := ix.Best()
	if best == nil {
		return false
	}
	if ix.descending {
		return price <= best.Price
	}
	return price >= best.Price
}

// Neighbor returns the next price level strictly beyond price in the
// book's best-to-worst iteration order (spec.md's "strict neighbor"
// queries for cage-promotion scans). Because every price here is an
// integer tick, the strict predecessor/successor is computed via Ceiling
// (in the side's own comparator order) at price∓1 rather than a dedicated
// neighbor API.
func (ix *Index) Neighbor(price int64) *Level {
	var node *redblacktree.Node
	if ix.descending {
		node, _ = ix.tree.Ceiling(price - 1)
	} else {
		node, _ = ix.tree.Ceiling(price + 1)
	}
	if node == nil {
		return nil
	}
	return node.Value.(*Level)
}

// Each walks every level from best to worst, stopping early if fn
// returns false.
func (ix *Index) Each(fn func(*Level) bool) {
	it := ix.tree.Iterator()
	for it.Next() {
		if !fn(it.Value().(*Level)) {
			return
		}
	}
}

// Insert adds an order to the back of its price level's FIFO queue,
// creating the level if necessary, and bumps the level's aggregate qty.
func (ix *Index) Insert(o *RestingOrder) *Level {
	lvl := ix.GetOrCreate(o.Price)
	lvl.Queue = append(lvl.Queue, o)
	lvl.Qty += o.Qty
	return lvl
}

// Consume decrements o's remaining quantity by qty — a partial fill when
// qty < o.Qty, a full fill or cancel when qty == o.Qty — identifying o by
// its own identity rather than queue position or quantity coincidence, so
// it works regardless of where in the FIFO queue o sits or whether
// another resting order at the same price happens to share its quantity.
// o is removed from the queue once its remaining quantity reaches zero,
// and the level itself is removed once its queue empties. o must already
// be resting at its own Price level.
func (ix *Index) Consume(o *RestingOrder, qty int64) {
	lvl := ix.Get(o.Price)
	if lvl == nil {
		return
	}
	o.Qty -= qty
	lvl.Qty -= qty
	if o.Qty <= 0 {
		for i, q := range lvl.Queue {
			if q == o {
				lvl.Queue = append(lvl.Queue[:i], lvl.Queue[i+1:]...)
				break
			}
		}
	}
	if len(lvl.Queue) == 0 {
		ix.Remove(o.Price)
	}
}

// Levels returns up to depth levels from best to worst, for snapshot
// ladder construction (spec.md §4.9).
func (ix *Index) Levels(depth int) []*Level {
	out := make([]*Level, 0, depth)
	ix.Each(func(l *Level) bool {
		out = append(out, l)
		return len(out) < depth
	})
	return out
}
