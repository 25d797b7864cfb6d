package book

import (
	"github.com/sinotrade/axob-rebuild/internal/book/pricelevel"
)

// Registry maps an order's identity to its live RestingOrder, and
// separately remembers "illegal" orders — GEM IPO-week out-of-band
// arrivals accepted once but never eligible for resting state, so a
// later cancel against them must be recognized and silently absorbed
// rather than raising a protocol error (spec.md §4.8).
type Registry struct {
	byAppl    map[int64]*pricelevel.RestingOrder
	byOrderNo map[int64]*pricelevel.RestingOrder
	illegal   map[int64]bool
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byAppl:    make(map[int64]*pricelevel.RestingOrder),
		byOrderNo: make(map[int64]*pricelevel.RestingOrder),
		illegal:   make(map[int64]bool),
	}
}

// Put records a newly resting order under both lookup keys.
func (r *Registry) Put(o *pricelevel.RestingOrder) {
	r.byAppl[o.ApplSeqNum] = o
	if o.OrderNo != 0 {
		r.byOrderNo[o.OrderNo] = o
	}
}

// ByApplSeqNum finds a resting order by its application sequence number
// (SZSE cancels and the GEM illegal-order set both key on this).
func (r *Registry) ByApplSeqNum(applSeqNum int64) *pricelevel.RestingOrder {
	return r.byAppl[applSeqNum]
}

// ByOrderNo finds a resting order by its SSE order number.
func (r *Registry) ByOrderNo(orderNo int64) *pricelevel.RestingOrder {
	return r.byOrderNo[orderNo]
}

// Remove deletes an order from both indexes once it is fully filled or
// cancelled.
func (r *Registry) Remove(o *pricelevel.RestingOrder) {
	delete(r.byAppl, o.ApplSeqNum)
	if o.OrderNo != 0 {
		delete(r.byOrderNo, o.OrderNo)
	}
}

// MarkIllegal remembers applSeqNum as an order that was accepted but
// never rested (e.g. a GEM order priced outside the legal band during
// IPO week). A later cancel referencing it is recognized, not fatal.
func (r *Registry) MarkIllegal(applSeqNum int64) {
	r.illegal[applSeqNum] = true
}

// IsIllegal reports whether applSeqNum was previously marked illegal.
func (r *Registry) IsIllegal(applSeqNum int64) bool {
	return r.illegal[applSeqNum]
}
