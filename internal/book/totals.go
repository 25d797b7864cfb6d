package book

import "github.com/sinotrade/axob-rebuild/pkg/axsbe"

// AddVisible folds a newly-visible order's quantity into the running
// totals for its side. Cage-hidden orders must never be passed here
// (spec.md §4.7: totals reflect visible levels only).
func (t *Totals) AddVisible(side axsbe.Side, price, qty int64) {
	switch side {
	case axsbe.SideBid:
		t.BidWeightSize += qty
		t.BidWeightValue += qty * price
	case axsbe.SideAsk:
		t.AskWeightSize += qty
		t.AskWeightValue += qty * price
	}
}

// RemoveVisible undoes AddVisible for a quantity leaving the visible
// book (a fill or a cancel).
func (t *Totals) RemoveVisible(side axsbe.Side, price, qty int64) {
	switch side {
	case axsbe.SideBid:
		t.BidWeightSize -= qty
		t.BidWeightValue -= qty * price
	case axsbe.SideAsk:
		t.AskWeightSize -= qty
		t.AskWeightValue -= qty * price
	}
}
