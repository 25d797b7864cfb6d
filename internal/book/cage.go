package book

import "github.com/sinotrade/axob-rebuild/pkg/axsbe"

// CageUpper is the original source's rounding-half-up 2% admission band,
// widened to ±1 tick for small prices so the band always admits at least
// one tick (spec.md §4.6, SPEC_FULL.md "SUPPLEMENTED FEATURES").
func CageUpper(x int64) int64 {
	if x <= 24 {
		return x + 1
	}
	return (x*102 + 50) / 100
}

// CageLower is CageUpper's symmetric counterpart.
func CageLower(x int64) int64 {
	if x <= 25 {
		return x - 1
	}
	return (x*98 + 50) / 100
}

// referencePrice resolves the cage reference for one side: opposite-side
// best, falling back to own-side best, then last-traded, then prev-close
// (spec.md GLOSSARY "Reference price").
func (b *InstrumentBook) referencePrice(side axsbe.Side) int64 {
	opposite := b.sideIndex(side.Opposite())
	if best := opposite.Best(); best != nil {
		return best.Price
	}
	own := b.sideIndex(side)
	if best := own.Best(); best != nil {
		return best.Price
	}
	if b.LastPx != 0 {
		return b.LastPx
	}
	return b.PrevClosePx
}

// cageScan runs the admission scan to a fixed point, promoting any
// hidden edge whose price now lies within the reference band.
func (b *InstrumentBook) cageScan() {
	if !b.IsGEM || !b.Cage.Active {
		return
	}
	for {
		promotedBid := b.cageScanSide(axsbe.SideBid)
		promotedAsk := b.cageScanSide(axsbe.SideAsk)
		if !promotedBid && !promotedAsk {
			return
		}
	}
}

func (b *InstrumentBook) cageScanSide(side axsbe.Side) bool {
	hidden := b.hiddenEdge(side)
	if hidden == nil {
		return false
	}
	ref := b.referencePrice(side)
	var admitted bool
	if side == axsbe.SideBid {
		admitted = hidden.Price <= CageUpper(ref)
	} else {
		admitted = hidden.Price >= CageLower(ref)
	}
	if !admitted {
		return false
	}

	b.promoteHidden(side, hidden)
	return true
}

func (b *InstrumentBook) hiddenEdge(side axsbe.Side) *RestingOrder {
	if side == axsbe.SideBid {
		if len(b.Cage.HiddenBid) == 0 {
			return nil
		}
		return b.Cage.HiddenBid[0]
	}
	if len(b.Cage.HiddenAsk) == 0 {
		return nil
	}
	return b.Cage.HiddenAsk[0]
}

func (b *InstrumentBook) promoteHidden(side axsbe.Side, o *RestingOrder) {
	if side == axsbe.SideBid {
		b.Cage.HiddenBid = b.Cage.HiddenBid[1:]
	} else {
		b.Cage.HiddenAsk = b.Cage.HiddenAsk[1:]
	}
	idx := b.sideIndex(side)
	idx.Insert(o)
	b.Totals.AddVisible(side, o.Price, o.Qty)
	if b.metrics != nil {
		b.metrics.CagePromotions.WithLabelValues(side.String()).Inc()
	}
}

// HideOrder parks an order outside the cage band: visible neither in the
// ladder nor in the weighted totals, ordered into the hidden queue by
// price so the innermost (closest-to-admission) order is always index 0.
// Hidden bids sit above CageUpper, so their innermost order is the
// lowest price (ascending); hidden asks sit below CageLower, so their
// innermost order is the highest price (descending).
func (b *InstrumentBook) HideOrder(side axsbe.Side, o *RestingOrder) {
	b.Cage.Active = true
	if side == axsbe.SideBid {
		b.Cage.HiddenBid = insertHiddenAscending(b.Cage.HiddenBid, o)
		return
	}
	b.Cage.HiddenAsk = insertHiddenDescending(b.Cage.HiddenAsk, o)
}

func insertHiddenDescending(list []*RestingOrder, o *RestingOrder) []*RestingOrder {
	i := 0
	for i < len(list) && list[i].Price > o.Price {
		i++
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = o
	return list
}

func insertHiddenAscending(list []*RestingOrder, o *RestingOrder) []*RestingOrder {
	i := 0
	for i < len(list) && list[i].Price < o.Price {
		i++
	}
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = o
	return list
}
