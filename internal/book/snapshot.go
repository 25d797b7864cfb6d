package book

import (
	"github.com/sinotrade/axob-rebuild/internal/book/pricelevel"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

// emitSnapshot builds a regenerated snapshot from current book state and
// hands it to the configured sink. Never emitted while a holding slot is
// open, except via an explicit holding-slot flush (spec.md §4.8).
func (b *InstrumentBook) emitSnapshot() {
	if b.onSnapshot == nil {
		return
	}
	if b.Holding.Open {
		return
	}

	snap := &axsbe.SnapshotStock{
		SecurityIDSource: b.SecurityIDSource,
		SecurityID:       b.SecurityID,
		ChannelNo:        b.ChannelNo,
		TransactTime:     b.clockTime,

		PrevClosePx: b.PrevClosePx,
		UpLimitPx:   b.UpLimitPx,
		DnLimitPx:   b.DnLimitPx,

		NumTrades:        b.NumTrades,
		TotalVolumeTrade: b.TotalVolumeTrade,
		TotalValueTrade:  b.TotalValueTrade,

		OpenPx: b.OpenPx,
		HighPx: b.HighPx,
		LowPx:  b.LowPx,
		LastPx: b.LastPx,

		BidWeightPx:   b.Totals.BidWeightPx(),
		BidWeightSize: b.Totals.BidWeightSize,
		AskWeightPx:   b.Totals.AskWeightPx(),
		AskWeightSize: b.Totals.AskWeightSize,

		AskWeightPxUncertain: b.Totals.AskWeightPxUncertain,

		TradingPhaseMarket:     b.Session.Phase,
		TradingPhaseInstrument: b.Session.Instrument,
	}

	switch {
	case b.Session.Phase == axsbe.TPMVolatilityBreaking:
		// all-zero ladders, per spec.md §4.8
	case b.Session.Phase.IsCallAuction():
		b.fillCallAuctionLadders(snap)
	default:
		snap.Bid = levelsToPriceLevels(b.Bid.Levels(b.ladderDepth))
		snap.Ask = levelsToPriceLevels(b.Ask.Levels(b.ladderDepth))
	}

	if b.metrics != nil {
		b.metrics.SnapshotsEmitted.WithLabelValues(b.SecurityIDSource.String()).Inc()
	}
	b.onSnapshot(snap)
}

func levelsToPriceLevels(levels []*pricelevel.Level) []axsbe.PriceLevel {
	out := make([]axsbe.PriceLevel, 0, len(levels))
	for _, l := range levels {
		out = append(out, axsbe.PriceLevel{Price: l.Price, Qty: l.Qty})
	}
	return out
}

// fillCallAuctionLadders marches the sorted bid (high-to-low) and ask
// (low-to-high) ladders, consuming min(bid, ask) at each level, over
// mutable running copies so the boundary level's partially-consumed
// remaining quantity is reported correctly (spec.md §4.8 scenario:
// "remaining bid level at 10.00 with qty = 200-50=150"). SnapshotStock
// carries no indicative-match-price field of its own — the ladders
// remaining after this march are the only observable output — so the
// reference-price tie-break spec.md §4.8 describes has nothing to
// resolve a tie *into* here; it only matters once the auction's single
// match price is finalized elsewhere (OpenPx/LastPx at phase close).
func (b *InstrumentBook) fillCallAuctionLadders(snap *axsbe.SnapshotStock) {
	bids := copyLevels(b.Bid.Levels(1 << 20))
	asks := copyLevels(b.Ask.Levels(1 << 20))

	bi, ai := 0, 0
	matched := false
	for bi < len(bids) && ai < len(asks) && bids[bi].Price >= asks[ai].Price {
		matched = true

		consume := bids[bi].Qty
		if asks[ai].Qty < consume {
			consume = asks[ai].Qty
		}
		bids[bi].Qty -= consume
		asks[ai].Qty -= consume
		if bids[bi].Qty == 0 {
			bi++
		}
		if asks[ai].Qty == 0 {
			ai++
		}
	}

	if !matched {
		snap.Bid = levelsToPriceLevels(b.Bid.Levels(b.ladderDepth))
		snap.Ask = levelsToPriceLevels(b.Ask.Levels(b.ladderDepth))
		return
	}

	worseBids := bids[bi:]
	worseAsks := asks[ai:]
	snap.Bid = levelsToPriceLevels(truncate(worseBids, b.ladderDepth))
	snap.Ask = levelsToPriceLevels(truncate(worseAsks, b.ladderDepth))
}

func copyLevels(levels []*pricelevel.Level) []*pricelevel.Level {
	out := make([]*pricelevel.Level, len(levels))
	for i, l := range levels {
		cp := *l
		out[i] = &cp
	}
	return out
}

func truncate(levels []*pricelevel.Level, n int) []*pricelevel.Level {
	if len(levels) > n {
		return levels[:n]
	}
	return levels
}
