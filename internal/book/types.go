// Package book implements AXOB, the per-instrument limit order book
// reconstruction engine (spec.md §4). It consumes axsbe messages in
// exchange sequence order and regenerates Level-N snapshots without ever
// performing matching itself — the exchange has already matched; this
// engine only reconstructs the resulting book state.
package book

import (
	"github.com/sinotrade/axob-rebuild/internal/book/pricelevel"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

// RestingOrder is re-exported from pricelevel, which owns the type to
// avoid an import cycle between book and book/pricelevel.
type RestingOrder = pricelevel.RestingOrder

// HoldingSlot defers a message whose effect cannot yet be determined —
// a market order or a crossing limit order arriving ahead of the
// execution reports that will resolve it (spec.md §4.6). A book has a
// single slot; any message other than the held order's own execution or
// cancel first flushes the held order into the book (flushHolding).
type HoldingSlot struct {
	Open       bool
	ApplSeqNum int64
	Side       axsbe.Side
	OrdType    axsbe.OrdType
	Price      int64
	Qty        int64
}

// CageState tracks the ChiNext (GEM) price-cage admission mechanism
// (spec.md §4.8): orders priced outside the ±2%-of-reference band are
// hidden from the visible book until the reference price moves to admit
// them.
type CageState struct {
	Active      bool
	ReferencePx int64
	// HiddenAsk/HiddenBid hold orders parked outside the cage, ordered by
	// price so a reference move can promote a prefix in one sweep.
	HiddenAsk []*pricelevel.RestingOrder
	HiddenBid []*pricelevel.RestingOrder
}

// SessionState is the per-instrument trading-phase state carried across
// messages, distinct from the multiplexer's channel-wide TPM (an
// instrument can lag or lead its channel's announced phase by one message).
type SessionState struct {
	Phase       axsbe.TPM
	Instrument  axsbe.TPI
	PhaseEverSet bool
}

// Totals holds the weighted running aggregates spec.md §4.7 defines,
// visible-levels-only (cage-hidden quantity never contributes).
type Totals struct {
	BidWeightSize int64
	BidWeightValue int64
	AskWeightSize int64
	AskWeightValue int64
	// AskWeightPxUncertain latches once a price overflow has been clamped
	// for this instrument during the session (spec.md §3).
	AskWeightPxUncertain bool
}

// BidWeightPx is the round-half-up weighted average bid price, or 0 when
// BidWeightSize is 0 (spec.md §3).
func (t *Totals) BidWeightPx() int64 {
	if t.BidWeightSize == 0 {
		return 0
	}
	return roundHalfUp(t.BidWeightValue, t.BidWeightSize)
}

// AskWeightPx is the round-half-up weighted average ask price, or 0 when
// AskWeightSize is 0 (spec.md §3).
func (t *Totals) AskWeightPx() int64 {
	if t.AskWeightSize == 0 {
		return 0
	}
	return roundHalfUp(t.AskWeightValue, t.AskWeightSize)
}

func roundHalfUp(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	return (num + den/2) / den
}
