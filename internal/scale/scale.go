// Package scale holds the fixed-width internal integer conventions the
// book engine operates on (spec.md §3): per-instrument price and value
// precisions, bit-width budgets, the 25-bit price clamp, the traded-value
// formula and round-half-up helpers, following the original source's exact
// per-instrument arithmetic where spec.md gives only the target scale. It
// does not convert raw exchange decimal fields; prices reach the engine
// already at internal scale.
package scale

import (
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

// Price/quantity precision constants, ×-scale, copied verbatim from the
// original source's msg_util module (SPEC_FULL.md "SUPPLEMENTED FEATURES").
const (
	PriceStockPrecision = 100   // stock price ×100 (2dp)
	PriceFundPrecision  = 1000  // fund/KZZ price ×1000 (3dp)
	PriceKZZPrecision   = 1000
	PriceSSEPrecision   = 1000 // SSE bond/stock price ×1000

	ValueSZSEPrecision = 10000  // SZSE traded value ×10000
	ValueSSEPrecision  = 100000 // SSE traded value ×100000

	// PriceBitWidth is the budgeted width for an internal scaled price (§3).
	PriceBitWidth = 25
	// OrderQtyBitWidth is the budgeted width for a single order's quantity.
	OrderQtyBitWidth = 30
	// AggregateQtyBitWidth is the budgeted width for a level's aggregate quantity.
	AggregateQtyBitWidth = 38
	// ApplSeqNumBitWidth is the budgeted width for an application sequence number.
	ApplSeqNumBitWidth = 32
)

// maxForBits returns the maximum unsigned value representable in n bits.
func maxForBits(n uint) int64 {
	return (int64(1) << n) - 1
}

// PriceQuantum returns the internal price precision for an instrument on a
// given exchange, following the original's per-instrument-type table.
func PriceQuantum(source axsbe.SecurityIDSource, instrument axsbe.InstrumentType) int64 {
	if source == axsbe.SecurityIDSourceSSE {
		return PriceSSEPrecision
	}
	switch instrument {
	case axsbe.InstrumentStock:
		return PriceStockPrecision
	case axsbe.InstrumentFund, axsbe.InstrumentKZZ:
		return PriceFundPrecision
	default:
		return PriceStockPrecision
	}
}

// ValueQuantum returns the internal traded-value precision for an exchange.
func ValueQuantum(source axsbe.SecurityIDSource) int64 {
	if source == axsbe.SecurityIDSourceSSE {
		return ValueSSEPrecision
	}
	return ValueSZSEPrecision
}

// ClampPrice clamps a raw price to the 25-bit budgeted width, returning the
// clamped value and whether clamping occurred (an overflow, spec.md §3).
func ClampPrice(raw int64) (clamped int64, overflowed bool) {
	max := maxForBits(PriceBitWidth)
	if raw > max {
		return max, true
	}
	return raw, false
}

// TradedValue computes the internal-scale traded value for one execution.
// qty is a raw (unscaled) share count and px is already at its internal
// PriceQuantum scale; the value precision carries one or two more decimal
// digits than the price precision (valueQuantum/priceQuantum is
// exact — 10000/100=100 and 10000/1000=10 on SZSE, 100000/1000=100 on
// SSE), so qty*px scales up to the target value precision by that exact
// ratio, following the original's per-instrument value-precision table
// (SPEC_FULL.md "SUPPLEMENTED FEATURES").
//
// Open Question (SPEC_FULL.md): SSE fund precision is TODO in the original;
// non-stock/non-KZZ/non-fund SSE instruments fall back to the stock ratio.
func TradedValue(source axsbe.SecurityIDSource, instrument axsbe.InstrumentType, qty, px int64) int64 {
	priceQ := PriceQuantum(source, instrument)
	valueQ := ValueQuantum(source)
	return qty * px * valueQ / priceQ
}

// RoundHalfUpPercent computes round-half-up(value*percent/100), used for
// the GEM "no up-limit" CloseCall effective-auction band (110% and 90% of
// LastPx).
func RoundHalfUpPercent(value int64, percent int64) int64 {
	// value * percent / 100, rounded half up: (value*percent + 50) / 100
	return (value*percent + 50) / 100
}

// RoundHalfUpRatio computes round-half-up(num/den) for arbitrary integers,
// rounding negative numerators symmetrically, and returns 0 when den is 0.
// The book's weighted-average prices use book's own roundHalfUp, not this.
func RoundHalfUpRatio(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	if num < 0 {
		return -RoundHalfUpRatio(-num, den)
	}
	return (num + den/2) / den
}
