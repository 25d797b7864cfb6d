package scale

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

func TestPriceQuantum(t *testing.T) {
	assert.Equal(t, int64(PriceStockPrecision), PriceQuantum(axsbe.SecurityIDSourceSZSE, axsbe.InstrumentStock))
	assert.Equal(t, int64(PriceFundPrecision), PriceQuantum(axsbe.SecurityIDSourceSZSE, axsbe.InstrumentKZZ))
	assert.Equal(t, int64(PriceSSEPrecision), PriceQuantum(axsbe.SecurityIDSourceSSE, axsbe.InstrumentStock))
}

func TestClampPrice(t *testing.T) {
	clamped, overflow := ClampPrice(100)
	assert.False(t, overflow)
	assert.Equal(t, int64(100), clamped)

	clamped, overflow = ClampPrice(1 << 30)
	assert.True(t, overflow)
	assert.Equal(t, maxForBits(PriceBitWidth), clamped)
}

func TestTradedValue(t *testing.T) {
	// SZSE stock: 150 shares at 1000 (×100 = 10.00) -> real value 1500,
	// at ×10000 value precision = 15_000_000.
	got := TradedValue(axsbe.SecurityIDSourceSZSE, axsbe.InstrumentStock, 150, 1000)
	assert.Equal(t, int64(15_000_000), got)

	// SSE stock: 150 shares at 10000 (×1000 = 10.000) -> real value 1500,
	// at ×100000 value precision = 150_000_000.
	got = TradedValue(axsbe.SecurityIDSourceSSE, axsbe.InstrumentStock, 150, 10000)
	assert.Equal(t, int64(150_000_000), got)
}

func TestRoundHalfUpRatio(t *testing.T) {
	assert.Equal(t, int64(0), RoundHalfUpRatio(100, 0))
	assert.Equal(t, int64(3), RoundHalfUpRatio(5, 2))
	assert.Equal(t, int64(-3), RoundHalfUpRatio(-5, 2))
}

func TestRoundHalfUpPercent(t *testing.T) {
	assert.Equal(t, int64(110), RoundHalfUpPercent(100, 110))
	assert.Equal(t, int64(90), RoundHalfUpPercent(100, 90))
}
