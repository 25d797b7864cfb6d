package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sinotrade/axob-rebuild/internal/logging"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

func sampleSnap(numTrades, transactTime int64) *axsbe.SnapshotStock {
	return &axsbe.SnapshotStock{
		SecurityID:       1,
		SecurityIDSource: axsbe.SecurityIDSourceSZSE,
		NumTrades:        numTrades,
		TransactTime:     transactTime,
		LastPx:           1000,
		TradingPhaseMarket: axsbe.TPMAMTrading,
	}
}

func TestReconciler_MatchesFastPath(t *testing.T) {
	r := New(time.Second, 0, logging.NewNop())

	rebuilt := sampleSnap(5, 1000)
	r.OnRebuiltSnapshot(rebuilt)
	require.False(t, r.AreYouOK() == false, "no market snapshot yet, nothing unmatched")

	market := sampleSnap(5, 1000)
	r.OnMarketSnapshot(market)

	assert.True(t, r.AreYouOK())
}

func TestReconciler_UnmatchedSurfaces(t *testing.T) {
	r := New(time.Second, 0, logging.NewNop())

	market := sampleSnap(5, 1000)
	r.OnMarketSnapshot(market)

	assert.False(t, r.AreYouOK())
	require.Error(t, r.Unmatched())
}

func TestReconciler_TimestampToleranceWaivedInBreaking(t *testing.T) {
	r := New(0, 0, logging.NewNop())

	rebuilt := sampleSnap(2, 1000)
	rebuilt.TradingPhaseMarket = axsbe.TPMBreaking
	r.OnRebuiltSnapshot(rebuilt)

	market := sampleSnap(2, 999999)
	market.TradingPhaseMarket = axsbe.TPMBreaking
	r.OnMarketSnapshot(market)

	assert.True(t, r.AreYouOK())
}
