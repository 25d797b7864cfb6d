package book

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/sinotrade/axob-rebuild/internal/book/pricelevel"
	"github.com/sinotrade/axob-rebuild/internal/logging"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
	axerrors "github.com/sinotrade/axob-rebuild/pkg/errors"
)

type BookEngineTestSuite struct {
	suite.Suite
	snaps []*axsbe.SnapshotStock
}

func (s *BookEngineTestSuite) SetupTest() {
	s.snaps = nil
}

func (s *BookEngineTestSuite) newBook(source axsbe.SecurityIDSource, securityID int64, phase axsbe.TPM) *InstrumentBook {
	b := NewInstrumentBook(source, securityID, axsbe.InstrumentStock, 10, logging.NewNop(), nil, func(snap *axsbe.SnapshotStock) {
		s.snaps = append(s.snaps, snap)
	}, nil)
	b.InitConstants(&axsbe.SnapshotStock{PrevClosePx: 1000, UpLimitPx: 1100, DnLimitPx: 900, ChannelNo: 1}, 20260730)
	b.Session.Phase = phase
	return b
}

func (s *BookEngineTestSuite) last() *axsbe.SnapshotStock {
	require.NotEmpty(s.T(), s.snaps)
	return s.snaps[len(s.snaps)-1]
}

// Scenario 1: Empty AMTrading.
func (s *BookEngineTestSuite) TestScenario1_EmptyAMTrading() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.TPMAMTrading)
	err := b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 999, OrderQty: 100, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading})
	require.NoError(s.T(), err)

	snap := s.last()
	require.Len(s.T(), snap.Bid, 1)
	s.Equal(int64(999), snap.Bid[0].Price)
	s.Equal(int64(100), snap.Bid[0].Qty)
	s.Empty(snap.Ask)
}

// Scenario 2: Cross defers then executes.
func (s *BookEngineTestSuite) TestScenario2_CrossDefersThenExecutes() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.TPMAMTrading)

	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideAsk, OrdType: axsbe.OrdTypeLimit, Price: 1000, OrderQty: 200, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading}))
	preCrossSnaps := len(s.snaps)

	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 2, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 1000, OrderQty: 150, TransactTime: 2, TradingPhaseMarket: axsbe.TPMAMTrading}))
	s.True(b.Holding.Open, "crossing bid should occupy the holding slot")
	s.Equal(preCrossSnaps, len(s.snaps), "no snapshot emitted while holding")

	require.NoError(s.T(), b.OnExec(&axsbe.Exec{ApplSeqNum: 3, BidApplSeqNum: 2, OfferApplSeqNum: 1, LastPx: 1000, LastQty: 150, TransactTime: 3, TradingPhaseMarket: axsbe.TPMAMTrading}))

	s.False(b.Holding.Open)
	s.Nil(b.Registry.ByApplSeqNum(2), "held bid fully filled, not resting")
	askOrder := b.Registry.ByApplSeqNum(1)
	require.NotNil(s.T(), askOrder)
	s.Equal(int64(50), askOrder.Qty)

	snap := s.last()
	require.Len(s.T(), snap.Ask, 1)
	s.Equal(int64(1000), snap.Ask[0].Price)
	s.Equal(int64(50), snap.Ask[0].Qty)
	s.Equal(int64(1), snap.NumTrades)
	s.Equal(int64(1000), snap.LastPx)
	s.Equal(int64(150), snap.TotalVolumeTrade)
	s.Equal(int64(15_000_000), snap.TotalValueTrade)
}

// Scenario 3: SZSE cancel via exec.
func (s *BookEngineTestSuite) TestScenario3_CancelViaExec() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.TPMAMTrading)
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 7, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 950, OrderQty: 300, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading}))

	require.NoError(s.T(), b.OnExec(&axsbe.Exec{ApplSeqNum: 8, BidApplSeqNum: 7, OfferApplSeqNum: 0, LastPx: 0, LastQty: 300, ExecType: axsbe.ExecTypeCancel, TransactTime: 2, TradingPhaseMarket: axsbe.TPMAMTrading}))

	s.Nil(b.Registry.ByApplSeqNum(7))
	s.True(b.Bid.Empty())
	s.Equal(int64(0), b.NumTrades)
}

// Scenario 4: Call-auction indicative match.
func (s *BookEngineTestSuite) TestScenario4_CallAuctionMatch() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.TPMOpenCall)

	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 1010, OrderQty: 100, TransactTime: 1, TradingPhaseMarket: axsbe.TPMOpenCall}))
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 2, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 1000, OrderQty: 200, TransactTime: 2, TradingPhaseMarket: axsbe.TPMOpenCall}))
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 3, Side: axsbe.SideAsk, OrdType: axsbe.OrdTypeLimit, Price: 995, OrderQty: 150, TransactTime: 3, TradingPhaseMarket: axsbe.TPMOpenCall}))
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 4, Side: axsbe.SideAsk, OrdType: axsbe.OrdTypeLimit, Price: 1005, OrderQty: 100, TransactTime: 4, TradingPhaseMarket: axsbe.TPMOpenCall}))

	snap := s.last()
	require.Len(s.T(), snap.Bid, 1)
	s.Equal(int64(1000), snap.Bid[0].Price)
	s.Equal(int64(150), snap.Bid[0].Qty)
	require.Len(s.T(), snap.Ask, 1)
	s.Equal(int64(1005), snap.Ask[0].Price)
	s.Equal(int64(100), snap.Ask[0].Qty)
}

// Scenario 5: GEM cage hiding.
func (s *BookEngineTestSuite) TestScenario5_CageHiding() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 300001, axsbe.TPMAMTrading)
	b.PrevClosePx = 1000
	b.LastPx = 1000

	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 1030, OrderQty: 100, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading}))

	s.True(b.Bid.Empty(), "hidden order must not be visible")
	s.Equal(int64(0), b.Totals.BidWeightSize)
	require.Len(s.T(), b.Cage.HiddenBid, 1)
	s.Equal(int64(1030), b.Cage.HiddenBid[0].Price)
	s.Equal(int64(100), b.Cage.HiddenBid[0].Qty)

	snap := s.last()
	s.Empty(snap.Bid)
}

// Scenario 6: Cage promotion.
func (s *BookEngineTestSuite) TestScenario6_CagePromotion() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 300001, axsbe.TPMAMTrading)
	b.PrevClosePx = 1000
	b.LastPx = 1000

	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 1030, OrderQty: 100, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading}))
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 2, Side: axsbe.SideAsk, OrdType: axsbe.OrdTypeLimit, Price: 1025, OrderQty: 50, TransactTime: 2, TradingPhaseMarket: axsbe.TPMAMTrading}))

	require.Empty(s.T(), b.Cage.HiddenBid, "hidden bid should have been promoted")
	best := b.Bid.Best()
	require.NotNil(s.T(), best)
	s.Equal(int64(1030), best.Price)
	s.Equal(int64(100), best.Qty)

	snap := s.last()
	require.NotEmpty(s.T(), snap.Bid)
	s.Equal(int64(1030), snap.Bid[0].Price)
	s.Equal(int64(100), snap.Bid[0].Qty)
}

// TestInvariantP1Aggregation checks P1: total level aggregate equals
// total registry qty, after a representative sequence of messages.
func (s *BookEngineTestSuite) TestInvariantP1Aggregation() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.TPMAMTrading)
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 990, OrderQty: 100, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading}))
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 2, Side: axsbe.SideAsk, OrdType: axsbe.OrdTypeLimit, Price: 1010, OrderQty: 80, TransactTime: 2, TradingPhaseMarket: axsbe.TPMAMTrading}))

	var levelTotal int64
	b.Bid.Each(func(l *pricelevel.Level) bool { levelTotal += l.Qty; return true })
	b.Ask.Each(func(l *pricelevel.Level) bool { levelTotal += l.Qty; return true })

	var registryTotal int64
	for _, o := range b.Registry.byAppl {
		registryTotal += o.Qty
	}
	s.Equal(registryTotal, levelTotal)
}

// TestInvariantP5SeqnumMonotonic checks P5: a regressing SZSE seqnum is
// rejected as a fatal protocol error and does not advance state.
func (s *BookEngineTestSuite) TestInvariantP5SeqnumMonotonic() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.TPMAMTrading)
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 5, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 990, OrderQty: 100, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading}))
	err := b.OnOrder(&axsbe.Order{ApplSeqNum: 3, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 990, OrderQty: 100, TransactTime: 2, TradingPhaseMarket: axsbe.TPMAMTrading})
	require.Error(s.T(), err)
	s.Nil(b.Registry.ByApplSeqNum(3))
}

// TestInvariantP6HoldingUniqueness checks P6: the holding slot holds at
// most one order at any quiescent point.
func (s *BookEngineTestSuite) TestInvariantP6HoldingUniqueness() {
	b := s.newBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.TPMAMTrading)
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideAsk, OrdType: axsbe.OrdTypeLimit, Price: 1000, OrderQty: 200, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading}))
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 2, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 1000, OrderQty: 150, TransactTime: 2, TradingPhaseMarket: axsbe.TPMAMTrading}))
	s.True(b.Holding.Open)

	// A third message not matching the held order must flush it first.
	require.NoError(s.T(), b.OnOrder(&axsbe.Order{ApplSeqNum: 3, Side: axsbe.SideAsk, OrdType: axsbe.OrdTypeLimit, Price: 1020, OrderQty: 10, TransactTime: 3, TradingPhaseMarket: axsbe.TPMAMTrading}))
	s.False(b.Holding.Open)
}

// TestUnsupportedInstrumentRejected checks that bond/repo instrument
// types, which were never validated against a real exchange snapshot,
// are refused rather than silently reconstructed.
func (s *BookEngineTestSuite) TestUnsupportedInstrumentRejected() {
	b := NewInstrumentBook(axsbe.SecurityIDSourceSZSE, 1, axsbe.InstrumentBond, 10, logging.NewNop(), nil, nil, nil)
	b.InitConstants(&axsbe.SnapshotStock{PrevClosePx: 1000, UpLimitPx: 1100, DnLimitPx: 900, ChannelNo: 1}, 20260730)

	err := b.OnOrder(&axsbe.Order{ApplSeqNum: 1, Side: axsbe.SideBid, OrdType: axsbe.OrdTypeLimit, Price: 990, OrderQty: 100, TransactTime: 1, TradingPhaseMarket: axsbe.TPMAMTrading})
	require.Error(s.T(), err)
	s.Equal(axerrors.ErrUnsupported, axerrors.GetErrorCode(err))
}

func TestBookEngineSuite(t *testing.T) {
	suite.Run(t, new(BookEngineTestSuite))
}
