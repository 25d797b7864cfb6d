package book

import (
	"fmt"

	"github.com/sinotrade/axob-rebuild/internal/book/pricelevel"
	"github.com/sinotrade/axob-rebuild/internal/logging"
	"github.com/sinotrade/axob-rebuild/internal/scale"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
	axerrors "github.com/sinotrade/axob-rebuild/pkg/errors"
)

// obCancel is the internal cancellation shape both SZSE's cancel-via-exec
// and SSE's delete-order messages converge on (spec.md §4.4).
type obCancel struct {
	ApplSeqNum int64
	OrderNo    int64
	Side       axsbe.Side
	Qty        int64
}

// InstrumentBook is AXOB: the single-threaded, per-instrument order book
// reconstruction engine (spec.md §4). It owns all of its state
// exclusively and never blocks on I/O.
type InstrumentBook struct {
	SecurityIDSource axsbe.SecurityIDSource
	SecurityID       int64
	ChannelNo        int32
	Instrument       axsbe.InstrumentType
	Subtype          axsbe.MarketSubtype
	IsGEM            bool

	// Static constants, latched from the first Starting-phase snapshot
	// (spec.md §6 "Constants").
	constantsSet bool
	PrevClosePx  int64
	UpLimitPx    int64
	DnLimitPx    int64
	YYMMDD       int64

	Session SessionState

	Bid *pricelevel.Index
	Ask *pricelevel.Index

	Totals   Totals
	Registry *Registry
	Cage     CageState
	Holding  HoldingSlot

	NumTrades        int64
	TotalVolumeTrade int64
	TotalValueTrade  int64
	OpenPx           int64
	HighPx           int64
	LowPx            int64
	LastPx           int64

	clockTime      int64
	lastApplSeqNum int64

	ladderDepth      int
	log              logging.Logger
	metrics          *Metrics
	onSnapshot       func(*axsbe.SnapshotStock)
	onMarketSnapshot func(*axsbe.SnapshotStock)
}

// NewInstrumentBook constructs an empty book for one instrument.
// onSnapshot receives every snapshot this engine regenerates;
// onMarketSnapshot receives every exchange-published snapshot handed to
// OnMarketSnapshot once constants are already latched — wiring both to
// the same Reconciler lets it compare the two streams (spec.md §4.9).
func NewInstrumentBook(source axsbe.SecurityIDSource, securityID int64, instrument axsbe.InstrumentType, ladderDepth int, log logging.Logger, metrics *Metrics, onSnapshot, onMarketSnapshot func(*axsbe.SnapshotStock)) *InstrumentBook {
	subtype := axsbe.MarketSubtypeOf(source, securityID)
	return &InstrumentBook{
		SecurityIDSource: source,
		SecurityID:       securityID,
		Instrument:       instrument,
		Subtype:          subtype,
		IsGEM:            subtype == axsbe.MarketSubtypeSZSEGEM,
		Bid:              pricelevel.New(true),
		Ask:              pricelevel.New(false),
		Registry:         NewRegistry(),
		ladderDepth:      ladderDepth,
		log:              log,
		metrics:          metrics,
		onSnapshot:       onSnapshot,
		onMarketSnapshot: onMarketSnapshot,
	}
}

// InitConstants latches the instrument's static constants from the first
// Starting-phase snapshot the engine sees. Order/exec messages arriving
// before this is called are a protocol violation (spec.md §6).
func (b *InstrumentBook) InitConstants(snap *axsbe.SnapshotStock, yyyymmdd int64) {
	b.PrevClosePx = snap.PrevClosePx
	b.UpLimitPx = snap.UpLimitPx
	b.DnLimitPx = snap.DnLimitPx
	b.ChannelNo = snap.ChannelNo
	b.YYMMDD = yyyymmdd
	b.constantsSet = true
}

// OnMarketSnapshot processes one exchange-published snapshot (spec.md §6,
// §4.9). The first Starting-phase one seen latches this instrument's static
// constants — until that happens, OnOrder/OnExec refuse to process any
// message and snapshots of other phases are dropped; every one after the
// latch is handed to the reconciler sink instead of being interpreted
// further here.
func (b *InstrumentBook) OnMarketSnapshot(snap *axsbe.SnapshotStock, yyyymmdd int64) {
	if !b.constantsSet {
		if snap.TradingPhaseMarket == axsbe.TPMStarting {
			b.InitConstants(snap, yyyymmdd)
		}
		return
	}
	if b.onMarketSnapshot != nil {
		b.onMarketSnapshot(snap)
	}
}

// supportedInstrument reports whether this book's instrument type has a
// validated reconstruction path. Bond and repo (NHG) feeds carry a
// different message/precision shape that was never exercised against a
// real exchange snapshot during this rebuild (SPEC_FULL.md "Open Question
// decisions"), so OnOrder/OnExec refuse them outright rather than silently
// producing a book whose numbers were never checked for these types.
func (b *InstrumentBook) supportedInstrument() bool {
	switch b.Instrument {
	case axsbe.InstrumentStock, axsbe.InstrumentFund, axsbe.InstrumentKZZ:
		return true
	default:
		return false
	}
}

func (b *InstrumentBook) sideIndex(side axsbe.Side) *pricelevel.Index {
	if side == axsbe.SideBid {
		return b.Bid
	}
	return b.Ask
}

// checkSeqNum enforces P5: within one SZSE channel, handled ApplSeqNum
// strictly increases. SSE does not share a single monotone counter across
// order/exec streams and is exempt.
func (b *InstrumentBook) checkSeqNum(applSeqNum int64) error {
	if b.SecurityIDSource != axsbe.SecurityIDSourceSZSE {
		return nil
	}
	if applSeqNum <= b.lastApplSeqNum {
		if b.metrics != nil {
			b.metrics.ProtocolErrors.WithLabelValues(b.SecurityIDSource.String(), "protocol_sequence").Inc()
		}
		return axerrors.New(axerrors.ErrProtocolSequence, fmt.Sprintf("seqnum regression: got %d, last %d", applSeqNum, b.lastApplSeqNum))
	}
	b.lastApplSeqNum = applSeqNum
	return nil
}

// advanceClock propagates the message timestamp and phase, never
// overriding an active VolatilityBreaking phase via a passive signal
// (spec.md §4.3c — VB only exits on an order/exec event, handled
// separately by OnOrder/OnExec).
func (b *InstrumentBook) advanceClock(ts int64, phase axsbe.TPM) {
	b.clockTime = ts
	if b.Session.Phase == axsbe.TPMVolatilityBreaking {
		return
	}
	b.Session.Phase = phase
	b.Session.PhaseEverSet = true
}

// OnPhaseSignal applies a multiplexer-pushed phase transition to this
// instrument (spec.md §4.10).
func (b *InstrumentBook) OnPhaseSignal(phase axsbe.TPM) {
	b.Session.Phase = phase
	b.Session.PhaseEverSet = true
}

// OnOrder processes one inbound order message end to end.
func (b *InstrumentBook) OnOrder(msg *axsbe.Order) error {
	if !b.supportedInstrument() {
		return axerrors.New(axerrors.ErrUnsupported, "order reconstruction not implemented for this instrument type")
	}
	if !b.constantsSet {
		return axerrors.New(axerrors.ErrMissingRegistryEntry, "order received before constants latched")
	}
	if err := b.checkSeqNum(msg.ApplSeqNum); err != nil {
		return err
	}

	if b.Holding.Open && !b.holdingMatchedBy(msg.ApplSeqNum) {
		b.flushHolding()
	}

	b.advanceClock(msg.TransactTime, msg.TradingPhaseMarket)
	if msg.OrdType == axsbe.OrdTypeDelete {
		return b.OnCancel(&obCancel{ApplSeqNum: msg.ApplSeqNum, OrderNo: msg.OrderNo, Side: msg.Side, Qty: msg.OrderQty})
	}

	price, qty, ordType := b.rescaleOrder(msg)

	if ordType == axsbe.OrdTypeSelfSideOptimal {
		price = b.selfSideOptimalPrice(msg.Side)
		ordType = axsbe.OrdTypeLimit
	}
	if ordType == axsbe.OrdTypeNew {
		ordType = axsbe.OrdTypeLimit
	}

	switch {
	case b.Session.Phase.IsCallAuction():
		return b.insertCallAuction(msg, price, qty)
	case b.Session.Phase == axsbe.TPMVolatilityBreaking:
		b.Session.Phase = msg.TradingPhaseMarket
		return b.insertAndEmit(msg, price, qty, axsbe.OrdTypeLimit)
	default:
		return b.insertContinuous(msg, price, qty, ordType)
	}
}

func (b *InstrumentBook) holdingMatchedBy(applSeqNum int64) bool {
	return b.Holding.Open && b.Holding.ApplSeqNum == applSeqNum
}

// rescaleOrder clamps the order's price to the 25-bit budget and returns
// price and qty otherwise unchanged: both are taken as already at internal
// scale, and no decimal rescale is applied here.
func (b *InstrumentBook) rescaleOrder(msg *axsbe.Order) (price, qty int64, ordType axsbe.OrdType) {
	price = msg.Price
	if clamped, overflow := scale.ClampPrice(price); overflow {
		price = clamped
		b.Totals.AskWeightPxUncertain = true
		if b.metrics != nil {
			b.metrics.ProtocolErrors.WithLabelValues(b.SecurityIDSource.String(), "bit_width_overflow").Inc()
		}
	}
	return price, msg.OrderQty, msg.OrdType
}

// selfSideOptimalPrice resolves SZSE's "SIDE" order type to the current
// own-side best, or the own-side limit if that side is empty (spec.md
// §4.3 "Order message pipeline").
func (b *InstrumentBook) selfSideOptimalPrice(side axsbe.Side) int64 {
	idx := b.sideIndex(side)
	if best := idx.Best(); best != nil {
		return best.Price
	}
	if side == axsbe.SideBid {
		return b.DnLimitPx
	}
	return b.UpLimitPx
}

// insertCallAuction implements the call-auction disposition (spec.md §4.3
// "Call auction"), including the GEM IPO-week illegal-order carve-outs.
func (b *InstrumentBook) insertCallAuction(msg *axsbe.Order, price, qty int64) error {
	if b.IsGEM && b.UpLimitPx == axsbe.OrderPriceOverflow {
		if b.Session.Phase == axsbe.TPMOpenCall && msg.Side == axsbe.SideBid && price > b.PrevClosePx*9 {
			b.Registry.MarkIllegal(msg.ApplSeqNum)
			b.emitSnapshot()
			return nil
		}
		if b.Session.Phase == axsbe.TPMCloseCall && b.LastPx != 0 {
			upper := scale.RoundHalfUpPercent(b.LastPx, 110)
			lower := scale.RoundHalfUpPercent(b.LastPx, 90)
			if price > upper || price < lower {
				b.Registry.MarkIllegal(msg.ApplSeqNum)
				b.emitSnapshot()
				return nil
			}
		}
	}
	return b.insertAndEmit(msg, price, qty, axsbe.OrdTypeLimit)
}

// insertContinuous implements continuous-trading disposition (spec.md
// §4.3 "Continuous"): GEM cage hiding, holding-slot deferral for market
// orders and crossing limit orders, or a direct insert with cage scan.
func (b *InstrumentBook) insertContinuous(msg *axsbe.Order, price, qty int64, ordType axsbe.OrdType) error {
	if b.IsGEM && ordType == axsbe.OrdTypeLimit {
		ref := b.referencePrice(msg.Side)
		outside := (msg.Side == axsbe.SideBid && price > CageUpper(ref)) ||
			(msg.Side == axsbe.SideAsk && price < CageLower(ref))
		if outside {
			o := &RestingOrder{ApplSeqNum: msg.ApplSeqNum, OrderNo: msg.OrderNo, Side: msg.Side, Price: price, Qty: qty, Original: qty}
			b.Registry.Put(o)
			b.HideOrder(msg.Side, o)
			b.emitSnapshot()
			return nil
		}
	}

	if ordType == axsbe.OrdTypeMarket || b.crosses(msg.Side, price) {
		b.Holding = HoldingSlot{Open: true, ApplSeqNum: msg.ApplSeqNum, Side: msg.Side, OrdType: ordType, Price: price, Qty: qty}
		if b.metrics != nil {
			b.metrics.HoldingSlotEvents.WithLabelValues(b.SecurityIDSource.String(), "open").Inc()
		}
		return nil
	}

	o := &RestingOrder{ApplSeqNum: msg.ApplSeqNum, OrderNo: msg.OrderNo, Side: msg.Side, Price: price, Qty: qty, Original: qty}
	b.Registry.Put(o)
	b.sideIndex(msg.Side).Insert(o)
	b.Totals.AddVisible(msg.Side, price, qty)
	b.cageScan()
	b.emitSnapshot()
	return nil
}

// crosses reports whether an incoming order on side at price would
// trade immediately against the opposite side's book.
func (b *InstrumentBook) crosses(side axsbe.Side, price int64) bool {
	return b.sideIndex(side.Opposite()).Crosses(price)
}

// insertAndEmit records the order in the registry and price-level index,
// updates visible totals, and emits a snapshot (spec.md §4.3 "Insertion").
func (b *InstrumentBook) insertAndEmit(msg *axsbe.Order, price, qty int64, _ axsbe.OrdType) error {
	o := &RestingOrder{ApplSeqNum: msg.ApplSeqNum, OrderNo: msg.OrderNo, Side: msg.Side, Price: price, Qty: qty, Original: qty}
	b.Registry.Put(o)
	b.sideIndex(msg.Side).Insert(o)
	b.Totals.AddVisible(msg.Side, price, qty)
	b.emitSnapshot()
	return nil
}

// flushHolding inserts the held order into the book and emits a snapshot
// stamped with the held order's own timestamp, per spec.md §4.3 step 1.
// A held market order that was never matched by a trade is logged as a
// protocol anomaly but still inserted (spec.md §7).
func (b *InstrumentBook) flushHolding() {
	h := b.Holding
	b.Holding = HoldingSlot{}
	if h.OrdType == axsbe.OrdTypeMarket {
		b.log.Warn("held market order never traded; inserting anomalously", "applSeqNum", h.ApplSeqNum)
	}
	o := &RestingOrder{ApplSeqNum: h.ApplSeqNum, Side: h.Side, Price: h.Price, Qty: h.Qty, Original: h.Qty}
	b.Registry.Put(o)
	b.sideIndex(h.Side).Insert(o)
	b.Totals.AddVisible(h.Side, h.Price, h.Qty)
	if b.metrics != nil {
		b.metrics.HoldingSlotEvents.WithLabelValues(b.SecurityIDSource.String(), "flush").Inc()
	}
	b.cageScan()
	b.emitSnapshot()
}

// OnExec processes one inbound execution (spec.md §4.4).
func (b *InstrumentBook) OnExec(msg *axsbe.Exec) error {
	if !b.supportedInstrument() {
		return axerrors.New(axerrors.ErrUnsupported, "exec reconstruction not implemented for this instrument type")
	}
	if !b.constantsSet {
		return axerrors.New(axerrors.ErrMissingRegistryEntry, "exec received before constants latched")
	}
	if msg.ExecType == axsbe.ExecTypeCancel {
		return b.onCancelViaExec(msg)
	}
	if err := b.checkSeqNum(msg.ApplSeqNum); err != nil {
		return err
	}
	b.advanceClock(msg.TransactTime, msg.TradingPhaseMarket)

	price, qty := msg.LastPx, msg.LastQty
	b.NumTrades++
	b.TotalVolumeTrade += qty
	b.TotalValueTrade += scale.TradedValue(b.SecurityIDSource, b.Instrument, qty, price)
	b.applyOHLC(price)
	b.LastPx = price

	if b.Holding.Open {
		return b.reconcileHolding(msg, price, qty)
	}
	return b.defaultExec(msg, price, qty)
}

func (b *InstrumentBook) applyOHLC(price int64) {
	if b.OpenPx == 0 {
		b.OpenPx = price
	}
	if b.HighPx == 0 || price > b.HighPx {
		b.HighPx = price
	}
	if b.LowPx == 0 || price < b.LowPx {
		b.LowPx = price
	}
}

// reconcileHolding implements two branches of spec.md §4.4 step 2: the
// exec names the held order, or it names neither held seq. There is no
// separate cage-waiting branch.
func (b *InstrumentBook) reconcileHolding(msg *axsbe.Exec, price, qty int64) error {
	h := b.Holding
	isParticipant := msg.BidApplSeqNum == h.ApplSeqNum || msg.OfferApplSeqNum == h.ApplSeqNum
	if !isParticipant {
		b.log.Warn("exec during holding names neither held seq; flushing held order", "held", h.ApplSeqNum)
		b.flushHolding()
		return b.defaultExec(msg, price, qty)
	}

	oppositeSide := h.Side.Opposite()
	oppositeSeq := msg.BidApplSeqNum
	if h.Side == axsbe.SideBid {
		oppositeSeq = msg.OfferApplSeqNum
	}
	opp := b.Registry.ByApplSeqNum(oppositeSeq)
	if opp != nil {
		b.dequeue(oppositeSide, opp, qty)
	}

	h.Qty -= qty
	if h.OrdType == axsbe.OrdTypeMarket {
		h.Price = price
	}

	if h.Qty <= 0 {
		b.Holding = HoldingSlot{}
		if b.metrics != nil {
			b.metrics.HoldingSlotEvents.WithLabelValues(b.SecurityIDSource.String(), "consumed").Inc()
		}
		b.cageScan()
		b.emitSnapshot()
		return nil
	}

	if h.OrdType == axsbe.OrdTypeLimit && !b.crosses(h.Side, h.Price) {
		o := &RestingOrder{ApplSeqNum: h.ApplSeqNum, Side: h.Side, Price: h.Price, Qty: h.Qty, Original: h.Qty}
		b.Registry.Put(o)
		b.sideIndex(h.Side).Insert(o)
		b.Totals.AddVisible(h.Side, h.Price, h.Qty)
		b.Holding = HoldingSlot{}
		b.cageScan()
		b.emitSnapshot()
		return nil
	}

	b.Holding = h
	return nil
}

// defaultExec implements spec.md §4.4 step 3, the no-holding branch.
func (b *InstrumentBook) defaultExec(msg *axsbe.Exec, price, qty int64) error {
	bidOrder := b.Registry.ByApplSeqNum(msg.BidApplSeqNum)
	if bidOrder != nil {
		b.dequeue(axsbe.SideBid, bidOrder, qty)
	} else if !b.Registry.IsIllegal(msg.BidApplSeqNum) {
		if b.metrics != nil {
			b.metrics.ProtocolErrors.WithLabelValues(b.SecurityIDSource.String(), "missing_registry_entry").Inc()
		}
		b.log.Error("exec bid side missing from registry", "applSeqNum", msg.BidApplSeqNum)
	}

	askOrder := b.Registry.ByApplSeqNum(msg.OfferApplSeqNum)
	if askOrder != nil {
		b.dequeue(axsbe.SideAsk, askOrder, qty)
	} else if !b.Registry.IsIllegal(msg.OfferApplSeqNum) {
		if b.metrics != nil {
			b.metrics.ProtocolErrors.WithLabelValues(b.SecurityIDSource.String(), "missing_registry_entry").Inc()
		}
		b.log.Error("exec ask side missing from registry", "applSeqNum", msg.OfferApplSeqNum)
	}

	wasCallAuction := b.Session.Phase.IsCallAuction()
	noLongerCrosses := b.Bid.Empty() || b.Ask.Empty() || !b.Ask.Crosses(b.Bid.Best().Price)
	if wasCallAuction && noLongerCrosses {
		b.emitSnapshot()
	}
	if b.Session.Phase == axsbe.TPMVolatilityBreaking {
		b.Session.Phase = msg.TradingPhaseMarket
		b.emitSnapshot()
	}
	b.cageScan()
	return nil
}

// onCancelViaExec translates a SZSE cancel-encoded-as-exec message into
// the unified ob_cancel shape.
func (b *InstrumentBook) onCancelViaExec(msg *axsbe.Exec) error {
	if err := b.checkSeqNum(msg.ApplSeqNum); err != nil {
		return err
	}
	b.advanceClock(msg.TransactTime, msg.TradingPhaseMarket)
	side, applSeqNum := axsbe.SideBid, msg.BidApplSeqNum
	if msg.OfferApplSeqNum != 0 {
		side, applSeqNum = axsbe.SideAsk, msg.OfferApplSeqNum
	}
	return b.OnCancel(&obCancel{ApplSeqNum: applSeqNum, Side: side, Qty: msg.LastQty})
}

// OnCancel implements spec.md §4.4 "Cancellation". A cancel naming the held
// order empties the holding slot; any other cancel flushes an open slot
// first; a cancel against the illegal set is silently absorbed; a cancel
// against nothing is a fatal protocol error.
func (b *InstrumentBook) OnCancel(c *obCancel) error {
	if b.holdingMatchedBy(c.ApplSeqNum) {
		b.Holding = HoldingSlot{}
		b.emitSnapshot()
		return nil
	}
	if b.Holding.Open {
		b.flushHolding()
	}

	var o *RestingOrder
	if c.OrderNo != 0 {
		o = b.Registry.ByOrderNo(c.OrderNo)
	} else {
		o = b.Registry.ByApplSeqNum(c.ApplSeqNum)
	}

	if o == nil {
		if b.Registry.IsIllegal(c.ApplSeqNum) {
			return nil
		}
		if b.metrics != nil {
			b.metrics.ProtocolErrors.WithLabelValues(b.SecurityIDSource.String(), "missing_registry_entry").Inc()
		}
		return axerrors.New(axerrors.ErrMissingRegistryEntry, fmt.Sprintf("cancel against nothing: applSeqNum=%d", c.ApplSeqNum))
	}

	b.dequeue(o.Side, o, o.Qty)
	b.cageScan()
	b.emitSnapshot()
	return nil
}

// dequeue implements spec.md §4.7 "Level dequeue": o's remaining quantity
// is decremented by qty — identified by its own identity, not front-of-
// queue position or a coincidental quantity match — and it is removed
// from its level and the registry once fully consumed.
func (b *InstrumentBook) dequeue(side axsbe.Side, o *RestingOrder, qty int64) {
	if o == nil {
		return
	}
	if !b.priceIsCageHidden(side, o.Price) {
		b.Totals.RemoveVisible(side, o.Price, qty)
	}
	b.sideIndex(side).Consume(o, qty)
	if o.Qty <= 0 {
		b.Registry.Remove(o)
	}
}

func (b *InstrumentBook) priceIsCageHidden(side axsbe.Side, price int64) bool {
	list := b.Cage.HiddenBid
	if side == axsbe.SideAsk {
		list = b.Cage.HiddenAsk
	}
	for _, o := range list {
		if o.Price == price {
			return true
		}
	}
	return false
}

// Stats reports the engine's self-diagnostic view, generalizing the
// original's are_you_ok()/profile() pair (SPEC_FULL.md).
type Stats struct {
	SecurityID     int64
	NumTrades      int64
	RegistryOrders int
	BidLevels      int
	AskLevels      int
	HoldingOpen    bool
}

func (b *InstrumentBook) StatsSnapshot() Stats {
	return Stats{
		SecurityID:     b.SecurityID,
		NumTrades:      b.NumTrades,
		RegistryOrders: len(b.Registry.byAppl),
		BidLevels:      b.Bid.Size(),
		AskLevels:      b.Ask.Size(),
		HoldingOpen:    b.Holding.Open,
	}
}
