package axsbe

// Order is axsbe_order: a single inbound order message (spec.md §6).
type Order struct {
	SecurityIDSource SecurityIDSource
	SecurityID       int64
	ChannelNo        int32
	ApplSeqNum       int64
	TransactTime     int64
	Side             Side
	OrdType          OrdType
	Price            int64 // price at the internal PriceQuantum scale; the engine applies no decimal rescale
	OrderQty         int64 // raw exchange-precision quantity
	OrderNo          int64 // SSE only: identifies the order a later Delete references
	TradingPhaseMarket TPM
}

// Exec is axsbe_exe: a single inbound execution (or SZSE cancel-via-exec)
// message (spec.md §6).
type Exec struct {
	SecurityIDSource   SecurityIDSource
	SecurityID         int64
	ChannelNo          int32
	ApplSeqNum         int64
	TransactTime       int64
	BidApplSeqNum      int64
	OfferApplSeqNum    int64
	LastPx             int64
	LastQty            int64
	ExecType           ExecType // SZSE only; SSE always Trade
	TradingPhaseMarket TPM
}

// Status is axsbe_status: a channel-level phase announcement (spec.md §6).
type Status struct {
	SecurityIDSource SecurityIDSource
	ChannelNo        int32
	TradingPhaseMarket TPM
}

// PriceLevel is one rung of a Level-N ladder in a snapshot.
type PriceLevel struct {
	Price int64
	Qty   int64
}

// SnapshotStock is axsbe_snap_stock: both the exchange-published input and
// this engine's regenerated output, same schema (spec.md §6).
type SnapshotStock struct {
	SecurityIDSource SecurityIDSource
	SecurityID       int64
	ChannelNo        int32
	TransactTime     int64

	PrevClosePx int64
	UpLimitPx   int64
	DnLimitPx   int64

	NumTrades       int64
	TotalVolumeTrade int64
	TotalValueTrade  int64

	OpenPx int64
	HighPx int64
	LowPx  int64
	LastPx int64

	BidWeightPx   int64
	BidWeightSize int64
	AskWeightPx   int64
	AskWeightSize int64

	// AskWeightPxUncertain is set once a price overflow has been clamped
	// for this instrument during the session (spec.md §3).
	AskWeightPxUncertain bool

	Ask []PriceLevel
	Bid []PriceLevel

	TradingPhaseMarket     TPM
	TradingPhaseInstrument TPI
}

// LadderDepth returns the configured Level-N depth of this snapshot.
func (s *SnapshotStock) LadderDepth() int {
	if len(s.Ask) > len(s.Bid) {
		return len(s.Ask)
	}
	return len(s.Bid)
}
