package mu

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/sinotrade/axob-rebuild/internal/book"
	"github.com/sinotrade/axob-rebuild/internal/logging"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

// BookFactory constructs a fresh InstrumentBook for a newly-seen
// SecurityID, wiring it to whatever snapshot sink the caller wants.
type BookFactory func(source axsbe.SecurityIDSource, securityID int64) *book.InstrumentBook

// channelState is the per-channel phase tracker plus a mutex that
// serializes every message landing on the channel — the multiplexer is
// single-threaded per channel even though different channels run on the
// shared ants pool concurrently (spec.md §5).
type channelState struct {
	mu    sync.Mutex
	phase ChannelPhase
}

// Multiplexer owns a set of per-symbol book engines and a per-channel
// phase state, fanning channels out onto a bounded worker pool (spec.md
// §4.10, §5). A given SecurityID is guaranteed by the exchange to live on
// exactly one channel, so cross-channel ordering is never required.
type Multiplexer struct {
	pool    *ants.Pool
	factory BookFactory
	log     logging.Logger

	mu       sync.Mutex
	channels map[int32]*channelState
	books    map[int64]*book.InstrumentBook
}

// New builds a Multiplexer backed by an ants pool sized poolSize.
func New(poolSize int, factory BookFactory, log logging.Logger) (*Multiplexer, error) {
	pool, err := ants.NewPool(poolSize, ants.WithPanicHandler(func(i interface{}) {
		log.Error("channel worker panicked", "panic", i)
	}))
	if err != nil {
		return nil, err
	}
	return &Multiplexer{
		pool:     pool,
		factory:  factory,
		log:      log,
		channels: make(map[int32]*channelState),
		books:    make(map[int64]*book.InstrumentBook),
	}, nil
}

// Release shuts down the underlying worker pool.
func (m *Multiplexer) Release() {
	m.pool.Release()
}

func (m *Multiplexer) channelFor(channelID int32) *channelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	cs, ok := m.channels[channelID]
	if !ok {
		cs = &channelState{phase: ChannelPhase{Current: axsbe.TPMStarting}}
		m.channels[channelID] = cs
	}
	return cs
}

func (m *Multiplexer) bookFor(source axsbe.SecurityIDSource, securityID int64) *book.InstrumentBook {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[securityID]
	if !ok {
		b = m.factory(source, securityID)
		m.books[securityID] = b
	}
	return b
}

// symbolsOnChannel returns every instrument currently tracked whose
// derived channel id matches channelID, for broadcasting a synthetic
// phase-transition signal (spec.md §4.10).
func (m *Multiplexer) symbolsOnChannel(source axsbe.SecurityIDSource, channelID int32) []*book.InstrumentBook {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*book.InstrumentBook
	for _, b := range m.books {
		if b.SecurityIDSource == source && ChannelID(source, b.ChannelNo) == channelID {
			out = append(out, b)
		}
	}
	return out
}

// Submit dispatches fn to the pool, serialized per channelID so that two
// messages on the same channel never execute concurrently.
func (m *Multiplexer) Submit(channelID int32, fn func()) error {
	cs := m.channelFor(channelID)
	return m.pool.Submit(func() {
		cs.mu.Lock()
		defer cs.mu.Unlock()
		fn()
	})
}

// DispatchOrder routes an inbound order to its instrument's book,
// first applying any phase transition the order triggers on its channel.
func (m *Multiplexer) DispatchOrder(msg *axsbe.Order) error {
	channelID := ChannelID(msg.SecurityIDSource, msg.ChannelNo)
	return m.Submit(channelID, func() {
		m.applyPhaseSignal(msg.SecurityIDSource, channelID, Event{Kind: EventOrder, TradingPhaseMarket: msg.TradingPhaseMarket})
		b := m.bookFor(msg.SecurityIDSource, msg.SecurityID)
		if err := b.OnOrder(msg); err != nil {
			m.log.Error("order processing failed", "securityID", msg.SecurityID, "err", err)
		}
	})
}

// DispatchExec routes an inbound execution.
func (m *Multiplexer) DispatchExec(msg *axsbe.Exec) error {
	channelID := ChannelID(msg.SecurityIDSource, msg.ChannelNo)
	return m.Submit(channelID, func() {
		m.applyPhaseSignal(msg.SecurityIDSource, channelID, Event{Kind: EventExec, TradingPhaseMarket: msg.TradingPhaseMarket})
		b := m.bookFor(msg.SecurityIDSource, msg.SecurityID)
		if err := b.OnExec(msg); err != nil {
			m.log.Error("exec processing failed", "securityID", msg.SecurityID, "err", err)
		}
	})
}

// DispatchStatus routes a channel-level status announcement.
func (m *Multiplexer) DispatchStatus(msg *axsbe.Status) error {
	channelID := ChannelID(msg.SecurityIDSource, msg.ChannelNo)
	return m.Submit(channelID, func() {
		m.applyPhaseSignal(msg.SecurityIDSource, channelID, Event{Kind: EventStatus, TradingPhaseMarket: msg.TradingPhaseMarket})
	})
}

// DispatchSnapshot routes an exchange-published snapshot to its
// instrument's book: the first Starting-phase one latches that book's
// static constants (spec.md §6), every one after that is handed to the
// book's reconciler sink.
// yyyymmdd is the trading day the snapshot belongs to — SnapshotStock
// carries no date field of its own, so whatever embeds this engine (no
// transport/decoding lives inside it, per spec.md §1) supplies it from the
// message-framing context it already has.
func (m *Multiplexer) DispatchSnapshot(msg *axsbe.SnapshotStock, yyyymmdd int64) error {
	channelID := ChannelID(msg.SecurityIDSource, msg.ChannelNo)
	return m.Submit(channelID, func() {
		b := m.bookFor(msg.SecurityIDSource, msg.SecurityID)
		b.OnMarketSnapshot(msg, yyyymmdd)
	})
}

// applyPhaseSignal checks whether ev triggers the channel's next phase
// transition and, if so, pushes a synthetic phase signal to every symbol
// on that channel before the triggering message itself is processed.
func (m *Multiplexer) applyPhaseSignal(source axsbe.SecurityIDSource, channelID int32, ev Event) {
	cs := m.channelFor(channelID)
	next, fired := cs.phase.Advance(ev)
	if !fired {
		return
	}
	for _, b := range m.symbolsOnChannel(source, channelID) {
		b.OnPhaseSignal(next)
	}
}
