// Package reconcile implements the snapshot reconciler: deciding whether
// a regenerated snapshot agrees with the exchange's own published
// snapshot (spec.md §4.9).
package reconcile

import (
	"strconv"
	"time"

	"go.uber.org/multierr"

	"github.com/sinotrade/axob-rebuild/internal/logging"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
)

// entry pairs a snapshot with the time it was parked. The parked time is
// recorded only; no check in this package reads it.
type entry struct {
	snap   *axsbe.SnapshotStock
	parked time.Time
}

// Reconciler holds, per instrument, two multimaps keyed by cumulative
// NumTrades: rebuilt snapshots not yet matched against the exchange, and
// exchange snapshots not yet matched against a rebuild.
type Reconciler struct {
	szseTolerance time.Duration
	sseTolerance  time.Duration
	log           logging.Logger

	rebuilt map[int64][]entry
	market  map[int64][]entry

	lastRebuilt *axsbe.SnapshotStock
	unmatched   []*axsbe.SnapshotStock
}

// New builds a Reconciler for one instrument.
func New(szseTolerance, sseTolerance time.Duration, log logging.Logger) *Reconciler {
	return &Reconciler{
		szseTolerance: szseTolerance,
		sseTolerance:  sseTolerance,
		log:           log,
		rebuilt:       make(map[int64][]entry),
		market:        make(map[int64][]entry),
	}
}

// equal compares two snapshots field-by-field except transact time, which
// is compared separately under the timestamp-sanity tolerance.
func equal(a, b *axsbe.SnapshotStock) bool {
	if a.NumTrades != b.NumTrades || a.TotalVolumeTrade != b.TotalVolumeTrade || a.TotalValueTrade != b.TotalValueTrade {
		return false
	}
	if a.LastPx != b.LastPx || a.OpenPx != b.OpenPx || a.HighPx != b.HighPx || a.LowPx != b.LowPx {
		return false
	}
	if a.BidWeightPx != b.BidWeightPx || a.BidWeightSize != b.BidWeightSize {
		return false
	}
	if a.AskWeightPx != b.AskWeightPx || a.AskWeightSize != b.AskWeightSize {
		return false
	}
	if len(a.Bid) != len(b.Bid) || len(a.Ask) != len(b.Ask) {
		return false
	}
	for i := range a.Bid {
		if a.Bid[i] != b.Bid[i] {
			return false
		}
	}
	for i := range a.Ask {
		if a.Ask[i] != b.Ask[i] {
			return false
		}
	}
	return true
}

func (r *Reconciler) tolerance(source axsbe.SecurityIDSource) time.Duration {
	if source == axsbe.SecurityIDSourceSSE {
		return r.sseTolerance
	}
	return r.szseTolerance
}

// timestampSane reports whether a regenerated snapshot's timestamp
// trailing the exchange snapshot's is within tolerance. In breaking
// phases the check is waived entirely (spec.md §4.9).
func (r *Reconciler) timestampSane(rebuilt, market *axsbe.SnapshotStock) bool {
	if rebuilt.TradingPhaseMarket == axsbe.TPMBreaking || rebuilt.TradingPhaseMarket == axsbe.TPMPreTradingBreaking {
		return true
	}
	tol := r.tolerance(rebuilt.SecurityIDSource)
	delta := market.TransactTime - rebuilt.TransactTime
	return delta >= 0 && time.Duration(delta) <= tol
}

// OnMarketSnapshot feeds an exchange-published snapshot into the
// reconciler (spec.md §4.9 algorithm).
func (r *Reconciler) OnMarketSnapshot(s *axsbe.SnapshotStock) {
	nt := s.NumTrades

	if r.lastRebuilt != nil && equal(r.lastRebuilt, s) && r.timestampSane(r.lastRebuilt, s) {
		for k := range r.rebuilt {
			if k < nt {
				delete(r.rebuilt, k)
			}
		}
		return
	}

	for i, e := range r.rebuilt[nt] {
		if equal(e.snap, s) {
			for k := range r.rebuilt {
				if k < nt {
					delete(r.rebuilt, k)
				}
			}
			r.rebuilt[nt] = append(r.rebuilt[nt][:i], r.rebuilt[nt][i+1:]...)
			return
		}
	}

	r.market[nt] = append(r.market[nt], entry{snap: s, parked: time.Now()})
	r.log.Warn("exchange snapshot unmatched by any rebuild", "numTrades", nt, "securityID", s.SecurityID)
}

// OnRebuiltSnapshot feeds a regenerated snapshot into the reconciler.
func (r *Reconciler) OnRebuiltSnapshot(s *axsbe.SnapshotStock) {
	nt := s.NumTrades
	r.lastRebuilt = s

	remaining := r.market[nt][:0]
	for _, e := range r.market[nt] {
		if equal(e.snap, s) {
			continue
		}
		remaining = append(remaining, e)
	}
	if len(remaining) == 0 {
		delete(r.market, nt)
	} else {
		r.market[nt] = remaining
	}

	r.rebuilt[nt] = append(r.rebuilt[nt], entry{snap: s, parked: time.Now()})
}

// AreYouOK reports the engine's self-diagnostic health: false iff any
// exchange snapshot remains unmatched, generalizing the original's
// are_you_ok() (SPEC_FULL.md). It does not look at the trading phase; the
// answer is the same whenever it is called.
func (r *Reconciler) AreYouOK() bool {
	for _, entries := range r.market {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// Unmatched returns every still-unmatched exchange snapshot, for
// diagnostics, aggregated with multierr so a caller can report every
// outstanding mismatch in a single error value.
func (r *Reconciler) Unmatched() error {
	var errs error
	for nt, entries := range r.market {
		for range entries {
			errs = multierr.Append(errs, unmatchedError{numTrades: nt})
		}
	}
	return errs
}

type unmatchedError struct {
	numTrades int64
}

func (e unmatchedError) Error() string {
	return "unmatched exchange snapshot at NumTrades=" + strconv.FormatInt(e.numTrades, 10)
}
