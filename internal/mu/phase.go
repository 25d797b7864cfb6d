// Package mu implements the session multiplexer: per-channel trading
// phase tracking and message routing to per-instrument book engines
// (spec.md §4.10).
package mu

import "github.com/sinotrade/axob-rebuild/pkg/axsbe"

// transition is one edge of the linear phase machine.
type transition struct {
	from    axsbe.TPM
	to      axsbe.TPM
	trigger func(ev Event) bool
}

// Event is whatever arrived on a channel: enough information to decide
// phase transitions and to route to the addressed instrument.
type Event struct {
	Kind               EventKind
	TradingPhaseMarket axsbe.TPM // phase carried on an order/exec message
	HHMMSSms           int       // snapshot wall-clock, HHMMSSmmm as an int
	IsSnapshot         bool
}

// EventKind distinguishes the message kinds a phase trigger can examine.
type EventKind int

const (
	EventOrder EventKind = iota
	EventExec
	EventSnapshot
	EventStatus
)

func hhmmss(h, m, s, ms int) int {
	return h*10000000 + m*100000 + s*1000 + ms
}

// transitions is the ordered trigger table (spec.md §4.10).
var transitions = []transition{
	{
		from: axsbe.TPMStarting, to: axsbe.TPMOpenCall,
		trigger: func(ev Event) bool {
			if ev.Kind == EventOrder || ev.Kind == EventExec {
				return true
			}
			return ev.IsSnapshot && ev.HHMMSSms >= hhmmss(9, 15, 0, 0)
		},
	},
	{
		from: axsbe.TPMOpenCall, to: axsbe.TPMPreTradingBreaking,
		trigger: func(ev Event) bool {
			if ev.Kind == EventExec && ev.TradingPhaseMarket == axsbe.TPMPreTradingBreaking {
				return true
			}
			return ev.IsSnapshot && ev.HHMMSSms >= hhmmss(9, 25, 15, 0)
		},
	},
	{
		from: axsbe.TPMPreTradingBreaking, to: axsbe.TPMAMTrading,
		trigger: func(ev Event) bool {
			if (ev.Kind == EventOrder || ev.Kind == EventExec) && ev.TradingPhaseMarket == axsbe.TPMAMTrading {
				return true
			}
			return ev.IsSnapshot && ev.HHMMSSms >= hhmmss(9, 30, 0, 0)
		},
	},
	{
		from: axsbe.TPMAMTrading, to: axsbe.TPMBreaking,
		trigger: func(ev Event) bool {
			return ev.IsSnapshot && ev.HHMMSSms >= hhmmss(11, 30, 15, 0)
		},
	},
	{
		from: axsbe.TPMBreaking, to: axsbe.TPMPMTrading,
		trigger: func(ev Event) bool {
			if ev.Kind == EventOrder || ev.Kind == EventExec {
				return true
			}
			return ev.IsSnapshot && ev.HHMMSSms >= hhmmss(13, 0, 0, 0)
		},
	},
	{
		from: axsbe.TPMPMTrading, to: axsbe.TPMCloseCall,
		trigger: func(ev Event) bool {
			if (ev.Kind == EventOrder || ev.Kind == EventExec) && ev.TradingPhaseMarket == axsbe.TPMCloseCall {
				return true
			}
			return ev.IsSnapshot && ev.HHMMSSms >= hhmmss(14, 57, 15, 0)
		},
	},
	{
		from: axsbe.TPMCloseCall, to: axsbe.TPMEnding,
		trigger: func(ev Event) bool {
			if ev.Kind == EventExec && ev.TradingPhaseMarket == axsbe.TPMEnding {
				return true
			}
			return ev.IsSnapshot && ev.HHMMSSms >= hhmmss(15, 0, 15, 0)
		},
	},
}

// ChannelPhase tracks one channel's position in the phase machine and
// reports the next transition, if any, that ev triggers.
type ChannelPhase struct {
	Current axsbe.TPM
}

// NextTransition returns the phase ev advances the channel to, or
// (Current, false) if ev does not trigger the next edge.
func (p *ChannelPhase) NextTransition(ev Event) (axsbe.TPM, bool) {
	for _, t := range transitions {
		if t.from != p.Current {
			continue
		}
		if t.trigger(ev) {
			return t.to, true
		}
		return p.Current, false
	}
	return p.Current, false
}

// Advance applies ev, returning the new phase and whether a transition
// fired.
func (p *ChannelPhase) Advance(ev Event) (axsbe.TPM, bool) {
	next, fired := p.NextTransition(ev)
	if fired {
		p.Current = next
	}
	return next, fired
}
