package types

import "time"

type SignalAction string

const (
	SignalLong  SignalAction = "long"
	SignalShort SignalAction = "short"
	SignalHold  SignalAction = "hold"
)

// Signal is the normalized output of a strategy for the newest bar.
type Signal struct {
	Time   time.Time    `json:"time"`
	Action SignalAction `json:"action"`
	Score  float64      `json:"score"`
	// Details is telemetry only; the engine never branches on it.
	Details map[string]any `json:"details,omitempty"`
}

// IsDirectional reports whether the signal asks for a long or short position.
func (s Signal) IsDirectional() bool {
	return s.Action == SignalLong || s.Action == SignalShort
}

// PositionSide maps a directional signal to the side it would open.
func (s Signal) PositionSide() PositionSide {
	switch s.Action {
	case SignalLong:
		return PositionSideLong
	case SignalShort:
		return PositionSideShort
	default:
		return PositionSideNone
	}
}

// Opposes reports whether the signal points against an open position of side p.
func (s Signal) Opposes(p PositionSide) bool {
	return (p == PositionSideLong && s.Action == SignalShort) ||
		(p == PositionSideShort && s.Action == SignalLong)
}
