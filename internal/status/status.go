// Package status models the timer status snapshots published by the pomodoro
// timer and decides which of them are observable changes.
package status

import (
	"fmt"
	"strings"
	"time"
)

// Minute is the bucket size used for RemainingMinutes.
const Minute = time.Minute

// State is the timer phase. Unknown is the catch-all for wire values we do not recognize.
type State uint8

const (
	Unknown State = iota
	Running
	Breaking
	Complete
	Paused
)

// stateFromWire never lets an unrecognized code escape the decoder.
func stateFromWire(code uint8) State {
	s := State(code)
	if s > Paused {
		return Unknown
	}
	return s
}

func (s State) String() string {
	switch s {
	case Running:
		return "RUNNING"
	case Breaking:
		return "BREAKING"
	case Complete:
		return "COMPLETE"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// ParseState maps a case-insensitive state name (as used in config and CLI flags) to a State.
func ParseState(name string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "unknown":
		return Unknown, nil
	case "running":
		return Running, nil
	case "breaking", "break":
		return Breaking, nil
	case "complete", "completed":
		return Complete, nil
	case "paused", "pause":
		return Paused, nil
	default:
		return Unknown, fmt.Errorf("unknown state %q", name)
	}
}

// Snapshot is one decoded status message.
type Snapshot struct {
	State     State
	Remaining time.Duration // negative: time since the target passed
	Count     uint8
	Total     uint8
}

// RemainingMinutes buckets Remaining to minutes: floor(Remaining/Minute) + 1.
// The +1 keeps the last sub-minute of an interval from rendering as 0m; the sign
// is preserved so negative values mean minutes elapsed since the target.
func (s Snapshot) RemainingMinutes() int64 {
	return floorDiv(int64(s.Remaining), int64(Minute)) + 1
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// Describe renders the remaining time for display. Only Unknown renders empty.
func (s Snapshot) Describe() string {
	m := s.RemainingMinutes()
	switch s.State {
	case Running:
		return fmt.Sprintf("%dm to break", m)
	case Breaking:
		if m > 0 {
			return fmt.Sprintf("%dm of break left", m)
		}
		return fmt.Sprintf("break ended %dm ago", -m)
	case Complete:
		if m > 0 {
			return fmt.Sprintf("complete, %dm left", m)
		}
		return fmt.Sprintf("complete %dm ago", -m)
	case Paused:
		return fmt.Sprintf("paused with %dm left", m)
	default:
		return ""
	}
}

// Alert is the text shown in the alert dialog.
func (s Snapshot) Alert() string {
	d := s.Describe()
	if d == "" {
		return ""
	}
	return s.State.String() + ": " + d
}

// Format renders remaining time as M:SS, truncating toward zero, with an "ago"
// suffix once the target has passed. Diagnostic only.
func (s Snapshot) Format() string {
	secs := int64(s.Remaining / time.Second)
	mins := int64(s.Remaining / Minute)
	sub := secs - mins*60
	if s.Remaining > 0 {
		return fmt.Sprintf("%d:%02dm", mins, sub)
	}
	return fmt.Sprintf("%d:%02dm ago", -mins, -sub)
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%s %s (%d/%d)", s.State, s.Format(), s.Count, s.Total)
}
