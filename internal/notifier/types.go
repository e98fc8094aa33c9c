package notifier

import (
	"context"
	"fmt"
	"time"
)

// Action names, used in logs, history and ActionError.
const (
	ActionIndicator = "indicator"
	ActionFocusOn   = "focus_on"
	ActionFocusOff  = "focus_off"
	ActionScript    = "script"
)

// Actions is the outbound surface used by the dispatcher.
type Actions interface {
	// SetIndicator updates the status indicator. Empty icon and message clear it.
	SetIndicator(ctx context.Context, icon, message string) error
	// SetFocus toggles focus mode. Turning it off when already off must not fail.
	SetFocus(ctx context.Context, on bool) error
	// RunScript runs an automation script body.
	RunScript(ctx context.Context, script string) error
}

// Commands holds the argv templates for each action.
type Commands struct {
	Indicator []string
	FocusOn   []string
	FocusOff  []string
	Script    []string
}

// ActionError reports an external command that could not be launched.
type ActionError struct {
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action %s: %v", e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

type HistoryItem struct {
	At     time.Time
	Action string
	Argv   []string
}

// Launcher starts a command without waiting for it to finish.
type Launcher interface {
	Launch(ctx context.Context, action string, argv []string) error
}
