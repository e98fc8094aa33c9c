package bridge

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"pomobridge/internal/eventbus"
	"pomobridge/internal/notifier"
	"pomobridge/internal/status"
	logx "pomobridge/pkg/logx"
)

const (
	DefaultEndFocusDelay = 56 * time.Second
	DefaultFocusIcon     = "🍅"
)

// Dialog is the alert surface. Close dismisses; a generation taken before a
// later Close makes OpenIfCurrent a no-op.
type Dialog interface {
	Generation() uint64
	OpenIfCurrent(gen uint64, description string) error
	Close()
}

// Scheduler runs a one-shot job after delay. Scheduled jobs are never canceled.
type Scheduler interface {
	After(name string, delay time.Duration, job func(ctx context.Context) error)
}

// Runner runs fn on a supervised goroutine. A returned error is fatal.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type Config struct {
	EndFocusDelay time.Duration
	FocusIcon     string
	// Hooks maps a state to an automation script run after its actions.
	Hooks map[status.State]string
}

func (c Config) normalized() Config {
	if c.EndFocusDelay <= 0 {
		c.EndFocusDelay = DefaultEndFocusDelay
	}
	if c.FocusIcon == "" {
		c.FocusIcon = DefaultFocusIcon
	}
	return c
}

type Deps struct {
	Actions   notifier.Actions
	Dialog    Dialog
	Scheduler Scheduler
	Runner    Runner
	Logger    logx.Logger
	Bus       eventbus.Bus
}

// Dispatcher maps an accepted state to external actions.
type Dispatcher struct {
	actions notifier.Actions
	dialog  Dialog
	sched   Scheduler
	runner  Runner
	log     logx.Logger
	bus     eventbus.Bus

	cfg atomic.Pointer[Config]
}

func NewDispatcher(cfg Config, deps Deps) *Dispatcher {
	if deps.Logger.IsZero() {
		deps.Logger = logx.Nop()
	}
	if deps.Bus == nil {
		deps.Bus = eventbus.Nop()
	}
	d := &Dispatcher{
		actions: deps.Actions,
		dialog:  deps.Dialog,
		sched:   deps.Scheduler,
		runner:  deps.Runner,
		log:     deps.Logger,
		bus:     deps.Bus,
	}
	d.Apply(cfg)
	return d
}

// Apply swaps the dispatch settings; the next Dispatch sees them.
func (d *Dispatcher) Apply(cfg Config) {
	c := cfg.normalized()
	d.cfg.Store(&c)
}

func (d *Dispatcher) config() Config { return *d.cfg.Load() }

// Dispatch runs the actions for st.Current. It must only be called after the
// change detector accepted st.Current. Errors are action launch failures.
func (d *Dispatcher) Dispatch(ctx context.Context, st State) error {
	cfg := d.config()
	snap := st.Current

	var err error
	switch snap.State {
	case status.Running:
		err = d.running(ctx, cfg, snap)
	case status.Breaking, status.Complete:
		err = d.alerting(ctx, snap)
	case status.Paused:
		err = d.quiet(ctx)
	default:
		return nil
	}
	if err != nil {
		return d.failed(err)
	}

	if script := cfg.Hooks[snap.State]; script != "" {
		if err := d.actions.RunScript(ctx, script); err != nil {
			return d.failed(fmt.Errorf("hook %s: %w", snap.State, err))
		}
	}
	return nil
}

func (d *Dispatcher) running(ctx context.Context, cfg Config, snap status.Snapshot) error {
	if err := d.actions.SetIndicator(ctx, cfg.FocusIcon, "focused: "+snap.Describe()); err != nil {
		return err
	}
	d.dialog.Close()

	if snap.RemainingMinutes() != 1 {
		return d.actions.SetFocus(ctx, true)
	}

	// Last minute of the pomodoro: drop focus shortly before the break starts.
	// The job is detached; a later transition does not cancel it and focus off
	// is idempotent.
	d.sched.After("focus.end", cfg.EndFocusDelay, func(ctx context.Context) error {
		d.log.Info("ending focus")
		return d.actions.SetFocus(ctx, false)
	})
	d.log.Debug("focus end scheduled", logx.Duration("delay", cfg.EndFocusDelay))
	d.bus.Publish(eventbus.Event{Type: eventbus.FocusEndScheduled, Data: cfg.EndFocusDelay})
	return nil
}

func (d *Dispatcher) alerting(ctx context.Context, snap status.Snapshot) error {
	if err := d.quiet(ctx); err != nil {
		return err
	}
	gen := d.dialog.Generation()
	alert := snap.Alert()
	d.runner.Go("dialog.open", func(context.Context) error {
		return d.dialog.OpenIfCurrent(gen, alert)
	})
	return nil
}

// quiet turns focus off and clears the indicator.
func (d *Dispatcher) quiet(ctx context.Context) error {
	if err := d.actions.SetFocus(ctx, false); err != nil {
		return err
	}
	return d.actions.SetIndicator(ctx, "", "")
}

func (d *Dispatcher) failed(err error) error {
	d.bus.Publish(eventbus.Event{Type: eventbus.ActionFailed, Data: err.Error()})
	return fmt.Errorf("dispatch: %w", err)
}
