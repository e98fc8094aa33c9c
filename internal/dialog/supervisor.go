// Package dialog owns the lifecycle of the alert dialog: at most one external
// dialog process is tracked at a time, and dismissing the dialog means killing
// that process.
package dialog

import (
	"errors"
	"fmt"
	"sync"

	"pomobridge/internal/eventbus"
	logx "pomobridge/pkg/logx"
)

// ErrSpawn wraps failures to launch the dialog process.
var ErrSpawn = errors.New("dialog spawn failed")

// Process is a running dialog.
type Process interface {
	Pid() int
	// Alive is a non-blocking liveness probe; it never waits for exit.
	Alive() bool
	// Kill forcibly terminates the process. Killing an exited process returns an error
	// the supervisor ignores.
	Kill() error
}

// Spawner launches a dialog process showing message. A nil Process with a
// nil error means no dialog is configured.
type Spawner interface {
	Spawn(message string) (Process, error)
}

// Supervisor guards the single dialog handle. Open and Close are the only
// mutators and share one lock.
type Supervisor struct {
	mu   sync.Mutex
	proc Process
	gen  uint64 // bumped by every Close

	spawner Spawner
	log     logx.Logger
	bus     eventbus.Bus
}

func NewSupervisor(spawner Spawner, log logx.Logger, bus eventbus.Bus) *Supervisor {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Supervisor{spawner: spawner, log: log, bus: bus}
}

// Open shows the alert unless a live dialog is already tracked.
func (s *Supervisor) Open(description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked(description)
}

// Generation returns a token for OpenIfCurrent. Any Close invalidates it.
func (s *Supervisor) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// OpenIfCurrent is Open, skipped when a Close happened after gen was taken.
// Background openers use it so a dismissal issued later is never undone.
func (s *Supervisor) OpenIfCurrent(gen uint64, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		s.log.Debug("stale alert skipped", logx.String("message", description))
		return nil
	}
	return s.openLocked(description)
}

func (s *Supervisor) openLocked(description string) error {
	if s.proc != nil && s.proc.Alive() {
		s.log.Info("duplicate alert suppressed", logx.Int("pid", s.proc.Pid()), logx.String("message", description))
		s.bus.Publish(eventbus.Event{Type: eventbus.DialogSuppressed, Data: description})
		return nil
	}

	p, err := s.spawner.Spawn(description)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSpawn, err)
	}
	if p == nil {
		s.log.Debug("no dialog command; alert skipped", logx.String("message", description))
		return nil
	}
	s.proc = p
	s.log.Info("alert opened", logx.Int("pid", p.Pid()), logx.String("message", description))
	s.bus.Publish(eventbus.Event{Type: eventbus.DialogOpened, Data: description})
	return nil
}

// Close kills the tracked dialog, if any, and clears the handle.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.proc == nil {
		return
	}
	p := s.proc
	s.proc = nil
	if err := p.Kill(); err != nil {
		// Typically the user already dismissed it and the process exited.
		s.log.Debug("alert kill ignored", logx.Int("pid", p.Pid()), logx.Err(err))
	}
	s.log.Info("alert closed", logx.Int("pid", p.Pid()))
	s.bus.Publish(eventbus.Event{Type: eventbus.DialogClosed})
}

// Active reports whether a live dialog is tracked. Inspection only.
func (s *Supervisor) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil && s.proc.Alive()
}
