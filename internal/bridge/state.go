// Package bridge holds the application state and turns accepted status
// snapshots into notification actions.
package bridge

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"pomobridge/internal/eventbus"
	"pomobridge/internal/status"
	logx "pomobridge/pkg/logx"
)

// State is the last two accepted snapshots. Only Current drives decisions.
type State struct {
	Current  status.Snapshot
	Previous status.Snapshot
}

// Transition is published on the bus for every accepted snapshot.
type Transition struct {
	At   time.Time
	From status.Snapshot
	To   status.Snapshot
}

// Bridge owns the application state. HandleMessage and Accept must be called
// from a single goroutine (the server loop); State may be read from anywhere.
type Bridge struct {
	mu    sync.RWMutex
	state State

	dispatcher *Dispatcher
	log        logx.Logger
	bus        eventbus.Bus

	// Timers publish every few seconds; most snapshots are not changes.
	quiet rate.Sometimes
}

func New(d *Dispatcher, log logx.Logger, bus eventbus.Bus) *Bridge {
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus == nil {
		bus = eventbus.Nop()
	}
	return &Bridge{
		dispatcher: d,
		log:        log,
		bus:        bus,
		quiet:      rate.Sometimes{Interval: time.Minute},
	}
}

// State returns a copy of the current application state.
func (b *Bridge) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state
}

// HandleMessage decodes one raw socket message and accepts it.
func (b *Bridge) HandleMessage(ctx context.Context, raw []byte) error {
	snap, err := status.Decode(raw)
	if err != nil {
		return err
	}
	_, err = b.Accept(ctx, snap)
	return err
}

// Accept runs the change detector against the current snapshot. On a change it
// updates the state and dispatches; it reports whether the snapshot was accepted.
func (b *Bridge) Accept(ctx context.Context, snap status.Snapshot) (bool, error) {
	b.mu.RLock()
	cur := b.state.Current
	b.mu.RUnlock()

	if !status.IsChange(cur, snap) {
		b.quiet.Do(func() {
			b.log.Debug("status unchanged", logx.String("state", snap.State.String()), logx.String("remaining", snap.Format()))
		})
		b.bus.Publish(eventbus.Event{Type: eventbus.StatusRejected, Data: snap})
		return false, nil
	}

	b.mu.Lock()
	b.state.Previous = b.state.Current
	b.state.Current = snap
	st := b.state
	b.mu.Unlock()

	b.log.Info("status changed",
		logx.String("from", cur.State.String()),
		logx.String("to", snap.State.String()),
		logx.String("remaining", snap.Format()),
		logx.Int64("minutes", snap.RemainingMinutes()),
	)
	b.bus.Publish(eventbus.Event{Type: eventbus.StatusAccepted, Data: Transition{At: time.Now(), From: cur, To: snap}})

	if b.dispatcher == nil {
		return true, nil
	}
	return true, b.dispatcher.Dispatch(ctx, st)
}
