package app

import (
	"context"
	"time"

	"pomobridge/internal/bridge"
	"pomobridge/internal/eventbus"
	"pomobridge/internal/storage"
	logx "pomobridge/pkg/logx"
)

const pruneJob = "storage.prune"

func toRecord(t bridge.Transition) storage.Transition {
	return storage.Transition{
		At:          t.At,
		From:        t.From.State.String(),
		To:          t.To.State.String(),
		RemainingNS: int64(t.To.Remaining),
		Minutes:     t.To.RemainingMinutes(),
		Count:       t.To.Count,
		Total:       t.To.Total,
	}
}

// recordTransitions appends every accepted transition to the journal until
// events closes or ctx is done. Write failures are logged, never fatal.
func recordTransitions(ctx context.Context, events <-chan eventbus.Event, store storage.Store, log logx.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			t, ok := e.Data.(bridge.Transition)
			if e.Type != eventbus.StatusAccepted || !ok {
				continue
			}
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			if err := store.AppendTransition(wctx, toRecord(t)); err != nil {
				log.Warn("record transition failed", logx.Err(err))
			}
			cancel()
		}
	}
}

// pruneFunc drops journal entries older than retention.
func pruneFunc(store storage.Store, retention time.Duration, bus eventbus.Bus, log logx.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		n, err := store.Prune(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		log.Info("journal pruned", logx.Int("removed", n), logx.Duration("retention", retention))
		bus.Publish(eventbus.Event{Type: eventbus.StoragePruned, Data: n})
		return nil
	}
}
