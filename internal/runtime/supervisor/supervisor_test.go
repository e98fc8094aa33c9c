package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGoErrorCancelsWhenConfigured(t *testing.T) {
	t.Parallel()
	sup := NewSupervisor(context.Background(), WithCancelOnError(true))
	boom := errors.New("boom")

	sup.Go("fails", func(ctx context.Context) error { return boom })
	sup.Go0("waits", func(ctx context.Context) { <-ctx.Done() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := sup.Wait(ctx)
	if !errors.Is(err, boom) {
		t.Fatalf("Wait() = %v, want wrapped boom", err)
	}
	if sup.Context().Err() == nil {
		t.Fatal("expected supervisor context to be canceled")
	}
}

func TestGoPanicIsRecorded(t *testing.T) {
	t.Parallel()
	sup := NewSupervisor(context.Background(), WithCancelOnError(true))
	sup.Go0("panics", func(ctx context.Context) { panic("kaboom") })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err == nil {
		t.Fatal("expected panic to surface as error")
	}
}

func TestCanceledIsClean(t *testing.T) {
	t.Parallel()
	sup := NewSupervisor(context.Background())
	sup.Go("loop", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v, want nil", err)
	}
	if c := sup.Counters(); c.Active != 0 || c.Started != 1 {
		t.Fatalf("counters = %+v", c)
	}
}

func TestGoAfterCancelIsRefused(t *testing.T) {
	t.Parallel()
	sup := NewSupervisor(context.Background())
	sup.Cancel()

	ran := make(chan struct{}, 1)
	sup.Go0("late", func(context.Context) { ran <- struct{}{} })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sup.Wait(ctx); err != nil {
		t.Fatalf("Wait() = %v, want nil", err)
	}
	select {
	case <-ran:
		t.Fatal("goroutine started after cancel")
	default:
	}
	if c := sup.Counters(); c.Started != 0 || c.Active != 0 {
		t.Fatalf("counters = %+v, want zero", c)
	}
}
