package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pomobridge/internal/eventbus"
	"pomobridge/internal/status"
	logx "pomobridge/pkg/logx"
)

type fakeActions struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (a *fakeActions) record(call string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for prefix, err := range a.fail {
		if len(call) >= len(prefix) && call[:len(prefix)] == prefix {
			return err
		}
	}
	a.calls = append(a.calls, call)
	return nil
}

func (a *fakeActions) SetIndicator(_ context.Context, icon, message string) error {
	return a.record(fmt.Sprintf("indicator %q %q", icon, message))
}

func (a *fakeActions) SetFocus(_ context.Context, on bool) error {
	if on {
		return a.record("focus on")
	}
	return a.record("focus off")
}

func (a *fakeActions) RunScript(_ context.Context, script string) error {
	return a.record("script " + script)
}

func (a *fakeActions) log() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

type fakeDialog struct {
	mu     sync.Mutex
	gen    uint64
	opened []string
	closes int
}

func (d *fakeDialog) Generation() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gen
}

func (d *fakeDialog) OpenIfCurrent(gen uint64, description string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen == d.gen {
		d.opened = append(d.opened, description)
	}
	return nil
}

func (d *fakeDialog) Close() {
	d.mu.Lock()
	d.gen++
	d.closes++
	d.mu.Unlock()
}

type scheduled struct {
	name  string
	delay time.Duration
	job   func(ctx context.Context) error
}

type fakeScheduler struct{ jobs []scheduled }

func (s *fakeScheduler) After(name string, delay time.Duration, job func(ctx context.Context) error) {
	s.jobs = append(s.jobs, scheduled{name: name, delay: delay, job: job})
}

// deferredRunner holds background tasks until flush, like a goroutine that
// has not been scheduled yet.
type deferredRunner struct{ pending []func(ctx context.Context) error }

func (r *deferredRunner) Go(_ string, fn func(ctx context.Context) error) {
	r.pending = append(r.pending, fn)
}

func (r *deferredRunner) flush(t *testing.T) {
	t.Helper()
	for _, fn := range r.pending {
		require.NoError(t, fn(context.Background()))
	}
	r.pending = nil
}

type harness struct {
	actions *fakeActions
	dialog  *fakeDialog
	sched   *fakeScheduler
	runner  *deferredRunner
	bridge  *Bridge
	disp    *Dispatcher
}

func newHarness(cfg Config) *harness {
	h := &harness{
		actions: &fakeActions{},
		dialog:  &fakeDialog{},
		sched:   &fakeScheduler{},
		runner:  &deferredRunner{},
	}
	h.disp = NewDispatcher(cfg, Deps{
		Actions:   h.actions,
		Dialog:    h.dialog,
		Scheduler: h.sched,
		Runner:    h.runner,
		Logger:    logx.Nop(),
	})
	h.bridge = New(h.disp, logx.Nop(), nil)
	return h
}

func running(d time.Duration) status.Snapshot {
	return status.Snapshot{State: status.Running, Remaining: d}
}

func TestRunningSetsIndicatorAndFocus(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})

	ok, err := h.bridge.Accept(context.Background(), running(3600*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{`indicator "🍅" "focused: 61m to break"`, "focus on"}, h.actions.log())
	assert.Equal(t, 1, h.dialog.closes)
	assert.Empty(t, h.sched.jobs)
}

func TestSameMinuteIsNotDispatchedTwice(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})
	ctx := context.Background()

	for _, d := range []time.Duration{3600 * time.Second, 3600*time.Second - time.Millisecond, 3599 * time.Second} {
		_, err := h.bridge.Accept(ctx, running(d))
		require.NoError(t, err)
	}
	// 3600s is minute 61, the other two are both minute 60.
	assert.Len(t, h.actions.log(), 4)
	assert.Equal(t, running(3600*time.Second-time.Millisecond), h.bridge.State().Current)
	assert.Equal(t, running(3600*time.Second), h.bridge.State().Previous)
}

func TestLastMinuteSchedulesFocusEnd(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})

	_, err := h.bridge.Accept(context.Background(), running(59*time.Second))
	require.NoError(t, err)

	assert.Equal(t, []string{`indicator "🍅" "focused: 1m to break"`}, h.actions.log(), "no immediate focus on")
	require.Len(t, h.sched.jobs, 1)
	assert.Equal(t, DefaultEndFocusDelay, h.sched.jobs[0].delay)

	require.NoError(t, h.sched.jobs[0].job(context.Background()))
	assert.Equal(t, "focus off", h.actions.log()[1])
}

// Remaining minutes count the started minute: exactly 60s left is still
// minute 2, so focus stays on and the end-focus job waits for minute 1.
func TestSixtySecondsIsMinuteTwo(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})
	ctx := context.Background()

	require.EqualValues(t, 2, running(60*time.Second).RemainingMinutes())
	_, err := h.bridge.Accept(ctx, running(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, []string{`indicator "🍅" "focused: 2m to break"`, "focus on"}, h.actions.log())
	assert.Empty(t, h.sched.jobs)

	_, err = h.bridge.Accept(ctx, running(60*time.Second-time.Nanosecond))
	require.NoError(t, err)
	require.Len(t, h.sched.jobs, 1)
	assert.Equal(t, `indicator "🍅" "focused: 1m to break"`, h.actions.log()[2])
}

func TestEndFocusDelayIsConfigurable(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{EndFocusDelay: 5 * time.Second})
	h.disp.Apply(Config{EndFocusDelay: 10 * time.Second})

	_, err := h.bridge.Accept(context.Background(), running(30*time.Second))
	require.NoError(t, err)
	require.Len(t, h.sched.jobs, 1)
	assert.Equal(t, 10*time.Second, h.sched.jobs[0].delay)
}

func TestBreakingOpensDialogInBackground(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})
	snap := status.Snapshot{State: status.Breaking, Remaining: 5 * time.Minute}

	_, err := h.bridge.Accept(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, []string{"focus off", `indicator "" ""`}, h.actions.log())
	assert.Empty(t, h.dialog.opened, "dispatch must not wait for the dialog")

	h.runner.flush(t)
	assert.Equal(t, []string{"BREAKING: 6m of break left"}, h.dialog.opened)
}

func TestCompleteOpensDialog(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})

	_, err := h.bridge.Accept(context.Background(), status.Snapshot{State: status.Complete, Remaining: -2 * time.Minute})
	require.NoError(t, err)
	h.runner.flush(t)
	require.Len(t, h.dialog.opened, 1)
	assert.Contains(t, h.dialog.opened[0], "COMPLETE")
}

func TestRunningBeforeDialogOpensLeavesNoDialog(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})
	ctx := context.Background()

	_, err := h.bridge.Accept(ctx, status.Snapshot{State: status.Breaking, Remaining: time.Minute})
	require.NoError(t, err)
	_, err = h.bridge.Accept(ctx, running(25*time.Minute))
	require.NoError(t, err)

	h.runner.flush(t)
	assert.Empty(t, h.dialog.opened)
}

func TestPausedClearsWithoutDialog(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})

	_, err := h.bridge.Accept(context.Background(), status.Snapshot{State: status.Paused, Remaining: 10 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, []string{"focus off", `indicator "" ""`}, h.actions.log())
	assert.Empty(t, h.runner.pending)
	assert.Zero(t, h.dialog.closes)
}

func TestUnknownIsNoop(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})
	ctx := context.Background()

	ok, err := h.bridge.Accept(ctx, status.Snapshot{})
	require.NoError(t, err)
	assert.False(t, ok, "initial state is Unknown")

	// Reaching Unknown from another state is a change but triggers nothing.
	_, err = h.bridge.Accept(ctx, running(10*time.Minute))
	require.NoError(t, err)
	n := len(h.actions.log())
	require.NoError(t, h.disp.Dispatch(ctx, State{Current: status.Snapshot{State: status.Unknown}}))
	assert.Len(t, h.actions.log(), n)
}

func TestCompleteTicksAreIgnored(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})
	ctx := context.Background()

	ok, err := h.bridge.Accept(ctx, status.Snapshot{State: status.Complete, Remaining: -time.Minute})
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = h.bridge.Accept(ctx, status.Snapshot{State: status.Complete, Remaining: -5 * time.Minute})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHookRunsAfterActions(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{Hooks: map[status.State]string{status.Paused: "say paused"}})

	_, err := h.bridge.Accept(context.Background(), status.Snapshot{State: status.Paused})
	require.NoError(t, err)
	assert.Equal(t, []string{"focus off", `indicator "" ""`, "script say paused"}, h.actions.log())
}

func TestActionFailureIsReturned(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})
	boom := errors.New("launch failed")
	h.actions.fail = map[string]error{"focus on": boom}

	bus := eventbus.New()
	ch, unsub := bus.Subscribe(4)
	defer unsub()
	h.disp.bus = bus

	_, err := h.bridge.Accept(context.Background(), running(10*time.Minute))
	require.ErrorIs(t, err, boom)

	select {
	case ev := <-ch:
		assert.Equal(t, eventbus.ActionFailed, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("no action.failed event")
	}
	// The snapshot was still accepted.
	assert.Equal(t, status.Running, h.bridge.State().Current.State)
}

func TestHandleMessageDecodes(t *testing.T) {
	t.Parallel()
	h := newHarness(Config{})

	raw, err := status.Encode(running(3600 * time.Second))
	require.NoError(t, err)
	require.NoError(t, h.bridge.HandleMessage(context.Background(), raw))
	assert.Equal(t, status.Running, h.bridge.State().Current.State)

	err = h.bridge.HandleMessage(context.Background(), []byte("not json"))
	var de *status.DecodeError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, status.Running, h.bridge.State().Current.State, "failed decode leaves state untouched")
}
