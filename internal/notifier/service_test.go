package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "pomobridge/pkg/logx"
)

type recordingLauncher struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (l *recordingLauncher) Launch(_ context.Context, _ string, argv []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.calls = append(l.calls, argv)
	return nil
}

func TestSetIndicatorExpandsTemplate(t *testing.T) {
	t.Parallel()
	l := &recordingLauncher{}
	s := New(Commands{Indicator: []string{"bar", "--icon={icon}", "{message}"}}, logx.Nop(), WithLauncher(l))

	require.NoError(t, s.SetIndicator(context.Background(), "🍅", "focused: 25m to break"))
	require.Len(t, l.calls, 1)
	assert.Equal(t, []string{"bar", "--icon=🍅", "focused: 25m to break"}, l.calls[0])
	require.Len(t, s.History(), 1)
	assert.Equal(t, ActionIndicator, s.History()[0].Action)
}

func TestUnconfiguredActionIsNoop(t *testing.T) {
	t.Parallel()
	l := &recordingLauncher{}
	s := New(Commands{}, logx.Nop(), WithLauncher(l))

	require.NoError(t, s.SetFocus(context.Background(), true))
	require.NoError(t, s.SetFocus(context.Background(), false))
	require.NoError(t, s.RunScript(context.Background(), "say hi"))
	assert.Empty(t, l.calls)
}

func TestFocusSelectsCommand(t *testing.T) {
	t.Parallel()
	l := &recordingLauncher{}
	s := New(Commands{FocusOn: []string{"on"}, FocusOff: []string{"off"}}, logx.Nop(), WithLauncher(l))

	require.NoError(t, s.SetFocus(context.Background(), true))
	require.NoError(t, s.SetFocus(context.Background(), false))
	require.NoError(t, s.SetFocus(context.Background(), false))
	assert.Equal(t, [][]string{{"on"}, {"off"}, {"off"}}, l.calls)
}

func TestLaunchFailureIsActionError(t *testing.T) {
	t.Parallel()
	boom := errors.New("no such file")
	s := New(Commands{Script: []string{"sh", "-c", "{script}"}}, logx.Nop(), WithLauncher(&recordingLauncher{err: boom}))

	err := s.RunScript(context.Background(), "exit 0")
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ActionScript, ae.Action)
	assert.ErrorIs(t, err, boom)
}

func TestExecLauncherMissingBinary(t *testing.T) {
	t.Parallel()
	s := New(Commands{FocusOff: []string{"/nonexistent/pomobridge-focus"}}, logx.Nop())

	err := s.SetFocus(context.Background(), false)
	var ae *ActionError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, ActionFocusOff, ae.Action)
}

func TestApplySwapsCommands(t *testing.T) {
	t.Parallel()
	l := &recordingLauncher{}
	s := New(Commands{Script: []string{"a", "{script}"}}, logx.Nop(), WithLauncher(l))
	s.Apply(Commands{Script: []string{"b", "{script}"}})

	require.NoError(t, s.RunScript(context.Background(), "x"))
	assert.Equal(t, [][]string{{"b", "x"}}, l.calls)
}
