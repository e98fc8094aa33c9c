package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "pomobridge/pkg/logx"
)

func socketPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "p.sock")
}

type running struct {
	srv    *Server
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func startServer(t *testing.T, cfg Config, h Handler) *running {
	t.Helper()
	srv := New(cfg, h, logx.Nop())
	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	r := &running{srv: srv, cancel: cancel, done: make(chan struct{})}
	go func() {
		r.err = srv.Serve(ctx)
		close(r.done)
	}()
	t.Cleanup(func() {
		cancel()
		<-r.done
	})
	return r
}

func (r *running) wait(t *testing.T) error {
	t.Helper()
	select {
	case <-r.done:
		return r.err
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
		return nil
	}
}

func send(t *testing.T, path, msg string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, Send(ctx, path, []byte(msg)))
}

func TestMessagesHandledInOrder(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	got := make(chan string, 8)
	r := startServer(t, Config{Path: path}, HandlerFunc(func(_ context.Context, raw []byte) error {
		got <- string(raw)
		return nil
	}))

	for _, m := range []string{"one", "two", "three"} {
		send(t, path, m)
	}
	for _, want := range []string{"one", "two", "three"} {
		select {
		case m := <-got:
			assert.Equal(t, want, m)
		case <-time.After(2 * time.Second):
			t.Fatalf("message %q not handled", want)
		}
	}
	assert.EqualValues(t, 3, r.srv.Handled())

	fi, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestExitPolicyStopsOnHandlerError(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	boom := errors.New("decode failed")
	r := startServer(t, Config{Path: path}, HandlerFunc(func(context.Context, []byte) error {
		return boom
	}))

	send(t, path, "garbage")
	assert.ErrorIs(t, r.wait(t), boom)
}

func TestContinuePolicyKeepsServing(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	got := make(chan string, 8)
	r := startServer(t, Config{Path: path, OnError: PolicyContinue}, HandlerFunc(func(_ context.Context, raw []byte) error {
		got <- string(raw)
		if string(raw) == "bad" {
			return errors.New("bad message")
		}
		return nil
	}))

	send(t, path, "bad")
	send(t, path, "good")
	<-got
	select {
	case m := <-got:
		assert.Equal(t, "good", m)
	case <-time.After(2 * time.Second):
		t.Fatal("server stopped after a failed message")
	}

	r.cancel()
	assert.NoError(t, r.wait(t))
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist, "socket file removed on shutdown")
}

func TestOversizedMessageFollowsPolicy(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	r := startServer(t, Config{Path: path, MaxMessageBytes: 8}, HandlerFunc(func(context.Context, []byte) error {
		return nil
	}))

	send(t, path, string(bytes.Repeat([]byte("x"), 64)))
	assert.ErrorIs(t, r.wait(t), ErrMessageTooLarge)
}

func TestSetErrorPolicyAppliesLive(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	got := make(chan struct{}, 8)
	release := make(chan struct{})
	r := startServer(t, Config{Path: path, OnError: PolicyContinue}, HandlerFunc(func(context.Context, []byte) error {
		got <- struct{}{}
		<-release
		return errors.New("nope")
	}))

	send(t, path, "a")
	<-got
	release <- struct{}{}

	// "b" is in the handler, so "a" already went through the continue policy.
	send(t, path, "b")
	<-got
	r.srv.SetErrorPolicy(PolicyExit)
	release <- struct{}{}
	assert.Error(t, r.wait(t))
}

func TestStaleSocketIsReplaced(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, ln.Close())
	_, err = os.Stat(path)
	require.NoError(t, err, "stale socket file left behind")

	srv := New(Config{Path: path}, HandlerFunc(func(context.Context, []byte) error { return nil }), logx.Nop())
	require.NoError(t, srv.Listen())
	require.NoError(t, srv.Close())
}

func TestLiveSocketIsNotStolen(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	ln, err := net.Listen("unix", path)
	require.NoError(t, err)
	defer ln.Close()

	srv := New(Config{Path: path}, nil, logx.Nop())
	assert.Error(t, srv.Listen())
}

func TestRegularFileIsNotRemoved(t *testing.T) {
	t.Parallel()
	path := socketPath(t)
	require.NoError(t, os.WriteFile(path, []byte("keep"), 0o600))

	srv := New(Config{Path: path}, nil, logx.Nop())
	assert.Error(t, srv.Listen())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "keep", string(b))
}

func TestParseErrorPolicy(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]ErrorPolicy{"": PolicyExit, "EXIT": PolicyExit, " continue ": PolicyContinue} {
		got, err := ParseErrorPolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseErrorPolicy("retry")
	assert.Error(t, err)
}

func TestAcceptErrorUnwraps(t *testing.T) {
	t.Parallel()
	inner := errors.New("too many open files")
	var ae *AcceptError
	err := error(&AcceptError{Err: inner})
	require.ErrorAs(t, err, &ae)
	assert.ErrorIs(t, err, inner)
}

type failingListener struct {
	accepts int
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.accepts++
	return nil, errors.New("emfile")
}
func (l *failingListener) Close() error   { return nil }
func (l *failingListener) Addr() net.Addr { return &net.UnixAddr{Name: "failing", Net: "unix"} }

func TestAcceptFailureStopsServe(t *testing.T) {
	t.Parallel()
	ln := &failingListener{}
	srv := New(Config{OnError: PolicyContinue}, HandlerFunc(func(context.Context, []byte) error { return nil }), logx.Nop())
	srv.ln = ln

	done := make(chan error, 1)
	go func() { done <- srv.Serve(context.Background()) }()

	select {
	case err := <-done:
		var ae *AcceptError
		require.ErrorAs(t, err, &ae)
		assert.EqualError(t, ae.Err, "emfile")
		assert.Equal(t, 1, ln.accepts, "no retry after an accept failure")
	case <-time.After(3 * time.Second):
		t.Fatal("serve kept running after accept failed")
	}
	assert.Zero(t, srv.Handled())
}
