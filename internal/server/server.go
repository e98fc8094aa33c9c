// Package server runs the local socket the timer publishes status messages to.
//
// One connection carries exactly one message: the peer writes it and closes.
// Connections are handled one at a time, in arrival order, and the handler
// finishes before the next connection is accepted.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	logx "pomobridge/pkg/logx"
	"pomobridge/pkg/systemd"
)

// Handler consumes one raw message.
type Handler interface {
	HandleMessage(ctx context.Context, raw []byte) error
}

type HandlerFunc func(ctx context.Context, raw []byte) error

func (f HandlerFunc) HandleMessage(ctx context.Context, raw []byte) error { return f(ctx, raw) }

type Config struct {
	Path              string
	MaxMessageBytes   int64 // 0 means unlimited
	ReadTimeout       time.Duration
	OnError           ErrorPolicy
	SystemdActivation bool
}

type Server struct {
	cfg     Config
	handler Handler
	log     logx.Logger

	policy atomic.Value // ErrorPolicy

	mu         sync.Mutex
	ln         net.Listener
	ownsSocket bool
	handled    atomic.Uint64
}

func New(cfg Config, h Handler, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, handler: h, log: log}
	s.SetErrorPolicy(cfg.OnError)
	return s
}

// SetErrorPolicy swaps the per-message error policy; empty means exit.
func (s *Server) SetErrorPolicy(p ErrorPolicy) {
	if p == "" {
		p = PolicyExit
	}
	s.policy.Store(p)
}

func (s *Server) errorPolicy() ErrorPolicy { return s.policy.Load().(ErrorPolicy) }

// Listen opens the socket: an inherited socket-activation listener when
// enabled and present, otherwise a unix socket at cfg.Path.
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln != nil {
		return nil
	}

	if s.cfg.SystemdActivation {
		ln, err := systemd.Listener()
		if err != nil {
			return fmt.Errorf("socket activation: %w", err)
		}
		if ln != nil {
			s.ln = ln
			s.log.Info("using socket-activated listener", logx.String("addr", ln.Addr().String()))
			return nil
		}
	}

	path := s.cfg.Path
	if path == "" {
		return errors.New("socket path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := removeStaleSocket(path); err != nil {
		return err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = ln.Close()
		return err
	}
	s.ln = ln
	s.ownsSocket = true
	s.log.Info("listening", logx.String("path", path))
	return nil
}

// Addr is the listening address, empty before Listen.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Handled counts messages passed to the handler.
func (s *Server) Handled() uint64 {
	if s == nil {
		return 0
	}
	return s.handled.Load()
}

// Serve runs the accept loop until ctx is done (returns nil), an accept fails
// (*AcceptError) or the error policy stops on a message error.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer func() {
		stop()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return &AcceptError{Err: err}
		}
		if err := s.errorPolicy().Handle(s.log, s.serveConn(ctx, conn)); err != nil {
			return err
		}
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn) error {
	raw, err := s.readMessage(conn)
	_ = conn.Close()
	if err != nil {
		return fmt.Errorf("read message: %w", err)
	}
	s.handled.Add(1)
	return s.handler.HandleMessage(ctx, raw)
}

// readMessage reads until the peer closes its side.
func (s *Server) readMessage(conn net.Conn) ([]byte, error) {
	if s.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	}
	var r io.Reader = conn
	limit := s.cfg.MaxMessageBytes
	if limit > 0 {
		r = io.LimitReader(conn, limit+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(b)) > limit {
		return nil, fmt.Errorf("%w (%d)", ErrMessageTooLarge, limit)
	}
	return b, nil
}

// Close stops the listener and removes the socket file this server created.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	err := s.ln.Close()
	if s.ownsSocket {
		if rmErr := os.Remove(s.cfg.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			s.log.Warn("socket cleanup failed", logx.String("path", s.cfg.Path), logx.Err(rmErr))
		}
	}
	s.ln = nil
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// removeStaleSocket unlinks a socket file nobody is listening on. A live
// listener at path is an error.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	c, err := net.DialTimeout("unix", path, 200*time.Millisecond)
	if err == nil {
		_ = c.Close()
		return fmt.Errorf("%s: another instance is listening", path)
	}
	return os.Remove(path)
}
