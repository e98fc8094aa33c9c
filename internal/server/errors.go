package server

import (
	"errors"
	"fmt"
	"strings"

	logx "pomobridge/pkg/logx"
)

var ErrMessageTooLarge = errors.New("message exceeds max_message_bytes")

// AcceptError is a listener accept failure. It stops the server; there is no
// retry since transient and fatal accept errors are not distinguished.
type AcceptError struct {
	Err error
}

func (e *AcceptError) Error() string { return "accept: " + e.Err.Error() }
func (e *AcceptError) Unwrap() error { return e.Err }

// ErrorPolicy decides what a per-message failure does to the server. It is the
// only place that makes this decision.
type ErrorPolicy string

const (
	// PolicyExit stops the server with the error (default).
	PolicyExit ErrorPolicy = "exit"
	// PolicyContinue logs the error and keeps accepting.
	PolicyContinue ErrorPolicy = "continue"
)

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyExit:
		return PolicyExit, nil
	case PolicyContinue:
		return PolicyContinue, nil
	default:
		return "", fmt.Errorf("unknown error policy %q", s)
	}
}

// Handle returns err when the server must stop, or nil after logging it.
func (p ErrorPolicy) Handle(log logx.Logger, err error) error {
	if err == nil {
		return nil
	}
	if p == PolicyContinue {
		log.Error("message failed; continuing", logx.Err(err))
		return nil
	}
	return err
}
