package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a Go duration string. Empty means zero; negative
// values are rejected. path names the field in errors.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

// Durations are the parsed duration fields of a validated Config.
type Durations struct {
	ReadTimeout   time.Duration
	EndFocusDelay time.Duration
	BusyTimeout   time.Duration
	Retention     time.Duration
}

func (c *Config) Durations() (Durations, error) {
	var (
		d   Durations
		err error
	)
	if d.ReadTimeout, err = ParseDurationField("socket.read_timeout", c.Socket.ReadTimeout); err != nil {
		return d, err
	}
	if d.EndFocusDelay, err = ParseDurationOrDefault("dispatch.end_focus_delay", c.Dispatch.EndFocusDelay, 56*time.Second); err != nil {
		return d, err
	}
	if d.BusyTimeout, err = ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return d, err
	}
	if d.Retention, err = ParseDurationField("storage.retention", c.Storage.Retention); err != nil {
		return d, err
	}
	return d, nil
}
