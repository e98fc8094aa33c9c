package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "pomobridge/pkg/logx"
)

// Store is the transition journal.
type Store interface {
	AppendTransition(ctx context.Context, t Transition) error
	// RecentTransitions returns up to limit entries, oldest first.
	RecentTransitions(ctx context.Context, limit int) ([]Transition, error)
	// Prune deletes entries recorded before the cutoff and reports how many.
	Prune(ctx context.Context, before time.Time) (int, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
