package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "pomobridge/pkg/logx"
)

type Config struct {
	Timezone string // IANA TZ for cron specs; empty means Local
}

// Runner executes a job on a supervised goroutine.
type Runner interface {
	Go(name string, fn func(ctx context.Context) error)
}

type scheduleDef struct {
	name    string
	spec    string // cron spec or @every
	timeout time.Duration
	job     func(ctx context.Context) error
	entryID cron.EntryID
	busy    *atomic.Bool // skip a trigger while the previous run is in flight
}

type Service struct {
	mu sync.Mutex

	log    logx.Logger
	cfg    Config
	loc    *time.Location
	runner Runner

	parser cron.Parser
	c      *cron.Cron
	defs   []scheduleDef

	// one-shot timers, keyed by sequence so repeated names never replace each other
	tmu    sync.Mutex
	timers map[uint64]*time.Timer
	seq    uint64
}

type ScheduleInfo struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Next    time.Time
	Prev    time.Time
}

type Snapshot struct {
	Timezone  string
	Schedules []ScheduleInfo
	Pending   int // one-shot jobs not yet fired
}
