// Package app wires the bridge: config, logging, the socket server, the
// dispatcher and its outbound actions, the scheduler and the optional journal.
package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"pomobridge/internal/bridge"
	"pomobridge/internal/config"
	"pomobridge/internal/dialog"
	"pomobridge/internal/eventbus"
	"pomobridge/internal/notifier"
	"pomobridge/internal/observability/pprof"
	rtsup "pomobridge/internal/runtime/supervisor"
	"pomobridge/internal/server"
	"pomobridge/internal/storage"
	"pomobridge/internal/task/scheduler"
	logx "pomobridge/pkg/logx"
	"pomobridge/pkg/systemd"
)

type App struct {
	cfgm *config.ConfigManager
	sup  *rtsup.Supervisor

	log   logx.Logger
	logs  *logx.Service
	bus   eventbus.Bus
	store storage.Store

	notif   *notifier.Service
	spawner *dialog.ExecSpawner
	dialog  *dialog.Supervisor
	pprof   *pprof.Service

	// built in Start, they need the app supervisor
	sched      *scheduler.Service
	dispatcher *bridge.Dispatcher
	bridge     *bridge.Bridge
	server     *server.Server
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	bus := eventbus.New()

	sc, err := mapStorageConfig(cfg)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}
	if store != nil {
		log.Info("storage enabled", logx.String("driver", sc.Driver), logx.String("path", sc.Path))
	}

	notif := notifier.New(mapCommands(cfg), log.With(logx.String("comp", "notifier")))
	dlog := log.With(logx.String("comp", "dialog"))
	spawner := dialog.NewExecSpawner(mapDialogCommand(cfg), dlog)

	return &App{
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		bus:     bus,
		store:   store,
		notif:   notif,
		spawner: spawner,
		dialog:  dialog.NewSupervisor(spawner, dlog, bus),
		pprof:   pprof.New(log.With(logx.String("comp", "pprof"))),
	}, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Bridge exposes the application state (tests, diagnostics).
func (a *App) Bridge() *bridge.Bridge { return a.bridge }

// SocketAddr is the address the server listens on, empty before Start.
func (a *App) SocketAddr() string {
	if a.server == nil {
		return ""
	}
	return a.server.Addr()
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.cfgm.Get()
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.sched = scheduler.New(mapSchedulerConfig(cfg), a.sup, a.log.With(logx.String("comp", "scheduler")))

	dcfg, err := mapDispatchConfig(cfg)
	if err != nil {
		return err
	}
	a.dispatcher = bridge.NewDispatcher(dcfg, bridge.Deps{
		Actions:   a.notif,
		Dialog:    a.dialog,
		Scheduler: a.sched,
		Runner:    a.sup,
		Logger:    a.log.With(logx.String("comp", "dispatch")),
		Bus:       a.bus,
	})
	a.bridge = bridge.New(a.dispatcher, a.log.With(logx.String("comp", "bridge")), a.bus)

	if err := a.startJournal(cfg); err != nil {
		return err
	}
	if iv := systemd.WatchdogInterval(); iv > 0 {
		if err := a.sched.AddInterval("systemd.watchdog", iv, 0, func(context.Context) error {
			_, err := systemd.Watchdog()
			return err
		}); err != nil {
			return err
		}
		a.log.Info("systemd watchdog enabled", logx.Duration("interval", iv))
	}
	a.sched.Start()

	if cfg.Pprof.Enabled {
		if err := a.pprof.Reconfigure(a.sup.Context(), mapPprofConfig(cfg)); err != nil {
			// pprof is optional observability; keep running without it.
			a.log.Warn("pprof not started", logx.Err(err))
		}
	}

	scfg, err := mapServerConfig(cfg)
	if err != nil {
		return err
	}
	a.server = server.New(scfg, a.bridge, a.log.With(logx.String("comp", "server")))
	if err := a.server.Listen(); err != nil {
		return err
	}

	a.startEventLog()
	a.startConfigReload()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.sup.Go("server", a.server.Serve)

	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
		_, _ = systemd.Status("listening on " + a.server.Addr())
	}

	a.log.Info("app started", logx.String("socket", a.server.Addr()))
	return nil
}

// startJournal records accepted transitions and schedules pruning.
func (a *App) startJournal(cfg *config.Config) error {
	if a.store == nil {
		return nil
	}
	events, unsub := a.bus.Subscribe(64)
	rlog := a.log.With(logx.String("comp", "journal"))
	a.sup.Go0("journal.record", func(c context.Context) {
		defer unsub()
		recordTransitions(c, events, a.store, rlog)
	})

	d, err := cfg.Durations()
	if err != nil {
		return err
	}
	if d.Retention <= 0 {
		rlog.Info("journal retention disabled; entries are kept")
		return nil
	}
	return a.sched.AddSchedule(pruneJob, cfg.Storage.PruneSchedule, 30*time.Second, pruneFunc(a.store, d.Retention, a.bus, rlog))
}

func (a *App) startEventLog() {
	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				// status.rejected fires for every repeated snapshot; the bridge samples those itself.
				if e.Type == eventbus.StatusRejected || !a.log.Enabled(logx.LevelDebug) {
					continue
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Time("time", e.Time))
			}
		}
	})
}

// startConfigReload applies hot-reloaded config to the live components.
func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts: keep only the latest config in the channel.
				for drained := false; !drained; {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						drained = true
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})
}

func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}

	a.logs.Apply(mapLogConfig(newCfg))
	a.notif.Apply(mapCommands(newCfg))
	a.spawner.Apply(mapDialogCommand(newCfg))
	a.sched.Apply(mapSchedulerConfig(newCfg))

	if dcfg, err := mapDispatchConfig(newCfg); err != nil {
		a.log.Warn("invalid dispatch config; keeping previous", logx.Err(err))
	} else {
		a.dispatcher.Apply(dcfg)
	}
	if policy, err := server.ParseErrorPolicy(newCfg.Socket.OnError); err != nil {
		a.log.Warn("invalid socket.on_error; keeping previous", logx.Err(err))
	} else {
		a.server.SetErrorPolicy(policy)
	}
	if slices.Contains(sections, "pprof") {
		if err := a.pprof.Reconfigure(ctx, mapPprofConfig(newCfg)); err != nil {
			a.log.Warn("pprof reconfigure failed", logx.Err(err))
		}
	}

	if len(restart) > 0 {
		a.log.Warn("config changed; restart required for changes to take effect", logx.String("sections", strings.Join(restart, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	// Cancel first so the server and background loops start unwinding immediately.
	a.sup.Cancel()

	a.step(ctx, "server", time.Second, func(context.Context) error {
		if a.server == nil {
			return nil
		}
		return a.server.Close()
	})
	a.step(ctx, "scheduler", 2*time.Second, func(c context.Context) error {
		if a.sched != nil {
			a.sched.Stop(c)
		}
		return nil
	})
	a.step(ctx, "pprof", time.Second, func(c context.Context) error { a.pprof.Stop(c); return nil })
	// Wait before closing the dialog: a dialog.open task may still be running.
	a.step(ctx, "supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	a.step(ctx, "dialog", time.Second, func(context.Context) error { a.dialog.Close(); return nil })
	a.step(ctx, "storage", time.Second, func(context.Context) error {
		if a.store == nil {
			return nil
		}
		return a.store.Close()
	})

	a.logRecentActions()
	c := a.sup.Counters()
	a.log.Info("stopped",
		logx.Uint64("messages_handled", a.server.Handled()),
		logx.Uint64("goroutines_started", c.Started),
		logx.Int64("goroutines_active", c.Active),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

// logRecentActions dumps the last launched commands, for debugging a session
// whose indicator or focus mode ended up in the wrong state.
func (a *App) logRecentActions() {
	if !a.log.Enabled(logx.LevelDebug) {
		return
	}
	for _, h := range a.notif.History() {
		a.log.Debug("recent action", logx.Time("at", h.At), logx.String("action", h.Action), logx.Any("argv", h.Argv))
	}
}

// step runs one shutdown step with an upper bound so one component can't
// stall the whole stop. It never extends the caller's deadline.
func (a *App) step(ctx context.Context, name string, limit time.Duration, fn func(context.Context) error) {
	start := time.Now()
	a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", limit))

	stepCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic in stop step %s: %v", name, r)
			}
		}()
		done <- fn(stepCtx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
		}
		took := time.Since(start)
		if took >= 500*time.Millisecond {
			a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
		} else {
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
		}
	case <-stepCtx.Done():
		// fn must honor stepCtx; if it doesn't, log when it eventually finishes.
		a.log.Warn("stop step deadline reached (continuing)",
			logx.String("name", name),
			logx.Err(stepCtx.Err()),
			logx.Duration("elapsed", time.Since(start)),
		)
		go func() {
			err := <-done
			if err != nil {
				a.log.Warn("stop step finished after deadline", logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
			}
		}()
	}
}
