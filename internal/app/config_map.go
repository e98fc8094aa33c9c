package app

import (
	"strings"

	"pomobridge/internal/bridge"
	"pomobridge/internal/config"
	"pomobridge/internal/dialog"
	"pomobridge/internal/notifier"
	"pomobridge/internal/observability/pprof"
	"pomobridge/internal/server"
	"pomobridge/internal/status"
	"pomobridge/internal/storage"
	"pomobridge/internal/task/scheduler"
	logx "pomobridge/pkg/logx"
)

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    config.ExpandPath(cfg.Logging.File.Path),
		},
	}
}

// pick returns the configured template, or def when the entry is absent.
// An explicit empty list stays empty and disables the action.
func pick(configured, def []string) []string {
	if configured == nil {
		return def
	}
	return configured
}

// mapCommands resolves action templates against the platform defaults.
func mapCommands(cfg *config.Config) notifier.Commands {
	def := notifier.PlatformDefaults()
	return notifier.Commands{
		Indicator: pick(cfg.Actions.Indicator, def.Indicator),
		FocusOn:   pick(cfg.Actions.FocusOn, def.FocusOn),
		FocusOff:  pick(cfg.Actions.FocusOff, def.FocusOff),
		Script:    pick(cfg.Actions.Script, def.Script),
	}
}

func mapDialogCommand(cfg *config.Config) []string {
	if cfg.Actions.Dialog == nil {
		return dialog.DefaultCommand()
	}
	return cfg.Actions.Dialog
}

// mapDispatchConfig expects a validated config.
func mapDispatchConfig(cfg *config.Config) (bridge.Config, error) {
	d, err := cfg.Durations()
	if err != nil {
		return bridge.Config{}, err
	}
	hooks := make(map[status.State]string, len(cfg.Hooks))
	for name, script := range cfg.Hooks {
		st, err := status.ParseState(name)
		if err != nil {
			return bridge.Config{}, err
		}
		hooks[st] = script
	}
	return bridge.Config{
		EndFocusDelay: d.EndFocusDelay,
		FocusIcon:     cfg.Dispatch.FocusIcon,
		Hooks:         hooks,
	}, nil
}

func mapServerConfig(cfg *config.Config) (server.Config, error) {
	d, err := cfg.Durations()
	if err != nil {
		return server.Config{}, err
	}
	policy, err := server.ParseErrorPolicy(cfg.Socket.OnError)
	if err != nil {
		return server.Config{}, err
	}
	return server.Config{
		Path:              config.ExpandPath(cfg.Socket.Path),
		MaxMessageBytes:   cfg.Socket.MaxMessageBytes,
		ReadTimeout:       d.ReadTimeout,
		OnError:           policy,
		SystemdActivation: cfg.Socket.SystemdActivation,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{Timezone: strings.TrimSpace(cfg.Scheduler.Timezone)}
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	d, err := cfg.Durations()
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)),
		Path:        config.ExpandPath(cfg.Storage.Path),
		BusyTimeout: d.BusyTimeout,
	}, nil
}

func mapPprofConfig(cfg *config.Config) pprof.Config {
	return pprof.Config{
		Enabled:       cfg.Pprof.Enabled,
		Addr:          cfg.Pprof.Addr,
		Prefix:        cfg.Pprof.Prefix,
		Token:         cfg.Pprof.Token,
		AllowInsecure: cfg.Pprof.AllowInsecure,
	}
}
