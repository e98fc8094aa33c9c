package config

import (
	"reflect"
	"strings"

	logx "pomobridge/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like tokens),
// and (3) the changed sections that only take effect after a restart.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 8)
	restart := make([]string, 0, 2)
	attrs := make([]logx.Field, 0, 16)

	// Socket: on_error applies live, the listener itself does not.
	if strings.TrimSpace(oldCfg.Socket.OnError) != strings.TrimSpace(newCfg.Socket.OnError) {
		changed = append(changed, "socket.on_error")
		attrs = append(attrs, logx.String("socket.on_error", newCfg.Socket.OnError))
	}
	oldSock, newSock := oldCfg.Socket, newCfg.Socket
	oldSock.OnError, newSock.OnError = "", ""
	if oldSock != newSock {
		changed = append(changed, "socket")
		restart = append(restart, "socket")
		attrs = append(attrs,
			logx.String("socket.path", newCfg.Socket.Path),
			logx.Int64("socket.max_message_bytes", newCfg.Socket.MaxMessageBytes),
			logx.Bool("socket.systemd_activation", newCfg.Socket.SystemdActivation),
		)
	}

	if oldCfg.Dispatch != newCfg.Dispatch {
		changed = append(changed, "dispatch")
		attrs = append(attrs,
			logx.String("dispatch.end_focus_delay", newCfg.Dispatch.EndFocusDelay),
			logx.String("dispatch.focus_icon", newCfg.Dispatch.FocusIcon),
		)
	}

	if !reflect.DeepEqual(oldCfg.Actions, newCfg.Actions) {
		changed = append(changed, "actions")
		attrs = append(attrs,
			logx.Bool("actions.indicator_default", newCfg.Actions.Indicator == nil),
			logx.Bool("actions.focus_default", newCfg.Actions.FocusOn == nil && newCfg.Actions.FocusOff == nil),
			logx.Bool("actions.dialog_default", newCfg.Actions.Dialog == nil),
		)
	}

	if !reflect.DeepEqual(oldCfg.Hooks, newCfg.Hooks) {
		changed = append(changed, "hooks")
		attrs = append(attrs, logx.Int("hooks.count", len(newCfg.Hooks)))
	}

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if strings.TrimSpace(oldCfg.Scheduler.Timezone) != strings.TrimSpace(newCfg.Scheduler.Timezone) {
		changed = append(changed, "scheduler")
		attrs = append(attrs, logx.String("scheduler.timezone", newCfg.Scheduler.Timezone))
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		restart = append(restart, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", newCfg.Storage.Driver),
			logx.String("storage.retention", newCfg.Storage.Retention),
		)
	}

	// Pprof (never log token)
	if oldCfg.Pprof != newCfg.Pprof {
		changed = append(changed, "pprof")
		attrs = append(attrs,
			logx.Bool("pprof.enabled", newCfg.Pprof.Enabled),
			logx.String("pprof.addr", strings.TrimSpace(newCfg.Pprof.Addr)),
			logx.Bool("pprof.token_set", strings.TrimSpace(newCfg.Pprof.Token) != ""),
		)
	}

	return changed, attrs, restart
}
