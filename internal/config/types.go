package config

// Config is the on-disk configuration. JSON tags are canonical; YAML and TOML
// files are coerced to JSON and decoded with the same strict rules.
//
// Durations are Go duration strings ("56s", "168h").
type Config struct {
	Socket   SocketConfig   `json:"socket"`
	Dispatch DispatchConfig `json:"dispatch"`
	Actions  ActionsConfig  `json:"actions"`

	// Hooks maps a state name (running, breaking, complete, paused) to an
	// automation script run through actions.script after that state's actions.
	Hooks map[string]string `json:"hooks,omitempty"`

	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Storage   StorageConfig   `json:"storage"`
	Pprof     PprofConfig     `json:"pprof"`
}

type SocketConfig struct {
	// Path of the unix socket. "~/" is expanded.
	Path            string `json:"path" validate:"required"`
	MaxMessageBytes int64  `json:"max_message_bytes" validate:"gte=0"`
	// ReadTimeout bounds reading one message; empty means none.
	ReadTimeout string `json:"read_timeout,omitempty"`
	// OnError is the per-message error policy: "exit" (default) or "continue".
	OnError string `json:"on_error,omitempty" validate:"omitempty,oneof=exit continue"`
	// SystemdActivation uses an inherited LISTEN_FDS socket when present.
	SystemdActivation bool `json:"systemd_activation"`
}

type DispatchConfig struct {
	EndFocusDelay string `json:"end_focus_delay,omitempty"`
	FocusIcon     string `json:"focus_icon,omitempty"`
}

// ActionsConfig holds argv templates. A missing (null) entry selects the
// platform default; an empty list disables the action.
//
// Placeholders: indicator {icon} {message}; script {script}; dialog {message}.
type ActionsConfig struct {
	Indicator []string `json:"indicator"`
	FocusOn   []string `json:"focus_on"`
	FocusOff  []string `json:"focus_off"`
	Script    []string `json:"script"`
	Dialog    []string `json:"dialog"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

// SchedulerConfig controls the periodic jobs (journal pruning, watchdog).
type SchedulerConfig struct {
	// Timezone is the IANA zone cron schedules run in; empty means Local.
	Timezone string `json:"timezone,omitempty"`
}

// StorageConfig controls the optional transition journal.
type StorageConfig struct {
	Driver        string `json:"driver,omitempty" validate:"omitempty,oneof=none file sqlite sqlite3"`
	Path          string `json:"path,omitempty"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`
	Retention     string `json:"retention,omitempty"`
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// PprofConfig controls the optional pprof HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:6061").
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
type PprofConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty" validate:"omitempty,hostname_port"`
	Prefix        string `json:"prefix,omitempty"`
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

const (
	DefaultSocketPath      = "~/.pomo/publish.sock"
	DefaultMaxMessageBytes = 64 << 10
	DefaultEndFocusDelay   = "56s"
	DefaultFocusIcon       = "🍅"
	DefaultRetention       = "168h"
	DefaultPruneSchedule   = "@daily"
	DefaultPprofAddr       = "127.0.0.1:6061"
)

// Default returns the built-in configuration used when no file exists. File
// contents are decoded on top of it, so omitted fields keep these values.
func Default() *Config {
	return &Config{
		Socket: SocketConfig{
			Path:              DefaultSocketPath,
			MaxMessageBytes:   DefaultMaxMessageBytes,
			OnError:           "exit",
			SystemdActivation: true,
		},
		Dispatch: DispatchConfig{
			EndFocusDelay: DefaultEndFocusDelay,
			FocusIcon:     DefaultFocusIcon,
		},
		Logging: LoggingConfig{Level: "info", Console: true},
		Storage: StorageConfig{
			Driver:        "none",
			BusyTimeout:   "1s",
			Retention:     DefaultRetention,
			PruneSchedule: DefaultPruneSchedule,
		},
		Pprof: PprofConfig{Addr: DefaultPprofAddr},
	}
}
