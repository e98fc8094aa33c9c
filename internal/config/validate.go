package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"

	"pomobridge/internal/status"
	logx "pomobridge/pkg/logx"
)

var (
	validate   = validator.New()
	cronParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

// Validate checks struct tags first, then the semantic rules tags cannot express.
// It is the default ConfigManager validator.
func Validate(_ context.Context, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	var errs []error
	check := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	check(durationField("socket.read_timeout", cfg.Socket.ReadTimeout))
	check(durationField("dispatch.end_focus_delay", cfg.Dispatch.EndFocusDelay))
	check(durationField("storage.busy_timeout", cfg.Storage.BusyTimeout))
	check(durationField("storage.retention", cfg.Storage.Retention))

	if !logx.ValidLevel(cfg.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level))
	}

	check(hookStates(cfg.Hooks))

	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			errs = append(errs, fmt.Errorf("scheduler.timezone: %w", err))
		}
	}

	check(placeholders("actions.indicator", cfg.Actions.Indicator))
	check(placeholders("actions.focus_on", cfg.Actions.FocusOn))
	check(placeholders("actions.focus_off", cfg.Actions.FocusOff))
	check(placeholders("actions.script", cfg.Actions.Script))
	check(placeholders("actions.dialog", cfg.Actions.Dialog))
	if len(cfg.Hooks) > 0 && cfg.Actions.Script != nil && len(cfg.Actions.Script) == 0 {
		errs = append(errs, errors.New("hooks: configured but actions.script is disabled"))
	}

	if d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d != "" && d != "none" {
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", d))
		}
		if ps := strings.TrimSpace(cfg.Storage.PruneSchedule); ps != "" {
			if _, err := cronParser.Parse(ps); err != nil {
				errs = append(errs, fmt.Errorf("storage.prune_schedule: %w", err))
			}
		}
	}

	return errors.Join(errs...)
}

// hookStates rejects unknown states and two keys naming the same state
// ("break" and "breaking"), which would make the chosen script arbitrary.
func hookStates(hooks map[string]string) error {
	names := make([]string, 0, len(hooks))
	for name := range hooks {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	seen := make(map[status.State]string, len(names))
	for _, name := range names {
		st, err := status.ParseState(name)
		if err != nil || st == status.Unknown {
			errs = append(errs, fmt.Errorf("hooks: unknown state %q", name))
			continue
		}
		if prev, ok := seen[st]; ok {
			errs = append(errs, fmt.Errorf("hooks: %q and %q both name state %s", prev, name, st))
			continue
		}
		seen[st] = name
	}
	return errors.Join(errs...)
}

func durationField(path, raw string) error {
	_, err := ParseDurationField(path, raw)
	return err
}

// placeholders rejects an argv whose command itself is a placeholder; the
// command must be a fixed program so message text can never choose it.
func placeholders(path string, argv []string) error {
	if len(argv) == 0 {
		return nil
	}
	if strings.TrimSpace(argv[0]) == "" {
		return fmt.Errorf("%s: empty command", path)
	}
	if strings.Contains(argv[0], "{") {
		return fmt.Errorf("%s: command %q must not contain a placeholder", path, argv[0])
	}
	return nil
}

// ExpandPath expands a leading "~/" to the user's home directory.
func ExpandPath(p string) string {
	p = strings.TrimSpace(p)
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
