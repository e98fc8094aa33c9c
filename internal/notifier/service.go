package notifier

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	logx "pomobridge/pkg/logx"
)

const historySize = 64

// Service implements Actions by launching configured commands.
//
// It is safe for concurrent use; Apply swaps the command templates at runtime.
type Service struct {
	mu   sync.Mutex
	cmds Commands

	log      logx.Logger
	launcher Launcher

	hmu     sync.Mutex
	history []HistoryItem
}

// Option configures a Service.
type Option func(*Service)

// WithLauncher replaces the exec-based launcher (tests).
func WithLauncher(l Launcher) Option {
	return func(s *Service) { s.launcher = l }
}

func New(cmds Commands, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{cmds: cmds, log: log}
	for _, o := range opts {
		o(s)
	}
	if s.launcher == nil {
		s.launcher = &execLauncher{log: log}
	}
	return s
}

func (s *Service) Apply(cmds Commands) {
	s.mu.Lock()
	s.cmds = cmds
	s.mu.Unlock()
}

func (s *Service) commands() Commands {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmds
}

func (s *Service) SetIndicator(ctx context.Context, icon, message string) error {
	return s.run(ctx, ActionIndicator, s.commands().Indicator, map[string]string{
		"{icon}":    icon,
		"{message}": message,
	})
}

func (s *Service) SetFocus(ctx context.Context, on bool) error {
	cmds := s.commands()
	if on {
		return s.run(ctx, ActionFocusOn, cmds.FocusOn, nil)
	}
	return s.run(ctx, ActionFocusOff, cmds.FocusOff, nil)
}

func (s *Service) RunScript(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	return s.run(ctx, ActionScript, s.commands().Script, map[string]string{"{script}": script})
}

// History returns the most recent launched actions, oldest first.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	return append([]HistoryItem(nil), s.history...)
}

func (s *Service) run(ctx context.Context, action string, tmpl []string, vars map[string]string) error {
	if len(tmpl) == 0 || strings.TrimSpace(tmpl[0]) == "" {
		s.log.Debug("action not configured; skipping", logx.String("action", action))
		return nil
	}
	argv := Expand(tmpl, vars)
	if err := s.launcher.Launch(ctx, action, argv); err != nil {
		return &ActionError{Action: action, Err: err}
	}
	s.record(action, argv)
	s.log.Debug("action launched", logx.String("action", action), logx.Any("argv", argv))
	return nil
}

func (s *Service) record(action string, argv []string) {
	s.hmu.Lock()
	s.history = append(s.history, HistoryItem{At: time.Now(), Action: action, Argv: argv})
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
	s.hmu.Unlock()
}

// Expand substitutes placeholders in every argument of tmpl.
func Expand(tmpl []string, vars map[string]string) []string {
	out := make([]string, len(tmpl))
	if len(vars) == 0 {
		copy(out, tmpl)
		return out
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, k, v)
	}
	r := strings.NewReplacer(pairs...)
	for i, a := range tmpl {
		out[i] = r.Replace(a)
	}
	return out
}

// execLauncher starts the command and reaps it in the background.
type execLauncher struct {
	log logx.Logger
}

func (l *execLauncher) Launch(ctx context.Context, action string, argv []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(argv) == 0 {
		return errors.New("empty command")
	}
	// Not CommandContext: an action outlives the call that launched it.
	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		if err := cmd.Wait(); err != nil {
			l.log.Warn("action exited with error", logx.String("action", action), logx.String("cmd", argv[0]), logx.Err(err))
		}
	}()
	return nil
}
