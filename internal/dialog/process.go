package dialog

import (
	"errors"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	logx "pomobridge/pkg/logx"
)

// ExecSpawner launches the dialog from an argv template ({message} placeholder).
type ExecSpawner struct {
	mu   sync.Mutex
	argv []string
	log  logx.Logger
}

func NewExecSpawner(argv []string, log logx.Logger) *ExecSpawner {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &ExecSpawner{argv: argv, log: log}
}

// Apply swaps the command template.
func (e *ExecSpawner) Apply(argv []string) {
	e.mu.Lock()
	e.argv = append([]string(nil), argv...)
	e.mu.Unlock()
}

func (e *ExecSpawner) Spawn(message string) (Process, error) {
	e.mu.Lock()
	tmpl := append([]string(nil), e.argv...)
	e.mu.Unlock()

	if len(tmpl) == 0 || strings.TrimSpace(tmpl[0]) == "" {
		return nil, nil
	}
	argv := expand(tmpl, message)

	cmd := exec.Command(argv[0], argv[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	p := &execProcess{cmd: cmd}
	go func() {
		err := cmd.Wait()
		p.exited.Store(true)
		if err != nil && !p.killed.Load() {
			e.log.Debug("dialog exited", logx.Int("pid", cmd.Process.Pid), logx.Err(err))
		}
	}()
	return p, nil
}

type execProcess struct {
	cmd    *exec.Cmd
	exited atomic.Bool
	killed atomic.Bool
}

func (p *execProcess) Pid() int { return p.cmd.Process.Pid }

// Alive reads the flag the reaper goroutine sets after Wait returns.
func (p *execProcess) Alive() bool { return !p.exited.Load() }

func (p *execProcess) Kill() error {
	p.killed.Store(true)
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

func expand(tmpl []string, message string) []string {
	argv := make([]string, len(tmpl))
	for i, a := range tmpl {
		argv[i] = strings.ReplaceAll(a, "{message}", message)
	}
	return argv
}

// The message reaches AppleScript as a run argument, never as script source.
var (
	osascriptCommand = []string{
		"osascript",
		"-e", "on run argv",
		"-e", `display alert "Pomodoro" message (item 1 of argv)`,
		"-e", "end run",
		"{message}",
	}
	zenityCommand = []string{"zenity", "--info", "--title=Pomodoro", "--text={message}"}
)

// DefaultCommand returns the platform dialog template, or nil when no dialog tool is found.
func DefaultCommand() []string {
	switch runtime.GOOS {
	case "darwin":
		if toolAvailable("osascript") {
			return append([]string(nil), osascriptCommand...)
		}
	case "linux":
		if toolAvailable("zenity") {
			return append([]string(nil), zenityCommand...)
		}
	}
	return nil
}

func toolAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
