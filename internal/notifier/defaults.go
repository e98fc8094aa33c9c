package notifier

import (
	"os/exec"
	"runtime"
)

// PlatformDefaults returns command templates for the current OS, including
// only tools found in PATH. Missing tools leave the action unconfigured.
func PlatformDefaults() Commands {
	switch runtime.GOOS {
	case "darwin":
		return darwinDefaults()
	case "linux":
		return linuxDefaults()
	default:
		return Commands{}
	}
}

func darwinDefaults() Commands {
	var c Commands
	if toolAvailable("shortcuts") {
		c.FocusOn = []string{"shortcuts", "run", "Focus On"}
		c.FocusOff = []string{"shortcuts", "run", "Focus Off"}
	}
	if toolAvailable("osascript") {
		c.Script = []string{"osascript", "-e", "{script}"}
	}
	if toolAvailable("tmux") {
		c.Indicator = tmuxIndicator()
	}
	return c
}

func linuxDefaults() Commands {
	var c Commands
	if toolAvailable("gsettings") {
		c.FocusOn = []string{"gsettings", "set", "org.gnome.desktop.notifications", "show-banners", "false"}
		c.FocusOff = []string{"gsettings", "set", "org.gnome.desktop.notifications", "show-banners", "true"}
	}
	if toolAvailable("sh") {
		c.Script = []string{"sh", "-c", "{script}"}
	}
	if toolAvailable("tmux") {
		c.Indicator = tmuxIndicator()
	}
	return c
}

// tmuxIndicator sets a global user option a status line can render with #{@pomo}.
func tmuxIndicator() []string {
	return []string{"tmux", "set-option", "-gq", "@pomo", "{icon} {message}"}
}

func toolAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
