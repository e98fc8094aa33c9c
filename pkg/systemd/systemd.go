// Package systemd integrates with the service manager when the process runs
// as a systemd unit. Every function is a no-op outside systemd.
package systemd

import (
	"errors"
	"net"
	"time"

	"github.com/coreos/go-systemd/v22/activation"
	"github.com/coreos/go-systemd/v22/daemon"
)

// Listener returns the first socket passed via socket activation, or nil when
// the unit was not socket-activated. Extra sockets are closed.
func Listener() (net.Listener, error) {
	ls, err := activation.Listeners()
	if err != nil {
		return nil, err
	}
	var out net.Listener
	for _, l := range ls {
		if l == nil {
			continue
		}
		if out == nil {
			out = l
			continue
		}
		_ = l.Close()
	}
	if out == nil && len(ls) > 0 {
		return nil, errors.New("activation sockets are not stream listeners")
	}
	return out, nil
}

// Ready tells systemd the service finished starting (Type=notify).
func Ready() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyReady) }

// Stopping tells systemd the service is shutting down.
func Stopping() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyStopping) }

// Status sets the free-form unit status line shown by systemctl status.
func Status(msg string) (bool, error) { return daemon.SdNotify(false, "STATUS="+msg) }

// Watchdog pings the service manager's watchdog.
func Watchdog() (bool, error) { return daemon.SdNotify(false, daemon.SdNotifyWatchdog) }

// WatchdogInterval returns how often to ping, half the configured WatchdogSec,
// or 0 when the watchdog is disabled.
func WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil || d <= 0 {
		return 0
	}
	return d / 2
}
