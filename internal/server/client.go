package server

import (
	"context"
	"fmt"
	"net"
)

// Send delivers one message to the socket at path the way the timer does:
// connect, write, close.
func Send(ctx context.Context, path string, msg []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("dial %s: %w", path, err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
	}
	if _, err := conn.Write(msg); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}
