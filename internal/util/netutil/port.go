package netutil

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// WaitForPort waits for a TCP port to accept connections on ip.
// It dials every interval until it succeeds or timeout elapses.
func WaitForPort(ctx context.Context, ip string, port int32, timeout, interval time.Duration) error {
	address := net.JoinHostPort(ip, strconv.Itoa(int(port)))
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dialer := &net.Dialer{Timeout: 2 * time.Second}
	try := func() bool {
		conn, err := dialer.DialContext(ctx, "tcp", address)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}

	if try() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("timeout waiting for %s", address)
			}
			return ctx.Err()
		case <-ticker.C:
			if try() {
				return nil
			}
		}
	}
}
