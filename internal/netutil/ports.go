// Package netutil provides small net.Listen/net.DialTimeout-based helpers
// used by tests to pick free ports and wait for a worker server to come up.
package netutil

import (
	"fmt"
	"net"
	"time"
)

// FreePort asks the OS for an unused TCP port by binding to port 0 and
// reading back what it chose.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("netutil: listen: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// CheckPortAvailable reports whether port can be bound right now.
func CheckPortAvailable(port int) bool {
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return false
	}
	l.Close()
	return true
}

// WaitForPort polls until a TCP connection to host:port succeeds or
// timeout elapses.
func WaitForPort(host string, port int, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	addr := fmt.Sprintf("%s:%d", host, port)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("netutil: timed out waiting for %s", addr)
}
