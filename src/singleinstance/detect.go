package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

const defaultPingTimeout = 300 * time.Millisecond

// DetectResident reports whether a resident answers PING on port.
func DetectResident(ctx context.Context, port int) bool {
	timeout := defaultPingTimeout
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < timeout {
			timeout = d
		}
	}
	return ping(net.JoinHostPort(residentHost, strconv.Itoa(clampPort(port))), timeout) == nil
}

// ping succeeds only when the listener speaks this protocol; any other
// service bound to the port is reported as an error.
func ping(addr string, timeout time.Duration) error {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(pingRequest)); err != nil {
		return fmt.Errorf("send ping: %w", err)
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return fmt.Errorf("read pong: %w", err)
	}
	if resp != pongResponse {
		return fmt.Errorf("unexpected reply %q", resp)
	}
	return nil
}
