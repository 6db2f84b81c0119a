package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct {
	port int
}

func newTcpClient(port int) Client { return &tcpClient{port: port} }

func (c *tcpClient) Delegate(ctx context.Context, req Request) (bool, string, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	addr := net.JoinHostPort(residentHost, strconv.Itoa(c.port))
	if ping(addr, defaultPingTimeout) != nil {
		return false, "", nil
	}

	conn, err := net.DialTimeout("tcp", addr, deadline)
	if err != nil {
		return false, "", nil
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(deadline))

	w := bufio.NewWriter(conn)
	if _, err := fmt.Fprintf(w, "%s %s\n%s", req.Kind, req.Name, req.Body); err != nil {
		return true, "", err
	}
	if err := w.Flush(); err != nil {
		return true, "", err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return true, "", err
	}
	payload, _ := io.ReadAll(br)
	switch status {
	case "SUCCESS\n":
		return true, string(payload), nil
	case "ERROR\n":
		return true, "", errors.New(string(payload))
	default:
		return true, "", fmt.Errorf("unexpected response %q", status)
	}
}
