// Package singleinstance lets one resident process own a loopback TCP port
// and answer requests from short-lived CLI invocations.
//
// Wire format: the client sends one request line, optionally followed by a
// body, then closes its write side. Request lines are "PING", "ACTION <id>"
// and "COMMAND <name>"; a COMMAND body is its single argument. The server
// replies "PONG\n", or "SUCCESS\n" or "ERROR\n" followed by the payload.
package singleinstance

import (
	"context"
	"errors"
)

const (
	residentHost = "127.0.0.1"
	pingRequest  = "PING\n"
	pongResponse = "PONG\n"

	KindAction  = "ACTION"
	KindCommand = "COMMAND"

	maxBody = 1 << 20
)

var ErrBadRequest = errors.New("malformed request")

// Server owns the TCP endpoint and answers delegated requests.
type Server interface {
	// Start listens on the configured port; it fails when another resident owns it.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next accepted connection as a Conn, or ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn represents one client connection and exposes request + response API.
type Conn interface {
	Request() Request
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

// Request is one delegated request: an action id, or a command name with an
// optional argument in Body.
type Request struct {
	Kind string
	Name string
	Body string
}

// Client delegates requests to a resident server.
type Client interface {
	// Delegate sends req to the resident. When no resident answers PING it
	// returns delegated=false, err=nil.
	Delegate(ctx context.Context, req Request) (delegated bool, text string, err error)
}

func NewServer(port int) Server { return newTcpServer(clampPort(port)) }

func NewClient(port int) Client { return newTcpClient(clampPort(port)) }

func clampPort(port int) int {
	if port < 1024 || port > 65535 {
		return 49600
	}
	return port
}
