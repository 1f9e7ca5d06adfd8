package aio

import (
	"io"
	"net"
	"time"
)

// Handle is an OS-level stream endpoint: a connected socket or a pipe end.
type Handle interface {
	io.Reader
	io.Writer
	io.Closer
}

// Listener is a listening socket.
type Listener interface {
	Accept() (net.Conn, error)
	Close() error
	Addr() net.Addr
}

// ReadDeadliner is implemented by handles whose blocking read can be
// interrupted, like net.Conn and pollable *os.File.
type ReadDeadliner interface {
	SetReadDeadline(t time.Time) error
}

type WriteDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

type Deadliner interface {
	SetDeadline(t time.Time) error
}

// Endpoint exposes the addresses of a connected socket.
type Endpoint interface {
	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// HalfCloser shuts down the send direction only.
type HalfCloser interface {
	CloseWrite() error
}

type Accepted struct {
	Handle Handle
	Addr   net.Addr
}

func (a Accepted) Close() (err error) {
	if a.Handle != nil {
		err = a.Handle.Close()
	}
	return
}
