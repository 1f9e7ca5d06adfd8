// Package transport turns one-shot completions of an aio.Multiplexer into
// ordered, flow-controlled byte streams delivered to a Protocol.
//
// Every method of a transport and every completion callback must run on the
// loop goroutine. Nothing here locks.
package transport

import (
	"github.com/brickingsoft/proactor/pkg/aio"
)

// Loop is the part of the event loop a transport depends on.
type Loop interface {
	// CallSoon schedules fn for the next loop iteration. Transports never
	// call protocol callbacks re-entrantly, they go through CallSoon.
	CallSoon(fn func())
	Multiplexer() aio.Multiplexer
	CallExceptionHandler(ctx ExceptionContext)
}

type ExceptionContext struct {
	Message   string
	Err       error
	Transport Base
}

// Server is the weak back-reference a transport keeps for accounting.
type Server interface {
	Attach(t Base)
	Detach(t Base)
}

type Base interface {
	ID() string
	Close()
	IsClosing() bool
	ExtraInfo(name string) (v any, ok bool)
	Protocol() Protocol
	SetProtocol(p Protocol)
}

type Reader interface {
	Base
	PauseReading() error
	ResumeReading() error
	IsReading() bool
}

type Writer interface {
	Base
	Write(b []byte) error
	WriteBuffers(bufs ...[]byte) error
	WriteEOF() error
	CanWriteEOF() bool
	Abort()
	SetWriteBufferLimits(options ...LimitOption) error
	GetWriteBufferLimits() (low int, high int)
	GetWriteBufferSize() int
}

type Transport interface {
	Reader
	Writer
}

const (
	ExtraSocket   = "socket"
	ExtraPipe     = "pipe"
	ExtraSockName = "sockname"
	ExtraPeerName = "peername"
)
