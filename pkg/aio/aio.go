// Package aio is the completion side of the proactor: callers start an
// operation and get an Operation handle whose callback fires on the loop
// goroutine once the request has completed, failed or been canceled.
package aio

// Multiplexer issues asynchronous operations and reports their completions
// through the Scheduler bound with SetLoop.
type Multiplexer interface {
	Recv(h Handle, n int) (op *Operation[[]byte], err error)
	Send(h Handle, b []byte) (op *Operation[int], err error)
	Connect(network string, address string) (op *Operation[Handle], err error)
	Accept(ln Listener) (op *Operation[Accepted], err error)
	SetLoop(s Scheduler)
	Close() (err error)
}

const (
	// MaxRW caps a single receive.
	MaxRW = 1 << 30
)
