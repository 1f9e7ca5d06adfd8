package proactor

import (
	"context"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
	"net"
)

var (
	ErrLoopClosed   = errors.Define("loop is closed")
	ErrLoopRunning  = errors.Define("loop is already running")
	ErrServerClosed = errors.Define("server is closed")
	ErrNilFactory   = errors.Define("protocol factory is nil")
	ErrSelfPipe     = errors.Define("self pipe closed")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "proactor"
	errMetaOpKey  = "op"
)

// IsClosed reports errors that mean the loop, multiplexer or handle is gone.
func IsClosed(err error) bool {
	return errors.Is(err, ErrLoopClosed) ||
		errors.Is(err, ErrServerClosed) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) ||
		aio.IsClosed(err) ||
		aio.IsCanceled(err)
}

func IsBusy(err error) bool {
	return aio.IsBusy(err)
}

func IsPeerReset(err error) bool {
	return transport.IsPeerReset(err)
}
