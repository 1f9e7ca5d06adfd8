package aio

import (
	"github.com/brickingsoft/errors"
)

var (
	ErrCanceled     = errors.Define("operation canceled")
	ErrClosed       = errors.Define("multiplexer closed")
	ErrBusy         = errors.Define("busy")
	ErrEmptyBytes   = errors.Define("empty bytes")
	ErrNilHandle    = errors.Define("handle is nil")
	ErrNotCompleted = errors.Define("operation not completed")
)

func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "aio"
)

const (
	errMetaOpKey     = "op"
	errMetaOpRecv    = "receive"
	errMetaOpSend    = "send"
	errMetaOpAccept  = "accept"
	errMetaOpConnect = "connect"
	errMetaOpClose   = "close"
)
