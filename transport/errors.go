package transport

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/pkg/aio"
	"syscall"
)

var (
	ErrInvalidState           = errors.Define("invalid transport state")
	ErrNotSupported           = errors.Define("not supported by transport")
	ErrInvalidLimits          = errors.Define("high must be >= low must be >= 0")
	ErrUnexpectedCancellation = errors.Define("operation canceled while transport is open")
	ErrOperationOutstanding   = errors.Define("operation already outstanding")
	ErrClosed                 = errors.Define("transport closed")
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "transport"
	errMetaOpKey  = "op"
	errMetaIDKey  = "transport"
)

func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}

func IsCanceled(err error) bool {
	return aio.IsCanceled(err)
}

// IsPeerReset reports a disorderly disconnect by the remote side.
func IsPeerReset(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range resetErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// IsPeerAborted reports a connection aborted by the local stack.
func IsPeerAborted(err error) bool {
	if err == nil {
		return false
	}
	for _, errno := range abortErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

var (
	resetErrnos = append([]syscall.Errno{syscall.ECONNRESET, syscall.EPIPE}, platformResetErrnos...)
	abortErrnos = append([]syscall.Errno{syscall.ECONNABORTED}, platformAbortErrnos...)
)

func invalidState(op string, id string, reason string) error {
	return errors.New(
		reason,
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithMeta(errMetaIDKey, id),
		errors.WithWrap(ErrInvalidState),
	)
}

func notSupported(op string, id string) error {
	return errors.New(
		"operation not supported",
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithMeta(errMetaIDKey, id),
		errors.WithWrap(ErrNotSupported),
	)
}

func unexpectedCancellation(op string, id string) error {
	return errors.New(
		op+" canceled",
		errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
		errors.WithMeta(errMetaOpKey, op),
		errors.WithMeta(errMetaIDKey, id),
		errors.WithWrap(ErrUnexpectedCancellation),
	)
}
