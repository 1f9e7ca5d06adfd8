// Package sys holds the few raw socket calls the transports need that the
// net package does not expose: socket pairs and shutdown by direction.
package sys

import (
	"github.com/brickingsoft/errors"
	"syscall"
)

var (
	ErrUnsupported = errors.Define("handle does not expose a raw socket")
)

func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// Shutdown shuts down one or both directions of the socket behind h.
// h must implement syscall.Conn, otherwise ErrUnsupported is returned.
func Shutdown(h any, how int) (err error) {
	sc, ok := h.(syscall.Conn)
	if !ok {
		err = ErrUnsupported
		return
	}
	raw, rawErr := sc.SyscallConn()
	if rawErr != nil {
		err = errors.New("shutdown failed", errors.WithWrap(rawErr))
		return
	}
	ctrlErr := raw.Control(func(fd uintptr) {
		err = shutdown(fd, how)
	})
	if ctrlErr != nil {
		err = errors.New("shutdown failed", errors.WithWrap(ctrlErr))
	}
	return
}

// CloseWrite half-closes h, preferring its own CloseWrite method.
func CloseWrite(h any) (err error) {
	if hc, ok := h.(interface{ CloseWrite() error }); ok {
		err = hc.CloseWrite()
		return
	}
	err = Shutdown(h, ShutWR)
	return
}
