//go:build !windows

package transport

import "syscall"

var (
	platformResetErrnos []syscall.Errno
	platformAbortErrnos []syscall.Errno
)
