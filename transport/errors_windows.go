//go:build windows

package transport

import "syscall"

var (
	platformResetErrnos = []syscall.Errno{syscall.WSAECONNRESET}
	platformAbortErrnos = []syscall.Errno{syscall.WSAECONNABORTED}
)
