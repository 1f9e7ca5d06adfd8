//go:build unix

package sys

import (
	"golang.org/x/sys/unix"
	"net"
	"os"
	"syscall"
)

const (
	ShutRD   = unix.SHUT_RD
	ShutWR   = unix.SHUT_WR
	ShutRDWR = unix.SHUT_RDWR
)

func shutdown(fd uintptr, how int) error {
	if err := unix.Shutdown(int(fd), how); err != nil {
		if err == unix.ENOTSOCK {
			return ErrUnsupported
		}
		return os.NewSyscallError("shutdown", err)
	}
	return nil
}

// Socketpair returns both ends of a connected AF_UNIX stream pair.
func Socketpair() (a net.Conn, b net.Conn, err error) {
	syscall.ForkLock.RLock()
	fds, spErr := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if spErr == nil {
		unix.CloseOnExec(fds[0])
		unix.CloseOnExec(fds[1])
	}
	syscall.ForkLock.RUnlock()
	if spErr != nil {
		err = os.NewSyscallError("socketpair", spErr)
		return
	}
	if a, err = fileConn(fds[0], "socketpair-0"); err != nil {
		_ = unix.Close(fds[1])
		return
	}
	if b, err = fileConn(fds[1], "socketpair-1"); err != nil {
		_ = a.Close()
		a = nil
	}
	return
}

// fileConn takes ownership of fd. net.FileConn dups it, so the original is
// closed once the net.Conn exists.
func fileConn(fd int, name string) (c net.Conn, err error) {
	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		err = os.NewSyscallError("setnonblock", err)
		return
	}
	f := os.NewFile(uintptr(fd), name)
	c, err = net.FileConn(f)
	_ = f.Close()
	return
}
