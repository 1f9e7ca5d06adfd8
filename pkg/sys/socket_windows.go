//go:build windows

package sys

import (
	"golang.org/x/sys/windows"
	"net"
	"os"
)

const (
	ShutRD   = windows.SHUT_RD
	ShutWR   = windows.SHUT_WR
	ShutRDWR = windows.SHUT_RDWR
)

func shutdown(fd uintptr, how int) error {
	if err := windows.Shutdown(windows.Handle(fd), how); err != nil {
		return os.NewSyscallError("shutdown", err)
	}
	return nil
}

// Socketpair emulates a socket pair with a loopback TCP connection.
func Socketpair() (a net.Conn, b net.Conn, err error) {
	ln, lnErr := net.Listen("tcp", "127.0.0.1:0")
	if lnErr != nil {
		err = lnErr
		return
	}
	defer ln.Close()
	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, acceptErr := ln.Accept()
		ch <- accepted{conn, acceptErr}
	}()
	if a, err = net.Dial("tcp", ln.Addr().String()); err != nil {
		return
	}
	r := <-ch
	if r.err != nil {
		_ = a.Close()
		a = nil
		err = r.err
		return
	}
	b = r.conn
	return
}
