package proactor

import (
	"github.com/brickingsoft/proactor/pkg/aio"
)

// SockRecv reads at most n bytes from h. An empty result is end of stream.
func (loop *Loop) SockRecv(h aio.Handle, n int) (op *aio.Operation[[]byte], err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	op, err = loop.mux.Recv(h, n)
	return
}

// SockSendAll writes all of b to h. b must not be modified until the
// operation completes.
func (loop *Loop) SockSendAll(h aio.Handle, b []byte) (op *aio.Operation[int], err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	op, err = loop.mux.Send(h, b)
	return
}

func (loop *Loop) SockConnect(network string, address string) (op *aio.Operation[aio.Handle], err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	op, err = loop.mux.Connect(network, address)
	return
}

func (loop *Loop) SockAccept(ln aio.Listener) (op *aio.Operation[aio.Accepted], err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	op, err = loop.mux.Accept(ln)
	return
}
