package proactor

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
)

func (loop *Loop) checkPipe(factory ProtocolFactory, pipe aio.Handle) (err error) {
	switch {
	case loop.closed.Load():
		err = ErrLoopClosed
	case factory == nil:
		err = ErrNilFactory
	case pipe == nil:
		err = aio.ErrNilHandle
	}
	return
}

// ConnectReadPipe wraps the read end of a pipe.
func (loop *Loop) ConnectReadPipe(factory ProtocolFactory, pipe aio.Handle, options ...transport.Option) (t transport.Reader, p transport.Protocol, err error) {
	if err = loop.checkPipe(factory, pipe); err != nil {
		return
	}
	p = factory()
	t = transport.NewReadPipe(loop, pipe, p, loop.transportOptions(options, nil)...)
	return
}

// ConnectWritePipe wraps the write end of a pipe. With checkForHangup the
// handle is also read, which requires a bidirectional handle such as a
// socket pair end, to notice the reader going away.
func (loop *Loop) ConnectWritePipe(factory ProtocolFactory, pipe aio.Handle, checkForHangup bool, options ...transport.Option) (t transport.Writer, p transport.Protocol, err error) {
	if err = loop.checkPipe(factory, pipe); err != nil {
		return
	}
	if checkForHangup {
		options = append(options, transport.WithHangupCheck())
	}
	p = factory()
	t = transport.NewWritePipe(loop, pipe, p, loop.transportOptions(options, nil)...)
	return
}

func (loop *Loop) ConnectDuplexPipe(factory ProtocolFactory, pipe aio.Handle, options ...transport.Option) (t transport.Transport, p transport.Protocol, err error) {
	if err = loop.checkPipe(factory, pipe); err != nil {
		return
	}
	p = factory()
	t = transport.NewDuplexPipe(loop, pipe, p, loop.transportOptions(options, nil)...)
	return
}
