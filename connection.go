package proactor

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
)

// ConnectionHandler receives the outcome of CreateConnection on the loop.
// On success it runs after the protocol's ConnectionMade.
type ConnectionHandler func(t transport.Transport, p transport.Protocol, err error)

// CreateConnection dials address and wraps the connected socket in a
// transport. The returned operation can be canceled while dialing.
func (loop *Loop) CreateConnection(factory ProtocolFactory, network string, address string, handler ConnectionHandler, options ...transport.Option) (op *aio.Operation[aio.Handle], err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	if factory == nil {
		err = ErrNilFactory
		return
	}
	if op, err = loop.mux.Connect(network, address); err != nil {
		return
	}
	op.OnComplete(func(op *aio.Operation[aio.Handle]) {
		handle, connectErr := op.Result()
		if connectErr != nil {
			if handler != nil {
				handler(nil, nil, connectErr)
			}
			return
		}
		protocol := factory()
		var t transport.Transport
		opts := loop.transportOptions(options, func() {
			if handler != nil {
				handler(t, protocol, nil)
			}
		})
		t = transport.NewSocket(loop, handle, protocol, opts...)
	})
	return
}

// transportOptions puts the loop defaults first so callers can override them.
func (loop *Loop) transportOptions(options []transport.Option, waiter func()) []transport.Option {
	opts := loop.options.transportOptions()
	opts = append(opts, options...)
	if waiter != nil {
		opts = append(opts, transport.WithWaiter(waiter))
	}
	return opts
}
