package proactor

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
	"go.uber.org/zap"
	"net"
)

// Serve starts an accept loop on every listener. Each accepted connection
// gets a socket transport with a protocol from factory and its remote
// address as the peername extra.
func (loop *Loop) Serve(factory ProtocolFactory, listeners []aio.Listener, options ...transport.Option) (srv *Server, err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	if factory == nil {
		err = ErrNilFactory
		return
	}
	srv = newServer(loop, listeners, factory, options)
	srv.serving = true
	for _, ln := range listeners {
		loop.CallSoon(func() {
			srv.loopAccepting(ln, nil)
		})
	}
	return
}

// CreateServer listens on address and serves it.
func (loop *Loop) CreateServer(factory ProtocolFactory, network string, address string, options ...transport.Option) (srv *Server, err error) {
	ln, lnErr := net.Listen(network, address)
	if lnErr != nil {
		err = errors.New(
			"create server failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, "listen"),
			errors.WithWrap(lnErr),
		)
		return
	}
	if srv, err = loop.Serve(factory, []aio.Listener{ln}, options...); err != nil {
		_ = ln.Close()
	}
	return
}

func (srv *Server) loopAccepting(ln aio.Listener, op *aio.Operation[aio.Accepted]) {
	loop := srv.loop
	if op != nil {
		srv.locker.Lock()
		if srv.accepts[ln] == op {
			delete(srv.accepts, ln)
		}
		srv.locker.Unlock()
		accepted, err := op.Result()
		if err != nil {
			srv.acceptFailed(ln, err)
			return
		}
		srv.newTransport(accepted)
	}
	if loop.closed.Load() {
		return
	}
	srv.locker.Lock()
	closed := srv.closed
	srv.locker.Unlock()
	if closed {
		return
	}
	next, err := loop.mux.Accept(ln)
	if err != nil {
		srv.acceptFailed(ln, err)
		return
	}
	srv.locker.Lock()
	srv.accepts[ln] = next
	srv.locker.Unlock()
	next.OnComplete(func(op *aio.Operation[aio.Accepted]) {
		srv.loopAccepting(ln, op)
	})
}

func (srv *Server) newTransport(accepted aio.Accepted) {
	loop := srv.loop
	loop.scope.Counter("accepts").Inc(1)
	options := make([]transport.Option, 0, len(srv.options)+2)
	options = append(options, transport.WithServer(srv), transport.WithExtra(transport.ExtraPeerName, accepted.Addr))
	options = append(options, srv.options...)
	transport.NewSocket(loop, accepted.Handle, srv.factory(), loop.transportOptions(options, nil)...)
}

// acceptFailed stops the accept loop of ln. Cancellation closes the
// listener quietly, other errors are reported first.
func (srv *Server) acceptFailed(ln aio.Listener, err error) {
	if aio.IsCanceled(err) {
		_ = ln.Close()
		return
	}
	srv.locker.Lock()
	open := !srv.closed && !srv.loop.closed.Load()
	srv.locker.Unlock()
	if !open || errors.Is(err, net.ErrClosed) {
		srv.logger.Debug("accept stopped", zap.Stringer("addr", ln.Addr()), zap.Error(err))
		return
	}
	srv.loop.scope.Counter("accept_errors").Inc(1)
	srv.loop.CallExceptionHandler(ExceptionContext{
		Message: "accept failed on a socket",
		Err:     err,
	})
	_ = ln.Close()
}

func (srv *Server) stopServing(ln aio.Listener) {
	srv.locker.Lock()
	op := srv.accepts[ln]
	delete(srv.accepts, ln)
	srv.locker.Unlock()
	if op != nil {
		op.Cancel()
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		srv.logger.Debug("close listener failed", zap.Error(err))
	}
}
