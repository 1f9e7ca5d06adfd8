package proactor

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
	cmap "github.com/orcaman/concurrent-map/v2"
	"go.uber.org/zap"
	"net"
	"sync"
)

// ProtocolFactory builds the protocol for one new connection.
type ProtocolFactory func() transport.Protocol

// Server accepts on one or more listeners and tracks the transports it
// created until their connection is lost.
type Server struct {
	loop       *Loop
	factory    ProtocolFactory
	options    []transport.Option
	logger     *zap.Logger
	locker     sync.Mutex
	listeners  []aio.Listener
	accepts    map[aio.Listener]*aio.Operation[aio.Accepted]
	transports cmap.ConcurrentMap[string, transport.Base]
	serving    bool
	closed     bool
}

func newServer(loop *Loop, listeners []aio.Listener, factory ProtocolFactory, options []transport.Option) *Server {
	return &Server{
		loop:       loop,
		factory:    factory,
		options:    options,
		logger:     loop.logger,
		listeners:  listeners,
		accepts:    make(map[aio.Listener]*aio.Operation[aio.Accepted], len(listeners)),
		transports: cmap.New[transport.Base](),
	}
}

func (srv *Server) Attach(t transport.Base) {
	srv.transports.Set(t.ID(), t)
	srv.loop.scope.Counter("transports").Inc(1)
}

func (srv *Server) Detach(t transport.Base) {
	srv.transports.Remove(t.ID())
}

// Count returns the number of live transports. Safe from any goroutine.
func (srv *Server) Count() int {
	return srv.transports.Count()
}

func (srv *Server) Transports() (v []transport.Base) {
	items := srv.transports.Items()
	v = make([]transport.Base, 0, len(items))
	for _, t := range items {
		v = append(v, t)
	}
	return
}

func (srv *Server) Addrs() (addrs []net.Addr) {
	srv.locker.Lock()
	defer srv.locker.Unlock()
	addrs = make([]net.Addr, 0, len(srv.listeners))
	for _, ln := range srv.listeners {
		addrs = append(addrs, ln.Addr())
	}
	return
}

func (srv *Server) IsServing() bool {
	srv.locker.Lock()
	defer srv.locker.Unlock()
	return srv.serving && !srv.closed
}

// Close stops accepting: pending accepts are canceled and listeners closed.
// Established transports are left alone. Call it on the loop goroutine.
func (srv *Server) Close() (err error) {
	srv.locker.Lock()
	if srv.closed {
		srv.locker.Unlock()
		return
	}
	srv.closed = true
	srv.serving = false
	listeners := srv.listeners
	srv.listeners = nil
	srv.locker.Unlock()
	for _, ln := range listeners {
		srv.stopServing(ln)
	}
	return
}

// CloseTransports aborts every live transport.
func (srv *Server) CloseTransports() {
	for _, t := range srv.Transports() {
		if w, ok := t.(transport.Writer); ok {
			w.Abort()
			continue
		}
		t.Close()
	}
}
