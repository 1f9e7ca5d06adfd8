package transport

import (
	"fmt"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/pkg/sys"
	"github.com/google/uuid"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

type eofMode int

const (
	// eofHalfClose shuts down the send direction of a socket.
	eofHalfClose eofMode = iota
	// eofClose closes a write-only pipe outright.
	eofClose
	eofUnsupported
)

// conn is the one transport type. Read and write behavior live in separate
// halves; a variant is a conn with one or both of them set.
type conn struct {
	id       string
	loop     Loop
	mux      aio.Multiplexer
	handle   aio.Handle
	protocol capabilities
	server   Server
	extra    map[string]any
	logger   *zap.Logger
	scope    tally.Scope

	closing              bool
	connLost             int
	lostScheduled        bool
	calledConnectionLost bool

	reader *readHalf
	writer *writeHalf
	hangup *opSlot[[]byte]

	// self is what protocols, servers and exception contexts see.
	self Base
}

func newConn(loop Loop, handle aio.Handle, protocol Protocol, opts Options) *conn {
	id := uuid.NewString()
	c := &conn{
		id:     id,
		loop:   loop,
		mux:    loop.Multiplexer(),
		handle: handle,
		server: opts.Server,
		extra:  make(map[string]any, len(opts.Extra)+3),
		logger: opts.Logger.With(zap.String("transport", id)),
		scope:  opts.Scope,
	}
	for k, v := range opts.Extra {
		c.extra[k] = v
	}
	c.self = c
	c.SetProtocol(protocol)
	return c
}

// start announces the transport. Everything it schedules runs in order:
// ConnectionMade, the waiter, then the first read.
func (c *conn) start(waiter func()) {
	if c.server != nil {
		c.server.Attach(c.self)
	}
	c.loop.CallSoon(func() {
		c.protocol.data.ConnectionMade(c.self)
	})
	if waiter != nil {
		c.loop.CallSoon(waiter)
	}
	if c.reader != nil {
		c.loop.CallSoon(func() {
			c.loopReading(nil)
		})
	}
}

func (c *conn) ID() string {
	return c.id
}

func (c *conn) String() string {
	state := "open"
	if c.calledConnectionLost {
		state = "closed"
	} else if c.closing {
		state = "closing"
	}
	return fmt.Sprintf("transport(%s, %s)", c.id, state)
}

func (c *conn) ExtraInfo(name string) (v any, ok bool) {
	v, ok = c.extra[name]
	return
}

func (c *conn) Protocol() Protocol {
	return c.protocol.data
}

func (c *conn) SetProtocol(p Protocol) {
	c.protocol = capabilitiesOf(p)
}

func (c *conn) IsClosing() bool {
	return c.closing
}

// Close lets buffered data drain, then delivers ConnectionLost(nil).
// The outstanding read is canceled, an outstanding write is not.
func (c *conn) Close() {
	if c.closing {
		return
	}
	c.closing = true
	c.connLost++
	if c.writer == nil || c.writer.idle() {
		c.scheduleConnectionLost(nil)
	}
	if c.reader != nil {
		c.reader.slot.cancel()
		c.reader.slot.close()
	}
	c.stopHangupWatch()
}

// Abort closes the transport immediately. Buffered data is lost.
func (c *conn) Abort() {
	c.forceClose(nil)
}

func (c *conn) forceClose(err error) {
	if c.lostScheduled {
		return
	}
	c.closing = true
	c.connLost++
	if w := c.writer; w != nil {
		w.slot.cancel()
		w.slot.close()
		w.drop()
	}
	if c.reader != nil {
		c.reader.slot.cancel()
		c.reader.slot.close()
	}
	c.stopHangupWatch()
	c.scheduleConnectionLost(err)
}

func (c *conn) fatalError(err error, message string) {
	c.logger.Error(message, zap.Error(err))
	c.forceClose(err)
}

func (c *conn) scheduleConnectionLost(err error) {
	if c.lostScheduled {
		return
	}
	c.lostScheduled = true
	c.loop.CallSoon(func() {
		c.callConnectionLost(err)
	})
}

func (c *conn) callConnectionLost(err error) {
	if c.calledConnectionLost {
		return
	}
	defer func() {
		c.calledConnectionLost = true
		c.release()
	}()
	c.scope.Counter("connections_lost").Inc(1)
	c.protocol.data.ConnectionLost(err)
}

// release shuts the handle down, closes it and detaches from the server.
func (c *conn) release() {
	if c.handle != nil {
		if err := sys.Shutdown(c.handle, sys.ShutRDWR); err != nil && !sys.IsUnsupported(err) {
			c.logger.Debug("shutdown failed", zap.Error(err))
		}
		if err := c.handle.Close(); err != nil {
			c.logger.Debug("close handle failed", zap.Error(err))
		}
		c.handle = nil
	}
	if c.server != nil {
		c.server.Detach(c.self)
		c.server = nil
	}
}

// protect runs a protocol callback whose panics must not unwind into the
// transport bookkeeping.
func (c *conn) protect(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.loop.CallExceptionHandler(ExceptionContext{
				Message:   fmt.Sprintf("protocol.%s() failed", name),
				Err:       panicError(r),
				Transport: c.self,
			})
		}
	}()
	fn()
}

func panicError(r any) (err error) {
	switch e := r.(type) {
	case error:
		err = e
	case string:
		err = errors.New(e)
	default:
		err = errors.New(fmt.Sprintf("%+v", r))
	}
	return
}
