package transport

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"go.uber.org/zap"
	"syscall"
)

const hangupProbeSize = 16

func newWriteHalf(mode eofMode) *writeHalf {
	high, low, _ := resolveLimits(nil)
	return &writeHalf{
		eof:  mode,
		high: high,
		low:  low,
	}
}

// NewSocket
// wraps a connected socket. Reads start on the next loop iteration and
// WriteEOF shuts down the send direction.
func NewSocket(loop Loop, handle aio.Handle, protocol Protocol, options ...Option) Transport {
	opts := newOptions(options)
	c := newConn(loop, handle, protocol, opts)
	c.reader = &readHalf{size: opts.ReadSize}
	c.writer = newWriteHalf(eofHalfClose)
	c.extra[ExtraSocket] = handle
	if ep, ok := handle.(aio.Endpoint); ok {
		captureEndpoints(c.extra, ep)
	}
	c.start(opts.Waiter)
	return c
}

// captureEndpoints records local and remote addresses. A peer name given
// by the caller is kept.
func captureEndpoints(extra map[string]any, ep aio.Endpoint) {
	defer func() {
		_ = recover()
	}()
	if addr := ep.LocalAddr(); addr != nil {
		extra[ExtraSockName] = addr
	}
	if _, has := extra[ExtraPeerName]; has {
		return
	}
	if addr := ep.RemoteAddr(); addr != nil {
		extra[ExtraPeerName] = addr
	}
}

// NewDuplexPipe
// wraps a bidirectional pipe. It has no half close.
func NewDuplexPipe(loop Loop, handle aio.Handle, protocol Protocol, options ...Option) Transport {
	opts := newOptions(options)
	c := newConn(loop, handle, protocol, opts)
	c.reader = &readHalf{size: opts.ReadSize}
	c.writer = newWriteHalf(eofUnsupported)
	c.extra[ExtraPipe] = handle
	c.start(opts.Waiter)
	return c
}

func NewReadPipe(loop Loop, handle aio.Handle, protocol Protocol, options ...Option) Reader {
	opts := newOptions(options)
	c := newConn(loop, handle, protocol, opts)
	c.reader = &readHalf{size: opts.ReadSize}
	c.extra[ExtraPipe] = handle
	r := &readPipe{c: c}
	c.self = r
	c.start(opts.Waiter)
	return r
}

// NewWritePipe
// wraps the write end of a pipe. WriteEOF closes it. With WithHangupCheck
// the handle is also read to notice the other end going away.
func NewWritePipe(loop Loop, handle aio.Handle, protocol Protocol, options ...Option) Writer {
	opts := newOptions(options)
	c := newConn(loop, handle, protocol, opts)
	c.writer = newWriteHalf(eofClose)
	c.extra[ExtraPipe] = handle
	w := &writePipe{c: c}
	c.self = w
	c.start(opts.Waiter)
	if opts.HangupCheck {
		c.watchHangup()
	}
	return w
}

// readPipe exposes only the read side of a conn, so a type assertion on
// it reports what the pipe can actually do.
type readPipe struct {
	c *conn
}

func (r *readPipe) ID() string { return r.c.ID() }
func (r *readPipe) String() string { return r.c.String() }
func (r *readPipe) Close() { r.c.Close() }
func (r *readPipe) IsClosing() bool { return r.c.IsClosing() }
func (r *readPipe) ExtraInfo(name string) (v any, ok bool) { return r.c.ExtraInfo(name) }
func (r *readPipe) Protocol() Protocol { return r.c.Protocol() }
func (r *readPipe) SetProtocol(p Protocol) { r.c.SetProtocol(p) }
func (r *readPipe) PauseReading() error { return r.c.PauseReading() }
func (r *readPipe) ResumeReading() error { return r.c.ResumeReading() }
func (r *readPipe) IsReading() bool { return r.c.IsReading() }

// writePipe exposes only the write side of a conn.
type writePipe struct {
	c *conn
}

func (w *writePipe) ID() string { return w.c.ID() }
func (w *writePipe) String() string { return w.c.String() }
func (w *writePipe) Close() { w.c.Close() }
func (w *writePipe) IsClosing() bool { return w.c.IsClosing() }
func (w *writePipe) ExtraInfo(name string) (v any, ok bool) { return w.c.ExtraInfo(name) }
func (w *writePipe) Protocol() Protocol { return w.c.Protocol() }
func (w *writePipe) SetProtocol(p Protocol) { w.c.SetProtocol(p) }
func (w *writePipe) Write(b []byte) error { return w.c.Write(b) }
func (w *writePipe) WriteBuffers(bufs ...[]byte) error { return w.c.WriteBuffers(bufs...) }
func (w *writePipe) WriteEOF() error { return w.c.WriteEOF() }
func (w *writePipe) CanWriteEOF() bool { return w.c.CanWriteEOF() }
func (w *writePipe) Abort() { w.c.Abort() }
func (w *writePipe) GetWriteBufferSize() int { return w.c.GetWriteBufferSize() }

func (w *writePipe) SetWriteBufferLimits(options ...LimitOption) error {
	return w.c.SetWriteBufferLimits(options...)
}

func (w *writePipe) GetWriteBufferLimits() (low int, high int) {
	return w.c.GetWriteBufferLimits()
}

func (c *conn) watchHangup() {
	op, err := c.mux.Recv(c.handle, hangupProbeSize)
	if err != nil {
		c.logger.Debug("hangup check unavailable", zap.Error(err))
		return
	}
	c.hangup = &opSlot[[]byte]{}
	_ = c.hangup.issue(op)
	op.OnComplete(c.pipeClosed)
}

func (c *conn) stopHangupWatch() {
	if c.hangup != nil {
		c.hangup.cancel()
		c.hangup.close()
	}
}

// pipeClosed fires when the probe read ends. Only end of stream or a reset
// mean the reader went away.
func (c *conn) pipeClosed(op *aio.Operation[[]byte]) {
	if op.Canceled() || c.closing {
		return
	}
	if !c.hangup.complete(op) {
		return
	}
	data, err := op.Result()
	if (err != nil && !IsPeerReset(err)) || len(data) > 0 {
		c.logger.Debug("hangup check stopped", zap.Int("bytes", len(data)), zap.Error(err))
		return
	}
	if c.writer.slot.outstanding() {
		c.forceClose(syscall.EPIPE)
		return
	}
	c.Close()
}
