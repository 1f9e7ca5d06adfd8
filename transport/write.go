package transport

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/pkg/sys"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
)

const (
	// dropped writes are logged at the threshold, then once per interval.
	logThresholdForDroppedWrites = 5
	droppedWritesLogInterval     = 64
)

// writeHalf is IDLE with an idle slot, WRITING with an outstanding write and
// no buffer, BACKED_UP with an outstanding write and a buffer.
type writeHalf struct {
	slot           opSlot[int]
	buffer         *bytebufferpool.ByteBuffer
	inflight       *bytebufferpool.ByteBuffer
	inflightLen    int
	eof            eofMode
	eofWritten     bool
	protocolPaused bool
	high           int
	low            int
	dropped        int
}

func (w *writeHalf) idle() bool {
	return !w.slot.outstanding() && w.buffered() == 0
}

func (w *writeHalf) buffered() int {
	if w.buffer == nil {
		return 0
	}
	return w.buffer.Len()
}

// backlog is what the watermarks are checked against: buffered bytes plus
// the bytes handed to the in-flight write.
func (w *writeHalf) backlog() int {
	return w.buffered() + w.inflightLen
}

// drop forgets all unsent data. The in-flight buffer may still be read by
// the multiplexer, so it is not returned to the pool.
func (w *writeHalf) drop() {
	if w.buffer != nil {
		bytebufferpool.Put(w.buffer)
		w.buffer = nil
	}
	w.inflight = nil
	w.inflightLen = 0
}

func (c *conn) Write(b []byte) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	c.write(b, false)
	return nil
}

// WriteBuffers writes bufs in order as if they were one Write.
func (c *conn) WriteBuffers(bufs ...[]byte) error {
	if err := c.checkWrite(); err != nil {
		return err
	}
	n := 0
	for _, b := range bufs {
		n += len(b)
	}
	if n == 0 {
		return nil
	}
	data := make([]byte, 0, n)
	for _, b := range bufs {
		data = append(data, b...)
	}
	c.write(data, true)
	return nil
}

func (c *conn) checkWrite() error {
	if c.writer == nil {
		return notSupported("write", c.id)
	}
	if c.writer.eofWritten {
		return invalidState("write", c.id, "write after WriteEOF")
	}
	return nil
}

// write copies b unless owned is set, the caller may reuse b once it returns.
func (c *conn) write(b []byte, owned bool) {
	w := c.writer
	if c.connLost > 0 {
		c.dropWrite(len(b))
		return
	}
	switch {
	case !w.slot.outstanding():
		data := b
		if !owned {
			data = make([]byte, len(b))
			copy(data, b)
		}
		c.loopWriting(nil, data)
	case w.buffer == nil:
		w.buffer = bytebufferpool.Get()
		_, _ = w.buffer.Write(b)
		c.maybePauseProtocol()
	default:
		_, _ = w.buffer.Write(b)
		c.maybePauseProtocol()
	}
}

func (c *conn) dropWrite(n int) {
	w := c.writer
	c.connLost++
	w.dropped++
	c.scope.Counter("writes_dropped").Inc(1)
	if w.dropped == logThresholdForDroppedWrites ||
		(w.dropped > logThresholdForDroppedWrites && (w.dropped-logThresholdForDroppedWrites)%droppedWritesLogInterval == 0) {
		c.logger.Warn("write after connection lost", zap.Int("bytes", n), zap.Int("dropped", w.dropped))
	}
}

// loopWriting consumes the completion of op, if any, and sends data or,
// when data is nil, whatever has been buffered meanwhile.
func (c *conn) loopWriting(op *aio.Operation[int], data []byte) {
	w := c.writer
	if op != nil {
		if !w.slot.complete(op) {
			return
		}
		inflight := w.inflight
		w.inflight, w.inflightLen = nil, 0
		if _, err := op.Result(); err != nil {
			if inflight != nil && !op.Canceled() {
				bytebufferpool.Put(inflight)
			}
			c.writeFailed(err)
			return
		}
		if inflight != nil {
			bytebufferpool.Put(inflight)
		}
	}
	if data == nil && w.buffer != nil {
		w.inflight, w.buffer = w.buffer, nil
		data = w.inflight.B
	}

	if len(data) == 0 {
		if c.closing {
			c.scheduleConnectionLost(nil)
		}
		if w.eofWritten {
			if err := c.closeWrite(); err != nil {
				c.writeFailed(err)
				return
			}
		}
	} else {
		next, err := c.mux.Send(c.handle, data)
		if err != nil {
			c.fatalError(err, "fatal write error")
			return
		}
		if err = w.slot.issue(next); err != nil {
			next.Cancel()
			c.fatalError(err, "fatal write error")
			return
		}
		w.inflightLen = len(data)
		next.OnComplete(func(op *aio.Operation[int]) {
			c.loopWriting(op, nil)
		})
		c.maybePauseProtocol()
	}
	// last: resuming may write again and pause again
	c.maybeResumeProtocol()
}

func (c *conn) writeFailed(err error) {
	switch {
	case aio.IsCanceled(err):
		if c.closing {
			return
		}
		c.loop.CallExceptionHandler(ExceptionContext{
			Message:   "write canceled while transport is open",
			Err:       unexpectedCancellation("write", c.id),
			Transport: c.self,
		})
	case IsPeerReset(err):
		c.forceClose(err)
	default:
		c.fatalError(err, "fatal write error")
	}
}

func (c *conn) closeWrite() (err error) {
	if err = sys.CloseWrite(c.handle); err != nil && sys.IsUnsupported(err) {
		c.logger.Debug("half close is not available on handle")
		err = nil
	}
	return
}

func (c *conn) CanWriteEOF() bool {
	return c.writer != nil && c.writer.eof != eofUnsupported
}

func (c *conn) WriteEOF() error {
	w := c.writer
	if w == nil || w.eof == eofUnsupported {
		return notSupported("write eof", c.id)
	}
	if w.eof == eofClose {
		c.Close()
		return nil
	}
	if c.closing || w.eofWritten {
		return nil
	}
	w.eofWritten = true
	if !w.slot.outstanding() {
		return c.closeWrite()
	}
	return nil
}

func (c *conn) SetWriteBufferLimits(options ...LimitOption) error {
	if c.writer == nil {
		return notSupported("set write buffer limits", c.id)
	}
	high, low, err := resolveLimits(options)
	if err != nil {
		return err
	}
	c.writer.high, c.writer.low = high, low
	c.maybePauseProtocol()
	return nil
}

func (c *conn) GetWriteBufferLimits() (low int, high int) {
	if c.writer == nil {
		return
	}
	low, high = c.writer.low, c.writer.high
	return
}

// GetWriteBufferSize returns the bytes buffered but not yet handed to a write.
func (c *conn) GetWriteBufferSize() int {
	if c.writer == nil {
		return 0
	}
	return c.writer.buffered()
}

func (c *conn) maybePauseProtocol() {
	w := c.writer
	if w.backlog() <= w.high || w.protocolPaused {
		return
	}
	w.protocolPaused = true
	if c.protocol.flow != nil {
		c.protect("PauseWriting", c.protocol.flow.PauseWriting)
	}
}

func (c *conn) maybeResumeProtocol() {
	w := c.writer
	if !w.protocolPaused || w.backlog() > w.low {
		return
	}
	w.protocolPaused = false
	if c.protocol.flow != nil {
		c.protect("ResumeWriting", c.protocol.flow.ResumeWriting)
	}
}
