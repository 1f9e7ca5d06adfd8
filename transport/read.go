package transport

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"go.uber.org/zap"
)

type readHalf struct {
	slot               opSlot[[]byte]
	size               int
	paused             bool
	rescheduleOnResume bool
}

func (c *conn) PauseReading() error {
	if c.reader == nil {
		return notSupported("pause reading", c.id)
	}
	if c.closing {
		return invalidState("pause reading", c.id, "transport is closing")
	}
	if c.reader.paused {
		return invalidState("pause reading", c.id, "already paused")
	}
	c.reader.paused = true
	return nil
}

func (c *conn) ResumeReading() error {
	r := c.reader
	if r == nil {
		return notSupported("resume reading", c.id)
	}
	if !r.paused {
		return invalidState("resume reading", c.id, "not paused")
	}
	r.paused = false
	if c.closing {
		return nil
	}
	if r.rescheduleOnResume {
		r.rescheduleOnResume = false
		op := r.slot.current()
		c.loop.CallSoon(func() {
			c.loopReading(op)
		})
	}
	return nil
}

func (c *conn) IsReading() bool {
	return c.reader != nil && !c.reader.paused && !c.closing
}

// loopReading consumes the completion of op (nil on the first step) and
// issues the next read. Whatever was received is handed to the protocol
// after the next read is in flight.
func (c *conn) loopReading(op *aio.Operation[[]byte]) {
	r := c.reader
	if r.paused {
		r.rescheduleOnResume = true
		return
	}
	var (
		data     []byte
		received bool
	)
	defer func() {
		if received {
			c.dataReceived(data)
		}
	}()

	if op != nil {
		// after close the last read still reports, so errors can be routed
		if !r.slot.complete(op) && !r.slot.closed() {
			return
		}
		v, err := op.Result()
		if err != nil {
			c.readFailed(err)
			return
		}
		data, received = v, true
	}
	if c.closing {
		data, received = nil, false
		return
	}
	if received && len(data) == 0 {
		return
	}

	next, err := c.mux.Recv(c.handle, r.size)
	if err != nil {
		c.fatalError(err, "fatal read error")
		return
	}
	if err = r.slot.issue(next); err != nil {
		next.Cancel()
		c.fatalError(err, "fatal read error")
		return
	}
	next.OnComplete(c.loopReading)
}

func (c *conn) readFailed(err error) {
	switch {
	case aio.IsCanceled(err):
		if c.closing {
			return
		}
		c.loop.CallExceptionHandler(ExceptionContext{
			Message:   "read canceled while transport is open",
			Err:       unexpectedCancellation("read", c.id),
			Transport: c.self,
		})
	case IsPeerAborted(err):
		if !c.closing {
			c.fatalError(err, "fatal read error")
		} else {
			c.logger.Debug("read error while closing", zap.Error(err))
		}
	case IsPeerReset(err):
		c.forceClose(err)
	default:
		c.fatalError(err, "fatal read error")
	}
}

func (c *conn) dataReceived(data []byte) {
	if len(data) > 0 {
		if c.protocol.recv != nil {
			c.protocol.recv.DataReceived(data)
		}
		return
	}
	keepOpen := false
	if c.protocol.eof != nil {
		keepOpen = c.protocol.eof.EOFReceived()
	}
	if !keepOpen {
		c.Close()
	}
}
