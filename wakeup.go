package proactor

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/pkg/aio"
	"go.uber.org/zap"
)

const selfReadSize = 4096

// loopSelfReading keeps one read outstanding on the self pipe. Any outcome
// other than data while the loop is open closes the loop.
func (loop *Loop) loopSelfReading(op *aio.Operation[[]byte]) {
	if op != nil {
		loop.locker.Lock()
		current := loop.selfOp == op
		if current {
			loop.selfOp = nil
		}
		loop.locker.Unlock()
		if !current {
			return
		}
		loop.selfWake.Store(false)
		b, err := op.Result()
		if err == nil && len(b) == 0 {
			err = ErrSelfPipe
		}
		if err != nil {
			loop.selfPipeFailed(err)
			return
		}
		loop.scope.Counter("wakeups").Inc(1)
	}
	if loop.closed.Load() {
		return
	}
	next, err := loop.mux.Recv(loop.selfRead, selfReadSize)
	if err != nil {
		loop.selfPipeFailed(err)
		return
	}
	loop.locker.Lock()
	loop.selfOp = next
	loop.locker.Unlock()
	next.OnComplete(loop.loopSelfReading)
}

func (loop *Loop) selfPipeFailed(err error) {
	if loop.closed.Load() {
		return
	}
	loop.CallExceptionHandler(ExceptionContext{
		Message: "error on reading from the event loop self pipe",
		Err:     errors.New("self pipe failed", errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(err)),
	})
	if closeErr := loop.Close(); closeErr != nil {
		loop.logger.Debug("close loop after self pipe failure", zap.Error(closeErr))
	}
}

// WriteToSelf wakes a loop blocked waiting for completions. It is safe to
// call from any goroutine; at most one wakeup byte is in flight.
func (loop *Loop) WriteToSelf() {
	if loop.closed.Load() || !loop.selfWake.CompareAndSwap(false, true) {
		return
	}
	if _, err := loop.selfWrite.Write([]byte{0}); err != nil {
		loop.selfWake.Store(false)
		loop.logger.Debug("fail to write a null byte into the self pipe", zap.Error(err))
	}
}
