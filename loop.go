// Package proactor is a completion-based event loop. Transports issue
// asynchronous requests to a multiplexer, and every completion, protocol
// callback and scheduled function runs on the goroutine calling Run.
package proactor

import (
	"context"
	"fmt"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/pkg/sys"
	"github.com/brickingsoft/proactor/transport"
	"github.com/eapache/queue"
	"github.com/uber-go/tally"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"net"
	"sync"
	"sync/atomic"
)

type ExceptionContext = transport.ExceptionContext

type ExceptionHandler func(loop *Loop, ctx ExceptionContext)

type Loop struct {
	options   Options
	mux       aio.Multiplexer
	logger    *zap.Logger
	scope     tally.Scope
	locker    sync.Mutex
	ready     *queue.Queue
	wakeCh    chan struct{}
	running   atomic.Bool
	stopping  atomic.Bool
	closed    atomic.Bool
	handler   ExceptionHandler
	selfRead  net.Conn
	selfWrite net.Conn
	selfOp    *aio.Operation[[]byte]
	selfWake  atomic.Bool
}

func New(options ...Option) (loop *Loop, err error) {
	opts := Options{
		ReadSize: transport.DefaultReadSize,
		Logger:   zap.NewNop(),
		Scope:    tally.NoopScope,
	}
	for _, option := range options {
		if err = option(&opts); err != nil {
			return
		}
	}
	mux := opts.Multiplexer
	if mux == nil {
		mux, err = aio.New(
			aio.WithLogger(opts.Logger),
			aio.WithDialTimeout(opts.DialTimeout),
			aio.WithDialKeepAlive(opts.DialKeepAlive),
			aio.WithExecutorOptions(opts.AsRxpOptions()...),
		)
		if err != nil {
			return
		}
	}
	selfRead, selfWrite, pairErr := sys.Socketpair()
	if pairErr != nil {
		err = errors.New(
			"create self pipe failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithWrap(pairErr),
		)
		_ = mux.Close()
		return
	}
	opts.Multiplexer = mux
	loop = &Loop{
		options:   opts,
		mux:       mux,
		logger:    opts.Logger,
		scope:     opts.Scope,
		ready:     queue.New(),
		wakeCh:    make(chan struct{}, 1),
		handler:   opts.ExceptionHandler,
		selfRead:  selfRead,
		selfWrite: selfWrite,
	}
	mux.SetLoop(loop)
	loop.CallSoon(func() {
		loop.loopSelfReading(nil)
	})
	return
}

func (loop *Loop) Multiplexer() aio.Multiplexer {
	return loop.mux
}

func (loop *Loop) Logger() *zap.Logger {
	return loop.logger
}

func (loop *Loop) IsRunning() bool {
	return loop.running.Load()
}

func (loop *Loop) IsClosed() bool {
	return loop.closed.Load()
}

// CallSoon schedules fn to run on the loop, after everything already scheduled.
func (loop *Loop) CallSoon(fn func()) {
	loop.locker.Lock()
	loop.ready.Add(fn)
	loop.locker.Unlock()
	loop.wake()
}

// CallSoonThreadsafe is CallSoon for other goroutines. Multiplexer workers
// post their completions through it.
func (loop *Loop) CallSoonThreadsafe(fn func()) {
	loop.CallSoon(fn)
}

func (loop *Loop) wake() {
	select {
	case loop.wakeCh <- struct{}{}:
	default:
	}
}

// Run runs callbacks until Stop or Close is called or ctx is done.
func (loop *Loop) Run(ctx context.Context) (err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	if !loop.running.CompareAndSwap(false, true) {
		err = ErrLoopRunning
		return
	}
	defer func() {
		loop.stopping.Store(false)
		loop.running.Store(false)
	}()
	for {
		if err = loop.runOnce(ctx); err != nil {
			return
		}
		if loop.stopping.Load() || loop.closed.Load() {
			return
		}
	}
}

// RunOnce waits for work, then runs the callbacks that were ready at that
// moment. Callbacks they schedule run on the next call.
func (loop *Loop) RunOnce(ctx context.Context) (err error) {
	if loop.closed.Load() {
		err = ErrLoopClosed
		return
	}
	if !loop.running.CompareAndSwap(false, true) {
		err = ErrLoopRunning
		return
	}
	defer loop.running.Store(false)
	err = loop.runOnce(ctx)
	return
}

func (loop *Loop) runOnce(ctx context.Context) (err error) {
	n := 0
	for {
		loop.locker.Lock()
		n = loop.ready.Length()
		loop.locker.Unlock()
		if n > 0 || loop.stopping.Load() || loop.closed.Load() {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			return
		case <-loop.wakeCh:
		}
	}
	for i := 0; i < n; i++ {
		loop.locker.Lock()
		if loop.ready.Length() == 0 {
			loop.locker.Unlock()
			break
		}
		fn := loop.ready.Remove().(func())
		loop.locker.Unlock()
		loop.invoke(fn)
	}
	return
}

func (loop *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			loop.CallExceptionHandler(ExceptionContext{
				Message: "callback panicked",
				Err:     panicError(r),
			})
		}
	}()
	fn()
}

// Stop makes Run return after the current iteration.
func (loop *Loop) Stop() {
	loop.stopping.Store(true)
	loop.wake()
}

func (loop *Loop) SetExceptionHandler(handler ExceptionHandler) {
	loop.handler = handler
}

// CallExceptionHandler reports an error no caller can receive. A custom
// handler that panics falls back to the default one.
func (loop *Loop) CallExceptionHandler(ctx ExceptionContext) {
	if loop.handler == nil {
		loop.defaultExceptionHandler(ctx)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			loop.logger.Error("unhandled error in exception handler", zap.Error(panicError(r)))
			loop.defaultExceptionHandler(ctx)
		}
	}()
	loop.handler(loop, ctx)
}

func (loop *Loop) defaultExceptionHandler(ctx ExceptionContext) {
	fields := []zap.Field{zap.Error(ctx.Err)}
	if ctx.Transport != nil {
		fields = append(fields, zap.String("transport", ctx.Transport.ID()))
	}
	loop.logger.Error(ctx.Message, fields...)
}

// Close stops the loop, releases the self pipe and closes the multiplexer.
// Pending callbacks are dropped. Handles owned by transports stay open.
func (loop *Loop) Close() (err error) {
	if !loop.closed.CompareAndSwap(false, true) {
		return
	}
	loop.Stop()
	loop.locker.Lock()
	op := loop.selfOp
	loop.selfOp = nil
	loop.locker.Unlock()
	if op != nil {
		op.Cancel()
	}
	err = multierr.Append(err, loop.selfRead.Close())
	err = multierr.Append(err, loop.selfWrite.Close())
	err = multierr.Append(err, loop.mux.Close())
	loop.locker.Lock()
	loop.ready = queue.New()
	loop.locker.Unlock()
	if err != nil {
		loop.logger.Debug("close loop", zap.Error(err))
	}
	return
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
