package aio

import (
	"context"
	"fmt"
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/rxp"
	"go.uber.org/zap"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

const (
	opKindRecv    = "recv"
	opKindSend    = "send"
	opKindAccept  = "accept"
	opKindConnect = "connect"
)

// Proactor is a Multiplexer that parks each blocking request on an rxp
// executor goroutine and posts the completion back to the bound loop.
// Cancel interrupts the parked request through handle deadlines or, for
// connects, through the dial context.
type Proactor struct {
	executors rxp.Executors
	dialer    *net.Dialer
	logger    *zap.Logger
	locker    sync.RWMutex
	scheduler Scheduler
	deadlines *deadlines
	closed    atomic.Bool
}

func New(options ...Option) (p *Proactor, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = errors.New(
				fmt.Sprintf("create executors failed: %+v", r),
				errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			)
		}
	}()
	opts := Options{
		Logger: zap.NewNop(),
	}
	for _, option := range options {
		option(&opts)
	}
	execOptions := make([]rxp.Option, 0, 2+len(opts.ExecutorOptions))
	if opts.MaxGoroutines > 0 {
		execOptions = append(execOptions, rxp.MaxGoroutines(opts.MaxGoroutines))
	}
	if opts.CloseTimeout > 0 {
		execOptions = append(execOptions, rxp.WithCloseTimeout(opts.CloseTimeout))
	}
	execOptions = append(execOptions, opts.ExecutorOptions...)
	p = &Proactor{
		executors: rxp.New(execOptions...),
		dialer: &net.Dialer{
			Timeout:   opts.DialTimeout,
			KeepAlive: opts.DialKeepAlive,
		},
		logger:    opts.Logger,
		deadlines: newDeadlines(),
	}
	return
}

func (p *Proactor) SetLoop(s Scheduler) {
	p.locker.Lock()
	p.scheduler = s
	p.locker.Unlock()
}

func (p *Proactor) loop() (s Scheduler, err error) {
	if p.closed.Load() {
		err = ErrClosed
		return
	}
	p.locker.RLock()
	s = p.scheduler
	p.locker.RUnlock()
	if s == nil {
		err = errors.New("loop is not bound", errors.WithMeta(errMetaPkgKey, errMetaPkgVal))
	}
	return
}

func (p *Proactor) execute(op string, task func()) (err error) {
	if execErr := p.executors.Execute(context.Background(), task); execErr != nil {
		err = errors.New(
			"execute failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, op),
			errors.WithWrap(ErrBusy),
		)
		p.logger.Debug("aio: executors rejected task", zap.String("op", op), zap.Error(execErr))
	}
	return
}

func (p *Proactor) Recv(h Handle, n int) (op *Operation[[]byte], err error) {
	if h == nil {
		err = ErrNilHandle
		return
	}
	if n < 1 {
		err = errors.New("receive failed", errors.WithMeta(errMetaOpKey, errMetaOpRecv), errors.WithWrap(ErrEmptyBytes))
		return
	} else if n > MaxRW {
		n = MaxRW
	}
	s, sErr := p.loop()
	if sErr != nil {
		err = sErr
		return
	}
	it := p.deadlines.interrupter(h, readDeadline)
	op = NewOperation[[]byte](opKindRecv, s).WithAbort(it.abort())
	task := func() {
		defer it.settle()
		b := make([]byte, n)
		for {
			rn, rErr := h.Read(b)
			if rn == 0 && it.retry(rErr) {
				time.Sleep(time.Millisecond)
				continue
			}
			if rn > 0 {
				op.Succeed(b[:rn])
				return
			}
			if rErr == io.EOF {
				op.Succeed(b[:0])
				return
			}
			if rErr != nil {
				op.Fail(rErr)
				return
			}
			if op.Done() {
				return
			}
		}
	}
	if err = p.execute(errMetaOpRecv, task); err != nil {
		op = nil
	}
	return
}

func (p *Proactor) Send(h Handle, b []byte) (op *Operation[int], err error) {
	if h == nil {
		err = ErrNilHandle
		return
	}
	if len(b) == 0 {
		err = errors.New("send failed", errors.WithMeta(errMetaOpKey, errMetaOpSend), errors.WithWrap(ErrEmptyBytes))
		return
	}
	s, sErr := p.loop()
	if sErr != nil {
		err = sErr
		return
	}
	it := p.deadlines.interrupter(h, writeDeadline)
	op = NewOperation[int](opKindSend, s).WithAbort(it.abort())
	task := func() {
		defer it.settle()
		sent := 0
		for {
			wn, wErr := h.Write(b[sent:])
			sent += wn
			if wErr != nil && it.retry(wErr) {
				time.Sleep(time.Millisecond)
				continue
			}
			if wErr != nil {
				op.Fail(wErr)
				return
			}
			op.Succeed(sent)
			return
		}
	}
	if err = p.execute(errMetaOpSend, task); err != nil {
		op = nil
	}
	return
}

func (p *Proactor) Accept(ln Listener) (op *Operation[Accepted], err error) {
	if ln == nil {
		err = ErrNilHandle
		return
	}
	s, sErr := p.loop()
	if sErr != nil {
		err = sErr
		return
	}
	it := p.deadlines.interrupter(ln, anyDeadline)
	op = NewOperation[Accepted](opKindAccept, s).WithAbort(it.abort())
	task := func() {
		defer it.settle()
		conn, acceptErr := ln.Accept()
		for acceptErr != nil && it.retry(acceptErr) {
			time.Sleep(time.Millisecond)
			conn, acceptErr = ln.Accept()
		}
		if acceptErr != nil {
			op.Fail(acceptErr)
			return
		}
		op.Succeed(Accepted{
			Handle: conn,
			Addr:   conn.RemoteAddr(),
		})
	}
	if err = p.execute(errMetaOpAccept, task); err != nil {
		op = nil
	}
	return
}

func (p *Proactor) Connect(network string, address string) (op *Operation[Handle], err error) {
	s, sErr := p.loop()
	if sErr != nil {
		err = sErr
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	op = NewOperation[Handle](opKindConnect, s).WithAbort(cancel)
	task := func() {
		defer cancel()
		conn, dialErr := p.dialer.DialContext(ctx, network, address)
		if dialErr != nil {
			op.Fail(dialErr)
			return
		}
		op.Succeed(conn)
	}
	if err = p.execute(errMetaOpConnect, task); err != nil {
		cancel()
		op = nil
	}
	return
}

// Close stops accepting requests. Requests already parked in the OS are
// released by closing their handles, which the transports own.
func (p *Proactor) Close() (err error) {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	if closeErr := p.executors.Close(); closeErr != nil {
		err = errors.New(
			"close failed",
			errors.WithMeta(errMetaPkgKey, errMetaPkgVal),
			errors.WithMeta(errMetaOpKey, errMetaOpClose),
			errors.WithWrap(closeErr),
		)
	}
	return
}
