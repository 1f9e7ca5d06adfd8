package aio

import (
	"fmt"
	"io"
	"sync/atomic"
)

type Status int64

const (
	PendingStatus Status = iota
	SucceededStatus
	FailedStatus
	CanceledStatus
)

func (s Status) String() string {
	switch s {
	case PendingStatus:
		return "pending"
	case SucceededStatus:
		return "succeeded"
	case FailedStatus:
		return "failed"
	case CanceledStatus:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", int64(s))
	}
}

// Scheduler runs callbacks on the loop goroutine.
type Scheduler interface {
	CallSoonThreadsafe(fn func())
}

// Operation is one in-flight asynchronous request.
//
// The promise side (Succeed, Fail) may be called from any goroutine, exactly
// one of Succeed, Fail or Cancel wins. OnComplete, Cancel and Result belong
// to the loop goroutine; the completion callback always runs there.
type Operation[T any] struct {
	kind      string
	status    atomic.Int64
	value     T
	err       error
	scheduler Scheduler
	abort     func()
	callback  func(op *Operation[T])
	fired     bool
}

func NewOperation[T any](kind string, scheduler Scheduler) *Operation[T] {
	return &Operation[T]{
		kind:      kind,
		scheduler: scheduler,
	}
}

// WithAbort sets the function used to interrupt the underlying request on Cancel.
func (op *Operation[T]) WithAbort(abort func()) *Operation[T] {
	op.abort = abort
	return op
}

func (op *Operation[T]) Kind() string {
	return op.kind
}

func (op *Operation[T]) Status() Status {
	return Status(op.status.Load())
}

func (op *Operation[T]) Done() bool {
	return op.Status() != PendingStatus
}

func (op *Operation[T]) Canceled() bool {
	return op.Status() == CanceledStatus
}

// Result returns the value or the terminal condition. ErrCanceled is returned
// for a canceled operation and ErrNotCompleted while it is still pending.
func (op *Operation[T]) Result() (v T, err error) {
	switch op.Status() {
	case SucceededStatus:
		v = op.value
	case FailedStatus:
		err = op.err
	case CanceledStatus:
		err = ErrCanceled
	default:
		err = ErrNotCompleted
	}
	return
}

// OnComplete attaches the single completion callback. If the operation has
// already been delivered, the callback is scheduled on the next loop iteration.
func (op *Operation[T]) OnComplete(cb func(op *Operation[T])) {
	if op.callback != nil {
		panic("aio: operation already has a completion callback")
	}
	op.callback = cb
	if op.fired {
		op.scheduler.CallSoonThreadsafe(op.fire)
	}
}

func (op *Operation[T]) Cancel() (ok bool) {
	if ok = op.status.CompareAndSwap(int64(PendingStatus), int64(CanceledStatus)); !ok {
		return
	}
	if op.abort != nil {
		op.abort()
	}
	op.scheduler.CallSoonThreadsafe(op.fire)
	return
}

func (op *Operation[T]) Succeed(v T) {
	op.value = v
	if op.status.CompareAndSwap(int64(PendingStatus), int64(SucceededStatus)) {
		op.scheduler.CallSoonThreadsafe(op.fire)
		return
	}
	discard(v)
}

func (op *Operation[T]) Fail(err error) {
	op.err = err
	if op.status.CompareAndSwap(int64(PendingStatus), int64(FailedStatus)) {
		op.scheduler.CallSoonThreadsafe(op.fire)
	}
}

func (op *Operation[T]) fire() {
	if op.callback == nil {
		op.fired = true
		return
	}
	cb := op.callback
	op.callback = nil
	op.fired = true
	cb(op)
}

// discard releases a result that lost the race against Cancel.
func discard(v any) {
	if closer, ok := v.(io.Closer); ok {
		_ = closer.Close()
	}
}
