package transport

import (
	"github.com/brickingsoft/proactor/pkg/aio"
)

type slotState int

const (
	slotIdle slotState = iota
	slotOutstanding
	slotClosed
)

// opSlot holds the single operation a direction may have in flight.
type opSlot[T any] struct {
	state slotState
	op    *aio.Operation[T]
}

func (s *opSlot[T]) outstanding() bool {
	return s.state == slotOutstanding
}

func (s *opSlot[T]) current() *aio.Operation[T] {
	return s.op
}

func (s *opSlot[T]) issue(op *aio.Operation[T]) (err error) {
	switch s.state {
	case slotOutstanding:
		err = ErrOperationOutstanding
	case slotClosed:
		err = ErrClosed
	default:
		s.state = slotOutstanding
		s.op = op
	}
	return
}

// complete releases the slot if op is the one it holds. A completion for
// any other operation is stale and must be ignored by the caller.
func (s *opSlot[T]) complete(op *aio.Operation[T]) bool {
	if s.state != slotOutstanding || s.op != op {
		return false
	}
	s.state = slotIdle
	s.op = nil
	return true
}

func (s *opSlot[T]) cancel() {
	if s.state == slotOutstanding && s.op != nil {
		s.op.Cancel()
	}
}

func (s *opSlot[T]) close() {
	s.state = slotClosed
}

func (s *opSlot[T]) closed() bool {
	return s.state == slotClosed
}
