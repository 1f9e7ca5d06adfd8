package aio

import (
	"github.com/brickingsoft/errors"
	"os"
	"reflect"
	"sync"
	"time"
)

// aLongTimeAgo is a deadline in the past that unblocks pending I/O immediately.
var aLongTimeAgo = time.Unix(1, 0)

type deadlineKind int

const (
	readDeadline deadlineKind = iota
	writeDeadline
	anyDeadline
)

type deadlineKey struct {
	h    any
	kind deadlineKind
}

// deadlines counts, per handle and direction, the canceled requests whose
// past deadline is still in place. The deadline is cleared when the last of
// them has returned, so the handle stays usable after a cancel.
type deadlines struct {
	locker      sync.Mutex
	interrupted map[deadlineKey]int
}

func newDeadlines() *deadlines {
	return &deadlines{
		interrupted: make(map[deadlineKey]int),
	}
}

// interrupter is the deadline state of a single request. A nil interrupter
// means the handle cannot be interrupted.
type interrupter struct {
	d        *deadlines
	key      deadlineKey
	set      func(t time.Time) error
	tracked  bool
	applied  bool
	returned bool
}

func (d *deadlines) interrupter(h any, kind deadlineKind) (i *interrupter) {
	var set func(t time.Time) error
	switch kind {
	case readDeadline:
		if rd, ok := h.(ReadDeadliner); ok {
			set = rd.SetReadDeadline
		}
	case writeDeadline:
		if wd, ok := h.(WriteDeadliner); ok {
			set = wd.SetWriteDeadline
		}
	default:
		if dl, ok := h.(Deadliner); ok {
			set = dl.SetDeadline
		}
	}
	if set == nil {
		return
	}
	i = &interrupter{
		d:       d,
		key:     deadlineKey{h: h, kind: kind},
		set:     set,
		tracked: reflect.TypeOf(h).Comparable(),
	}
	return
}

// abort is the Operation abort hook.
func (i *interrupter) abort() func() {
	if i == nil {
		return nil
	}
	return i.interrupt
}

func (i *interrupter) interrupt() {
	i.d.locker.Lock()
	defer i.d.locker.Unlock()
	if i.returned {
		return
	}
	i.applied = true
	if i.tracked {
		i.d.interrupted[i.key]++
	}
	_ = i.set(aLongTimeAgo)
}

// retry reports whether err is a deadline left by another canceled request
// on the same handle. The blocking call should then be made again.
func (i *interrupter) retry(err error) bool {
	if i == nil || !i.tracked || !errors.Is(err, os.ErrDeadlineExceeded) {
		return false
	}
	i.d.locker.Lock()
	defer i.d.locker.Unlock()
	if i.applied {
		return false
	}
	if i.d.interrupted[i.key] == 0 {
		_ = i.set(time.Time{})
	}
	return true
}

// settle marks the request returned and clears its deadline.
func (i *interrupter) settle() {
	if i == nil {
		return
	}
	i.d.locker.Lock()
	defer i.d.locker.Unlock()
	i.returned = true
	if !i.applied {
		return
	}
	i.applied = false
	if i.tracked {
		if n := i.d.interrupted[i.key]; n > 1 {
			i.d.interrupted[i.key] = n - 1
			return
		}
		delete(i.d.interrupted, i.key)
	}
	_ = i.set(time.Time{})
}
