package aio

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net"
	"testing"
	"time"
)

type queueScheduler chan func()

func (s queueScheduler) CallSoonThreadsafe(fn func()) {
	s <- fn
}

// drain runs completions until done reports true.
func (s queueScheduler) drain(t *testing.T, done func() bool) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for !done() {
		select {
		case fn := <-s:
			fn()
		case <-timeout:
			t.Fatal("no completion")
		}
	}
}

func newTestProactor(t *testing.T) (*Proactor, queueScheduler) {
	t.Helper()
	p, err := New(WithMaxGoroutines(8))
	require.NoError(t, err)
	s := make(queueScheduler, 8)
	p.SetLoop(s)
	t.Cleanup(func() { _ = p.Close() })
	return p, s
}

func pendingInterrupts(p *Proactor) int {
	p.deadlines.locker.Lock()
	defer p.deadlines.locker.Unlock()
	return len(p.deadlines.interrupted)
}

func TestRecvAfterCancel(t *testing.T) {
	p, s := newTestProactor(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	first, err := p.Recv(b, 16)
	require.NoError(t, err)
	require.True(t, first.Cancel())
	require.Eventually(t, func() bool {
		return pendingInterrupts(p) == 0
	}, 5*time.Second, time.Millisecond)

	second, err := p.Recv(b, 16)
	require.NoError(t, err)
	var (
		got  []byte
		done bool
	)
	second.OnComplete(func(op *Operation[[]byte]) {
		got, err = op.Result()
		done = true
	})
	go func() {
		_, _ = a.Write([]byte("after"))
	}()
	s.drain(t, func() bool { return done })
	require.NoError(t, err)
	assert.Equal(t, "after", string(got))
}

func TestSendAfterCancel(t *testing.T) {
	p, s := newTestProactor(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	first, err := p.Send(a, []byte("lost"))
	require.NoError(t, err)
	require.True(t, first.Cancel())
	require.Eventually(t, func() bool {
		return pendingInterrupts(p) == 0
	}, 5*time.Second, time.Millisecond)

	second, err := p.Send(a, []byte("kept"))
	require.NoError(t, err)
	var (
		n    int
		done bool
	)
	second.OnComplete(func(op *Operation[int]) {
		n, err = op.Result()
		done = true
	})
	buf := make([]byte, 4)
	_, readErr := io.ReadFull(b, buf)
	require.NoError(t, readErr)
	s.drain(t, func() bool { return done })
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "kept", string(buf))
}

func TestStaleDeadlineIsRetried(t *testing.T) {
	d := newDeadlines()
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	canceled := d.interrupter(b, readDeadline)
	canceled.abort()()
	assert.Equal(t, 1, d.interrupted[deadlineKey{h: b, kind: readDeadline}])

	// a later request sees the deadline it did not set
	next := d.interrupter(b, readDeadline)
	_, err := b.Read(make([]byte, 1))
	assert.True(t, next.retry(err))

	canceled.settle()
	assert.Empty(t, d.interrupted)
	assert.True(t, next.retry(err), "no interrupt left, the deadline is cleared")
	next.settle()

	// an interrupt arriving after the request returned is ignored
	late := d.interrupter(b, readDeadline)
	late.settle()
	late.abort()()
	assert.Empty(t, d.interrupted)

	assert.Nil(t, d.interrupter(struct{}{}, readDeadline))
	assert.False(t, (*interrupter)(nil).retry(err))
}
