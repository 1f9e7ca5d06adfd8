package aio_test

import (
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"testing"
	"time"
)

// chanScheduler hands callbacks to the test goroutine.
type chanScheduler chan func()

func (s chanScheduler) CallSoonThreadsafe(fn func()) {
	s <- fn
}

func (s chanScheduler) next(t *testing.T) {
	t.Helper()
	select {
	case fn := <-s:
		fn()
	case <-time.After(5 * time.Second):
		t.Fatal("no completion")
	}
}

func newProactor(t *testing.T) (*aio.Proactor, chanScheduler) {
	t.Helper()
	p, err := aio.New(aio.WithMaxGoroutines(16))
	require.NoError(t, err)
	s := make(chanScheduler, 16)
	p.SetLoop(s)
	t.Cleanup(func() { _ = p.Close() })
	return p, s
}

func TestProactorRecvSend(t *testing.T) {
	p, s := newProactor(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	rop, err := p.Recv(b, 4096)
	require.NoError(t, err)
	var got []byte
	rop.OnComplete(func(op *aio.Operation[[]byte]) {
		got, err = op.Result()
	})

	wop, err := p.Send(a, []byte("hi-test"))
	require.NoError(t, err)
	var wn int
	wop.OnComplete(func(op *aio.Operation[int]) {
		wn, _ = op.Result()
	})

	s.next(t)
	s.next(t)
	require.NoError(t, err)
	assert.Equal(t, "hi-test", string(got))
	assert.Equal(t, 7, wn)
}

func TestProactorRecvEOF(t *testing.T) {
	p, s := newProactor(t)
	a, b := net.Pipe()
	defer b.Close()

	rop, err := p.Recv(b, 16)
	require.NoError(t, err)
	var got []byte
	var rErr error
	rop.OnComplete(func(op *aio.Operation[[]byte]) {
		got, rErr = op.Result()
	})
	require.NoError(t, a.Close())
	s.next(t)
	require.NoError(t, rErr)
	assert.NotNil(t, got)
	assert.Len(t, got, 0)
}

func TestProactorRecvCancel(t *testing.T) {
	p, s := newProactor(t)
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()

	rop, err := p.Recv(b, 16)
	require.NoError(t, err)
	var status aio.Status
	rop.OnComplete(func(op *aio.Operation[[]byte]) {
		status = op.Status()
	})
	require.True(t, rop.Cancel())
	s.next(t)
	assert.Equal(t, aio.CanceledStatus, status)
}

func TestProactorAcceptConnect(t *testing.T) {
	p, s := newProactor(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	aop, err := p.Accept(ln)
	require.NoError(t, err)
	var accepted aio.Accepted
	aop.OnComplete(func(op *aio.Operation[aio.Accepted]) {
		accepted, err = op.Result()
	})
	cop, err := p.Connect("tcp", ln.Addr().String())
	require.NoError(t, err)
	var conn aio.Handle
	cop.OnComplete(func(op *aio.Operation[aio.Handle]) {
		conn, _ = op.Result()
	})
	s.next(t)
	s.next(t)
	require.NoError(t, err)
	require.NotNil(t, accepted.Handle)
	require.NotNil(t, conn)
	assert.NotNil(t, accepted.Addr)
	_ = accepted.Close()
	_ = conn.Close()
}

func TestProactorClosed(t *testing.T) {
	p, _ := newProactor(t)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	a, b := net.Pipe()
	defer a.Close()
	defer b.Close()
	_, err := p.Recv(a, 16)
	assert.True(t, aio.IsClosed(err))
	_, err = p.Send(a, nil)
	assert.Error(t, err)
}
