package proactor_test

import (
	"github.com/brickingsoft/proactor"
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"io"
	"net"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// echo writes back whatever it receives and reports its events on channels.
type echo struct {
	t     transport.Transport
	made  chan transport.Base
	data  chan []byte
	lost  chan error
	reply bool
}

func newEcho(reply bool) *echo {
	return &echo{
		made:  make(chan transport.Base, 1),
		data:  make(chan []byte, 16),
		lost:  make(chan error, 1),
		reply: reply,
	}
}

func (e *echo) ConnectionMade(t transport.Base) {
	e.t, _ = t.(transport.Transport)
	e.made <- t
}

func (e *echo) DataReceived(b []byte) {
	if e.reply {
		_ = e.t.Write(b)
	}
	e.data <- b
}

func (e *echo) ConnectionLost(err error) {
	e.lost <- err
}

func recvWithin[T any](t *testing.T, ch chan T) (v T) {
	t.Helper()
	select {
	case v = <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out")
	}
	return
}

func TestServerEcho(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	loop, err := proactor.New(proactor.WithScope(scope))
	require.NoError(t, err)
	runLoop(t, loop)

	protocols := make(chan *echo, 1)
	srv, err := loop.CreateServer(func() transport.Protocol {
		p := newEcho(true)
		protocols <- p
		return p
	}, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.Len(t, srv.Addrs(), 1)
	assert.True(t, srv.IsServing())

	conn, err := net.Dial("tcp", srv.Addrs()[0].String())
	require.NoError(t, err)
	defer conn.Close()

	p := recvWithin(t, protocols)
	made := recvWithin(t, p.made)
	peer, ok := made.ExtraInfo(transport.ExtraPeerName)
	require.True(t, ok)
	assert.Equal(t, conn.LocalAddr().String(), peer.(net.Addr).String())
	require.Eventually(t, func() bool {
		return srv.Count() == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)
	buf := make([]byte, 5)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	require.NoError(t, conn.Close())
	assert.NoError(t, recvWithin(t, p.lost))
	require.Eventually(t, func() bool {
		return srv.Count() == 0
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, int64(1), counterValue(scope, "accepts"))
	assert.Equal(t, int64(1), counterValue(scope, "transports"))
	assert.Equal(t, int64(1), counterValue(scope, "connections_lost"))

	onLoop(t, loop, func() {
		assert.NoError(t, srv.Close())
	})
	assert.False(t, srv.IsServing())
}

func TestServerCloseStopsAccepting(t *testing.T) {
	loop, err := proactor.New()
	require.NoError(t, err)
	runLoop(t, loop)

	srv, err := loop.CreateServer(func() transport.Protocol {
		return newEcho(false)
	}, "tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := srv.Addrs()[0].String()

	onLoop(t, loop, func() {
		assert.NoError(t, srv.Close())
		assert.NoError(t, srv.Close())
	})
	assert.False(t, srv.IsServing())
	require.Eventually(t, func() bool {
		c, dialErr := net.Dial("tcp", addr)
		if dialErr != nil {
			return true
		}
		_ = c.Close()
		return false
	}, 5*time.Second, 20*time.Millisecond)
}

func TestServerCloseTransports(t *testing.T) {
	loop, err := proactor.New()
	require.NoError(t, err)
	runLoop(t, loop)

	protocols := make(chan *echo, 1)
	srv, err := loop.CreateServer(func() transport.Protocol {
		p := newEcho(false)
		protocols <- p
		return p
	}, "tcp", "127.0.0.1:0")
	require.NoError(t, err)

	conn, err := net.Dial("tcp", srv.Addrs()[0].String())
	require.NoError(t, err)
	defer conn.Close()
	p := recvWithin(t, protocols)
	recvWithin(t, p.made)

	onLoop(t, loop, func() {
		assert.NoError(t, srv.Close())
		srv.CloseTransports()
	})
	recvWithin(t, p.lost)
	require.Eventually(t, func() bool {
		return srv.Count() == 0
	}, 5*time.Second, 10*time.Millisecond)

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestServeRejectsNilFactory(t *testing.T) {
	loop, err := proactor.New()
	require.NoError(t, err)
	defer loop.Close()

	_, err = loop.CreateServer(nil, "tcp", "127.0.0.1:0")
	assert.ErrorIs(t, err, proactor.ErrNilFactory)

	_, err = loop.CreateServer(func() transport.Protocol {
		return transport.BaseProtocol{}
	}, "tcp", "256.0.0.1:0")
	assert.Error(t, err)
}

// exhaustedListener fails every accept the way a process out of file
// descriptors does.
type exhaustedListener struct {
	accepts atomic.Int32
	closes  atomic.Int32
}

func (ln *exhaustedListener) Accept() (net.Conn, error) {
	ln.accepts.Add(1)
	return nil, &net.OpError{Op: "accept", Net: "tcp", Err: os.NewSyscallError("accept", syscall.EMFILE)}
}

func (ln *exhaustedListener) Close() error {
	ln.closes.Add(1)
	return nil
}

func (ln *exhaustedListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
}

func TestServerAcceptError(t *testing.T) {
	scope := tally.NewTestScope("", nil)
	contexts := make(chan proactor.ExceptionContext, 4)
	loop, err := proactor.New(
		proactor.WithScope(scope),
		proactor.WithExceptionHandler(func(_ *proactor.Loop, ctx proactor.ExceptionContext) {
			contexts <- ctx
		}),
	)
	require.NoError(t, err)
	runLoop(t, loop)

	ln := &exhaustedListener{}
	_, err = loop.Serve(func() transport.Protocol {
		return newEcho(false)
	}, []aio.Listener{ln})
	require.NoError(t, err)

	ctx := recvWithin(t, contexts)
	assert.Equal(t, "accept failed on a socket", ctx.Message)
	assert.ErrorIs(t, ctx.Err, syscall.EMFILE)
	onLoop(t, loop, func() {})
	assert.Equal(t, int32(1), ln.closes.Load())
	assert.Equal(t, int64(1), counterValue(scope, "accept_errors"))
	assert.Zero(t, counterValue(scope, "accepts"))

	// the accept loop of a failed listener is over
	assert.Never(t, func() bool {
		return ln.accepts.Load() > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, contexts)
}

type dialed struct {
	t   transport.Transport
	p   transport.Protocol
	err error
}

func TestCreateConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, acceptErr := ln.Accept()
		if acceptErr != nil {
			return
		}
		defer c.Close()
		_, _ = io.Copy(c, c)
	}()

	loop, err := proactor.New()
	require.NoError(t, err)
	runLoop(t, loop)

	p := newEcho(false)
	results := make(chan dialed, 1)
	onLoop(t, loop, func() {
		_, dialErr := loop.CreateConnection(func() transport.Protocol {
			return p
		}, "tcp", ln.Addr().String(), func(t transport.Transport, p transport.Protocol, err error) {
			results <- dialed{t: t, p: p, err: err}
		})
		assert.NoError(t, dialErr)
	})

	r := recvWithin(t, results)
	require.NoError(t, r.err)
	assert.Same(t, p, r.p)
	select {
	case <-p.made:
	default:
		t.Fatal("handler ran before ConnectionMade")
	}

	onLoop(t, loop, func() {
		assert.NoError(t, r.t.Write([]byte("ping")))
	})
	assert.Equal(t, "ping", string(recvWithin(t, p.data)))

	onLoop(t, loop, func() {
		r.t.Close()
		assert.True(t, r.t.IsClosing())
	})
	assert.NoError(t, recvWithin(t, p.lost))
}

func TestCreateConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	loop, err := proactor.New(proactor.WithDialTimeout(time.Second))
	require.NoError(t, err)
	runLoop(t, loop)

	results := make(chan dialed, 1)
	onLoop(t, loop, func() {
		_, dialErr := loop.CreateConnection(func() transport.Protocol {
			return newEcho(false)
		}, "tcp", addr, func(t transport.Transport, p transport.Protocol, err error) {
			results <- dialed{t: t, p: p, err: err}
		})
		assert.NoError(t, dialErr)
	})
	r := recvWithin(t, results)
	assert.Error(t, r.err)
	assert.Nil(t, r.t)
}
