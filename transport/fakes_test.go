package transport_test

import (
	"errors"
	"github.com/brickingsoft/proactor/pkg/aio"
	"github.com/brickingsoft/proactor/transport"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"net"
)

// fakeLoop runs callbacks only when the test says so.
type fakeLoop struct {
	mux        *fakeMux
	ready      []func()
	exceptions []transport.ExceptionContext
}

func newFakeLoop() *fakeLoop {
	l := &fakeLoop{}
	l.mux = &fakeMux{scheduler: l}
	return l
}

func (l *fakeLoop) CallSoon(fn func()) {
	l.ready = append(l.ready, fn)
}

func (l *fakeLoop) CallSoonThreadsafe(fn func()) {
	l.CallSoon(fn)
}

func (l *fakeLoop) Multiplexer() aio.Multiplexer {
	return l.mux
}

func (l *fakeLoop) CallExceptionHandler(ctx transport.ExceptionContext) {
	l.exceptions = append(l.exceptions, ctx)
}

// run drains the ready queue, including callbacks scheduled while draining.
func (l *fakeLoop) run() {
	for len(l.ready) > 0 {
		fn := l.ready[0]
		l.ready = l.ready[1:]
		fn()
	}
}

// fakeMux records every request and leaves completion to the test.
type fakeMux struct {
	scheduler aio.Scheduler
	recvs     []*aio.Operation[[]byte]
	sends     []*aio.Operation[int]
	sent      [][]byte
	raw       [][]byte
	sendErr   error
}

func (m *fakeMux) Recv(_ aio.Handle, _ int) (*aio.Operation[[]byte], error) {
	op := aio.NewOperation[[]byte]("recv", m.scheduler)
	m.recvs = append(m.recvs, op)
	return op, nil
}

func (m *fakeMux) Send(_ aio.Handle, b []byte) (*aio.Operation[int], error) {
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	op := aio.NewOperation[int]("send", m.scheduler)
	m.sends = append(m.sends, op)
	m.sent = append(m.sent, append([]byte(nil), b...))
	m.raw = append(m.raw, b)
	return op, nil
}

func (m *fakeMux) Connect(string, string) (*aio.Operation[aio.Handle], error) {
	return nil, errors.New("not implemented")
}

func (m *fakeMux) Accept(aio.Listener) (*aio.Operation[aio.Accepted], error) {
	return nil, errors.New("not implemented")
}

func (m *fakeMux) SetLoop(aio.Scheduler) {}

func (m *fakeMux) Close() error {
	return nil
}

func (m *fakeMux) lastRecv() *aio.Operation[[]byte] {
	return m.recvs[len(m.recvs)-1]
}

func (m *fakeMux) completeSend(i int) {
	m.sends[i].Succeed(len(m.sent[i]))
}

func (m *fakeMux) joined() (b []byte) {
	for _, s := range m.sent {
		b = append(b, s...)
	}
	return
}

type fakeHandle struct {
	closed      int
	closedWrite int
	local       net.Addr
	remote      net.Addr
}

func (h *fakeHandle) Read([]byte) (int, error) {
	return 0, errors.New("fake handle is not readable")
}

func (h *fakeHandle) Write(b []byte) (int, error) {
	return len(b), nil
}

func (h *fakeHandle) Close() error {
	h.closed++
	return nil
}

func (h *fakeHandle) CloseWrite() error {
	h.closedWrite++
	return nil
}

type endpointHandle struct {
	fakeHandle
}

func (h *endpointHandle) LocalAddr() net.Addr {
	return h.local
}

func (h *endpointHandle) RemoteAddr() net.Addr {
	return h.remote
}

// recorder is a protocol with every capability that remembers what it saw.
type recorder struct {
	made      int
	data      [][]byte
	eofs      int
	keepOpen  bool
	lost      []error
	pauses    int
	resumes   int
	onMade    func(t transport.Base)
	onResume  func()
	panicLost bool
}

func (r *recorder) ConnectionMade(t transport.Base) {
	r.made++
	if r.onMade != nil {
		r.onMade(t)
	}
}

func (r *recorder) ConnectionLost(err error) {
	r.lost = append(r.lost, err)
	if r.panicLost {
		panic("connection lost")
	}
}

func (r *recorder) DataReceived(b []byte) {
	r.data = append(r.data, b)
}

func (r *recorder) EOFReceived() bool {
	r.eofs++
	return r.keepOpen
}

func (r *recorder) PauseWriting() {
	r.pauses++
}

func (r *recorder) ResumeWriting() {
	r.resumes++
	if r.onResume != nil {
		r.onResume()
	}
}

type mockProtocol struct {
	mock.Mock
}

func (m *mockProtocol) ConnectionMade(t transport.Base) {
	m.Called(t)
}

func (m *mockProtocol) ConnectionLost(err error) {
	m.Called(err)
}

func (m *mockProtocol) DataReceived(b []byte) {
	m.Called(b)
}

func (m *mockProtocol) EOFReceived() bool {
	return m.Called().Bool(0)
}

type fakeServer struct {
	attached map[string]int
	detached map[string]int
}

func newFakeServer() *fakeServer {
	return &fakeServer{attached: map[string]int{}, detached: map[string]int{}}
}

func (s *fakeServer) Attach(t transport.Base) {
	s.attached[t.ID()]++
}

func (s *fakeServer) Detach(t transport.Base) {
	s.detached[t.ID()]++
}

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return zap.New(core), logs
}
