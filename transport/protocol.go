package transport

// Protocol receives the lifecycle of one transport. ConnectionMade is called
// first and once, ConnectionLost last and once, with a nil error for a
// graceful close.
type Protocol interface {
	ConnectionMade(t Base)
	ConnectionLost(err error)
}

// DataReceiver is implemented by protocols that consume inbound bytes.
// b is owned by the protocol.
type DataReceiver interface {
	DataReceived(b []byte)
}

// EOFReceiver is told about end-of-stream. Returning false closes the
// transport.
type EOFReceiver interface {
	EOFReceived() (keepOpen bool)
}

// WriteFlowController is paused when the write backlog rises above the
// high watermark and resumed once it drains to the low one.
type WriteFlowController interface {
	PauseWriting()
	ResumeWriting()
}

// BaseProtocol can be embedded to get no-op lifecycle callbacks.
type BaseProtocol struct{}

func (BaseProtocol) ConnectionMade(Base) {}

func (BaseProtocol) ConnectionLost(error) {}

type capabilities struct {
	data Protocol
	recv DataReceiver
	eof  EOFReceiver
	flow WriteFlowController
}

func capabilitiesOf(p Protocol) (c capabilities) {
	c.data = p
	c.recv, _ = p.(DataReceiver)
	c.eof, _ = p.(EOFReceiver)
	c.flow, _ = p.(WriteFlowController)
	return
}
