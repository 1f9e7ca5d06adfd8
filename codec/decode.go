// Package codec splits the byte stream of a transport into messages.
package codec

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/transport"
	"github.com/valyala/bytebufferpool"
	"io"
)

// Decoder
// finds the first message in b.
// It returns ok when a whole message was found and n, the number of bytes it
// used. A non-nil err stops decoding and closes the transport.
type Decoder[T any] interface {
	Decode(b []byte) (ok bool, message T, n int, err error)
}

// Handler receives decoded messages on the loop goroutine.
type Handler[T any] interface {
	ConnectionMade(t transport.Base)
	MessageReceived(message T)
	ConnectionLost(err error)
}

// Protocol
// buffers inbound data and hands every complete message to the handler.
// Write flow control is forwarded when the handler implements it.
type Protocol[T any] struct {
	decoder Decoder[T]
	handler Handler[T]
	t       transport.Base
	buf     *bytebufferpool.ByteBuffer
	err     error
}

func NewProtocol[T any](decoder Decoder[T], handler Handler[T]) *Protocol[T] {
	if decoder == nil || handler == nil {
		panic("codec: decoder and handler are required")
	}
	return &Protocol[T]{
		decoder: decoder,
		handler: handler,
	}
}

// Buffered returns the number of bytes waiting for the rest of a message.
func (p *Protocol[T]) Buffered() int {
	if p.buf == nil {
		return 0
	}
	return p.buf.Len()
}

func (p *Protocol[T]) ConnectionMade(t transport.Base) {
	p.t = t
	p.handler.ConnectionMade(t)
}

func (p *Protocol[T]) DataReceived(b []byte) {
	if p.err != nil {
		return
	}
	if p.buf == nil || p.buf.Len() == 0 {
		// decode straight from b, only the tail gets copied
		rest := p.decode(b)
		if len(rest) > 0 && p.err == nil {
			if p.buf == nil {
				p.buf = bytebufferpool.Get()
			}
			_, _ = p.buf.Write(rest)
		}
		return
	}
	_, _ = p.buf.Write(b)
	rest := p.decode(p.buf.B)
	n := copy(p.buf.B, rest)
	p.buf.B = p.buf.B[:n]
}

func (p *Protocol[T]) decode(b []byte) []byte {
	for len(b) > 0 {
		ok, message, n, err := p.decoder.Decode(b)
		if err != nil {
			p.fail(err)
			return nil
		}
		if !ok {
			return b
		}
		if n < 0 || n > len(b) {
			p.fail(errors.New("decoder consumed an invalid number of bytes", errors.WithMeta(errMetaPkgKey, errMetaPkgVal)))
			return nil
		}
		b = b[n:]
		p.handler.MessageReceived(message)
		if p.err != nil || p.t.IsClosing() {
			return nil
		}
	}
	return b
}

func (p *Protocol[T]) fail(err error) {
	p.err = errors.New("decode failed", errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(err))
	if w, ok := p.t.(transport.Writer); ok {
		w.Abort()
		return
	}
	p.t.Close()
}

// EOFReceived closes the transport. A partial message left in the buffer
// is reported to the handler as io.ErrUnexpectedEOF.
func (p *Protocol[T]) EOFReceived() bool {
	if p.err == nil && p.Buffered() > 0 {
		p.err = io.ErrUnexpectedEOF
	}
	return false
}

func (p *Protocol[T]) PauseWriting() {
	if fc, ok := p.handler.(transport.WriteFlowController); ok {
		fc.PauseWriting()
	}
}

func (p *Protocol[T]) ResumeWriting() {
	if fc, ok := p.handler.(transport.WriteFlowController); ok {
		fc.ResumeWriting()
	}
}

func (p *Protocol[T]) ConnectionLost(err error) {
	if err == nil {
		err = p.err
	}
	if p.buf != nil {
		bytebufferpool.Put(p.buf)
		p.buf = nil
	}
	p.handler.ConnectionLost(err)
}
