package codec

import (
	"github.com/brickingsoft/errors"
	"github.com/brickingsoft/proactor/transport"
)

const (
	errMetaPkgKey = "pkg"
	errMetaPkgVal = "codec"
)

var (
	ErrEmptyMessage   = errors.Define("empty message")
	ErrMessageTooLong = errors.Define("message too long")
)

type Encoder[T any] interface {
	Encode(message T) (b []byte, err error)
}

// Encode encodes message and writes it to w.
func Encode[T any](w transport.Writer, encoder Encoder[T], message T) (err error) {
	b, encodeErr := encoder.Encode(message)
	if encodeErr != nil {
		err = errors.New("encode failed", errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(encodeErr))
		return
	}
	err = w.Write(b)
	return
}
