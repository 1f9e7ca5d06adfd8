package codec

import (
	"github.com/brickingsoft/errors"
)

// Fixed frames messages of exactly Size bytes. Shorter messages are zero
// padded on encode, longer ones are rejected with ErrMessageTooLong.
type Fixed struct {
	Size int
}

func NewFixed(size int) Fixed {
	if size < 1 {
		panic("codec.Fixed: size must be > 0")
	}
	return Fixed{Size: size}
}

func (f Fixed) Encode(message []byte) (b []byte, err error) {
	if len(message) == 0 {
		err = ErrEmptyMessage
		return
	}
	if len(message) > f.Size {
		err = errors.New("encode failed", errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(ErrMessageTooLong))
		return
	}
	b = make([]byte, f.Size)
	copy(b, message)
	return
}

func (f Fixed) Decode(b []byte) (ok bool, message []byte, n int, err error) {
	if len(b) < f.Size {
		return
	}
	message = make([]byte, f.Size)
	copy(message, b)
	n = f.Size
	ok = true
	return
}
