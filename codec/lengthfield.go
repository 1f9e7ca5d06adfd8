package codec

import (
	"encoding/binary"
	"github.com/brickingsoft/errors"
)

const (
	lengthFieldSize = 8
)

// LengthField frames a message with an 8 byte big-endian length prefix.
// A zero MaxLength means no limit.
type LengthField struct {
	MaxLength int
}

func (lf LengthField) Encode(message []byte) (b []byte, err error) {
	n := len(message)
	if n == 0 {
		err = ErrEmptyMessage
		return
	}
	if lf.MaxLength > 0 && n > lf.MaxLength {
		err = errors.New("encode failed", errors.WithMeta(errMetaPkgKey, errMetaPkgVal), errors.WithWrap(ErrMessageTooLong))
		return
	}
	b = make([]byte, lengthFieldSize+n)
	binary.BigEndian.PutUint64(b, uint64(n))
	copy(b[lengthFieldSize:], message)
	return
}

func (lf LengthField) Decode(b []byte) (ok bool, message []byte, n int, err error) {
	if len(b) < lengthFieldSize {
		return
	}
	size := binary.BigEndian.Uint64(b)
	if size == 0 {
		// nothing but the field
		ok = true
		n = lengthFieldSize
		return
	}
	if (lf.MaxLength > 0 && size > uint64(lf.MaxLength)) || size > uint64(maxInt-lengthFieldSize) {
		err = ErrMessageTooLong
		return
	}
	if uint64(len(b)-lengthFieldSize) < size {
		return
	}
	n = lengthFieldSize + int(size)
	message = make([]byte, size)
	copy(message, b[lengthFieldSize:n])
	ok = true
	return
}

const maxInt = int(^uint(0) >> 1)
