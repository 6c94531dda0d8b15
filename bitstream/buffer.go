package bitstream

import (
	"io"

	"github.com/pkg/errors"
)

// Buffer is the bit-addressable storage used by the codec. Bits are stored from the most significant bit of each
// byte. There is one cursor used for both reading and writing.
type Buffer interface {
	// ReadBit reads the bit under cursor. io.EOF is returned if cursor is at the end of the buffer.
	ReadBit() (uint8, error)

	// WriteBits writes count least significant bits of value, starting from the most significant one.
	// Writing past the end extends the buffer.
	WriteBits(value uint64, count uint8) error

	// Cursor returns the position of the cursor in bits.
	Cursor() uint64

	// SetCursor moves the cursor.
	SetCursor(pos uint64) error

	// Len returns the number of bits in the buffer.
	Len() uint64
}

// NewMemoryBuffer creates buffer over the provided bytes containing bitLength bits.
func NewMemoryBuffer(data []byte, bitLength uint64) (*MemoryBuffer, error) {
	if bitLength > uint64(len(data))*8 {
		return nil, errors.Errorf("%d bits do not fit in %d bytes", bitLength, len(data))
	}
	return &MemoryBuffer{
		data:   data,
		length: bitLength,
	}, nil
}

// MemoryBuffer keeps bits in a growable byte slice.
type MemoryBuffer struct {
	data   []byte
	length uint64
	cursor uint64
}

// ReadBit reads the bit under cursor.
func (b *MemoryBuffer) ReadBit() (uint8, error) {
	if b.cursor >= b.length {
		return 0, io.EOF
	}
	bit := b.data[b.cursor/8] >> (7 - b.cursor%8) & 0x01
	b.cursor++
	return bit, nil
}

// WriteBits writes bits at cursor.
func (b *MemoryBuffer) WriteBits(value uint64, count uint8) error {
	if count > 64 {
		return errors.Errorf("can't write %d bits at once", count)
	}
	for i := int(count) - 1; i >= 0; i-- {
		byteIndex := b.cursor / 8
		if byteIndex >= uint64(len(b.data)) {
			b.data = append(b.data, 0)
		}
		mask := byte(0x80) >> (b.cursor % 8)
		if value>>i&0x01 == 1 {
			b.data[byteIndex] |= mask
		} else {
			b.data[byteIndex] &^= mask
		}
		b.cursor++
	}
	if b.cursor > b.length {
		b.length = b.cursor
	}
	return nil
}

// Cursor returns the position of the cursor.
func (b *MemoryBuffer) Cursor() uint64 {
	return b.cursor
}

// SetCursor moves the cursor.
func (b *MemoryBuffer) SetCursor(pos uint64) error {
	if pos > b.length {
		return errors.Errorf("position %d is beyond the end of buffer %d", pos, b.length)
	}
	b.cursor = pos
	return nil
}

// Len returns the number of bits in the buffer.
func (b *MemoryBuffer) Len() uint64 {
	return b.length
}

// Bytes returns the bytes of the buffer. Unused bits of the last byte are zero.
func (b *MemoryBuffer) Bytes() []byte {
	n := (b.length + 7) / 8
	out := b.data[:n]
	if rem := b.length % 8; rem > 0 {
		out[n-1] &= byte(0xff) << (8 - rem)
	}
	return out
}
