package bitstream

import (
	"io"

	"github.com/pkg/errors"

	"github.com/outofforest/lexicode/persistent"
)

// NewPagedBuffer creates buffer storing bits in the persistent store, starting at byte offset.
// Page caching is done by the store, buffer keeps only the byte under cursor.
func NewPagedBuffer(store persistent.Store, offset, bitLength uint64) (*PagedBuffer, error) {
	if store.Size() < offset || (bitLength+7)/8 > store.Size()-offset {
		return nil, errors.Errorf("%d bits at offset %d do not fit in the store of size %d", bitLength, offset,
			store.Size())
	}
	return &PagedBuffer{
		store:     store,
		offset:    offset,
		length:    bitLength,
		byteIndex: -1,
	}, nil
}

// PagedBuffer keeps bits in the persistent store.
type PagedBuffer struct {
	store  persistent.Store
	offset uint64
	length uint64
	cursor uint64

	byteIndex int64
	byteValue byte
	dirty     bool
}

// ReadBit reads the bit under cursor.
func (b *PagedBuffer) ReadBit() (uint8, error) {
	if b.cursor >= b.length {
		return 0, io.EOF
	}
	if err := b.load(); err != nil {
		return 0, err
	}
	bit := b.byteValue >> (7 - b.cursor%8) & 0x01
	b.cursor++
	return bit, nil
}

// WriteBits writes bits at cursor.
func (b *PagedBuffer) WriteBits(value uint64, count uint8) error {
	if count > 64 {
		return errors.Errorf("can't write %d bits at once", count)
	}
	for i := int(count) - 1; i >= 0; i-- {
		if err := b.load(); err != nil {
			return err
		}
		mask := byte(0x80) >> (b.cursor % 8)
		if value>>i&0x01 == 1 {
			b.byteValue |= mask
		} else {
			b.byteValue &^= mask
		}
		b.dirty = true
		b.cursor++
		if b.cursor > b.length {
			b.length = b.cursor
		}
	}
	return nil
}

// Cursor returns the position of the cursor.
func (b *PagedBuffer) Cursor() uint64 {
	return b.cursor
}

// SetCursor moves the cursor.
func (b *PagedBuffer) SetCursor(pos uint64) error {
	if pos > b.length {
		return errors.Errorf("position %d is beyond the end of buffer %d", pos, b.length)
	}
	b.cursor = pos
	return nil
}

// Len returns the number of bits in the buffer.
func (b *PagedBuffer) Len() uint64 {
	return b.length
}

// Flush writes the pending byte to the store.
func (b *PagedBuffer) Flush() error {
	if !b.dirty {
		return nil
	}
	if err := b.store.Write(b.offset+uint64(b.byteIndex), []byte{b.byteValue}); err != nil {
		return err
	}
	b.dirty = false
	return nil
}

func (b *PagedBuffer) load() error {
	byteIndex := int64(b.cursor / 8)
	if byteIndex == b.byteIndex {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}

	b.byteIndex = byteIndex
	b.byteValue = 0
	if pos := b.offset + uint64(byteIndex); pos < b.store.Size() {
		data, err := b.store.Read(pos, 1)
		if err != nil {
			return err
		}
		b.byteValue = data[0]
	}
	return nil
}
