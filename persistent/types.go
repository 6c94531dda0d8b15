package persistent

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/photon"
)

// Store is the byte-addressable persistent storage.
type Store interface {
	// Size returns the number of bytes stored.
	Size() uint64

	// Read returns length bytes starting at offset. Range must be within the size of the store.
	Read(offset, length uint64) ([]byte, error)

	// Write writes data at offset, extending the store if required.
	Write(offset uint64, data []byte) error

	// Sync flushes pending writes.
	Sync() error

	// Close syncs and releases the store.
	Close() error
}

const (
	// Magic identifies files produced by the codec.
	Magic uint64 = 0x6c657869636f6465

	// Version is the current version of the format.
	Version uint64 = 1
)

// HeaderSize is the number of bytes taken by the header.
const HeaderSize = uint64(unsafe.Sizeof(Header{}))

// Header is stored at the beginning of every encoded stream.
type Header struct {
	Magic      uint64
	Version    uint64
	BitLength  uint64
	StartLevel uint64
}

// NewHeader returns header of the stream.
func NewHeader(bitLength, startLevel uint64) Header {
	return Header{
		Magic:      Magic,
		Version:    Version,
		BitLength:  bitLength,
		StartLevel: startLevel,
	}
}

// Bytes returns the binary representation of the header.
func (h Header) Bytes() []byte {
	return append([]byte(nil), photon.NewFromValue(&h).B...)
}

// ParseHeader parses and validates the header.
func ParseHeader(data []byte) (Header, error) {
	if uint64(len(data)) < HeaderSize {
		return Header{}, errors.Errorf("header requires %d bytes, got %d", HeaderSize, len(data))
	}
	h := *photon.FromBytes[Header](data[:HeaderSize])
	if h.Magic != Magic {
		return Header{}, errors.Errorf("invalid magic number %x", h.Magic)
	}
	if h.Version != Version {
		return Header{}, errors.Errorf("unsupported version %d", h.Version)
	}
	return h, nil
}

// ReadHeader reads the header from the beginning of the store.
func ReadHeader(s Store) (Header, error) {
	data, err := s.Read(0, HeaderSize)
	if err != nil {
		return Header{}, err
	}
	return ParseHeader(data)
}

// WriteHeader writes the header at the beginning of the store.
func WriteHeader(s Store, h Header) error {
	return s.Write(0, h.Bytes())
}

func checkRange(offset, length, size uint64) error {
	if offset+length > size || offset+length < offset {
		return errors.Errorf("range [%d, %d) exceeds size %d", offset, offset+length, size)
	}
	return nil
}
