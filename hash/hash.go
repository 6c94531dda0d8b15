package hash

import (
	"bytes"

	"github.com/pkg/errors"
	blake3zeebo "github.com/zeebo/blake3"
	blake3luke "lukechampine.com/blake3"

	"github.com/outofforest/lexicode/types"
)

// Hasher computes digests of words.
type Hasher interface {
	// Digest returns the digest of the word.
	Digest(word string) types.Digest

	// Bits returns the number of bits in each digest.
	Bits() uint
}

// NewBlake3 returns the default 256-bit hasher.
func NewBlake3() Blake3 {
	return Blake3{}
}

// Blake3 computes 256-bit BLAKE3 digests.
type Blake3 struct{}

// Digest returns the digest of the word.
func (h Blake3) Digest(word string) types.Digest {
	d := blake3zeebo.Sum256([]byte(word))
	return d[:]
}

// Bits returns the number of bits in each digest.
func (h Blake3) Bits() uint {
	return types.DigestBits
}

// NewBlake3XOF returns hasher producing digests of arbitrary width using extendable output of BLAKE3.
// Digests produced for different widths share their prefixes.
func NewBlake3XOF(bits uint) (*Blake3XOF, error) {
	if bits == 0 || bits%8 != 0 {
		return nil, errors.Errorf("digest width %d is not a positive multiple of 8", bits)
	}
	return &Blake3XOF{
		size: int(bits / 8),
	}, nil
}

// Blake3XOF computes BLAKE3 digests of configured width.
type Blake3XOF struct {
	size int
}

// Digest returns the digest of the word.
func (h *Blake3XOF) Digest(word string) types.Digest {
	hasher := blake3luke.New(h.size, nil)
	_, _ = hasher.Write([]byte(word))
	return hasher.Sum(nil)
}

// Bits returns the number of bits in each digest.
func (h *Blake3XOF) Bits() uint {
	return uint(h.size) * 8
}

// Prefix returns the first n bits of the digest as an unsigned integer.
func Prefix(d types.Digest, n types.Level) types.Index {
	if n > 64 || uint(n) > uint(len(d))*8 {
		panic(errors.Errorf("prefix of %d bits requested from %d-bit digest", n, len(d)*8))
	}

	var v uint64
	full := int(n / 8)
	for i := range full {
		v = v<<8 | uint64(d[i])
	}
	if rem := n % 8; rem > 0 {
		v = v<<rem | uint64(d[full]>>(8-rem))
	}
	return types.Index(v)
}

// Compare compares two digests as big-endian unsigned integers.
func Compare(a, b types.Digest) int {
	return bytes.Compare(a, b)
}
