package types

const (
	// UInt64Length is the number of bytes taken by uint64.
	UInt64Length = 8

	// DigestLength is the number of bytes taken by the default word digest.
	DigestLength = 32

	// DigestBits is the number of bits in the default word digest.
	DigestBits = DigestLength * 8

	// MinLevel is the shallowest level a word may occupy.
	MinLevel Level = 1

	// MaxLevel is the deepest level a word may occupy. Code of a word must fit into 64-bit stream value together
	// with its sentinel bit.
	MaxLevel Level = 63

	// CharBits is the number of bits used to encode single byte of out-of-vocabulary word.
	CharBits = 8
)

type (
	// Level is the number of hash bits used to address a slot. It is also the bit width of a stream value.
	Level uint8

	// Index is the position of a slot inside a level.
	Index uint64

	// Digest is the hash of a word. Bits are numbered from the most significant bit of the first byte.
	Digest []byte
)

// Code is the encoded representation of a word.
type Code struct {
	Level Level
	Index Index

	// Literal is set for words missing in the vocabulary. Each byte is encoded using CharBits bits.
	Literal []byte
}

// IsLiteral says if code carries out-of-vocabulary word.
func (c Code) IsLiteral() bool {
	return c.Literal != nil
}

// ID returns the identifier of the code unique across all the levels. The most significant set bit marks the level.
func (c Code) ID() uint64 {
	return 1<<c.Level | uint64(c.Index)
}

// CodeFromID reverses Code.ID.
func CodeFromID(id uint64) (Code, bool) {
	if id < 2 {
		return Code{}, false
	}
	level := Level(63)
	for id&(1<<level) == 0 {
		level--
	}
	return Code{
		Level: level,
		Index: Index(id &^ (1 << level)),
	}, true
}

// Slot is the occupant of the (level, index) address.
type Slot struct {
	Word  string
	Count uint64
	Level Level
	Index Index
}

// Code returns the code of the word stored in slot.
func (s Slot) Code() Code {
	return Code{
		Level: s.Level,
		Index: s.Index,
	}
}
