package types

import (
	"github.com/pkg/errors"
)

var (
	// ErrHashExhausted is returned if all the digest prefixes of the word are taken by other words.
	ErrHashExhausted = errors.New("hash exhausted")

	// ErrUnknownCode is returned if code does not address any word and is not a valid literal.
	ErrUnknownCode = errors.New("unknown code")

	// ErrNotFound is returned if word does not exist in the table.
	ErrNotFound = errors.New("word not found")

	// ErrFrozen is returned on attempt to modify frozen table.
	ErrFrozen = errors.New("table is frozen")

	// ErrNoPlacement is returned if word can't be placed during group optimization.
	ErrNoPlacement = errors.New("no placement found")

	// ErrLevelOutOfRange is returned if level signaled in the stream leaves the allowed range.
	ErrLevelOutOfRange = errors.New("level out of range")

	// ErrTruncated is returned if stream ends in the middle of a value.
	ErrTruncated = errors.New("stream truncated")

	// ErrValueTooWide is returned if value does not fit into the maximum level.
	ErrValueTooWide = errors.New("value too wide")

	// ErrReadOnly is returned on attempt to write to the store opened for reading.
	ErrReadOnly = errors.New("store is read-only")
)
