package test

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/outofforest/lexicode/hash"
	"github.com/outofforest/lexicode/table"
	"github.com/outofforest/lexicode/types"
)

// Words generates n distinct deterministic words.
func Words(n int) []string {
	return lo.Times(n, func(i int) string {
		return fmt.Sprintf("w%05d", i)
	})
}

// Digest builds 256-bit digest starting with the provided bits, given as string of '0' and '1' characters.
// Remaining bits are zero.
func Digest(bits string) types.Digest {
	d := make(types.Digest, types.DigestLength)
	for i, b := range bits {
		if b == '1' {
			d[i/8] |= 0x80 >> (i % 8)
		}
	}
	return d
}

// NewHasher returns hasher using explicit digests for chosen words. Other words are hashed by BLAKE3.
// It is used to force collisions in tests.
func NewHasher(digests map[string]types.Digest) *Hasher {
	return &Hasher{
		digests:  digests,
		fallback: hash.NewBlake3(),
	}
}

// Hasher returns predefined digests for chosen words.
type Hasher struct {
	digests  map[string]types.Digest
	fallback hash.Hasher
}

// Digest returns the digest of the word.
func (h *Hasher) Digest(word string) types.Digest {
	if d, exists := h.digests[word]; exists {
		return d
	}
	return h.fallback.Digest(word)
}

// Bits returns the number of bits in each digest.
func (h *Hasher) Bits() uint {
	return types.DigestBits
}

// CollectWords collects words stored in table.
func CollectWords(t *table.Table) []string {
	words := []string{}
	for slot := range t.Slots() {
		words = append(words, slot.Word)
	}

	sort.Strings(words)
	return words
}

// CollectCodes collects codes of all the words stored in table.
func CollectCodes(t *table.Table) map[string]types.Code {
	codes := map[string]types.Code{}
	for slot := range t.Slots() {
		codes[slot.Word] = slot.Code()
	}
	return codes
}
