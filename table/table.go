package table

import (
	"bytes"
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/lexicode/hash"
	"github.com/outofforest/lexicode/types"
	"github.com/outofforest/mass"
)

// entriesPerChunk defines how many entries are preallocated at once.
const entriesPerChunk = 1024

// Config stores table configuration.
type Config struct {
	Hasher   hash.Hasher
	MinLevel types.Level
	MaxLevel types.Level
}

// DefaultConfig is the default table configuration.
var DefaultConfig = Config{
	Hasher:   hash.NewBlake3(),
	MinLevel: types.MinLevel,
	MaxLevel: types.MaxLevel,
}

// New creates new level table.
func New(config Config) (*Table, error) {
	if config.Hasher == nil {
		config.Hasher = DefaultConfig.Hasher
	}
	if config.MinLevel == 0 {
		config.MinLevel = DefaultConfig.MinLevel
	}
	if config.MaxLevel == 0 {
		config.MaxLevel = DefaultConfig.MaxLevel
	}
	if config.MaxLevel > types.MaxLevel {
		return nil, errors.Errorf("max level %d exceeds the limit %d", config.MaxLevel, types.MaxLevel)
	}
	if uint(config.MaxLevel) > config.Hasher.Bits() {
		config.MaxLevel = types.Level(config.Hasher.Bits())
	}
	if config.MinLevel > config.MaxLevel {
		return nil, errors.Errorf("min level %d is greater than max level %d", config.MinLevel, config.MaxLevel)
	}

	return &Table{
		config:    config,
		massEntry: mass.New[entry](entriesPerChunk),
		levels:    make([]map[types.Index]*entry, config.MaxLevel+1),
		words:     map[string]*entry{},
	}, nil
}

type entry struct {
	slot   types.Slot
	digest types.Digest
	seq    uint64
}

// Table stores words in slots addressed by (level, index), where index is the prefix of the word's hash.
// Words colliding at a level are moved to the deeper one.
// Table is not safe for concurrent modification. Once frozen, it may be read concurrently.
type Table struct {
	config    Config
	massEntry *mass.Mass[entry]

	levels       []map[types.Index]*entry
	words        map[string]*entry
	currentLevel types.Level
	seq          uint64
	frozen       bool
}

// Add inserts single occurrence of the word.
func (t *Table) Add(word string) (types.Code, error) {
	return t.Insert(word, 1)
}

// Insert adds count occurrences of the word to the table and returns its code.
// If word exists, its count is incremented. Otherwise, the word is placed in the shallowest free slot on the path
// given by its hash. Order of insertions decides which of the colliding words gets the shallower slot.
func (t *Table) Insert(word string, count uint64) (types.Code, error) {
	if t.frozen {
		return types.Code{}, errors.WithStack(types.ErrFrozen)
	}

	if e := t.words[word]; e != nil {
		e.slot.Count += count
		return e.slot.Code(), nil
	}

	d := t.config.Hasher.Digest(word)
	for level := t.config.MinLevel; level <= t.config.MaxLevel; level++ {
		index := hash.Prefix(d, level)
		if occupant := t.levels[level][index]; occupant != nil {
			if bytes.Equal(occupant.digest, d) {
				return types.Code{}, errors.Wrapf(types.ErrHashExhausted, "words %q and %q have identical digests",
					word, occupant.slot.Word)
			}
			continue
		}

		e := t.massEntry.New()
		e.slot = types.Slot{
			Word:  word,
			Count: count,
		}
		e.digest = d
		e.seq = t.seq
		t.seq++

		t.place(e, level, index)
		t.words[word] = e

		return e.slot.Code(), nil
	}

	return types.Code{}, errors.Wrapf(types.ErrHashExhausted, "word %q collides on all %d levels",
		word, t.config.MaxLevel-t.config.MinLevel+1)
}

// Remove deletes the word from the table, leaving its slot free.
func (t *Table) Remove(word string) error {
	if t.frozen {
		return errors.WithStack(types.ErrFrozen)
	}

	e := t.words[word]
	if e == nil {
		return errors.Wrapf(types.ErrNotFound, "word %q", word)
	}

	delete(t.levels[e.slot.Level], e.slot.Index)
	delete(t.words, word)
	return nil
}

// Lookup returns the slot occupied by the word.
func (t *Table) Lookup(word string) (types.Slot, error) {
	e := t.words[word]
	if e == nil {
		return types.Slot{}, errors.Wrapf(types.ErrNotFound, "word %q", word)
	}
	return e.slot, nil
}

// Decode returns the word stored in the slot.
func (t *Table) Decode(level types.Level, index types.Index) (string, error) {
	if level < t.config.MinLevel || level > t.config.MaxLevel {
		return "", errors.Wrapf(types.ErrUnknownCode, "level %d out of range", level)
	}
	e := t.levels[level][index]
	if e == nil {
		return "", errors.Wrapf(types.ErrUnknownCode, "slot (%d, %d) is empty", level, index)
	}
	return e.slot.Word, nil
}

// Freeze stops accepting modifications. Codes of a frozen table are stable.
func (t *Table) Freeze() {
	t.frozen = true
}

// Frozen says if table is frozen.
func (t *Table) Frozen() bool {
	return t.frozen
}

// CurrentLevel returns the deepest level ever used by the table.
func (t *Table) CurrentLevel() types.Level {
	return t.currentLevel
}

// Config returns configuration of the table.
func (t *Table) Config() Config {
	return t.config
}

// Len returns the number of words stored in the table.
func (t *Table) Len() int {
	return len(t.words)
}

// Slots iterates over occupied slots ordered by level and index.
func (t *Table) Slots() func(func(types.Slot) bool) {
	return func(yield func(slot types.Slot) bool) {
		for level := t.config.MinLevel; level <= t.config.MaxLevel; level++ {
			indexes := lo.Keys(t.levels[level])
			sort.Slice(indexes, func(i, j int) bool {
				return indexes[i] < indexes[j]
			})
			for _, index := range indexes {
				if !yield(t.levels[level][index].slot) {
					return
				}
			}
		}
	}
}

// Stats stores statistics of the table.
type Stats struct {
	Words        uint64
	CurrentLevel types.Level
	Occupancy    map[types.Level]uint64
	CodeBits     uint64
}

// Stats returns statistics of the table.
func (t *Table) Stats() Stats {
	stats := Stats{
		Words:        uint64(len(t.words)),
		CurrentLevel: t.currentLevel,
		Occupancy:    map[types.Level]uint64{},
	}
	for level, slots := range t.levels {
		if len(slots) == 0 {
			continue
		}
		stats.Occupancy[types.Level(level)] = uint64(len(slots))
		for _, e := range slots {
			stats.CodeBits += uint64(level) * e.slot.Count
		}
	}
	return stats
}

// Restore places the word directly in the provided slot. It is used to reload persisted tables, so the codes
// assigned before are reproduced exactly. The prefix invariant is verified.
func (t *Table) Restore(slot types.Slot) error {
	if t.frozen {
		return errors.WithStack(types.ErrFrozen)
	}
	if slot.Level < t.config.MinLevel || slot.Level > t.config.MaxLevel {
		return errors.Errorf("level %d of word %q out of range", slot.Level, slot.Word)
	}
	if _, exists := t.words[slot.Word]; exists {
		return errors.Errorf("word %q already exists", slot.Word)
	}
	if e := t.levels[slot.Level][slot.Index]; e != nil {
		return errors.Errorf("slot (%d, %d) of word %q is taken by %q", slot.Level, slot.Index, slot.Word,
			e.slot.Word)
	}

	d := t.config.Hasher.Digest(slot.Word)
	if index := hash.Prefix(d, slot.Level); index != slot.Index {
		return errors.Errorf("index %d of word %q does not match its hash prefix %d at level %d", slot.Index,
			slot.Word, index, slot.Level)
	}

	e := t.massEntry.New()
	e.slot = types.Slot{
		Word:  slot.Word,
		Count: slot.Count,
	}
	e.digest = d
	e.seq = t.seq
	t.seq++

	t.place(e, slot.Level, slot.Index)
	t.words[slot.Word] = e
	return nil
}

func (t *Table) place(e *entry, level types.Level, index types.Index) {
	if t.levels[level] == nil {
		t.levels[level] = map[types.Index]*entry{}
	}
	e.slot.Level = level
	e.slot.Index = index
	t.levels[level][index] = e
	if level > t.currentLevel {
		t.currentLevel = level
	}
}
