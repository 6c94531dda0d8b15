package table

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/lexicode/hash"
	"github.com/outofforest/lexicode/types"
)

// OptimizeGroupPlacement repacks the words sharing the hash path of the provided word.
// Members of the group are processed in the ascending order of their digests and each one is moved to the
// shallowest free slot on its path. Word is never moved deeper than it was.
func (t *Table) OptimizeGroupPlacement(word string) error {
	if t.frozen {
		return errors.WithStack(types.ErrFrozen)
	}

	var d types.Digest
	if e := t.words[word]; e != nil {
		d = e.digest
	} else {
		d = t.config.Hasher.Digest(word)
	}

	group := t.sameHashRoot(d)
	sort.SliceStable(group, func(i, j int) bool {
		return hash.Compare(group[i].digest, group[j].digest) < 0
	})

	for _, e := range group {
		prevLevel, prevIndex := e.slot.Level, e.slot.Index
		delete(t.levels[prevLevel], prevIndex)

		// The search is bounded by the previous level and the slot freed above is always there.
		placed := false
		for level := t.config.MinLevel; level <= prevLevel; level++ {
			index := hash.Prefix(e.digest, level)
			if t.levels[level][index] != nil {
				continue
			}
			t.place(e, level, index)
			placed = true
			break
		}
		if !placed {
			t.place(e, prevLevel, prevIndex)
			return errors.Wrapf(types.ErrNoPlacement, "word %q at level %d", e.slot.Word, prevLevel)
		}
	}

	return nil
}

// OptimizeAll runs group optimization for every word in the order of insertion.
func (t *Table) OptimizeAll() error {
	if t.frozen {
		return errors.WithStack(types.ErrFrozen)
	}

	entries := lo.Values(t.words)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})
	for _, e := range entries {
		if err := t.OptimizeGroupPlacement(e.slot.Word); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) sameHashRoot(d types.Digest) []*entry {
	group := []*entry{}
	for level := t.config.MinLevel; level <= t.currentLevel; level++ {
		if e := t.levels[level][hash.Prefix(d, level)]; e != nil {
			group = append(group, e)
		}
	}
	return group
}
