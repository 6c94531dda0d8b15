package table_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/lexicode/hash"
	"github.com/outofforest/lexicode/table"
	"github.com/outofforest/lexicode/test"
	"github.com/outofforest/lexicode/types"
)

func TestOptimizeGroupPlacementMovesWordsUp(t *testing.T) {
	requireT := require.New(t)
	tbl := newTable(requireT, map[string]types.Digest{
		"a": test.Digest("0"),
		"b": test.Digest("001"),
		"c": test.Digest("0001"),
	})

	for _, w := range []string{"a", "b", "c"} {
		_, err := tbl.Add(w)
		requireT.NoError(err)
	}
	requireT.Equal(map[string]types.Code{
		"a": {Level: 1, Index: 0},
		"b": {Level: 2, Index: 0},
		"c": {Level: 3, Index: 0},
	}, test.CollectCodes(tbl))

	requireT.NoError(tbl.Remove("a"))
	requireT.NoError(tbl.OptimizeGroupPlacement("c"))

	// Digest of c is lower than the one of b so c is processed first and takes the freed slot.
	requireT.Equal(map[string]types.Code{
		"b": {Level: 2, Index: 0},
		"c": {Level: 1, Index: 0},
	}, test.CollectCodes(tbl))

	word, err := tbl.Decode(1, 0)
	requireT.NoError(err)
	requireT.Equal("c", word)
	_, err = tbl.Decode(3, 0)
	requireT.ErrorIs(err, types.ErrUnknownCode)
}

func TestOptimizeGroupPlacementOfMissingWord(t *testing.T) {
	requireT := require.New(t)
	tbl := newTable(requireT, map[string]types.Digest{
		"a": test.Digest("0"),
		"b": test.Digest("01"),
		"z": test.Digest("011"),
	})

	for _, w := range []string{"a", "b"} {
		_, err := tbl.Add(w)
		requireT.NoError(err)
	}
	requireT.NoError(tbl.Remove("a"))

	// Word z is not stored but its path crosses the slot of b.
	requireT.NoError(tbl.OptimizeGroupPlacement("z"))
	requireT.Equal(map[string]types.Code{
		"b": {Level: 1, Index: 0},
	}, test.CollectCodes(tbl))
}

func TestOptimizeWithoutHolesChangesNothing(t *testing.T) {
	requireT := require.New(t)
	tbl := newTable(requireT, nil)

	for _, w := range test.Words(3000) {
		_, err := tbl.Add(w)
		requireT.NoError(err)
	}

	before := test.CollectCodes(tbl)
	requireT.NoError(tbl.OptimizeAll())
	requireT.Equal(before, test.CollectCodes(tbl))
}

func TestOptimizeNeverMovesWordsDeeper(t *testing.T) {
	requireT := require.New(t)
	tbl := newTable(requireT, nil)

	words := test.Words(5000)
	for _, w := range words {
		_, err := tbl.Add(w)
		requireT.NoError(err)
	}
	for i := 0; i < len(words); i += 3 {
		requireT.NoError(tbl.Remove(words[i]))
	}

	before := test.CollectCodes(tbl)
	requireT.NoError(tbl.OptimizeAll())
	after := test.CollectCodes(tbl)

	requireT.Len(after, len(before))

	h := hash.NewBlake3()
	var moved int
	for w, code := range after {
		requireT.LessOrEqual(code.Level, before[w].Level)
		if code.Level < before[w].Level {
			moved++
		}
		requireT.Equal(hash.Prefix(h.Digest(w), code.Level), code.Index)

		word, err := tbl.Decode(code.Level, code.Index)
		requireT.NoError(err)
		requireT.Equal(w, word)
	}
	requireT.Positive(moved)
}

func TestOptimizeFrozen(t *testing.T) {
	requireT := require.New(t)
	tbl, err := table.New(table.DefaultConfig)
	requireT.NoError(err)

	tbl.Freeze()
	requireT.ErrorIs(tbl.OptimizeAll(), types.ErrFrozen)

	tbl, err = table.New(table.DefaultConfig)
	requireT.NoError(err)
	_, err = tbl.Add("word")
	requireT.NoError(err)
	tbl.Freeze()
	requireT.ErrorIs(tbl.OptimizeAll(), types.ErrFrozen)
	requireT.ErrorIs(tbl.OptimizeGroupPlacement("word"), types.ErrFrozen)
}
