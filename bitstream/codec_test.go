package bitstream

import (
	"io"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/lexicode/persistent"
	"github.com/outofforest/lexicode/types"
)

type levelChange struct {
	From types.Level
	To   types.Level
}

func newCodec(requireT *require.Assertions, buf Buffer, changes *[]levelChange) *Codec {
	config := DefaultConfig
	if changes != nil {
		config.OnLevelChange = func(from, to types.Level, _ uint64) {
			*changes = append(*changes, levelChange{From: from, To: to})
		}
	}
	c, err := New(buf, config)
	requireT.NoError(err)
	return c
}

func bitString(requireT *require.Assertions, buf Buffer) string {
	requireT.NoError(buf.SetCursor(0))
	var sb strings.Builder
	for {
		bit, err := buf.ReadBit()
		if err == io.EOF {
			return sb.String()
		}
		requireT.NoError(err)
		sb.WriteByte('0' + bit)
	}
}

var (
	goldenValues = []uint64{1, 0, 1, 3, 2, 1, 0, 1, 0, 4, 5, 7, 6, 1}
	goldenLevels = []types.Level{1, 1, 1, 2, 2, 1, 1, 1, 1, 3, 3, 3, 3, 1}
	goldenBits   = []string{
		"1" + "0",
		"0" + "1",
		"1" + "0",
		"1" + "1" + "0" + "11" + "0",
		"10",
		"00" + "0" + "1" + "1" + "0",
		"0" + "1",
		"1" + "0",
		"0" + "1",
		"1" + "11" + "0" + "100",
		"101",
		"111" + "0",
		"110",
		"000" + "00" + "1" + "1" + "0",
	}
	goldenChanges = []levelChange{
		{From: 1, To: 2},
		{From: 2, To: 1},
		{From: 1, To: 3},
		{From: 3, To: 1},
	}
)

func TestGoldenVector(t *testing.T) {
	requireT := require.New(t)

	buf, err := NewMemoryBuffer(nil, 0)
	requireT.NoError(err)

	var changes []levelChange
	c := newCodec(requireT, buf, &changes)

	levels := make([]types.Level, 0, len(goldenValues))
	for _, v := range goldenValues {
		requireT.NoError(c.WriteValue(v))
		levels = append(levels, c.Level())
	}
	requireT.Equal(goldenLevels, levels)
	requireT.Equal(goldenChanges, changes)
	requireT.Equal(strings.Join(goldenBits, ""), bitString(requireT, buf))

	requireT.NoError(buf.SetCursor(0))
	changes = nil
	c = newCodec(requireT, buf, &changes)

	values := make([]uint64, 0, len(goldenValues))
	levels = levels[:0]
	for {
		v, err := c.ReadValue()
		if err == io.EOF {
			break
		}
		requireT.NoError(err)
		values = append(values, v)
		levels = append(levels, c.Level())
	}
	requireT.Equal(goldenValues, values)
	requireT.Equal(goldenLevels, levels)
	requireT.Equal(goldenChanges, changes)
}

func TestRandomValues(t *testing.T) {
	buffers := map[string]func(requireT *require.Assertions) Buffer{
		"memory": func(requireT *require.Assertions) Buffer {
			buf, err := NewMemoryBuffer(nil, 0)
			requireT.NoError(err)
			return buf
		},
		"paged": func(requireT *require.Assertions) Buffer {
			buf, err := NewPagedBuffer(persistent.NewMemoryStore(nil), 0, 0)
			requireT.NoError(err)
			return buf
		},
	}

	for name, newBuffer := range buffers {
		t.Run(name, func(t *testing.T) {
			requireT := require.New(t)
			rnd := rand.New(rand.NewSource(1))

			values := make([]uint64, 0, 10000)
			for range cap(values) {
				// Mix of widths including boundary values.
				width := rnd.Intn(65)
				var v uint64
				switch rnd.Intn(4) {
				case 0:
					v = mask(types.Level(width))
				case 1:
					v = 0
				default:
					v = rnd.Uint64() & mask(types.Level(width))
				}
				values = append(values, v)
			}

			buf := newBuffer(requireT)
			c := newCodec(requireT, buf, nil)
			for _, v := range values {
				requireT.NoError(c.WriteValue(v))
			}

			requireT.NoError(buf.SetCursor(0))
			c = newCodec(requireT, buf, nil)
			for _, v := range values {
				v2, err := c.ReadValue()
				requireT.NoError(err)
				requireT.Equal(v, v2)
			}
			_, err := c.ReadValue()
			requireT.ErrorIs(err, io.EOF)
			requireT.True(c.EOF())
		})
	}
}

func TestRawBits(t *testing.T) {
	requireT := require.New(t)

	buf, err := NewMemoryBuffer(nil, 0)
	requireT.NoError(err)
	c := newCodec(requireT, buf, nil)

	requireT.NoError(c.WriteValue(6))
	requireT.NoError(c.WriteRaw('h', types.CharBits))
	requireT.NoError(c.WriteRaw('i', types.CharBits))
	requireT.NoError(c.WriteValue(5))

	requireT.NoError(buf.SetCursor(0))
	c = newCodec(requireT, buf, nil)

	v, err := c.ReadValue()
	requireT.NoError(err)
	requireT.EqualValues(6, v)
	ch, err := c.ReadRaw(types.CharBits)
	requireT.NoError(err)
	requireT.EqualValues('h', ch)
	ch, err = c.ReadRaw(types.CharBits)
	requireT.NoError(err)
	requireT.EqualValues('i', ch)
	v, err = c.ReadValue()
	requireT.NoError(err)
	requireT.EqualValues(5, v)

	_, err = c.ReadRaw(65)
	requireT.Error(err)
	_, err = c.ReadRaw(1)
	requireT.ErrorIs(err, types.ErrTruncated)
}

func TestValueTooWide(t *testing.T) {
	requireT := require.New(t)

	buf, err := NewMemoryBuffer(nil, 0)
	requireT.NoError(err)
	c, err := New(buf, Config{MaxLevel: 8})
	requireT.NoError(err)

	requireT.NoError(c.WriteValue(255))
	requireT.ErrorIs(c.WriteValue(256), types.ErrValueTooWide)
}

func TestInvalidConfig(t *testing.T) {
	requireT := require.New(t)

	buf, err := NewMemoryBuffer(nil, 0)
	requireT.NoError(err)

	_, err = New(buf, Config{MaxLevel: 65})
	requireT.Error(err)
	_, err = New(buf, Config{StartLevel: 10, MaxLevel: 8})
	requireT.Error(err)
}

func TestStartLevel(t *testing.T) {
	requireT := require.New(t)

	buf, err := NewMemoryBuffer(nil, 0)
	requireT.NoError(err)
	c, err := New(buf, Config{StartLevel: 4})
	requireT.NoError(err)

	requireT.NoError(c.WriteValue(9))
	requireT.Equal("1001", bitString(requireT, buf))
}

func TestTruncatedStream(t *testing.T) {
	requireT := require.New(t)

	buf, err := NewMemoryBuffer(nil, 0)
	requireT.NoError(err)
	c := newCodec(requireT, buf, nil)
	requireT.NoError(c.WriteValue(1000))

	// Cut the last bit.
	truncatedBuf, err := NewMemoryBuffer(buf.Bytes(), buf.Len()-1)
	requireT.NoError(err)
	c = newCodec(requireT, truncatedBuf, nil)
	_, err = c.ReadValue()
	requireT.ErrorIs(err, types.ErrTruncated)

	// Stream ending inside the transition run.
	truncatedBuf, err = NewMemoryBuffer([]byte{0b11100000}, 3)
	requireT.NoError(err)
	c = newCodec(requireT, truncatedBuf, nil)
	_, err = c.ReadValue()
	requireT.ErrorIs(err, types.ErrTruncated)
}

func TestCorruptedLevels(t *testing.T) {
	requireT := require.New(t)

	// Level 1 escape followed by too many zeros goes below the minimum level.
	buf, err := NewMemoryBuffer([]byte{0b00100000}, 3)
	requireT.NoError(err)
	c := newCodec(requireT, buf, nil)
	_, err = c.ReadValue()
	requireT.ErrorIs(err, types.ErrLevelOutOfRange)

	// Run of ones exceeding the max level.
	buf, err = NewMemoryBuffer([]byte{0xff, 0xf0}, 12)
	requireT.NoError(err)
	c, err = New(buf, Config{MaxLevel: 8})
	requireT.NoError(err)
	_, err = c.ReadValue()
	requireT.ErrorIs(err, types.ErrLevelOutOfRange)
}

func TestMemoryBuffer(t *testing.T) {
	requireT := require.New(t)

	buf, err := NewMemoryBuffer(nil, 0)
	requireT.NoError(err)
	requireT.NoError(buf.WriteBits(0b101, 3))
	requireT.NoError(buf.WriteBits(0xffff, 16))
	requireT.EqualValues(19, buf.Len())
	requireT.Equal([]byte{0b10111111, 0xff, 0b11100000}, buf.Bytes())

	// Overwrite in the middle.
	requireT.NoError(buf.SetCursor(1))
	requireT.NoError(buf.WriteBits(1, 1))
	requireT.EqualValues(19, buf.Len())
	requireT.Equal("1111111111111111111", bitString(requireT, buf))

	requireT.Error(buf.SetCursor(20))
	requireT.Error(buf.WriteBits(0, 65))

	_, err = NewMemoryBuffer([]byte{0x00}, 9)
	requireT.Error(err)
}

func TestPagedBufferOverFile(t *testing.T) {
	requireT := require.New(t)
	path := filepath.Join(t.TempDir(), "bits")

	store, err := persistent.OpenFileStore(path, persistent.FileConfig{
		PageSize:   16,
		CachePages: 2,
	})
	requireT.NoError(err)

	requireT.NoError(persistent.WriteHeader(store, persistent.NewHeader(0, 1)))
	buf, err := NewPagedBuffer(store, persistent.HeaderSize, 0)
	requireT.NoError(err)

	c := newCodec(requireT, buf, nil)
	for i := range uint64(1000) {
		requireT.NoError(c.WriteValue(i * i))
	}
	requireT.NoError(buf.Flush())
	requireT.NoError(persistent.WriteHeader(store, persistent.NewHeader(buf.Len(), 1)))
	requireT.NoError(store.Close())

	store, err = persistent.OpenFileStore(path, persistent.FileConfig{
		PageSize:   16,
		CachePages: 2,
	})
	requireT.NoError(err)
	t.Cleanup(func() {
		_ = store.Close()
	})

	header, err := persistent.ReadHeader(store)
	requireT.NoError(err)
	requireT.Equal(buf.Len(), header.BitLength)

	buf, err = NewPagedBuffer(store, persistent.HeaderSize, header.BitLength)
	requireT.NoError(err)
	c = newCodec(requireT, buf, nil)
	for i := range uint64(1000) {
		v, err := c.ReadValue()
		requireT.NoError(err)
		requireT.Equal(i*i, v)
	}
	requireT.True(c.EOF())

	_, err = NewPagedBuffer(store, persistent.HeaderSize, header.BitLength+8)
	requireT.Error(err)
}
