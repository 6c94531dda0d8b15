package bitstream

import (
	"io"
	"math/bits"

	"github.com/pkg/errors"

	"github.com/outofforest/lexicode/types"
)

const (
	// MinLevel is the smallest width of a value.
	MinLevel types.Level = 1

	// MaxLevel is the largest width of a value.
	MaxLevel types.Level = 64
)

// Config stores codec configuration.
type Config struct {
	StartLevel types.Level
	MaxLevel   types.Level

	// OnLevelChange is called whenever the level is switched, cursor points right after the transition.
	OnLevelChange func(from, to types.Level, cursor uint64)
}

// DefaultConfig is the default codec configuration.
var DefaultConfig = Config{
	StartLevel: MinLevel,
	MaxLevel:   MaxLevel,
}

// New creates new codec reading and writing values from/to the buffer.
//
// Each value is written using the smallest width (level) it fits in. Level is not stored, it is signaled inline.
// At level L the values of all ones and all zeros are escapes. Escape followed by a run of ones terminated by zero
// increases the level by the length of the run. Escape followed by a run of zeros terminated by one decreases the
// level. Escape followed by an empty run is the value itself, so the terminator works as a guard bit.
func New(buf Buffer, config Config) (*Codec, error) {
	if config.StartLevel == 0 {
		config.StartLevel = DefaultConfig.StartLevel
	}
	if config.MaxLevel == 0 {
		config.MaxLevel = DefaultConfig.MaxLevel
	}
	if config.MaxLevel > MaxLevel {
		return nil, errors.Errorf("max level %d exceeds the limit %d", config.MaxLevel, MaxLevel)
	}
	if config.StartLevel > config.MaxLevel {
		return nil, errors.Errorf("start level %d is greater than max level %d", config.StartLevel,
			config.MaxLevel)
	}

	return &Codec{
		buf:    buf,
		config: config,
		level:  config.StartLevel,
	}, nil
}

// Codec writes and reads sequences of values, adapting the bit width to each value.
type Codec struct {
	buf    Buffer
	config Config
	level  types.Level
}

// Level returns the current level.
func (c *Codec) Level() types.Level {
	return c.level
}

// Buffer returns the underlying buffer.
func (c *Codec) Buffer() Buffer {
	return c.buf
}

// EOF says if cursor reached the end of the buffer.
func (c *Codec) EOF() bool {
	return c.buf.Cursor() >= c.buf.Len()
}

// WriteValue writes the value, switching the level if required.
func (c *Codec) WriteValue(value uint64) error {
	level := max(MinLevel, types.Level(bits.Len64(value)))
	if level > c.config.MaxLevel {
		return errors.Wrapf(types.ErrValueTooWide, "value %d requires %d bits, max level is %d", value, level,
			c.config.MaxLevel)
	}

	switch {
	case level > c.level:
		if err := c.writeTransition(1, level-c.level); err != nil {
			return err
		}
		c.switchLevel(level)
	case level < c.level:
		if err := c.writeTransition(0, c.level-level); err != nil {
			return err
		}
		c.switchLevel(level)
	}

	if err := c.buf.WriteBits(value, uint8(c.level)); err != nil {
		return err
	}

	switch value {
	case mask(c.level):
		return c.buf.WriteBits(0, 1)
	case 0:
		return c.buf.WriteBits(1, 1)
	default:
		return nil
	}
}

// ReadValue reads next value. io.EOF is returned if there are no more values in the buffer.
func (c *Codec) ReadValue() (uint64, error) {
	if c.EOF() {
		return 0, io.EOF
	}

	for {
		value, err := c.readBits(c.level)
		if err != nil {
			return 0, err
		}

		var bit uint8
		switch value {
		case mask(c.level):
			bit = 1
		case 0:
			bit = 0
		default:
			return value, nil
		}

		run, err := c.readRun(bit)
		if err != nil {
			return 0, err
		}
		if run == 0 {
			// The terminator was the guard bit.
			return value, nil
		}

		if bit == 1 {
			if uint64(c.level)+run > uint64(c.config.MaxLevel) {
				return 0, errors.Wrapf(types.ErrLevelOutOfRange, "level %d raised by %d exceeds %d", c.level, run,
					c.config.MaxLevel)
			}
			c.switchLevel(c.level + types.Level(run))
			continue
		}
		if uint64(c.level) < uint64(MinLevel)+run {
			return 0, errors.Wrapf(types.ErrLevelOutOfRange, "level %d lowered by %d goes below %d", c.level, run,
				MinLevel)
		}
		c.switchLevel(c.level - types.Level(run))
	}
}

// WriteRaw writes count bits of value without level signaling.
func (c *Codec) WriteRaw(value uint64, count uint8) error {
	return c.buf.WriteBits(value, count)
}

// ReadRaw reads count bits without level signaling.
func (c *Codec) ReadRaw(count uint8) (uint64, error) {
	if count > 64 {
		return 0, errors.Errorf("can't read %d bits at once", count)
	}
	return c.readBits(types.Level(count))
}

func (c *Codec) writeTransition(bit uint8, distance types.Level) error {
	escape := uint64(0)
	if bit == 1 {
		escape = mask(c.level)
	}
	if err := c.buf.WriteBits(escape, uint8(c.level)); err != nil {
		return err
	}
	run := uint64(0)
	if bit == 1 {
		run = mask(distance)
	}
	if err := c.buf.WriteBits(run, uint8(distance)); err != nil {
		return err
	}
	return c.buf.WriteBits(uint64(1-bit), 1)
}

func (c *Codec) readBits(count types.Level) (uint64, error) {
	var value uint64
	for range count {
		bit, err := c.buf.ReadBit()
		if err != nil {
			return 0, truncated(err)
		}
		value = value<<1 | uint64(bit)
	}
	return value, nil
}

// readRun counts bits equal to the provided one and consumes the terminating opposite bit.
func (c *Codec) readRun(bit uint8) (uint64, error) {
	var run uint64
	for {
		b, err := c.buf.ReadBit()
		if err != nil {
			return 0, truncated(err)
		}
		if b != bit {
			return run, nil
		}
		run++
		if run > uint64(c.config.MaxLevel) {
			return 0, errors.Wrapf(types.ErrLevelOutOfRange, "transition run longer than %d", c.config.MaxLevel)
		}
	}
}

func (c *Codec) switchLevel(level types.Level) {
	if c.config.OnLevelChange != nil {
		c.config.OnLevelChange(c.level, level, c.buf.Cursor())
	}
	c.level = level
}

func mask(level types.Level) uint64 {
	if level >= 64 {
		return ^uint64(0)
	}
	return 1<<level - 1
}

func truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return errors.WithStack(types.ErrTruncated)
	}
	return err
}
