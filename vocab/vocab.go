package vocab

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/outofforest/lexicode/bitstream"
	"github.com/outofforest/lexicode/persistent"
	"github.com/outofforest/lexicode/table"
	"github.com/outofforest/lexicode/types"
)

const (
	// valueLiteral marks out-of-vocabulary word in the stream. It is followed by the length and raw bytes.
	valueLiteral uint64 = 1

	// Separator is used to join decoded tokens.
	Separator = " "
)

// Config stores vocabulary configuration.
type Config struct {
	Table  table.Config
	Stream bitstream.Config
}

// DefaultConfig is the default vocabulary configuration.
var DefaultConfig = Config{
	Table:  table.DefaultConfig,
	Stream: bitstream.DefaultConfig,
}

// New creates new empty vocabulary.
func New(config Config) (*Vocabulary, error) {
	if config.Stream.StartLevel == 0 {
		config.Stream.StartLevel = DefaultConfig.Stream.StartLevel
	}
	if config.Stream.MaxLevel == 0 {
		config.Stream.MaxLevel = DefaultConfig.Stream.MaxLevel
	}

	tbl, err := table.New(config.Table)
	if err != nil {
		return nil, err
	}
	return &Vocabulary{
		config: config,
		table:  tbl,
	}, nil
}

// Vocabulary maps words to codes and encodes texts into bitstreams.
// Encoding and decoding do not modify the vocabulary, so they may be called concurrently once the vocabulary is
// frozen.
type Vocabulary struct {
	config Config
	table  *table.Table
}

// Table returns the table storing words.
func (v *Vocabulary) Table() *table.Table {
	return v.table
}

// Freeze stops accepting new words.
func (v *Vocabulary) Freeze() {
	v.table.Freeze()
}

// BuildFromCorpus replaces the content of the vocabulary by words inserted in the order of the corpus.
func (v *Vocabulary) BuildFromCorpus(tokens []string) error {
	tbl, err := table.New(v.config.Table)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if _, err := tbl.Add(token); err != nil {
			return err
		}
	}
	v.table = tbl
	return nil
}

// Add inserts count occurrences of the word.
func (v *Vocabulary) Add(word string, count uint64) (types.Code, error) {
	return v.table.Insert(word, count)
}

// Prune removes words occurring less than minCount times and returns the number of removed words.
func (v *Vocabulary) Prune(minCount uint64) (int, error) {
	var rare []string
	for slot := range v.table.Slots() {
		if slot.Count < minCount {
			rare = append(rare, slot.Word)
		}
	}
	for _, word := range rare {
		if err := v.table.Remove(word); err != nil {
			return 0, err
		}
	}
	return len(rare), nil
}

// Optimize moves words to the shallowest free slots on their hash paths.
func (v *Vocabulary) Optimize() error {
	return v.table.OptimizeAll()
}

// EncodeWord returns the code of the word. Words missing in the vocabulary are encoded as literals.
func (v *Vocabulary) EncodeWord(word string) types.Code {
	slot, err := v.table.Lookup(word)
	if err != nil {
		return types.Code{
			Literal: append([]byte{}, word...),
		}
	}
	return slot.Code()
}

// DecodeWord returns the word represented by the code.
func (v *Vocabulary) DecodeWord(code types.Code) (string, error) {
	if code.IsLiteral() {
		return string(code.Literal), nil
	}

	word, err := v.table.Decode(code.Level, code.Index)
	if err == nil {
		return word, nil
	}
	if word, ok := literalFromIndex(code); ok {
		return word, nil
	}
	return "", err
}

// Encode encodes whitespace-separated tokens of the text into the self-describing stream.
func (v *Vocabulary) Encode(text string) ([]byte, error) {
	buf, err := bitstream.NewMemoryBuffer(nil, 0)
	if err != nil {
		return nil, err
	}
	s, err := bitstream.New(buf, v.config.Stream)
	if err != nil {
		return nil, err
	}
	if err := v.EncodeTokens(s, strings.Fields(text)); err != nil {
		return nil, err
	}

	header := persistent.NewHeader(buf.Len(), uint64(v.config.Stream.StartLevel))
	return append(header.Bytes(), buf.Bytes()...), nil
}

// Decode decodes the stream produced by Encode. Tokens are joined by single separator.
func (v *Vocabulary) Decode(data []byte) (string, error) {
	header, err := persistent.ParseHeader(data)
	if err != nil {
		return "", err
	}
	buf, err := bitstream.NewMemoryBuffer(data[persistent.HeaderSize:], header.BitLength)
	if err != nil {
		return "", err
	}
	s, err := bitstream.New(buf, v.streamConfig(header))
	if err != nil {
		return "", err
	}
	tokens, err := v.DecodeTokens(s)
	if err != nil {
		return "", err
	}
	return strings.Join(tokens, Separator), nil
}

// EncodeToStore encodes the tokens into the persistent store, starting from its beginning.
func (v *Vocabulary) EncodeToStore(store persistent.Store, tokens []string) error {
	startLevel := uint64(v.config.Stream.StartLevel)
	if err := persistent.WriteHeader(store, persistent.NewHeader(0, startLevel)); err != nil {
		return err
	}
	buf, err := bitstream.NewPagedBuffer(store, persistent.HeaderSize, 0)
	if err != nil {
		return err
	}
	s, err := bitstream.New(buf, v.config.Stream)
	if err != nil {
		return err
	}
	if err := v.EncodeTokens(s, tokens); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	return persistent.WriteHeader(store, persistent.NewHeader(buf.Len(), startLevel))
}

// DecodeFromStore decodes tokens stored in the persistent store.
func (v *Vocabulary) DecodeFromStore(store persistent.Store) ([]string, error) {
	header, err := persistent.ReadHeader(store)
	if err != nil {
		return nil, err
	}
	buf, err := bitstream.NewPagedBuffer(store, persistent.HeaderSize, header.BitLength)
	if err != nil {
		return nil, err
	}
	s, err := bitstream.New(buf, v.streamConfig(header))
	if err != nil {
		return nil, err
	}
	return v.DecodeTokens(s)
}

// EncodeTokens writes codes of the tokens to the stream.
func (v *Vocabulary) EncodeTokens(s *bitstream.Codec, tokens []string) error {
	for _, token := range tokens {
		if err := WriteCode(s, v.EncodeWord(token)); err != nil {
			return errors.WithMessagef(err, "encoding token %q failed", token)
		}
	}
	return nil
}

// DecodeTokens reads all the tokens from the stream.
func (v *Vocabulary) DecodeTokens(s *bitstream.Codec) ([]string, error) {
	tokens := []string{}
	for {
		code, err := ReadCode(s)
		if errors.Is(err, io.EOF) {
			return tokens, nil
		}
		if err != nil {
			return nil, err
		}
		word, err := v.DecodeWord(code)
		if err != nil {
			return nil, errors.WithMessagef(err, "decoding token %d failed", len(tokens))
		}
		tokens = append(tokens, word)
	}
}

func (v *Vocabulary) streamConfig(header persistent.Header) bitstream.Config {
	config := v.config.Stream
	config.StartLevel = types.Level(header.StartLevel)
	return config
}

// WriteCode writes the code to the stream.
func WriteCode(s *bitstream.Codec, code types.Code) error {
	if !code.IsLiteral() {
		return s.WriteValue(code.ID())
	}

	if err := s.WriteValue(valueLiteral); err != nil {
		return err
	}
	if err := s.WriteValue(uint64(len(code.Literal))); err != nil {
		return err
	}
	for _, b := range code.Literal {
		if err := s.WriteRaw(uint64(b), types.CharBits); err != nil {
			return err
		}
	}
	return nil
}

// ReadCode reads the code from the stream. io.EOF is returned if there are no more codes.
func ReadCode(s *bitstream.Codec) (types.Code, error) {
	value, err := s.ReadValue()
	if err != nil {
		return types.Code{}, err
	}

	if value != valueLiteral {
		code, ok := types.CodeFromID(value)
		if !ok {
			return types.Code{}, errors.Wrapf(types.ErrUnknownCode, "reserved value %d", value)
		}
		return code, nil
	}

	length, err := s.ReadValue()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return types.Code{}, errors.WithStack(types.ErrTruncated)
		}
		return types.Code{}, err
	}
	buf := s.Buffer()
	if remaining := buf.Len() - buf.Cursor(); length > remaining/types.CharBits {
		return types.Code{}, errors.Wrapf(types.ErrTruncated, "literal of %d bytes", length)
	}

	literal := make([]byte, 0, length)
	for range length {
		b, err := s.ReadRaw(types.CharBits)
		if err != nil {
			return types.Code{}, err
		}
		literal = append(literal, byte(b))
	}
	return types.Code{Literal: literal}, nil
}

// literalFromIndex reinterprets code not addressing any word as bytes of the word encoded using fixed width.
func literalFromIndex(code types.Code) (string, bool) {
	if code.Level == 0 || code.Level%types.CharBits != 0 {
		return "", false
	}

	n := int(code.Level / types.CharBits)
	word := make([]byte, n)
	for i := range n {
		b := byte(code.Index >> (uint(n-1-i) * types.CharBits))
		if b == 0 {
			return "", false
		}
		word[i] = b
	}
	if !utf8.Valid(word) {
		return "", false
	}
	return string(word), true
}
