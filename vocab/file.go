package vocab

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/lexicode/types"
	"github.com/outofforest/logger"
)

const maxLineSize = 1024 * 1024

// Record is the line of the vocabulary file.
// JSON strings can't carry invalid UTF-8, so the bytes of such word are stored in Raw, while Word keeps its
// readable form.
type Record struct {
	Word  string      `json:"word"`
	Raw   []byte      `json:"raw,omitempty"`
	ID    uint64      `json:"id"`
	Level types.Level `json:"level"`
	Index types.Index `json:"index"`
	Count uint64      `json:"count"`
}

// MalformedRecord describes the line skipped while loading a file.
type MalformedRecord struct {
	Line int
	Text string
	Err  error
}

func (r MalformedRecord) Error() string {
	return fmt.Sprintf("line %d (%q): %s", r.Line, r.Text, r.Err)
}

// Save stores the vocabulary in the file, one JSON record per line, ordered by level and index.
func (v *Vocabulary) Save(path string) (retErr error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		if err := f.Close(); err != nil && retErr == nil {
			retErr = errors.WithStack(err)
		}
	}()

	w := bufio.NewWriter(f)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	for slot := range v.table.Slots() {
		r := Record{
			Word:  slot.Word,
			ID:    slot.Code().ID(),
			Level: slot.Level,
			Index: slot.Index,
			Count: slot.Count,
		}
		if !utf8.ValidString(slot.Word) {
			r.Word = strings.ToValidUTF8(slot.Word, string(utf8.RuneError))
			r.Raw = []byte(slot.Word)
		}
		if err := encoder.Encode(r); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(w.Flush())
}

// Open loads the vocabulary saved by Save. Missing file produces empty vocabulary. Invalid lines are skipped and
// returned. Returned vocabulary is frozen.
func Open(ctx context.Context, path string, config Config) (*Vocabulary, []MalformedRecord, error) {
	log := logger.Get(ctx)

	v, err := New(config)
	if err != nil {
		return nil, nil, err
	}
	defer v.Freeze()

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("Vocabulary file does not exist, starting with empty one", zap.String("path", path))
		return v, nil, nil
	}
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	defer f.Close()

	var malformed []MalformedRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineSize)
	var line int
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := v.restore(text); err != nil {
			malformed = append(malformed, MalformedRecord{Line: line, Text: text, Err: err})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, errors.WithStack(err)
	}

	for _, r := range malformed {
		log.Warn("Skipping malformed vocabulary record", zap.Int("line", r.Line), zap.Error(r.Err))
	}
	log.Info("Vocabulary loaded",
		zap.String("path", path),
		zap.Int("words", v.table.Len()),
		zap.Uint8("level", uint8(v.table.CurrentLevel())))

	return v, malformed, nil
}

func (v *Vocabulary) restore(text string) error {
	var r Record
	if err := json.Unmarshal([]byte(text), &r); err != nil {
		return errors.WithStack(err)
	}
	code, ok := types.CodeFromID(r.ID)
	if !ok {
		return errors.Wrapf(types.ErrUnknownCode, "reserved id %d", r.ID)
	}
	if code.Level != r.Level || code.Index != r.Index {
		return errors.Errorf("id %d does not match slot (%d, %d)", r.ID, r.Level, r.Index)
	}
	word := r.Word
	if r.Raw != nil {
		word = string(r.Raw)
	}
	return v.table.Restore(types.Slot{
		Word:  word,
		Count: r.Count,
		Level: code.Level,
		Index: code.Index,
	})
}

// LoadCorpus inserts words listed in the corpus file. Each line contains the word and optionally its count,
// separated by comma. If count is missing, it is derived from the position of the line, so words listed earlier
// are treated as more frequent.
func (v *Vocabulary) LoadCorpus(ctx context.Context, path string) ([]MalformedRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\n")
	var malformed []MalformedRecord
	for i, text := range lines {
		text = strings.TrimRight(text, "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		word, count, err := parseCorpusLine(text, uint64(len(lines)-i))
		if err != nil {
			malformed = append(malformed, MalformedRecord{Line: i + 1, Text: text, Err: err})
			continue
		}
		if _, err := v.Add(word, count); err != nil {
			return malformed, errors.WithMessagef(err, "inserting word from line %d failed", i+1)
		}
	}

	log := logger.Get(ctx)
	for _, r := range malformed {
		log.Warn("Skipping malformed corpus record", zap.Int("line", r.Line), zap.Error(r.Err))
	}
	stats := v.table.Stats()
	log.Info("Corpus loaded",
		zap.String("path", path),
		zap.Uint64("words", stats.Words),
		zap.Uint8("level", uint8(stats.CurrentLevel)),
		zap.Uint64("codeBits", stats.CodeBits))

	return malformed, nil
}

func parseCorpusLine(text string, rank uint64) (string, uint64, error) {
	word, countText, hasCount := strings.Cut(text, ",")
	word = strings.TrimSpace(word)
	if word == "" {
		return "", 0, errors.New("empty word")
	}
	if strings.ContainsFunc(word, unicode.IsSpace) {
		return "", 0, errors.Errorf("word %q contains whitespace", word)
	}
	if !hasCount || strings.TrimSpace(countText) == "" {
		return word, rank, nil
	}

	count, err := strconv.ParseUint(strings.TrimSpace(countText), 10, 64)
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid count %q", countText)
	}
	return word, count, nil
}
