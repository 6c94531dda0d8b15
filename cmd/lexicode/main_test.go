package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/lexicode/test"
	"github.com/outofforest/lexicode/types"
	"github.com/outofforest/logger"
)

func TestHashWordsEncodeDecode(t *testing.T) {
	for _, backend := range []string{backendFile, backendMmap} {
		t.Run(backend, func(t *testing.T) {
			requireT := require.New(t)
			ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))
			dir := t.TempDir()

			words := test.Words(200)
			corpus := filepath.Join(dir, "corpus.csv")
			requireT.NoError(os.WriteFile(corpus, []byte(strings.Join(words, "\n")+"\n"), 0o600))

			text := strings.Join(append(append([]string{}, words[:50]...), "unknown", "words", words[7]), " ")
			input := filepath.Join(dir, "text.txt")
			requireT.NoError(os.WriteFile(input, []byte(text+"\n"), 0o600))

			vocabFile := filepath.Join(dir, "vocab.jsonl")
			encoded := filepath.Join(dir, "text.lxc")
			output := filepath.Join(dir, "decoded.txt")

			requireT.NoError(run(ctx, []string{"hash-words", "-i", corpus, "-o", vocabFile, "--min-count", "50",
				"--optimize"}))
			requireT.NoError(run(ctx, []string{"encode", "-i", input, "-v", vocabFile, "-o", encoded,
				"--backend", backend}))
			encodedBefore, err := os.ReadFile(encoded)
			requireT.NoError(err)
			requireT.NoError(os.Chmod(encoded, 0o400))

			requireT.NoError(run(ctx, []string{"decode", "-i", encoded, "-v", vocabFile, "-o", output,
				"--backend", backend, "--max-level", "32"}))

			decoded, err := os.ReadFile(output)
			requireT.NoError(err)
			requireT.Equal(text, string(decoded))

			// Decoding leaves the input untouched.
			encodedAfter, err := os.ReadFile(encoded)
			requireT.NoError(err)
			requireT.Equal(encodedBefore, encodedAfter)

			// Codes of the vocabulary do not fit into values of 2 bits.
			err = run(ctx, []string{"encode", "-i", input, "-v", vocabFile, "-o", filepath.Join(dir, "narrow.lxc"),
				"--backend", backend, "--max-level", "2"})
			requireT.ErrorIs(err, types.ErrValueTooWide)
		})
	}
}

func TestInvalidInvocations(t *testing.T) {
	requireT := require.New(t)
	ctx := logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig))
	dir := t.TempDir()

	requireT.Error(run(ctx, nil))
	requireT.Error(run(ctx, []string{"compress"}))
	requireT.Error(run(ctx, []string{"hash-words", "-i", filepath.Join(dir, "corpus.csv")}))
	requireT.Error(run(ctx, []string{"encode", "-i", "a", "-v", "b", "-o", "c", "--backend", "tape"}))
	requireT.Error(run(ctx, []string{"decode", "-i", filepath.Join(dir, "missing.lxc"), "-v", "b", "-o", "c"}))
}
