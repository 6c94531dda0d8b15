package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/outofforest/lexicode/bitstream"
	"github.com/outofforest/lexicode/persistent"
	"github.com/outofforest/lexicode/types"
	"github.com/outofforest/lexicode/vocab"
	"github.com/outofforest/logger"
)

const usage = `Usage: lexicode <command> [flags]

Commands:
  hash-words  build vocabulary from the corpus
  encode      encode text using vocabulary
  decode      decode text using vocabulary
`

const (
	backendFile = "file"
	backendMmap = "mmap"
)

func main() {
	log := logger.New(logger.DefaultConfig)
	ctx := logger.WithLogger(context.Background(), log)

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return errors.New("command is missing")
	}

	switch args[0] {
	case "hash-words":
		return hashWords(ctx, args[1:])
	case "encode":
		return encode(ctx, args[1:])
	case "decode":
		return decode(ctx, args[1:])
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return errors.Errorf("unknown command %q", args[0])
	}
}

func hashWords(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("hash-words", pflag.ContinueOnError)
	input := flags.StringP("input", "i", "", "corpus file, one word per line, optionally followed by comma and count")
	output := flags.StringP("output", "o", "", "vocabulary file to create")
	maxLevel := flags.Uint8("max-level", uint8(types.MaxLevel), "deepest level a word may occupy")
	minCount := flags.Uint64("min-count", 0, "remove words occurring less times")
	optimize := flags.Bool("optimize", false, "move words to the shallowest free slots after building")
	if err := parseFlags(flags, args, "input", "output"); err != nil {
		return err
	}

	config := vocab.DefaultConfig
	config.Table.MaxLevel = types.Level(*maxLevel)
	v, err := vocab.New(config)
	if err != nil {
		return err
	}
	if _, err := v.LoadCorpus(ctx, *input); err != nil {
		return err
	}

	log := logger.Get(ctx)
	if *minCount > 0 {
		removed, err := v.Prune(*minCount)
		if err != nil {
			return err
		}
		log.Info("Rare words removed", zap.Int("words", removed), zap.Uint64("minCount", *minCount))
	}
	if *optimize {
		if err := v.Optimize(); err != nil {
			return err
		}
	}
	v.Freeze()

	if err := v.Save(*output); err != nil {
		return err
	}

	stats := v.Table().Stats()
	log.Info("Vocabulary saved",
		zap.String("path", *output),
		zap.Uint64("words", stats.Words),
		zap.Uint8("level", uint8(stats.CurrentLevel)),
		zap.Uint64("codeBits", stats.CodeBits),
		zap.Any("occupancy", stats.Occupancy))
	return nil
}

func encode(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("encode", pflag.ContinueOnError)
	input := flags.StringP("input", "i", "", "text file to encode")
	vocabulary := flags.StringP("vocab", "v", "", "vocabulary file")
	output := flags.StringP("output", "o", "", "encoded file to create")
	backend := flags.String("backend", backendFile, "storage backend of the encoded file: file or mmap")
	maxLevel := flags.Uint8("max-level", uint8(bitstream.MaxLevel), "widest value allowed in the stream")
	if err := parseFlags(flags, args, "input", "vocab", "output"); err != nil {
		return err
	}

	v, _, err := vocab.Open(ctx, *vocabulary, streamConfig(*maxLevel))
	if err != nil {
		return err
	}
	text, err := os.ReadFile(*input)
	if err != nil {
		return errors.WithStack(err)
	}

	if err := os.Remove(*output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.WithStack(err)
	}
	store, err := openStore(*output, *backend, false)
	if err != nil {
		return err
	}

	tokens := strings.Fields(string(text))
	if err := v.EncodeToStore(store, tokens); err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}

	logger.Get(ctx).Info("Text encoded",
		zap.String("path", *output),
		zap.Int("tokens", len(tokens)),
		zap.Int("inputBytes", len(text)))
	return nil
}

func decode(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("decode", pflag.ContinueOnError)
	input := flags.StringP("input", "i", "", "encoded file")
	vocabulary := flags.StringP("vocab", "v", "", "vocabulary file")
	output := flags.StringP("output", "o", "", "text file to create")
	backend := flags.String("backend", backendFile, "storage backend of the encoded file: file or mmap")
	maxLevel := flags.Uint8("max-level", uint8(bitstream.MaxLevel), "widest value allowed in the stream")
	if err := parseFlags(flags, args, "input", "vocab", "output"); err != nil {
		return err
	}

	v, _, err := vocab.Open(ctx, *vocabulary, streamConfig(*maxLevel))
	if err != nil {
		return err
	}

	store, err := openStore(*input, *backend, true)
	if err != nil {
		return err
	}

	tokens, err := v.DecodeFromStore(store)
	if err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}
	if err := os.WriteFile(*output, []byte(strings.Join(tokens, vocab.Separator)), 0o644); err != nil {
		return errors.WithStack(err)
	}

	logger.Get(ctx).Info("Text decoded", zap.String("path", *output), zap.Int("tokens", len(tokens)))
	return nil
}

func parseFlags(flags *pflag.FlagSet, args []string, required ...string) error {
	if err := flags.Parse(args); err != nil {
		return err
	}
	for _, name := range required {
		if !flags.Changed(name) {
			return errors.Errorf("flag --%s is required", name)
		}
	}
	return nil
}

func streamConfig(maxLevel uint8) vocab.Config {
	config := vocab.DefaultConfig
	config.Stream.MaxLevel = types.Level(maxLevel)
	return config
}

func openStore(path, backend string, readOnly bool) (persistent.Store, error) {
	switch {
	case backend == backendFile && readOnly:
		return persistent.OpenFileStoreReadOnly(path, persistent.DefaultFileConfig)
	case backend == backendFile:
		return persistent.OpenFileStore(path, persistent.DefaultFileConfig)
	case backend == backendMmap && readOnly:
		return persistent.OpenMmapStoreReadOnly(path)
	case backend == backendMmap:
		return persistent.OpenMmapStore(path)
	default:
		return nil, errors.Errorf("unknown backend %q", backend)
	}
}
