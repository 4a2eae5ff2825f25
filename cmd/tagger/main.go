// Command tagger trains and runs the hashed-feature averaged perceptron
// tagger described in SPEC_FULL.md, generalizing the pipeline trainer's
// flag-and-config-driven main() to this domain.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/atotto/clipboard"

	"github.com/lab/tagger/internal/config"
	"github.com/lab/tagger/internal/corpus"
	"github.com/lab/tagger/internal/errs"
	"github.com/lab/tagger/internal/logging"
	"github.com/lab/tagger/internal/server"
	"github.com/lab/tagger/pkg/decode"
	"github.com/lab/tagger/pkg/features"
	"github.com/lab/tagger/pkg/modelio"
	"github.com/lab/tagger/pkg/tagset"
	"github.com/lab/tagger/pkg/train"
)

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <train|tag> [flags]\n", os.Args[0])
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "train":
		runTrain(os.Args[2:])
	case "tag":
		runTag(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func loadLogger(configFile string, verbose bool) (*logging.Logger, *config.Config) {
	cfg, err := config.Load(configFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return logger, cfg
}

func runTrain(args []string) {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	configFile := fs.String("config", "", "path to a JSON configuration file")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	serveAddr := fs.String("serve", "", "if set, run the status server on this address (e.g. :8080)")
	tagsFile := fs.String("tags", "", "path to the newline-separated tag vocabulary")
	trainData := fs.String("train", "", "path to tab-separated training data")
	tuneData := fs.String("tune", "", "path to tab-separated tuning data")
	modelOut := fs.String("model", "model.bin", "path to write the trained model")
	fs.Parse(args)

	logger, cfg := loadLogger(*configFile, *verbose)

	tags, err := loadTagList(*tagsFile)
	if err != nil {
		logger.Fatal("loading tag list: %v", err)
	}
	ts, err := tagset.New(tags)
	if err != nil {
		logger.Fatal("building tag set: %v", err)
	}

	e := features.New(features.Config{
		MinStem:    cfg.Training.MinStem,
		AffixLen:   cfg.Training.AffixLen,
		NSecondary: cfg.Training.NSecondary,
	})

	trainSet, err := loadSentences(*trainData, e, ts, cfg.Training.NSecondary)
	if err != nil {
		logger.Fatal("loading training data: %v", err)
	}
	tuneSet, err := loadSentences(*tuneData, e, ts, cfg.Training.NSecondary)
	if err != nil {
		logger.Fatal("loading tuning data: %v", err)
	}
	logger.Info("training data contains %d sentences", len(trainSet))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.Server.Enabled || *serveAddr != "" {
		addr := cfg.Server.Addr
		if *serveAddr != "" {
			addr = *serveAddr
		}
		srv := server.New(addr, logger)
		srv.Start()
		defer srv.Shutdown(ctx)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received interrupt, cancelling training")
		cancel()
		os.Exit(1)
	}()

	evaluate := evaluatorFor(e, ts, tuneSet, cfg.Decode.BeamWidth)

	result, err := train.Sweep(e, ts.Len(), trainSet, evaluate, train.SweepConfig{
		MinWeightsLen: cfg.Training.MinWeightsLen,
		MaxWeightsLen: cfg.Training.MaxWeightsLen,
		MaxPatience:   cfg.Training.MaxPatience,
		MaxEpochs:     cfg.Training.MaxEpochs,
		Seed:          cfg.Training.Seed,
		ModelPath:     *modelOut,
		FoldTolerance: cfg.Training.FoldTolerance,
		Logger:        logger,
	})
	if err != nil {
		logger.Fatal("training failed: %v", err)
	}

	if err := modelio.Write(*modelOut, result.Weights); err != nil {
		logger.Fatal("writing final model: %v", err)
	}
	logger.Info("training complete: weights_len=0x%x best_error=%.4f%% digest=%s",
		result.WeightsLen, 100*result.BestError, modelio.Digest(result.Weights))

	if err := clipboard.WriteAll(*modelOut); err == nil {
		logger.Info("copied model path to clipboard")
	}
}

func evaluatorFor(e *features.Extractor, ts *tagset.Set, tuneSet []train.Sentence, beamWidth int) train.Evaluator {
	return func(weights []float32) (float64, error) {
		w := decode.Weights(weights)
		var nErrs, nTotal int
		for _, s := range tuneSet {
			pred := decode.Beam(e, w, s.Invariants, ts.Len(), beamWidth, decode.DropoutConfig{})
			for i := range s.Gold {
				nTotal++
				if pred[i] != s.Gold[i] {
					nErrs++
				}
			}
		}
		if nTotal == 0 {
			return 1.0, nil
		}
		return float64(nErrs) / float64(nTotal), nil
	}
}

func runTag(args []string) {
	fs := flag.NewFlagSet("tag", flag.ExitOnError)
	configFile := fs.String("config", "", "path to a JSON configuration file")
	verbose := fs.Bool("verbose", false, "enable debug logging")
	modelPath := fs.String("model", "model.bin", "path to a trained model")
	tagsFile := fs.String("tags", "", "path to the newline-separated tag vocabulary")
	input := fs.String("in", "", "input file (tab-separated); defaults to stdin")
	output := fs.String("out", "", "output file; defaults to stdout")
	evaluateMode := fs.Bool("evaluate", false, "evaluate-only mode: input carries gold tags, no output is written")
	fs.Parse(args)

	logger, cfg := loadLogger(*configFile, *verbose)

	tags, err := loadTagList(*tagsFile)
	if err != nil {
		logger.Fatal("loading tag list: %v", err)
	}
	ts, err := tagset.New(tags)
	if err != nil {
		logger.Fatal("building tag set: %v", err)
	}
	weights, err := modelio.Read(*modelPath)
	if err != nil {
		logger.Fatal("loading model: %v", err)
	}

	e := features.New(features.Config{
		MinStem:    cfg.Training.MinStem,
		AffixLen:   cfg.Training.AffixLen,
		NSecondary: cfg.Training.NSecondary,
	})

	var in io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Fatal("opening input: %v", err)
		}
		defer f.Close()
		in = f
	}

	nFields := cfg.Training.NSecondary + 1
	if *evaluateMode {
		nFields = cfg.Training.NSecondary + 2
	}
	reader := corpus.NewReader(in, nFields)

	var writer *corpus.Writer
	if !*evaluateMode {
		var out io.Writer = os.Stdout
		if *output != "" {
			f, err := os.Create(*output)
			if err != nil {
				logger.Fatal("creating output: %v", err)
			}
			defer f.Close()
			out = f
		}
		writer = corpus.NewWriter(out, nFields)
	}

	w := decode.Weights(weights)
	var nErrs, nTotal int

	for {
		sent, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			logger.Fatal("reading input: %v", err)
		}

		rows := make([]features.TokenRow, len(sent))
		for i, row := range sent {
			if *evaluateMode {
				rows[i] = row[:len(row)-1]
			} else {
				rows[i] = row
			}
		}
		invariants := e.ExtractInvariant(rows)
		predicted := decode.Beam(e, w, invariants, ts.Len(), cfg.Decode.BeamWidth, decode.DropoutConfig{})

		if *evaluateMode {
			for i, row := range sent {
				gold, ok := ts.FromStr(string(row[len(row)-1]))
				nTotal++
				if !ok {
					fmt.Fprintln(os.Stderr, errs.ErrUnknownTag)
					nErrs++
					continue
				}
				if gold != predicted[i] {
					nErrs++
				}
			}
			continue
		}

		tagStrs := make([]string, len(predicted))
		for i, l := range predicted {
			tagStrs[i] = ts.Str(l)
		}
		if err := writer.WriteSentence(sent, tagStrs); err != nil {
			logger.Fatal("writing output: %v", err)
		}
	}

	if writer != nil {
		if err := writer.Flush(); err != nil {
			logger.Fatal("flushing output: %v", err)
		}
	}
	if *evaluateMode {
		errRate := 0.0
		if nTotal > 0 {
			errRate = float64(nErrs) / float64(nTotal)
		}
		fmt.Fprintf(os.Stderr, "error rate: %.2f%%\n", 100*errRate)
	}
}

func loadTagList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tag list: %w", err)
	}
	var tags []string
	start := 0
	for i, b := range data {
		if b == '\n' {
			if i > start {
				tags = append(tags, string(data[start:i]))
			}
			start = i + 1
		}
	}
	if start < len(data) {
		tags = append(tags, string(data[start:]))
	}
	return tags, nil
}

func loadSentences(path string, e *features.Extractor, ts *tagset.Set, nSecondary int) ([]train.Sentence, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	reader := corpus.NewReader(f, nSecondary+2)

	var out []train.Sentence
	for {
		sent, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(out) >= corpus.MaxSentences {
			return nil, fmt.Errorf("reading %s: %w", path, errs.ErrOverflow)
		}

		rows := make([]features.TokenRow, len(sent))
		gold := make([]tagset.Label, len(sent))
		for i, row := range sent {
			rows[i] = row[:len(row)-1]
			tagCol := row[len(row)-1]
			l, ok := ts.FromStr(string(tagCol))
			if !ok {
				fmt.Fprintln(os.Stderr, errs.ErrUnknownTag)
				l = tagset.EdgeLabel
			}
			gold[i] = l
		}
		invariants := e.ExtractInvariant(rows)
		out = append(out, train.Sentence{Invariants: invariants, Gold: gold})
	}
	return out, nil
}
