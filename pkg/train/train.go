// Package train implements the averaged structured perceptron trainer of
// spec.md §4.4, grounded directly on the reference implementation's
// train_sequence/adjust_weights/train functions.
package train

import (
	"fmt"
	"math/rand"

	"github.com/lab/tagger/internal/errs"
	"github.com/lab/tagger/internal/logging"
	"github.com/lab/tagger/pkg/decode"
	"github.com/lab/tagger/pkg/features"
	"github.com/lab/tagger/pkg/hash"
	"github.com/lab/tagger/pkg/modelio"
	"github.com/lab/tagger/pkg/tagset"
)

// shadowEntry is one (accumulator, last-update-time) pair for a single
// weight index. The two fields are kept adjacent in a single struct, never
// split into parallel slices: the reference implementation calls this out
// explicitly as a cache-locality choice since both fields of the same index
// are always read and written together.
type shadowEntry struct {
	acc      float64
	lastTime float64
}

// Context bundles the live weight vector and its averaging shadow, passed
// explicitly to every mutating operation rather than reached for through
// package state.
type Context struct {
	Weights   []float32
	Shadow    []shadowEntry
	T         float64
	Extractor *features.Extractor
	NTags     int
}

// NewContext allocates a zeroed Context for a weight vector of length size
// (must be a power of two).
func NewContext(e *features.Extractor, nTags int, size uint64) *Context {
	return &Context{
		Weights:   make([]float32, size),
		Shadow:    make([]shadowEntry, size),
		Extractor: e,
		NTags:     nTags,
	}
}

func mask(n int) uint64 { return uint64(n) - 1 }

// AdjustWeights applies a perceptron update of weightDiff to every feature
// fired by (labels, i) across the sentence, performing the lazy-averaging
// bookkeeping at the same time: the shadow accumulator for each touched
// index is first brought up to date through time t using the weight's
// value *before* this update, exactly mirroring adjust_weights's ordering.
func (c *Context) AdjustWeights(invariants [][]uint64, labels []tagset.Label, weightDiff float32, t float64, dropout decode.DropoutConfig) {
	m := mask(len(c.Weights))
	for i := range invariants {
		fh := c.Extractor.ExtractFeatures(labels, labels[i], i, invariants)
		for _, h := range fh {
			if dropout.Enabled && hash.Mix64(dropout.Seed, h) < dropout.Constant {
				continue
			}
			idx := h & m
			entry := &c.Shadow[idx]
			entry.acc += (t - entry.lastTime) * float64(c.Weights[idx])
			entry.lastTime = t
			c.Weights[idx] += weightDiff
		}
	}
}

// TrainSequence decodes the sentence greedily under the current weights,
// and if the decoded labels differ from gold, applies a +1 update for gold
// and a -1 update for the decoded labels (the standard structured
// perceptron update, applied only on error per train_sequence). It returns
// the number of token-level errors.
func (c *Context) TrainSequence(invariants [][]uint64, gold []tagset.Label, t float64, dropout decode.DropoutConfig) int {
	predicted := decode.Greedy(c.Extractor, decode.Weights(c.Weights), invariants, c.NTags, dropout)

	nErrs := 0
	same := true
	for i := range gold {
		if gold[i] != predicted[i] {
			same = false
			nErrs++
		}
	}
	if same {
		return 0
	}

	c.AdjustWeights(invariants, gold, 1.0, t, dropout)
	c.AdjustWeights(invariants, predicted, -1.0, t, dropout)
	return nErrs
}

// ReconcileAverages folds each shadow accumulator forward to time t,
// matching the end-of-epoch pass in train() that brings every average up
// to date before a tune-set evaluation snapshot is taken.
func (c *Context) ReconcileAverages(t float64) {
	for i := range c.Weights {
		entry := &c.Shadow[i]
		entry.acc += (t - entry.lastTime) * float64(c.Weights[i])
		entry.lastTime = t
	}
}

// AveragedWeights returns a snapshot of the current averaged weight
// vector (shadow.acc at each index), safe to score against or persist
// without disturbing further training.
func (c *Context) AveragedWeights() []float32 {
	out := make([]float32, len(c.Shadow))
	for i, e := range c.Shadow {
		out[i] = float32(e.acc)
	}
	return out
}

// Sentence is one training example: per-token invariant hashes paired with
// gold labels.
type Sentence struct {
	Invariants [][]uint64
	Gold       []tagset.Label
}

// Config controls a single Train run at a fixed weights_len.
type Config struct {
	WeightsLen  uint64
	MaxPatience int
	// MaxEpochs bounds the epoch loop regardless of patience: once the
	// perceptron has zero training errors the un-normalized averaging sum
	// (spec.md §4.4 — weights are integrated over time, never divided by
	// total t) can hold tune error exactly flat indefinitely, which would
	// otherwise never trip the patience check. 0 defaults to 500.
	MaxEpochs int
	Seed      int64
	Dropout   decode.DropoutConfig
	ModelPath string
	Logger    *logging.Logger
}

// Result is what Train (and Sweep) report back.
type Result struct {
	Weights    []float32
	WeightsLen uint64
	BestError  float64
	Epochs     int
}

// Evaluator scores a weight vector's error rate on held-out tuning data.
// Callers supply this so pkg/train never depends on internal/corpus.
type Evaluator func(weights []float32) (tuneError float64, err error)

// Train runs the averaged perceptron over train at a single weights_len,
// early-stopping via a smoothed tune-error average and a patience counter,
// and persisting the best-seen averaged weight vector to cfg.ModelPath
// whenever it improves. This mirrors train()'s inner per-weights_len loop.
func Train(e *features.Extractor, nTags int, train []Sentence, evaluate Evaluator, cfg Config) (*Result, error) {
	if cfg.WeightsLen == 0 || cfg.WeightsLen&(cfg.WeightsLen-1) != 0 {
		return nil, fmt.Errorf("train: weights_len must be a power of two, got %d", cfg.WeightsLen)
	}
	maxPatience := cfg.MaxPatience
	if maxPatience <= 0 {
		maxPatience = 5
	}
	maxEpochs := cfg.MaxEpochs
	if maxEpochs <= 0 {
		maxEpochs = 500
	}
	log := cfg.Logger

	ctx := NewContext(e, nTags, cfg.WeightsLen)
	rng := rand.New(rand.NewSource(cfg.Seed))

	order := make([]int, len(train))
	for i := range order {
		order[i] = i
	}

	bestErrorEver := 1.0
	tuneErrorAvg := 1.0
	bestError := 1.0
	patienceLeft := maxPatience
	dropout := cfg.Dropout
	var bestWeights []float32

	for iter := 0; ; iter++ {
		shuffle(rng, order)

		nErrs, nTotal := 0, 0
		for _, idx := range order {
			s := train[idx]
			nTotal += len(s.Gold)
			nErrs += ctx.TrainSequence(s.Invariants, s.Gold, ctx.T, dropout)
			ctx.T++
			dropout.Seed++
		}
		if log != nil {
			trainErr := 0.0
			if nTotal > 0 {
				trainErr = float64(nErrs) / float64(nTotal)
			}
			log.Info("weights_len=0x%x iteration %d training error %.4f%%", cfg.WeightsLen, iter+1, 100*trainErr)
		}

		ctx.ReconcileAverages(ctx.T)
		averaged := ctx.AveragedWeights()

		tuneError := 1.0
		if evaluate != nil {
			var err error
			tuneError, err = evaluate(averaged)
			if err != nil {
				return nil, fmt.Errorf("train: evaluating tune set: %w", err)
			}
		}
		if log != nil {
			log.Info("weights_len=0x%x iteration %d tuning error %.4f%%", cfg.WeightsLen, iter+1, 100*tuneError)
		}

		if tuneError < bestErrorEver {
			bestErrorEver = tuneError
			bestWeights = append([]float32(nil), averaged...)
			if cfg.ModelPath != "" {
				if err := modelio.Write(cfg.ModelPath, averaged); err != nil {
					return nil, fmt.Errorf("train: persisting best model: %w", err)
				}
				if log != nil {
					log.Info("best so far (digest %s), wrote %s", modelio.Digest(averaged), cfg.ModelPath)
				}
			}
		}

		if tuneError < bestError {
			bestError = tuneError
			patienceLeft = maxPatience
		}

		if iter == 0 {
			tuneErrorAvg = tuneError
		} else {
			if tuneError > 0.99*tuneErrorAvg {
				patienceLeft--
				if patienceLeft == 0 {
					return &Result{Weights: bestWeights, WeightsLen: cfg.WeightsLen, BestError: bestErrorEver, Epochs: iter + 1}, nil
				}
			}
			tuneErrorAvg = tuneErrorAvg*0.5 + tuneError*0.5
		}

		if iter+1 >= maxEpochs {
			if log != nil {
				log.Warn("weights_len=0x%x reached max epochs (%d) without patience exhaustion", cfg.WeightsLen, maxEpochs)
			}
			return &Result{Weights: bestWeights, WeightsLen: cfg.WeightsLen, BestError: bestErrorEver, Epochs: iter + 1}, nil
		}
	}
}

// shuffle implements a Fisher-Yates shuffle via math/rand, generalizing the
// reference implementation's random()-indexed in-place swap.
func shuffle(rng *rand.Rand, order []int) {
	for i := range order {
		j := rng.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
}

// Fold halves a weight vector's length by summing corresponding elements
// from its two halves, the per-step operation of post_training_compression.
func Fold(weights []float32) []float32 {
	half := len(weights) / 2
	out := make([]float32, half)
	for i := 0; i < half; i++ {
		out[i] = weights[i] + weights[half+i]
	}
	return out
}

// Compress repeatedly folds weights while the tune error stays within
// tolerance (default 0.25%) of bestError, returning the smallest accepted
// vector and its tune error. It persists the accepted vector to modelPath
// when non-empty.
func Compress(weights []float32, bestError, tolerance float64, evaluate Evaluator, modelPath string, log *logging.Logger) ([]float32, float64, error) {
	if tolerance <= 0 {
		tolerance = 0.0025
	}
	current := weights
	currentErr := bestError

	for len(current) > 1 {
		folded := Fold(current)
		tuneError := 1.0
		if evaluate != nil {
			var err error
			tuneError, err = evaluate(folded)
			if err != nil {
				return nil, 0, fmt.Errorf("train: evaluating folded model: %w", err)
			}
		}
		if log != nil {
			log.Info("0x%x-length compression tuning error %.4f%%", len(folded), 100*tuneError)
		}
		if tuneError > (1+tolerance)*bestError {
			break
		}
		current = folded
		currentErr = tuneError
		if tuneError < bestError {
			bestError = tuneError
		}
	}

	if modelPath != "" {
		if err := modelio.Write(modelPath, current); err != nil {
			return nil, 0, fmt.Errorf("train: persisting compressed model: %w", err)
		}
	}
	return current, currentErr, nil
}

// SweepConfig parameterizes Sweep's outer weights_len loop.
type SweepConfig struct {
	MinWeightsLen uint64
	MaxWeightsLen uint64
	MaxPatience   int
	MaxEpochs     int
	Seed          int64
	Dropout       decode.DropoutConfig
	ModelPath     string
	FoldTolerance float64
	Logger        *logging.Logger
}

// Sweep runs Train at weights_len = MinWeightsLen, 2x, 4x, ... up to
// MaxWeightsLen, keeping the best-ever model across the whole sweep and
// exiting early once a larger weights_len fails to improve on the previous
// best by more than FoldTolerance (default 0.25%), mirroring the outer loop
// in train().
func Sweep(e *features.Extractor, nTags int, trainSet []Sentence, evaluate Evaluator, cfg SweepConfig) (*Result, error) {
	if cfg.MinWeightsLen == 0 {
		return nil, errs.New(errs.CodeIO, "sweep: MinWeightsLen must be nonzero")
	}
	tolerance := cfg.FoldTolerance
	if tolerance <= 0 {
		tolerance = 0.0025
	}

	var best *Result
	bestErrorEver := 1.0

	for l := cfg.MinWeightsLen; l <= cfg.MaxWeightsLen; l *= 2 {
		if cfg.Logger != nil {
			cfg.Logger.Info("trying weight vector of size 0x%x", l)
		}
		res, err := Train(e, nTags, trainSet, evaluate, Config{
			WeightsLen:  l,
			MaxPatience: cfg.MaxPatience,
			MaxEpochs:   cfg.MaxEpochs,
			Seed:        cfg.Seed,
			Dropout:     cfg.Dropout,
			ModelPath:   cfg.ModelPath,
			Logger:      cfg.Logger,
		})
		if err != nil {
			return nil, err
		}

		compressed, compressedErr, err := Compress(res.Weights, res.BestError, tolerance, evaluate, cfg.ModelPath, cfg.Logger)
		if err != nil {
			return nil, err
		}
		res.Weights = compressed
		if compressedErr < res.BestError {
			res.BestError = compressedErr
		}

		first := best == nil
		if first || res.BestError < bestErrorEver {
			best = res
		}
		improved := res.BestError < bestErrorEver*(1-tolerance)
		if res.BestError < bestErrorEver {
			bestErrorEver = res.BestError
		}
		if !first && !improved {
			if cfg.Logger != nil {
				cfg.Logger.Info("error no longer decreasing with larger weights_len, stopping sweep")
			}
			break
		}
	}
	return best, nil
}
