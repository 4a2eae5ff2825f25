package train

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/tagger/pkg/decode"
	"github.com/lab/tagger/pkg/features"
	"github.com/lab/tagger/pkg/tagset"
)

func buildSentences(e *features.Extractor, n int) []Sentence {
	words := [][]string{
		{"the", "cat", "sat"},
		{"a", "dog", "ran", "fast"},
		{"birds", "fly", "high"},
	}
	var out []Sentence
	for i := 0; i < n; i++ {
		w := words[i%len(words)]
		rows := make([]features.TokenRow, len(w))
		for j, word := range w {
			rows[j] = features.TokenRow{[]byte(word)}
		}
		inv := e.ExtractInvariant(rows)
		gold := make([]tagset.Label, len(w))
		for j := range gold {
			gold[j] = tagset.Label(j % 3)
		}
		out = append(out, Sentence{Invariants: inv, Gold: gold})
	}
	return out
}

func TestAdjustWeightsUpdatesTouchedIndicesOnly(t *testing.T) {
	e := features.New(features.DefaultConfig())
	ctx := NewContext(e, 3, 64)
	sents := buildSentences(e, 1)

	before := append([]float32(nil), ctx.Weights...)
	ctx.AdjustWeights(sents[0].Invariants, sents[0].Gold, 1.0, 0, decode.DropoutConfig{})

	touched := map[uint64]bool{}
	for i := range sents[0].Gold {
		for _, h := range e.ExtractFeatures(sents[0].Gold, sents[0].Gold[i], i, sents[0].Invariants) {
			touched[h&63] = true
		}
	}
	changed := false
	for i := range ctx.Weights {
		if ctx.Weights[i] != before[i] {
			changed = true
			assert.True(t, touched[uint64(i)], "index %d changed but no fired feature maps to it", i)
		}
	}
	assert.True(t, changed)
}

func TestTrainSequenceNoErrorWhenAlreadyCorrect(t *testing.T) {
	e := features.New(features.DefaultConfig())
	nTags := 3
	ctx := NewContext(e, nTags, 64)
	sents := buildSentences(e, 1)

	// Force every weight so that Greedy already matches gold: set weights to
	// zero and gold labels all to 0, the default argmax tie-break winner.
	for i := range sents[0].Gold {
		sents[0].Gold[i] = 0
	}
	n := ctx.TrainSequence(sents[0].Invariants, sents[0].Gold, 0, decode.DropoutConfig{})
	assert.Equal(t, 0, n)
}

func TestReconcileAveragesBringsShadowUpToDate(t *testing.T) {
	e := features.New(features.DefaultConfig())
	ctx := NewContext(e, 3, 16)
	ctx.Weights[5] = 2
	ctx.Shadow[5] = shadowEntry{acc: 0, lastTime: 0}

	ctx.ReconcileAverages(4)
	assert.Equal(t, float64(8), ctx.Shadow[5].acc)
	assert.Equal(t, float64(4), ctx.Shadow[5].lastTime)
}

func TestFoldHalvesLength(t *testing.T) {
	w := []float32{1, 2, 3, 4}
	folded := Fold(w)
	require.Len(t, folded, 2)
	assert.Equal(t, float32(4), folded[0]) // 1+3
	assert.Equal(t, float32(6), folded[1]) // 2+4
}

func TestTrainConvergesAndEarlyStops(t *testing.T) {
	e := features.New(features.DefaultConfig())
	nTags := 3
	sentences := buildSentences(e, 6)

	evaluate := func(weights []float32) (float64, error) {
		w := decode.Weights(weights)
		var nErrs, nTotal int
		for _, s := range sentences {
			pred := decode.Greedy(e, w, s.Invariants, nTags, decode.DropoutConfig{})
			for i := range s.Gold {
				nTotal++
				if pred[i] != s.Gold[i] {
					nErrs++
				}
			}
		}
		return float64(nErrs) / float64(nTotal), nil
	}

	// The tune set is the training set, so the tune error reaches 0 and then
	// stays flat; a flat error never trips the patience check, and the run
	// ends at the MaxEpochs cap.
	res, err := Train(e, nTags, sentences, evaluate, Config{WeightsLen: 256, MaxPatience: 3, MaxEpochs: 20, Seed: 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.BestError)
	assert.Greater(t, res.Epochs, 0)
	assert.LessOrEqual(t, res.Epochs, 20)
}

func TestTrainRejectsNonPowerOfTwoWeightsLen(t *testing.T) {
	e := features.New(features.DefaultConfig())
	_, err := Train(e, 3, nil, nil, Config{WeightsLen: 100})
	assert.Error(t, err)
}
