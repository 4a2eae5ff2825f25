package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/tagger/pkg/features"
	"github.com/lab/tagger/pkg/tagset"
)

func rows(words ...string) []features.TokenRow {
	out := make([]features.TokenRow, len(words))
	for i, w := range words {
		out[i] = features.TokenRow{[]byte(w)}
	}
	return out
}

func newWeights(size int) Weights {
	w := make(Weights, size)
	// Deterministic pseudo-random fill so argmax isn't trivially zero everywhere.
	var x uint32 = 0x9e3779b9
	for i := range w {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		w[i] = float32(int32(x)%2001-1000) / 1000
	}
	return w
}

func TestBeamWidthOneMatchesGreedy(t *testing.T) {
	e := features.New(features.DefaultConfig())
	inv := e.ExtractInvariant(rows("the", "quick", "brown", "fox", "jumps"))
	w := newWeights(1 << 10)
	nTags := 5

	g := Greedy(e, w, inv, nTags, DropoutConfig{})
	b := Beam(e, w, inv, nTags, 1, DropoutConfig{})
	assert.Equal(t, g, b)
}

func TestBeamWiderNeverScoresWorseThanNarrower(t *testing.T) {
	e := features.New(features.DefaultConfig())
	inv := e.ExtractInvariant(rows("a", "sequence", "of", "six", "short", "tokens"))
	w := newWeights(1 << 10)
	nTags := 4

	score := func(labels []tagset.Label) float32 {
		var total float32
		for i, l := range labels {
			total += w.Score(e.ExtractFeatures(labels[:i], l, i, inv))
		}
		return total
	}

	narrow := Beam(e, w, inv, nTags, 1, DropoutConfig{})
	wide := Beam(e, w, inv, nTags, 4, DropoutConfig{})
	assert.GreaterOrEqual(t, score(wide), score(narrow))
}

func TestBeamReturnsOneLabelPerPosition(t *testing.T) {
	e := features.New(features.DefaultConfig())
	inv := e.ExtractInvariant(rows("x", "y", "z"))
	w := newWeights(1 << 8)

	out := Beam(e, w, inv, 3, 3, DropoutConfig{})
	require.Len(t, out, 3)
	for _, l := range out {
		assert.GreaterOrEqual(t, int32(l), int32(0))
		assert.Less(t, int32(l), int32(3))
	}
}

func TestBeamEmptySequence(t *testing.T) {
	e := features.New(features.DefaultConfig())
	w := newWeights(1 << 8)
	out := Beam(e, w, nil, 3, 4, DropoutConfig{})
	assert.Nil(t, out)
}

func TestScoreMasksToWeightLength(t *testing.T) {
	w := newWeights(4)
	hashes := []uint64{0, 1, 2, 3, 4, 5}
	// Every hash masks into [0,4), so this must not panic regardless of
	// magnitude.
	assert.NotPanics(t, func() { w.Score(hashes) })
}

func TestDropoutDisabledMatchesScore(t *testing.T) {
	w := newWeights(1 << 6)
	hashes := []uint64{1, 2, 3, 4}
	assert.Equal(t, w.Score(hashes), w.ScoreDropout(hashes, DropoutConfig{Enabled: false}))
}

func TestDropoutEnabledCanDropFeatures(t *testing.T) {
	w := make(Weights, 1<<6)
	for i := range w {
		w[i] = 1
	}
	hashes := []uint64{10, 20, 30, 40}
	full := w.ScoreDropout(hashes, DropoutConfig{Enabled: false})
	// A constant of all-ones (max uint64) drops every feature: mix(seed,h) < Constant always.
	dropped := w.ScoreDropout(hashes, DropoutConfig{Enabled: true, Seed: 7, Constant: ^uint64(0)})
	assert.Equal(t, float32(0), dropped)
	assert.NotEqual(t, full, dropped)
}

func TestGreedyDeterministic(t *testing.T) {
	e := features.New(features.DefaultConfig())
	inv := e.ExtractInvariant(rows("repeat", "this", "sequence"))
	w := newWeights(1 << 9)

	a := Greedy(e, w, inv, 3, DropoutConfig{})
	b := Greedy(e, w, inv, 3, DropoutConfig{})
	assert.Equal(t, a, b)
}
