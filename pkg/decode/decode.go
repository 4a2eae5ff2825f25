// Package decode implements the greedy and beam sequence decoders of
// spec.md §4.3: scoring candidate label sequences against a weight vector
// using features that depend on previously assigned labels.
package decode

import (
	"sort"

	"github.com/lab/tagger/pkg/features"
	"github.com/lab/tagger/pkg/hash"
	"github.com/lab/tagger/pkg/tagset"
)

// Weights is the read-only view the decoder scores against. It is owned
// exclusively by the trainer during training and handed to the decoder as
// an immutable slice; the decoder performs only reads (spec.md §5).
type Weights []float32

func (w Weights) mask() uint64 { return uint64(len(w)) - 1 }

// Score sums w[h & mask] over hashes, with no normalization (spec.md §4.3).
func (w Weights) Score(hashes []uint64) float32 {
	mask := w.mask()
	var sum float32
	for _, h := range hashes {
		sum += w[h&mask]
	}
	return sum
}

// DropoutConfig enables dropout-aware scoring: a feature hash h is omitted
// when hash.Mix64(seed, h) < Constant. Disabled by default per spec.md §4.4
// and §9 ("doesn't seem to help").
type DropoutConfig struct {
	Enabled  bool
	Seed     uint64
	Constant uint64
}

// ScoreDropout is the dropout-aware variant of Score.
func (w Weights) ScoreDropout(hashes []uint64, d DropoutConfig) float32 {
	if !d.Enabled {
		return w.Score(hashes)
	}
	mask := w.mask()
	var sum float32
	for _, h := range hashes {
		if hash.Mix64(d.Seed, h) >= d.Constant {
			sum += w[h&mask]
		}
	}
	return sum
}

// Greedy runs the O(n * nTags * N_FEATURES) left-to-right decoder: at each
// position it picks the argmax-scoring candidate label, ties broken by
// lowest label index.
func Greedy(e *features.Extractor, w Weights, invariants [][]uint64, nTags int, d DropoutConfig) []tagset.Label {
	n := len(invariants)
	labels := make([]tagset.Label, n)
	for i := 0; i < n; i++ {
		var best tagset.Label
		var bestScore float32
		for cand := 0; cand < nTags; cand++ {
			fh := e.ExtractFeatures(labels, tagset.Label(cand), i, invariants)
			score := w.ScoreDropout(fh, d)
			if cand == 0 || score > bestScore {
				bestScore = score
				best = tagset.Label(cand)
			}
		}
		labels[i] = best
	}
	return labels
}

// hypothesis is one partial beam entry: a score and its own label slice.
// Beam allocates a fresh slice for every child; there is no pooled backing
// array shared between hypotheses.
type hypothesis struct {
	score  float32
	labels []tagset.Label
}

// Beam runs the beam-search decoder of spec.md §4.3 with beam width B. Beam
// with B=1 is label-for-label identical to Greedy. Each surviving
// hypothesis owns its own label slice pre-sized to n, so extending one
// hypothesis into several candidate children never aliases another
// hypothesis's backing array.
func Beam(e *features.Extractor, w Weights, invariants [][]uint64, nTags, beamWidth int, d DropoutConfig) []tagset.Label {
	n := len(invariants)
	if beamWidth < 1 {
		beamWidth = 1
	}
	if n == 0 {
		return nil
	}

	beam := []hypothesis{{score: 0, labels: make([]tagset.Label, 0, n)}}

	for i := 0; i < n; i++ {
		children := make([]hypothesis, 0, len(beam)*nTags)
		for _, hyp := range beam {
			for cand := 0; cand < nTags; cand++ {
				fh := e.ExtractFeatures(hyp.labels, tagset.Label(cand), i, invariants)
				score := hyp.score + w.ScoreDropout(fh, d)
				extended := make([]tagset.Label, len(hyp.labels)+1, n)
				copy(extended, hyp.labels)
				extended[len(hyp.labels)] = tagset.Label(cand)
				children = append(children, hypothesis{score: score, labels: extended})
			}
		}
		sort.SliceStable(children, func(a, b int) bool {
			return lessChild(children[a], children[b])
		})
		keep := beamWidth
		if keep > len(children) {
			keep = len(children)
		}
		beam = children[:keep]
	}

	best := beam[0]
	for _, hyp := range beam[1:] {
		if hyp.score > best.score {
			best = hyp
		}
	}
	out := make([]tagset.Label, n)
	copy(out, best.labels)
	return out
}

// lessChild orders two candidate hypotheses for ranking: higher score
// first; ties broken by lower last label, then lower second-to-last, then
// lexicographically over the whole label vector (spec.md §4.3 step 2).
func lessChild(a, b hypothesis) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	la, lb := a.labels, b.labels
	if len(la) == 0 || len(lb) == 0 {
		return len(la) < len(lb)
	}
	if la[len(la)-1] != lb[len(lb)-1] {
		return la[len(la)-1] < lb[len(lb)-1]
	}
	if len(la) >= 2 && len(lb) >= 2 && la[len(la)-2] != lb[len(lb)-2] {
		return la[len(la)-2] < lb[len(lb)-2]
	}
	for i := range la {
		if i >= len(lb) {
			return false
		}
		if la[i] != lb[i] {
			return la[i] < lb[i]
		}
	}
	return len(la) < len(lb)
}
