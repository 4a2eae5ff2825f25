// Package features implements the two-phase feature extractor of
// spec.md §4.2: extract_invariant produces per-token hashes that depend
// only on input field bytes, and extract_features combines those with the
// label(s) already assigned at earlier positions.
package features

import (
	"github.com/lab/tagger/pkg/hash"
	"github.com/lab/tagger/pkg/tagset"
)

// TokenRow is one row's ordered field bytes (spec.md §3). Field byte slices
// are only valid while the sentence buffer backing them is alive.
type TokenRow = [][]byte

// Config fixes the template set at Extractor construction. In the reference
// C implementation this is a set of compile-time constants; here it is
// fixed once when an Extractor is built and never mutated afterward, which
// gives the same "pure, no mutable state" guarantee spec.md requires.
type Config struct {
	// MinStem guards prefix/suffix features: a prefix or suffix of length n
	// only fires when MinStem+n <= the token's code point count.
	MinStem int
	// AffixLen is K: prefix and suffix features are extracted for lengths
	// 1..AffixLen.
	AffixLen int
	// NSecondary is the count of secondary text fields (beyond field 0, the
	// word form) that contribute an identity feature. Training rows carry
	// NSecondary+2 fields (word, NSecondary secondary fields, tag); tagging
	// rows carry NSecondary+1 (no tag column).
	NSecondary int
}

// DefaultConfig mirrors the template set described in spec.md §4.2: word
// identity, a character-class pattern, and prefixes/suffixes up to length 4.
func DefaultConfig() Config {
	return Config{MinStem: 1, AffixLen: 4, NSecondary: 0}
}

// Per-template salts. Each must be distinct so that identical field bytes
// hashed under different templates never collide (spec.md §4.2). Values are
// arbitrary odd 64-bit constants with no special meaning beyond uniqueness;
// changing any of them invalidates existing models.
const (
	saltWord       uint64 = 0x9ae16a3b2f90404f
	saltCharClass  uint64 = 0xc2b2ae3d27d4eb4f
	saltPrefixBase uint64 = 0x165667b19e3779f9
	saltSuffixBase uint64 = 0x27d4eb2f165667c5
	saltSecondary  uint64 = 0x85ebca6b2545f491

	saltFeatureUnigram uint64 = 0xff51afd7ed558ccd
	saltTransition     uint64 = 0xc4ceb9fe1a85ec53
	saltTrigram        uint64 = 0x2545f4914f6cdd1d
)

// Extractor is the pure, stateless feature extractor for a fixed Config.
type Extractor struct {
	cfg Config
}

// New builds an Extractor from cfg.
func New(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// NInvariants returns N_INVARIANTS for this extractor's template set: word
// identity + character-class pattern + AffixLen prefixes + AffixLen
// suffixes + NSecondary secondary-field identities.
func (e *Extractor) NInvariants() int {
	return 2 + 2*e.cfg.AffixLen + e.cfg.NSecondary
}

// NFeatures returns N_FEATURES: one feature per invariant conditioned on the
// current and previous label, plus a label-bigram transition feature, plus a
// label-trigram transition feature.
func (e *Extractor) NFeatures() int {
	return e.NInvariants() + 2
}

func classify(r rune) byte {
	switch {
	case r >= '0' && r <= '9':
		return 'd'
	case r >= 'A' && r <= 'Z':
		return 'A'
	case r >= 'a' && r <= 'z':
		return 'a'
	case r == ' ' || r == '\t':
		return ' '
	default:
		return 'p'
	}
}

func salted(base, salt uint64) uint64 {
	return hash.Fmix64(hash.Mix64(salt, base))
}

// ExtractInvariant fills N_INVARIANTS hashes per token in rows, each
// derived solely from that token's field bytes (spec.md §4.2).
func (e *Extractor) ExtractInvariant(rows []TokenRow) [][]uint64 {
	n := e.NInvariants()
	out := make([][]uint64, len(rows))
	for i, row := range rows {
		vec := make([]uint64, n)
		word := row[0]
		runes, ok := hash.DecodeUTF8(word)

		vec[0] = salted(hash.HashData64(0, word), saltWord)

		var classBuf []byte
		if ok {
			classBuf = make([]byte, len(runes))
			for j, r := range runes {
				classBuf[j] = classify(r)
			}
		} else {
			classBuf = word
		}
		vec[1] = salted(hash.HashData64(0, classBuf), saltCharClass)

		idx := 2
		for k := 1; k <= e.cfg.AffixLen; k++ {
			var base uint64
			if ok {
				base = hash.Prefix64(runes, k, e.cfg.MinStem)
			} else {
				base = hash.UTF8Prefix64(word, k, e.cfg.MinStem)
			}
			vec[idx] = salted(base, saltPrefixBase+uint64(k))
			idx++
		}
		for k := 1; k <= e.cfg.AffixLen; k++ {
			var base uint64
			if ok {
				base = hash.Suffix64(runes, k, e.cfg.MinStem)
			} else {
				base = hash.UTF8Suffix64(word, k, e.cfg.MinStem)
			}
			vec[idx] = salted(base, saltSuffixBase+uint64(k))
			idx++
		}
		for s := 0; s < e.cfg.NSecondary; s++ {
			field := row[1+s]
			vec[idx] = salted(hash.HashData64(saltSecondary+uint64(s), field), saltSecondary)
			idx++
		}
		out[i] = vec
	}
	return out
}

// labelKey packs up to three labels into a single 64-bit key, 21 bits each,
// used as feature-combination material. Label -1 (tagset.EdgeLabel) packs
// as its low 21 bits, which is fine: it only needs to be distinct from
// valid labels, never decoded back.
func labelKey(labels ...tagset.Label) uint64 {
	var k uint64
	for _, l := range labels {
		k = (k << 21) | (uint64(uint32(l)) & 0x1FFFFF)
	}
	return k
}

func labelAt(labels []tagset.Label, i int) tagset.Label {
	if i < 0 || i >= len(labels) {
		return tagset.EdgeLabel
	}
	return labels[i]
}

// ExtractFeatures combines invariants[i] with curLabel and the labels
// already assigned at i-1 and i-2 to produce the N_FEATURES hashes scored
// against the weight vector at position i (spec.md §4.2).
func (e *Extractor) ExtractFeatures(labels []tagset.Label, curLabel tagset.Label, i int, invariants [][]uint64) []uint64 {
	prev := labelAt(labels, i-1)
	prevPrev := labelAt(labels, i-2)

	inv := invariants[i]
	out := make([]uint64, e.NFeatures())
	for j, h := range inv {
		key := labelKey(curLabel, prev) + saltFeatureUnigram + uint64(j)*0x9e3779b97f4a7c15
		out[j] = hash.Fmix64(hash.Mix64(key, h))
	}
	n := len(inv)
	out[n] = hash.Fmix64(hash.Mix64(labelKey(curLabel, prev), saltTransition))
	out[n+1] = hash.Fmix64(hash.Mix64(labelKey(curLabel, prev, prevPrev), saltTrigram))
	return out
}
