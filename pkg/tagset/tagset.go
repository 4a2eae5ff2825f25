// Package tagset provides the bijection between a small non-negative
// integer label and its display string (spec.md §3).
package tagset

import "fmt"

// Label identifies a tag by a small non-negative integer. Labels stored
// anywhere are always in [0, n_tags) except for EdgeLabel, the sentinel used
// for positions outside a sentence.
type Label int32

// EdgeLabel is the sentinel label assigned to positions outside [0, n_items)
// when a feature template looks at labels[i-1] or labels[i-2] near a
// sentence boundary, and to rows whose gold tag column failed to parse
// (spec.md §7, UnknownTag — a documented lenient behaviour).
const EdgeLabel Label = -1

// Set is a fixed enumeration of labels built once from an ordered list of
// display strings (the tag vocabulary). It is immutable after construction.
type Set struct {
	strs []string
	idx  map[string]Label
}

// New builds a Set from an ordered, duplicate-free list of tag strings. The
// position of each string in tags is its Label.
func New(tags []string) (*Set, error) {
	if len(tags) == 0 {
		return nil, fmt.Errorf("tagset: empty tag list")
	}
	idx := make(map[string]Label, len(tags))
	for i, s := range tags {
		if _, dup := idx[s]; dup {
			return nil, fmt.Errorf("tagset: duplicate tag %q", s)
		}
		idx[s] = Label(i)
	}
	strs := make([]string, len(tags))
	copy(strs, tags)
	return &Set{strs: strs, idx: idx}, nil
}

// Len returns n_tags.
func (s *Set) Len() int { return len(s.strs) }

// FromStr implements tagset_from_str: returns the label for a tag string,
// or (EdgeLabel, false) if the string is not in the vocabulary.
func (s *Set) FromStr(tag string) (Label, bool) {
	l, ok := s.idx[tag]
	if !ok {
		return EdgeLabel, false
	}
	return l, true
}

// Str implements tag_str[label]: returns the display string for a label.
// Panics if label is out of range, since every caller is expected to only
// pass labels it obtained from FromStr or a decoder.
func (s *Set) Str(l Label) string {
	return s.strs[l]
}

// All returns the ordered tag strings, index-aligned with their Label.
func (s *Set) All() []string {
	out := make([]string, len(s.strs))
	copy(out, s.strs)
	return out
}
