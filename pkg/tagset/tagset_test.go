package tagset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAssignsLabelsByPosition(t *testing.T) {
	s, err := New([]string{"DT", "NN", "VB"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())

	l, ok := s.FromStr("NN")
	require.True(t, ok)
	assert.Equal(t, Label(1), l)
	assert.Equal(t, "NN", s.Str(l))
}

func TestNewRejectsEmptyList(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNewRejectsDuplicateTags(t *testing.T) {
	_, err := New([]string{"DT", "NN", "DT"})
	assert.Error(t, err)
}

func TestFromStrUnknownTagReturnsFalse(t *testing.T) {
	s, err := New([]string{"DT", "NN"})
	require.NoError(t, err)
	l, ok := s.FromStr("XYZ")
	assert.False(t, ok)
	assert.Equal(t, EdgeLabel, l)
}

func TestAllReturnsIndexAlignedCopy(t *testing.T) {
	s, err := New([]string{"DT", "NN"})
	require.NoError(t, err)
	all := s.All()
	require.Len(t, all, 2)
	all[0] = "mutated"
	// mutating the returned slice must not affect the Set's own strings.
	assert.Equal(t, "DT", s.Str(0))
}
