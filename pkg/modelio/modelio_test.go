package modelio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lab/tagger/internal/errs"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")

	weights := make([]float32, 8)
	for i := range weights {
		weights[i] = float32(i) - 3.5
	}

	require.NoError(t, Write(path, weights))
	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, weights, got)
}

func TestWriteIsAtomicNoTempFileLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, Write(path, []float32{1, 2}))

	entries, err := filepathGlobTmp(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func filepathGlobTmp(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.tmp"))
}

func TestReadRejectsNonPowerOfTwoCount(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	// 3 float32s: a valid multiple-of-4 length, but count 3 is not a power of two.
	require.NoError(t, Write(path, []float32{1, 2, 3}))

	_, err := Read(path)
	require.Error(t, err)
	assert.Equal(t, errs.CodeModelFormat, errs.Code(err))
}

func TestReadRejectsTruncatedLength(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.bin")
	require.NoError(t, Write(path, []float32{1, 2, 3, 4}))

	// Truncate to a non-multiple-of-4 length.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)-1], 0644))

	_, err = Read(path)
	require.Error(t, err)
	assert.Equal(t, errs.CodeModelFormat, errs.Code(err))
}

func TestDigestDeterministicAndSensitive(t *testing.T) {
	a := Digest([]float32{1, 2, 3, 4})
	b := Digest([]float32{1, 2, 3, 4})
	c := Digest([]float32{1, 2, 3, 5})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
