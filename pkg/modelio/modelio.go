// Package modelio reads and writes the dense float32 model vectors that
// pkg/train produces and pkg/decode scores against (spec.md §6), using the
// same write-temp-then-rename atomicity the teacher's checkpoint writer
// uses for its own on-disk state.
package modelio

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
	"os"

	"golang.org/x/crypto/blake2b"

	"github.com/lab/tagger/internal/errs"
)

// Write persists weights as contiguous little-endian float32 bytes,
// writing to path+".tmp" and renaming over path so a reader never observes
// a partially-written file.
func Write(path string, weights []float32) error {
	buf := make([]byte, len(weights)*4)
	for i, w := range weights {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(w))
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf, 0644); err != nil {
		return fmt.Errorf("failed to write model: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to atomic-save model: %w", err)
	}
	return nil
}

// Read loads a model file, validating that its length is a positive
// multiple of 4 bytes whose quotient (the weight count) is a power of two
// (spec.md §6).
func Read(path string) ([]float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model: %w", err)
	}
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, errs.New(errs.CodeModelFormat, "model file length is not a multiple of 4 bytes",
			fmt.Sprintf("length=%d", len(data)))
	}
	n := len(data) / 4
	if n == 0 || bits.OnesCount(uint(n)) != 1 {
		return nil, errs.New(errs.CodeModelFormat, "model weight count is not a power of two",
			fmt.Sprintf("count=%d", n))
	}

	weights := make([]float32, n)
	for i := range weights {
		weights[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return weights, nil
}

// Digest stamps a content digest of weights, letting operators confirm two
// "best" saves are bit-identical without diffing the raw file (additive to,
// and never altering, the model file format itself).
func Digest(weights []float32) string {
	buf := make([]byte, len(weights)*4)
	for i, w := range weights {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(w))
	}
	sum := blake2b.Sum256(buf)
	return fmt.Sprintf("%x", sum)
}

// WriteDigestSidecar writes the Digest of weights to path+".digest".
func WriteDigestSidecar(path string, weights []float32) error {
	return os.WriteFile(path+".digest", []byte(Digest(weights)+"\n"), 0644)
}
