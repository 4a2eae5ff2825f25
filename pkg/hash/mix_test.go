package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDataDeterministic(t *testing.T) {
	data := []byte("the quick brown fox")
	a32 := HashData32(1, data)
	b32 := HashData32(1, data)
	assert.Equal(t, a32, b32)

	a64 := HashData64(1, data)
	b64 := HashData64(1, data)
	assert.Equal(t, a64, b64)
}

func TestHashDataSeedSensitivity(t *testing.T) {
	data := []byte("token")
	assert.NotEqual(t, HashData32(1, data), HashData32(2, data))
	assert.NotEqual(t, HashData64(1, data), HashData64(2, data))
}

func TestHashDataEmpty(t *testing.T) {
	h32 := HashData32(42, nil)
	assert.Equal(t, Fmix32(42^0), h32)

	h64 := HashData64(42, nil)
	assert.Equal(t, Fmix64(42^0), h64)
}

func TestPartialUnicodeEmptySentinel(t *testing.T) {
	assert.Equal(t, SentinelEmpty32, PartialUnicode32(nil))
	assert.Equal(t, SentinelEmpty64, PartialUnicode64(nil))
}

func TestPartialUnicodeDoesNotFinalize(t *testing.T) {
	// PartialUnicode must not itself apply Fmix: combining it manually with
	// Fmix at the end should differ from double-finalizing.
	p := []rune("hashed")
	raw := PartialUnicode32(p)
	assert.NotEqual(t, Fmix32(raw), raw, "PartialUnicode32 output should not already equal its own Fmix")
}

func TestPrefixSuffixMinStemGuard(t *testing.T) {
	p := []rune("cats")
	// len=4, minStem=3: prefix of length 2 requires minStem+2=5 > 4 -> sentinel
	assert.Equal(t, SentinelPrefixGuard32, Prefix32(p, 2, 3))
	assert.Equal(t, SentinelSuffixGuard32, Suffix32(p, 2, 3))

	// minStem=1: prefix of length 2 needs 1+2=3 <= 4 -> real hash
	got := Prefix32(p, 2, 1)
	assert.NotEqual(t, SentinelPrefixGuard32, got)
	assert.Equal(t, PartialUnicode32(p[:2]), got)

	gotSuf := Suffix32(p, 2, 1)
	assert.Equal(t, PartialUnicode32(p[2:]), gotSuf)
}

func TestRead64PartFallthroughDeviation(t *testing.T) {
	// Length 7 does not fall through to the length-6 case: byte index 6 is
	// ORed in at bits 48..55 on top of what a length-6 tail yields.
	b7 := []byte{1, 2, 3, 4, 5, 6, 7}
	b6 := []byte{1, 2, 3, 4, 5, 6}
	assert.Equal(t, read64Part(b6, 6)|uint64(7)<<48, read64Part(b7, 7))
}

func TestHashData64OverlappingChunks(t *testing.T) {
	// The 64-bit inner loop advances by 4 while consuming 8 bytes, so two
	// buffers that differ only in byte 12..15 still influence the hash of
	// chunk starting at offset 8 (since the loop revisits offset 8 after
	// moving 4). This test simply pins the documented behavior against
	// regressions, rather than re-deriving the bit pattern.
	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	h1 := HashData64(0, data)
	data2 := make([]byte, 16)
	copy(data2, data)
	data2[15] ^= 0xFF
	h2 := HashData64(0, data2)
	assert.NotEqual(t, h1, h2)
}

func TestDecodeUTF8RoundTrip(t *testing.T) {
	runes, ok := DecodeUTF8([]byte("héllo"))
	require.True(t, ok)
	assert.Equal(t, []rune("héllo"), runes)
}

func TestDecodeUTF8Malformed(t *testing.T) {
	_, ok := DecodeUTF8([]byte{0xff, 0xfe})
	assert.False(t, ok)
}

func TestDecodeUTF8Truncated(t *testing.T) {
	// A lone lead byte of a 2-byte sequence with nothing following.
	_, ok := DecodeUTF8([]byte{0xc3})
	assert.False(t, ok)
}
