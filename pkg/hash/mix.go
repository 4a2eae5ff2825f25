// Package hash implements the deterministic, seed-parameterised mixing
// functions that back the tagger's hashed feature space: 32- and 64-bit
// byte-buffer hashing, code-point sequence hashing, and prefix/suffix
// variants with a minimum-stem guard.
//
// Every constant, rotation amount, and sentinel value here is part of the
// on-disk model contract: changing any of them changes every feature hash
// and silently invalidates models trained against the old values.
package hash

import "math/bits"

// Mix32 performs one MurmurHash3-style mixing step over two 32-bit words.
func Mix32(x, y uint32) uint32 {
	x = bits.RotateLeft32(x*0xcc9e2d51, 15) * 0x1b873593
	return bits.RotateLeft32(y^x, 13)*5 + 0xe6546b64
}

// Mix64 is the 64-bit analogue of Mix32.
func Mix64(x, y uint64) uint64 {
	x = bits.RotateLeft64(x*14029467366897019727, 31) * 11400714785074694791
	return bits.RotateLeft64(y^x, 31)*5 + 0xbdef9f91b243c6e6
}

// MixTail32 performs only the first half of Mix32 — used for leftover bytes
// or code points that don't fill a whole chunk.
func MixTail32(x, y uint32) uint32 {
	x = bits.RotateLeft32(x*0xcc9e2d51, 15) * 0x1b873593
	return y ^ x
}

// MixTail64 is the 64-bit analogue of MixTail32.
func MixTail64(x, y uint64) uint64 {
	x = bits.RotateLeft64(x*14029467366897019727, 31) * 11400714785074694791
	return y ^ x
}

// Fmix32 finalises a 32-bit hash with two xorshift-multiply rounds and a
// final xorshift, spreading avalanche over all bits.
func Fmix32(x uint32) uint32 {
	x = 0x85ebca6b * (x ^ (x >> 16))
	x = 0xc2b2ae35 * (x ^ (x >> 13))
	return x ^ (x >> 16)
}

// Fmix64 is the 64-bit analogue of Fmix32.
func Fmix64(x uint64) uint64 {
	x = (x ^ (x >> 33)) * 14029467366897019727
	x = (x ^ (x >> 29)) * 1609587929392839161
	return x ^ (x >> 32)
}

// read32Part ORs in the available bytes of a sub-4-byte tail, matching the
// source's read32_part: only lengths 1..3 occur (a full chunk is read via
// read32 instead).
func read32Part(b []byte, n int) uint32 {
	switch n {
	case 3:
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	case 2:
		return uint32(b[0]) | uint32(b[1])<<8
	default:
		return uint32(b[0])
	}
}

// read64Part ORs in the available bytes of a sub-8-byte tail: byte k of the
// tail lands at bits 8k..8k+7 for every k in 0..n-1. The source's
// read64_part uses case fallthrough from 6 down to 1 and does not handle
// length 7 separately; here a length-7 tail ORs in all seven bytes,
// including byte index 6, which the source's fallthrough leaves out. Do not
// change this without a model-format version bump.
func read64Part(b []byte, n int) uint64 {
	x := uint64(b[0])
	if n >= 7 {
		x |= uint64(b[6]) << 48
	}
	if n >= 6 {
		x |= uint64(b[5]) << 40
	}
	if n >= 5 {
		x |= uint64(b[4]) << 32
	}
	if n >= 4 {
		x |= uint64(b[3]) << 24
	}
	if n >= 3 {
		x |= uint64(b[2]) << 16
	}
	if n >= 2 {
		x |= uint64(b[1]) << 8
	}
	return x
}

// HashData32 hashes a byte buffer: consumes aligned 4-byte chunks via Mix32,
// the tail via MixTail32, XORs the length in, and finishes with Fmix32.
func HashData32(seed uint32, data []byte) uint32 {
	h := seed
	i := 0
	for ; i+4 <= len(data); i += 4 {
		h = Mix32(readLE32(data[i:]), h)
	}
	if rem := len(data) - i; rem > 0 {
		h = MixTail32(read32Part(data[i:], rem), h)
	}
	return Fmix32(h ^ uint32(len(data)))
}

// HashData64 hashes a byte buffer using the 64-bit mixer.
//
// The source's inner loop advances its byte cursor by 4 while each iteration
// consumes 8 bytes (`for (i=0; i+8<=len; i+=4) h1 = hash64_mix(read64(ptr+i), h1);`),
// so successive 64-bit chunks overlap by 4 bytes. This is preserved
// bit-exactly — see spec.md §9 ("64-bit inner loop increment") — because
// "fixing" it changes every 64-bit hash value a model depends on.
func HashData64(seed uint64, data []byte) uint64 {
	h := seed
	i := 0
	for ; i+8 <= len(data); i += 4 {
		h = Mix64(readLE64(data[i:]), h)
	}
	if rem := len(data) - i; rem > 0 {
		h = MixTail64(read64Part(data[i:], rem), h)
	}
	return Fmix64(h ^ uint64(len(data)))
}

func readLE32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readLE64(b []byte) uint64 {
	return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16 | uint64(b[3])<<24 |
		uint64(b[4])<<32 | uint64(b[5])<<40 | uint64(b[6])<<48 | uint64(b[7])<<56
}

// Sentinel hashes returned by the partial-unicode helpers for empty input,
// and by the prefix/suffix helpers when the min-stem guard rejects the
// request. These are on-disk-contract constants, not arbitrary choices.
const (
	SentinelEmpty32       uint32 = 0x3a5c441
	SentinelEmpty64       uint64 = 0x7fb838a8a0a95046
	SentinelSuffixGuard32 uint32 = 0x34b020cc
	SentinelSuffixGuard64 uint64 = 0xb9d9d9fb4440f7bb
	SentinelPrefixGuard32 uint32 = 0x719986aa
	SentinelPrefixGuard64 uint64 = 0xc1a7bd3b4e853fc9
)

// PartialUnicode32 hashes a sequence of code points directly, one per Mix32
// step. It does NOT apply Fmix32 — callers combine it with other hash
// material and finalize once at the end (spec.md §4.1 contract).
func PartialUnicode32(p []rune) uint32 {
	if len(p) == 0 {
		return SentinelEmpty32
	}
	h := uint32(p[0])
	for i := 1; i < len(p); i++ {
		h = Mix32(uint32(p[i]), h)
	}
	return h ^ uint32(len(p))
}

// PartialUnicode64 packs pairs of code points into 64-bit words before
// mixing, per spec.md §4.1. It does NOT apply Fmix64.
func PartialUnicode64(p []rune) uint64 {
	if len(p) == 0 {
		return SentinelEmpty64
	}
	var h uint64
	if len(p) == 1 {
		h = uint64(uint32(p[0]))
	} else {
		h = uint64(uint32(p[0])) | uint64(uint32(p[1]))<<32
	}
	for i := 1; i < len(p)/2; i++ {
		word := uint64(uint32(p[i*2])) | uint64(uint32(p[i*2+1]))<<32
		h = Mix64(word, h)
	}
	if len(p)%2 != 0 {
		h = Mix64(uint64(uint32(p[len(p)-1])), h)
	}
	return h ^ uint64(len(p))
}

// Prefix32 hashes the leading n code points of p, gated by the min-stem
// guard: min_stem+n must not exceed len(p), else the sentinel is returned.
func Prefix32(p []rune, n, minStem int) uint32 {
	if minStem+n > len(p) {
		return SentinelPrefixGuard32
	}
	return PartialUnicode32(p[:n])
}

// Suffix32 hashes the trailing n code points of p under the same guard.
func Suffix32(p []rune, n, minStem int) uint32 {
	if minStem+n > len(p) {
		return SentinelSuffixGuard32
	}
	return PartialUnicode32(p[len(p)-n:])
}

// Prefix64 is the 64-bit analogue of Prefix32.
func Prefix64(p []rune, n, minStem int) uint64 {
	if minStem+n > len(p) {
		return SentinelPrefixGuard64
	}
	return PartialUnicode64(p[:n])
}

// Suffix64 is the 64-bit analogue of Suffix32.
func Suffix64(p []rune, n, minStem int) uint64 {
	if minStem+n > len(p) {
		return SentinelSuffixGuard64
	}
	return PartialUnicode64(p[len(p)-n:])
}

// UTF8Prefix32 decodes data as UTF-8 and hashes its leading n code points.
// On malformed UTF-8 it falls back to the raw-byte hash of data, per
// spec.md §4.2 ("the hash is the raw-byte fallback ... as documented").
func UTF8Prefix32(data []byte, n, minStem int) uint32 {
	runes, ok := DecodeUTF8(data)
	if !ok {
		return Fmix32(HashData32(0, data))
	}
	return Fmix32(Prefix32(runes, n, minStem))
}

// UTF8Suffix32 is the suffix analogue of UTF8Prefix32.
func UTF8Suffix32(data []byte, n, minStem int) uint32 {
	runes, ok := DecodeUTF8(data)
	if !ok {
		return Fmix32(HashData32(0, data))
	}
	return Fmix32(Suffix32(runes, n, minStem))
}

// UTF8Prefix64 is the 64-bit analogue of UTF8Prefix32.
func UTF8Prefix64(data []byte, n, minStem int) uint64 {
	runes, ok := DecodeUTF8(data)
	if !ok {
		return Fmix64(HashData64(0, data))
	}
	return Fmix64(Prefix64(runes, n, minStem))
}

// UTF8Suffix64 is the 64-bit analogue of UTF8Suffix32.
func UTF8Suffix64(data []byte, n, minStem int) uint64 {
	runes, ok := DecodeUTF8(data)
	if !ok {
		return Fmix64(HashData64(0, data))
	}
	return Fmix64(Suffix64(runes, n, minStem))
}
