package xcrypto

import (
	"crypto/rand"
	"crypto/sha512"
)

// PowBufferSize is the protocol-mandated size of the memory-hard mixing
// buffer (§4.I, §9 "131072 bytes is a protocol constant").
const PowBufferSize = 131072

// PowResultSize is the size of a candidate/result nonce.
const PowResultSize = 16

// MaxPowDifficulty is the hard ceiling on requested difficulty (§4.I).
const MaxPowDifficulty = 512

// ComputePow solves the memory-hard Salsa20/12+SHA-512 hashcash puzzle
// described in §4.I: it repeatedly hashes a candidate (a 16-byte random
// nonce followed by the challenge) through SHA-512, uses the digest to key
// a Salsa20/12 keystream that fills a 131072-byte buffer, hashes that
// buffer again, and accepts the candidate once the leading `difficulty`
// bits of the final digest are zero. The incrementing counter is the first
// 8 bytes of the nonce (little-endian), so a straightforward byte-slice
// increment suffices; Go slices are not pointer-aligned structs the way the
// original's `uintptr` alignment trick targets, so that alignment step has
// no analog here and is intentionally not reproduced.
func ComputePow(difficulty int, challenge []byte) [PowResultSize]byte {
	if difficulty > MaxPowDifficulty {
		difficulty = MaxPowDifficulty
	}

	candidate := make([]byte, PowResultSize+len(challenge))
	if _, err := rand.Read(candidate[:PowResultSize]); err != nil {
		panic("xcrypto: failed to read secure random bytes: " + err.Error())
	}
	copy(candidate[PowResultSize:], challenge)

	var buf [PowBufferSize]byte
	for {
		incrementCounter(candidate[:PowResultSize])
		if powPasses(difficulty, candidate, &buf) {
			var out [PowResultSize]byte
			copy(out[:], candidate[:PowResultSize])
			return out
		}
	}
}

// VerifyPow checks a proposed result against the same puzzle (§4.I
// `verify`), without the search loop.
func VerifyPow(difficulty int, challenge []byte, proposed [PowResultSize]byte) bool {
	if difficulty > MaxPowDifficulty {
		difficulty = MaxPowDifficulty
	}

	candidate := make([]byte, PowResultSize+len(challenge))
	copy(candidate[:PowResultSize], proposed[:])
	copy(candidate[PowResultSize:], challenge)

	var buf [PowBufferSize]byte
	return powPasses(difficulty, candidate, &buf)
}

func powPasses(difficulty int, candidate []byte, buf *[PowBufferSize]byte) bool {
	sh1 := sha512.Sum512(candidate)
	var key [32]byte
	copy(key[:], sh1[:32])

	for i := range buf {
		buf[i] = 0
	}
	var nonce [8]byte // zero IV, per the original's fixed zero Salsa20 IV
	Salsa2012XORKeyStream(buf[:], buf[:], nonce, key)

	sh2 := sha512.Sum512(buf[:])
	return leadingBitsZero(sh2[:], difficulty)
}

func leadingBitsZero(digest []byte, difficulty int) bool {
	d := difficulty
	p := 0
	for d >= 8 {
		if digest[p] != 0 {
			return false
		}
		p++
		d -= 8
	}
	if d > 0 {
		if (uint(digest[p])<<uint(d))&0xff00 != 0 {
			return false
		}
	}
	return true
}

// incrementCounter treats the first 8 bytes of b as a little-endian uint64
// and increments it in place, matching the original's
// `++*(uint64_t*)candidate`.
func incrementCounter(b []byte) {
	for i := 0; i < 8; i++ {
		b[i]++
		if b[i] != 0 {
			return
		}
	}
}
