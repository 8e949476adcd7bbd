package xcrypto

import "encoding/binary"

// Salsa20/12 keystream generator. The wire protocol (§4.B, §4.I) standardizes
// on the reduced-round (12, i.e. 6 double-round) variant of Salsa20 rather
// than the canonical 20-round cipher. golang.org/x/crypto/salsa20 hardcodes
// 20 rounds and exposes no way to select a smaller round count, so the
// core permutation is implemented here directly from the published
// algorithm (Bernstein, "Salsa20 specification") rather than adapted from
// a library — see DESIGN.md for why no pack dependency could serve this.

const (
	salsaBlockSize = 64
	salsa2012Rounds = 12
)

var sigma = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

func rotl(x uint32, n uint) uint32 {
	return (x << n) | (x >> (32 - n))
}

// salsaCore runs the Salsa20 permutation for `rounds` rounds (must be even)
// over the 16-word input state and writes the 64-byte serialized output.
func salsaCore(out *[salsaBlockSize]byte, in *[16]uint32, rounds int) {
	var x [16]uint32
	copy(x[:], in[:])

	for i := 0; i < rounds; i += 2 {
		// column round
		x[4] ^= rotl(x[0]+x[12], 7)
		x[8] ^= rotl(x[4]+x[0], 9)
		x[12] ^= rotl(x[8]+x[4], 13)
		x[0] ^= rotl(x[12]+x[8], 18)

		x[9] ^= rotl(x[5]+x[1], 7)
		x[13] ^= rotl(x[9]+x[5], 9)
		x[1] ^= rotl(x[13]+x[9], 13)
		x[5] ^= rotl(x[1]+x[13], 18)

		x[14] ^= rotl(x[10]+x[6], 7)
		x[2] ^= rotl(x[14]+x[10], 9)
		x[6] ^= rotl(x[2]+x[14], 13)
		x[10] ^= rotl(x[6]+x[2], 18)

		x[3] ^= rotl(x[15]+x[11], 7)
		x[7] ^= rotl(x[3]+x[15], 9)
		x[11] ^= rotl(x[7]+x[3], 13)
		x[15] ^= rotl(x[11]+x[7], 18)

		// row round
		x[1] ^= rotl(x[0]+x[3], 7)
		x[2] ^= rotl(x[1]+x[0], 9)
		x[3] ^= rotl(x[2]+x[1], 13)
		x[0] ^= rotl(x[3]+x[2], 18)

		x[6] ^= rotl(x[5]+x[4], 7)
		x[7] ^= rotl(x[6]+x[5], 9)
		x[4] ^= rotl(x[7]+x[6], 13)
		x[5] ^= rotl(x[4]+x[7], 18)

		x[11] ^= rotl(x[10]+x[9], 7)
		x[8] ^= rotl(x[11]+x[10], 9)
		x[9] ^= rotl(x[8]+x[11], 13)
		x[10] ^= rotl(x[9]+x[8], 18)

		x[12] ^= rotl(x[15]+x[14], 7)
		x[13] ^= rotl(x[12]+x[15], 9)
		x[14] ^= rotl(x[13]+x[12], 13)
		x[15] ^= rotl(x[14]+x[13], 18)
	}

	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], x[i]+in[i])
	}
}

// salsaState builds the canonical 16-word Salsa20 state from a 32-byte key,
// an 8-byte nonce and a 64-bit block counter.
func salsaState(key [32]byte, nonce [8]byte, counter uint64) [16]uint32 {
	var s [16]uint32
	s[0] = sigma[0]
	s[1] = binary.LittleEndian.Uint32(key[0:4])
	s[2] = binary.LittleEndian.Uint32(key[4:8])
	s[3] = binary.LittleEndian.Uint32(key[8:12])
	s[4] = binary.LittleEndian.Uint32(key[12:16])
	s[5] = sigma[1]
	s[6] = binary.LittleEndian.Uint32(nonce[0:4])
	s[7] = binary.LittleEndian.Uint32(nonce[4:8])
	s[8] = uint32(counter)
	s[9] = uint32(counter >> 32)
	s[10] = sigma[2]
	s[11] = binary.LittleEndian.Uint32(key[16:20])
	s[12] = binary.LittleEndian.Uint32(key[20:24])
	s[13] = binary.LittleEndian.Uint32(key[24:28])
	s[14] = binary.LittleEndian.Uint32(key[28:32])
	s[15] = sigma[3]
	return s
}

// Salsa2012XORKeyStream XORs src with the Salsa20/12 keystream for the given
// key and nonce, starting at block counter 0, and writes the result to dst.
// dst and src may overlap exactly (in-place encryption/decryption), matching
// the §4.B dearmor/armor contract.
func Salsa2012XORKeyStream(dst, src []byte, nonce [8]byte, key [32]byte) {
	Salsa2012XORKeyStreamFrom(dst, src, nonce, key, 0)
}

// Salsa2012XORKeyStreamFrom is Salsa2012XORKeyStream starting at an
// arbitrary block counter, used to skip the block already consumed as the
// one-time Poly1305 key (§4.B: the cipher keystream must not reuse the MAC
// key's block).
func Salsa2012XORKeyStreamFrom(dst, src []byte, nonce [8]byte, key [32]byte, startCounter uint64) {
	state := salsaState(key, nonce, startCounter)
	var block [salsaBlockSize]byte
	counter := startCounter
	for len(src) > 0 {
		state[8] = uint32(counter)
		state[9] = uint32(counter >> 32)
		salsaCore(&block, &state, salsa2012Rounds)
		n := len(src)
		if n > salsaBlockSize {
			n = salsaBlockSize
		}
		for i := 0; i < n; i++ {
			dst[i] = src[i] ^ block[i]
		}
		dst = dst[n:]
		src = src[n:]
		counter++
	}
}

// Salsa2012KeystreamBlock returns a single 64-byte keystream block for the
// given key, nonce and block index, used to derive one-time Poly1305 keys
// (§4.B) without encrypting anything.
func Salsa2012KeystreamBlock(nonce [8]byte, key [32]byte, blockIndex uint64) [salsaBlockSize]byte {
	state := salsaState(key, nonce, blockIndex)
	var block [salsaBlockSize]byte
	salsaCore(&block, &state, salsa2012Rounds)
	return block
}
