package xcrypto

import (
	"crypto/subtle"

	"golang.org/x/crypto/poly1305"
)

// MacLength is the length in bytes of the truncated MAC carried on the wire
// (§6: 8 bytes), half of the full 16-byte Poly1305 tag.
const MacLength = 8

// OneTimePolyKey derives the one-time Poly1305 key for one packet from the
// Salsa20/12 keystream's first block, keyed by the per-peer shared secret
// and the packet's 64-bit packet_id used as nonce (§4.B, §6). This is the
// standard "use the first keystream block as a one-time MAC key" pattern
// shared by Salsa20-Poly1305 constructions.
func OneTimePolyKey(sharedKey [32]byte, packetID uint64) [32]byte {
	var nonce [8]byte
	putUint64(nonce[:], packetID)
	block := Salsa2012KeystreamBlock(nonce, sharedKey, 0)
	var polyKey [32]byte
	copy(polyKey[:], block[:32])
	return polyKey
}

// ComputeMAC returns the truncated (8-byte) Poly1305 tag over data, using
// the one-time key derived from sharedKey and packetID.
func ComputeMAC(sharedKey [32]byte, packetID uint64, data []byte) [MacLength]byte {
	polyKey := OneTimePolyKey(sharedKey, packetID)
	var full [16]byte
	poly1305.Sum(&full, data, &polyKey)
	var out [MacLength]byte
	copy(out[:], full[:MacLength])
	return out
}

// VerifyMAC checks a truncated MAC in constant time.
func VerifyMAC(sharedKey [32]byte, packetID uint64, data []byte, mac [MacLength]byte) bool {
	computed := ComputeMAC(sharedKey, packetID, data)
	return subtle.ConstantTimeCompare(computed[:], mac[:]) == 1
}

func putUint64(b []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}
