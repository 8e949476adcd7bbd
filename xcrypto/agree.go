package xcrypto

import (
	"crypto/sha512"

	"golang.org/x/crypto/curve25519"
)

// PrivateKeySize and PublicKeySize are the Curve25519 scalar/point sizes.
const (
	PrivateKeySize = 32
	PublicKeySize  = 32
)

// Agree performs an X25519 Diffie-Hellman agreement between a local private
// key and a remote public key, then runs the raw ECDH output through
// SHA-512 and takes the first 32 bytes as the per-peer shared secret used
// to key both the Poly1305 MAC and the Salsa20/12 cipher (§3 "Peer": "shared
// secret key (derived from local identity × remote identity via elliptic-
// curve agreement)").
func Agree(localPriv [PrivateKeySize]byte, remotePub [PublicKeySize]byte) ([32]byte, error) {
	raw, err := curve25519.X25519(localPriv[:], remotePub[:])
	if err != nil {
		return [32]byte{}, err
	}
	digest := sha512.Sum512(raw)
	var out [32]byte
	copy(out[:], digest[:32])
	return out, nil
}

// GeneratePrivateKey derives a valid X25519 private scalar from 32 bytes of
// entropy, clamping it per the X25519 specification.
func GeneratePrivateKey(seed [32]byte) [PrivateKeySize]byte {
	seed[0] &= 248
	seed[31] &= 127
	seed[31] |= 64
	return seed
}

// PublicKey computes the X25519 public point for a clamped private scalar.
func PublicKey(priv [PrivateKeySize]byte) ([PublicKeySize]byte, error) {
	var out [PublicKeySize]byte
	pub, err := curve25519.X25519(priv[:], curve25519.Basepoint)
	if err != nil {
		return out, err
	}
	copy(out[:], pub)
	return out, nil
}
