package identity

import (
	"bytes"
	"crypto/ed25519"

	"github.com/ambereth/vl1/xcrypto"
)

// identityPowDifficulty is the fixed difficulty of the proof-of-work binding
// an Identity's address to its public key. The protocol leaves the exact
// construction of this binding to the implementation; this module derives
// the challenge from the public key bytes so that `LocallyValidate` and the
// address derivation below are mutually consistent, and fixes the difficulty
// low enough that identity generation stays fast while still making address
// squatting by brute-force expensive.
const identityPowDifficulty = 14

// Identity is a peer's address together with the public key material and
// proof-of-work binding that vouch for it (§3 "Identity"). PublicKey is the
// Curve25519 key used to agree on a peer's per-link shared secret (§4.D);
// SigningPublicKey is a separate Ed25519 key used only to verify signed,
// multi-hop messages such as CIRCUIT_TEST (§4.H), where the signature must
// remain valid as the packet is relayed away from the direct link the
// Curve25519 key secures.
type Identity struct {
	Address          Address
	PublicKey        [xcrypto.PublicKeySize]byte
	SigningPublicKey ed25519.PublicKey
	PowProof         [xcrypto.PowResultSize]byte
}

// New derives an Identity's address from a public key and a proof-of-work
// solution already computed for it (e.g. by GenerateIdentity).
func New(pub [xcrypto.PublicKeySize]byte, signingPub ed25519.PublicKey, pow [xcrypto.PowResultSize]byte) Identity {
	return Identity{
		Address:          addressFromPublicKey(pub),
		PublicKey:        pub,
		SigningPublicKey: append(ed25519.PublicKey(nil), signingPub...),
		PowProof:         pow,
	}
}

// GenerateIdentity creates a fresh Identity from a newly agreed private key,
// searching for a PoW solution and deriving the address from the resulting
// public key. It also generates the Ed25519 signing keypair used for
// CIRCUIT_TEST, returning its private half for the caller to retain.
func GenerateIdentity(priv [xcrypto.PrivateKeySize]byte) (Identity, ed25519.PrivateKey, error) {
	pub, err := xcrypto.PublicKey(priv)
	if err != nil {
		return Identity{}, nil, err
	}
	signingPub, signingPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		return Identity{}, nil, err
	}
	pow := xcrypto.ComputePow(identityPowDifficulty, pub[:])
	return New(pub, signingPub, pow), signingPriv, nil
}

// addressFromPublicKey derives the 40-bit address as the low 5 bytes of the
// public key, matching the convention that an address is "derived from a
// public key" (§3).
func addressFromPublicKey(pub [xcrypto.PublicKeySize]byte) Address {
	var b [AddressLength]byte
	copy(b[:], pub[len(pub)-AddressLength:])
	a, _ := AddressFromBytes(b[:])
	return a
}

// LocallyValidate reports whether the identity's proof-of-work genuinely
// binds its address to its public key: the address must be exactly the
// bytes addressFromPublicKey would derive, and PowProof must verify against
// a challenge of the public key at identityPowDifficulty (§3
// `locally_validate`).
func (id Identity) LocallyValidate() bool {
	if id.Address != addressFromPublicKey(id.PublicKey) {
		return false
	}
	return xcrypto.VerifyPow(identityPowDifficulty, id.PublicKey[:], id.PowProof)
}

// Serialize encodes the identity as
// [address:5][pubkey:32][signing_pubkey:32][pow:16], the wire form carried
// inside HELLO and WHOIS replies.
func (id Identity) Serialize() []byte {
	b := id.Address.Bytes()
	out := make([]byte, 0, SerializedLen())
	out = append(out, b[:]...)
	out = append(out, id.PublicKey[:]...)
	out = append(out, id.SigningPublicKey...)
	out = append(out, id.PowProof[:]...)
	return out
}

// DeserializeIdentity decodes the wire form produced by Serialize.
func DeserializeIdentity(b []byte) (Identity, error) {
	want := SerializedLen()
	if len(b) < want {
		return Identity{}, ErrInvalidAddress
	}
	addr, err := AddressFromBytes(b[:AddressLength])
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	id.Address = addr
	off := AddressLength
	copy(id.PublicKey[:], b[off:off+xcrypto.PublicKeySize])
	off += xcrypto.PublicKeySize
	id.SigningPublicKey = append([]byte(nil), b[off:off+ed25519.PublicKeySize]...)
	off += ed25519.PublicKeySize
	copy(id.PowProof[:], b[off:off+xcrypto.PowResultSize])
	return id, nil
}

// SerializedLen returns the number of bytes Serialize produces; callers
// parsing a longer buffer (e.g. a HELLO payload with trailing fields) use
// this to know where the identity ends.
func SerializedLen() int {
	return AddressLength + xcrypto.PublicKeySize + ed25519.PublicKeySize + xcrypto.PowResultSize
}

// Equal reports whether two identities describe the same key material.
func (id Identity) Equal(other Identity) bool {
	return id.Address == other.Address &&
		bytes.Equal(id.PublicKey[:], other.PublicKey[:]) &&
		bytes.Equal(id.SigningPublicKey, other.SigningPublicKey) &&
		bytes.Equal(id.PowProof[:], other.PowProof[:])
}
