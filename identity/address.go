// Package identity models the peer address space, identities, the
// signed world roster, and certificates of network membership (§3 of the
// protocol design).
package identity

import (
	"encoding/hex"
	"errors"
)

// AddressLength is the length in bytes of a short peer address.
const AddressLength = 5

// ErrInvalidAddress is returned when a string or byte slice does not decode
// into a well-formed 40-bit address.
var ErrInvalidAddress = errors.New("identity: invalid address")

// Address is a 40-bit opaque peer identifier derived from a public key.
// It occupies the low 40 bits (5 bytes) of a uint64; the high 24 bits are
// zero.
type Address uint64

// NilAddress is the zero address, used as a "no address" sentinel.
const NilAddress Address = 0

// AddressFromBytes decodes a 5-byte big-endian address.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return NilAddress, ErrInvalidAddress
	}
	var a uint64
	for _, c := range b {
		a = (a << 8) | uint64(c)
	}
	return Address(a), nil
}

// Bytes encodes the address as 5 big-endian bytes.
func (a Address) Bytes() [AddressLength]byte {
	var out [AddressLength]byte
	v := uint64(a)
	for i := AddressLength - 1; i >= 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	return out
}

// IsNil reports whether this is the zero address.
func (a Address) IsNil() bool {
	return a == NilAddress
}

// String renders the address in canonical lowercase hex.
func (a Address) String() string {
	b := a.Bytes()
	return hex.EncodeToString(b[:])
}

// ParseAddress parses a canonical hex address string.
func ParseAddress(s string) (Address, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return NilAddress, ErrInvalidAddress
	}
	return AddressFromBytes(b)
}
