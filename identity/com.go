package identity

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
)

// ErrInvalidCOM is returned when a serialized CertificateOfMembership is
// malformed. Signature checks are separate: see Verify.
var ErrInvalidCOM = errors.New("identity: invalid certificate of membership")

// CertificateOfMembership is a short-lived, signed admission token proving
// current membership in a virtual network (§3 "COM").
type CertificateOfMembership struct {
	NetworkID  uint64
	IssuedTo   Address
	Timestamp  uint64
	Revision   uint64
	MaxDelta   uint64 // tolerance window for Timestamp when comparing two COMs
	Signature  []byte
}

func (c CertificateOfMembership) signedRegion() []byte {
	buf := make([]byte, comFixedLen)
	binary.BigEndian.PutUint64(buf[0:8], c.NetworkID)
	addr := c.IssuedTo.Bytes()
	copy(buf[8:8+AddressLength], addr[:])
	off := 8 + AddressLength
	binary.BigEndian.PutUint64(buf[off:off+8], c.Timestamp)
	binary.BigEndian.PutUint64(buf[off+8:off+16], c.Revision)
	binary.BigEndian.PutUint64(buf[off+16:off+24], c.MaxDelta)
	return buf
}

// Sign computes and attaches the COM's signature under the issuing
// controller's private key.
func (c *CertificateOfMembership) Sign(controllerPriv ed25519.PrivateKey) {
	c.Signature = ed25519.Sign(controllerPriv, c.signedRegion())
}

// Verify reports whether the COM's signature is valid under the issuing
// controller's public key.
func (c CertificateOfMembership) Verify(controllerPub ed25519.PublicKey) bool {
	if len(c.Signature) == 0 {
		return false
	}
	return ed25519.Verify(controllerPub, c.signedRegion(), c.Signature)
}

// AgreesWith reports whether two COMs for the same network "agree": their
// timestamps fall within each side's own tolerance window of one another
// (§3: "two COMs agree iff their respective timestamps are within each
// side's tolerance").
func (c CertificateOfMembership) AgreesWith(other CertificateOfMembership) bool {
	if c.NetworkID != other.NetworkID {
		return false
	}
	delta := tsDelta(c.Timestamp, other.Timestamp)
	return delta <= c.MaxDelta && delta <= other.MaxDelta
}

func tsDelta(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// Serialize encodes a COM as carried in NETWORK_MEMBERSHIP_CERTIFICATE and
// EXT_FRAME/MULTICAST_FRAME inline trailers.
func (c CertificateOfMembership) Serialize() []byte {
	region := c.signedRegion()
	out := make([]byte, 0, len(region)+2+len(c.Signature))
	out = append(out, region...)
	out = append(out, byte(len(c.Signature)>>8), byte(len(c.Signature)))
	out = append(out, c.Signature...)
	return out
}

// comFixedLen is the length of signedRegion(): networkID(8) + address(5) +
// timestamp(8) + revision(8) + maxDelta(8).
const comFixedLen = 8 + AddressLength + 8 + 8 + 8

// DeserializeCOM decodes the form produced by Serialize, returning the
// number of bytes consumed.
func DeserializeCOM(b []byte) (CertificateOfMembership, int, error) {
	if len(b) < comFixedLen+2 {
		return CertificateOfMembership{}, 0, ErrInvalidCOM
	}
	var c CertificateOfMembership
	c.NetworkID = binary.BigEndian.Uint64(b[0:8])
	addr, err := AddressFromBytes(b[8 : 8+AddressLength])
	if err != nil {
		return CertificateOfMembership{}, 0, err
	}
	c.IssuedTo = addr
	off := 8 + AddressLength
	c.Timestamp = binary.BigEndian.Uint64(b[off : off+8])
	c.Revision = binary.BigEndian.Uint64(b[off+8 : off+16])
	c.MaxDelta = binary.BigEndian.Uint64(b[off+16 : off+24])
	off += 24

	sigLen := int(b[off])<<8 | int(b[off+1])
	off += 2
	if off+sigLen > len(b) {
		return CertificateOfMembership{}, 0, ErrInvalidCOM
	}
	c.Signature = append([]byte(nil), b[off:off+sigLen]...)
	off += sigLen
	return c, off, nil
}
