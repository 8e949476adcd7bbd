// Package wire implements the bounds-checked packet byte-view (§4.A) and
// the on-the-wire header layout (§6) shared by every verb handler.
package wire

import (
	"crypto/rand"
	"errors"

	"github.com/ambereth/vl1/identity"
)

// Header field offsets, per §6.
const (
	idxDestination = 0
	idxSource      = 5
	idxFlags       = 10
	idxMAC         = 11
	idxPacketID    = 19
	idxCipherFlags = 27
	idxVerb        = 28

	// HeaderLength is the fixed size of the wire header; payload follows.
	HeaderLength = 29
)

// ErrShortPacket is returned by any accessor whose read would run past the
// end of the buffer. Handlers MUST treat this as a decode failure and drop
// the packet silently (§4.A, §7.1) rather than propagate it.
var ErrShortPacket = errors.New("wire: short packet")

// Packet is a mutable byte-view over one datagram. All multi-byte reads are
// big-endian and bounds-checked against the current buffer length; nothing
// here ever panics or over-reads on attacker-controlled input.
type Packet struct {
	buf []byte
}

// View wraps an existing buffer (e.g. one just read off the socket) without
// copying it. The caller must not retain the slice after the Packet is
// done being processed, matching §5's "no handler retains a reference to
// the inbound byte buffer after return".
func View(buf []byte) *Packet {
	return &Packet{buf: buf}
}

// NewOutbound starts a fresh outbound packet with the header filled in and
// a random packet_id, ready for handlers to Append fields onto.
func NewOutbound(dst, src identity.Address, verb Verb) *Packet {
	p := &Packet{buf: make([]byte, HeaderLength)}
	p.SetDestination(dst)
	p.SetSource(src)
	p.SetCipher(CipherNonePoly1305)
	p.SetVerb(verb)
	p.randomizePacketID()
	return p
}

func (p *Packet) randomizePacketID() {
	var b [8]byte
	_, _ = rand.Read(b[:])
	copy(p.buf[idxPacketID:idxPacketID+8], b[:])
}

// NewInitializationVector re-randomizes the packet_id of an existing packet.
func (p *Packet) NewInitializationVector() {
	p.randomizePacketID()
}

// Len returns the current total length of the packet, header included.
func (p *Packet) Len() int {
	return len(p.buf)
}

// Bytes returns the raw underlying buffer.
func (p *Packet) Bytes() []byte {
	return p.buf
}

func (p *Packet) require(offset, width int) error {
	if offset < 0 || width < 0 || offset+width > len(p.buf) {
		return ErrShortPacket
	}
	return nil
}

// ByteAt reads one byte at offset.
func (p *Packet) ByteAt(offset int) (byte, error) {
	if err := p.require(offset, 1); err != nil {
		return 0, err
	}
	return p.buf[offset], nil
}

// Uint16At reads a big-endian uint16 at offset.
func (p *Packet) Uint16At(offset int) (uint16, error) {
	if err := p.require(offset, 2); err != nil {
		return 0, err
	}
	return uint16(p.buf[offset])<<8 | uint16(p.buf[offset+1]), nil
}

// Uint32At reads a big-endian uint32 at offset.
func (p *Packet) Uint32At(offset int) (uint32, error) {
	if err := p.require(offset, 4); err != nil {
		return 0, err
	}
	b := p.buf[offset : offset+4]
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Uint64At reads a big-endian uint64 at offset.
func (p *Packet) Uint64At(offset int) (uint64, error) {
	if err := p.require(offset, 8); err != nil {
		return 0, err
	}
	b := p.buf[offset : offset+8]
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v, nil
}

// Slice returns a bounds-checked sub-slice of the buffer. The returned
// slice aliases the packet's storage; callers must not retain it past the
// current dispatch.
func (p *Packet) Slice(offset, length int) ([]byte, error) {
	if err := p.require(offset, length); err != nil {
		return nil, err
	}
	return p.buf[offset : offset+length], nil
}

// SetByteAt overwrites one byte in place, returning ErrShortPacket if offset
// lies past the end of the buffer.
func (p *Packet) SetByteAt(offset int, v byte) error {
	if err := p.require(offset, 1); err != nil {
		return err
	}
	p.buf[offset] = v
	return nil
}

// SetUint16At overwrites a big-endian uint16 in place, used to back-patch a
// size field after appending variable-length content (§4.D step 8).
func (p *Packet) SetUint16At(offset int, v uint16) error {
	if err := p.require(offset, 2); err != nil {
		return err
	}
	p.buf[offset] = byte(v >> 8)
	p.buf[offset+1] = byte(v)
	return nil
}

// AppendByte appends one byte.
func (p *Packet) AppendByte(v byte) {
	p.buf = append(p.buf, v)
}

// AppendUint16 appends a big-endian uint16.
func (p *Packet) AppendUint16(v uint16) {
	p.buf = append(p.buf, byte(v>>8), byte(v))
}

// AppendUint32 appends a big-endian uint32.
func (p *Packet) AppendUint32(v uint32) {
	p.buf = append(p.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}

// AppendUint64 appends a big-endian uint64.
func (p *Packet) AppendUint64(v uint64) {
	for i := 7; i >= 0; i-- {
		p.buf = append(p.buf, byte(v>>(uint(i)*8)))
	}
}

// AppendBytes appends a raw sub-slice.
func (p *Packet) AppendBytes(b []byte) {
	p.buf = append(p.buf, b...)
}

// AppendAddress appends a 5-byte address.
func (p *Packet) AppendAddress(a identity.Address) {
	b := a.Bytes()
	p.buf = append(p.buf, b[:]...)
}

// Destination reads the 5-byte destination address.
func (p *Packet) Destination() (identity.Address, error) {
	b, err := p.Slice(idxDestination, identity.AddressLength)
	if err != nil {
		return identity.NilAddress, err
	}
	return identity.AddressFromBytes(b)
}

// SetDestination overwrites the destination address.
func (p *Packet) SetDestination(a identity.Address) {
	b := a.Bytes()
	copy(p.buf[idxDestination:idxDestination+identity.AddressLength], b[:])
}

// Source reads the 5-byte source address.
func (p *Packet) Source() (identity.Address, error) {
	b, err := p.Slice(idxSource, identity.AddressLength)
	if err != nil {
		return identity.NilAddress, err
	}
	return identity.AddressFromBytes(b)
}

// SetSource overwrites the source address.
func (p *Packet) SetSource(a identity.Address) {
	b := a.Bytes()
	copy(p.buf[idxSource:idxSource+identity.AddressLength], b[:])
}

// Hops returns the hop counter packed in the low nibble of the flags byte.
func (p *Packet) Hops() uint8 {
	if len(p.buf) <= idxFlags {
		return 0
	}
	return p.buf[idxFlags] & 0x0f
}

// Fragmented reports whether the fragmented bit (bit 6) of the flags byte
// is set.
func (p *Packet) Fragmented() bool {
	if len(p.buf) <= idxFlags {
		return false
	}
	return p.buf[idxFlags]&0x40 != 0
}

// MAC reads the 8-byte truncated Poly1305 tag.
func (p *Packet) MAC() ([8]byte, error) {
	var out [8]byte
	b, err := p.Slice(idxMAC, 8)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// SetMAC overwrites the MAC field.
func (p *Packet) SetMAC(mac [8]byte) {
	copy(p.buf[idxMAC:idxMAC+8], mac[:])
}

// PacketID reads the 64-bit nonce/correlation id.
func (p *Packet) PacketID() (uint64, error) {
	return p.Uint64At(idxPacketID)
}

// SetPacketID overwrites the packet_id field.
func (p *Packet) SetPacketID(id uint64) {
	for i := 0; i < 8; i++ {
		p.buf[idxPacketID+i] = byte(id >> (uint(7-i) * 8))
	}
}

// Cipher reads the 3-bit cipher suite selector from the upper bits of the
// cipher+flags byte.
func (p *Packet) Cipher() (CipherSuite, error) {
	b, err := p.ByteAt(idxCipherFlags)
	if err != nil {
		return 0, err
	}
	return CipherSuite(b >> 5), nil
}

// SetCipher overwrites the cipher suite selector, preserving per-verb flags.
func (p *Packet) SetCipher(c CipherSuite) {
	cur := p.buf[idxCipherFlags]
	p.buf[idxCipherFlags] = (byte(c) << 5) | (cur & 0x1f)
}

// VerbFlags reads the low 5 bits of the cipher+flags byte (per-verb flags,
// e.g. the compression flag).
func (p *Packet) VerbFlags() (byte, error) {
	b, err := p.ByteAt(idxCipherFlags)
	if err != nil {
		return 0, err
	}
	return b & 0x1f, nil
}

// SetVerbFlag ORs one bit into the per-verb flags.
func (p *Packet) SetVerbFlag(bit byte) {
	p.buf[idxCipherFlags] |= bit & 0x1f
}

// CompressedFlag is the per-verb flag bit meaning "payload is compressed"
// (§4.B `uncompress`).
const CompressedFlag = 0x01

// Verb reads the verb tag.
func (p *Packet) Verb() (Verb, error) {
	b, err := p.ByteAt(idxVerb)
	if err != nil {
		return 0, err
	}
	return Verb(b), nil
}

// SetVerb overwrites the verb tag.
func (p *Packet) SetVerb(v Verb) {
	p.buf[idxVerb] = byte(v)
}

// Payload returns the bounds-checked payload region (everything after the
// fixed header).
func (p *Packet) Payload() []byte {
	if len(p.buf) <= HeaderLength {
		return nil
	}
	return p.buf[HeaderLength:]
}

// PayloadLen returns the number of payload bytes.
func (p *Packet) PayloadLen() int {
	if len(p.buf) <= HeaderLength {
		return 0
	}
	return len(p.buf) - HeaderLength
}

// Truncate drops everything from offset onward, used when a handler needs
// to discard trailing bytes it already consumed (e.g. after decompression
// replaces the payload).
func (p *Packet) Truncate(offset int) {
	if offset < len(p.buf) {
		p.buf = p.buf[:offset]
	}
}

// ReplacePayload swaps the payload region wholesale, used by uncompress.
func (p *Packet) ReplacePayload(payload []byte) {
	p.buf = append(p.buf[:HeaderLength], payload...)
}

// The PayloadXxxAt family below are payload-relative conveniences: offset
// 0 means the first payload byte, i.e. absolute offset HeaderLength. Verb
// handlers parse their payloads exclusively through these so field offsets
// in handler code match the byte diagrams in the protocol tables directly.

func (p *Packet) PayloadByteAt(offset int) (byte, error) {
	return p.ByteAt(HeaderLength + offset)
}

func (p *Packet) PayloadUint16At(offset int) (uint16, error) {
	return p.Uint16At(HeaderLength + offset)
}

func (p *Packet) PayloadUint32At(offset int) (uint32, error) {
	return p.Uint32At(HeaderLength + offset)
}

func (p *Packet) PayloadUint64At(offset int) (uint64, error) {
	return p.Uint64At(HeaderLength + offset)
}

func (p *Packet) PayloadSlice(offset, length int) ([]byte, error) {
	return p.Slice(HeaderLength+offset, length)
}

// PayloadAddressAt reads a 5-byte address at a payload-relative offset.
func (p *Packet) PayloadAddressAt(offset int) (identity.Address, error) {
	b, err := p.PayloadSlice(offset, identity.AddressLength)
	if err != nil {
		return identity.NilAddress, err
	}
	return identity.AddressFromBytes(b)
}
