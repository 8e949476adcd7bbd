package wire

import (
	"github.com/ambereth/vl1/xcrypto"
	"github.com/klauspost/compress/s2"
)

// macRegionOffset is where the authenticated region begins: the cipher+flags
// byte, the verb byte and the payload. The destination/source/flags/mac/
// packet_id fields are transmitted but not themselves MACed, matching most
// AEAD-over-UDP designs where the nonce and routing fields ride alongside
// the authenticated ciphertext rather than inside it.
const macRegionOffset = idxCipherFlags

// Dearmor verifies the packet's MAC under key and, for
// CipherSalsa2012Poly1305, decrypts the payload in place. It reports false
// on any MAC failure (§4.B `dearmor`); the caller MUST drop the packet
// without further processing in that case.
func Dearmor(p *Packet, key [32]byte) (bool, error) {
	pid, err := p.PacketID()
	if err != nil {
		return false, err
	}
	cipher, err := p.Cipher()
	if err != nil {
		return false, err
	}
	mac, err := p.MAC()
	if err != nil {
		return false, err
	}

	region := p.buf[macRegionOffset:]
	if !xcrypto.VerifyMAC(key, pid, region, mac) {
		return false, nil
	}

	if cipher == CipherSalsa2012Poly1305 {
		xcrypto.EncryptPayload(key, pid, p.buf[HeaderLength:])
	}
	return true, nil
}

// Armor is the outbound counterpart of Dearmor: it optionally encrypts the
// payload (`encrypt`), then computes and writes the MAC.
func Armor(p *Packet, key [32]byte, encrypt bool) error {
	pid, err := p.PacketID()
	if err != nil {
		return err
	}
	if encrypt {
		p.SetCipher(CipherSalsa2012Poly1305)
		xcrypto.EncryptPayload(key, pid, p.buf[HeaderLength:])
	} else {
		p.SetCipher(CipherNonePoly1305)
	}
	region := p.buf[macRegionOffset:]
	mac := xcrypto.ComputeMAC(key, pid, region)
	p.SetMAC(mac)
	return nil
}

// Uncompress decompresses the payload in place if the per-verb compressed
// flag is set (§4.B `uncompress`). It returns false on a malformed stream,
// which the caller MUST treat as a drop.
func Uncompress(p *Packet) bool {
	flags, err := p.VerbFlags()
	if err != nil {
		return false
	}
	if flags&CompressedFlag == 0 {
		return true
	}
	decoded, err := s2.Decode(nil, p.Payload())
	if err != nil {
		return false
	}
	p.ReplacePayload(decoded)
	return true
}

// Compress replaces the payload with its S2-compressed form and sets the
// compressed flag, used by handlers building large replies (e.g.
// NETWORK_CONFIG_REQUEST's OK per §4.G). It uses s2's block API, matching
// Uncompress's s2.Decode on the receiving side; s2's streaming writer
// produces a different, chunked wire format that s2.Decode cannot read.
func Compress(p *Packet) {
	encoded := s2.Encode(nil, p.Payload())
	p.ReplacePayload(encoded)
	p.SetVerbFlag(CompressedFlag)
}
