package dispatch

import "github.com/ambereth/vl1/identity"

// deriveMAC computes the locally-administered Ethernet MAC a peer address
// maps to on one particular network (§4.F "mac_from_peer_addr",
// "mac_of(peer.addr, nwid)"). The low 5 bytes carry the ZeroTier address
// directly. In the first byte, bit 1 is set (locally administered) and
// bit 0 is clear (unicast); bits 2-7 carry the low 6 bits of the network
// ID XOR-folded to one byte. The same address therefore maps to different
// MACs on networks whose folded IDs differ in those 6 bits, and to the
// same MAC on networks whose folded IDs agree in them.
func deriveMAC(addr identity.Address, nwid uint64) [6]byte {
	var mac [6]byte
	b := addr.Bytes()
	copy(mac[1:], b[:])
	folded := byte(nwid) ^ byte(nwid>>8) ^ byte(nwid>>16) ^ byte(nwid>>24) ^
		byte(nwid>>32) ^ byte(nwid>>40) ^ byte(nwid>>48) ^ byte(nwid>>56)
	mac[0] = 0x02 | (folded << 2)
	return mac
}

func isMulticastMAC(mac [6]byte) bool {
	return mac[0]&0x01 != 0
}

func isZeroMAC(mac [6]byte) bool {
	return mac == [6]byte{}
}
