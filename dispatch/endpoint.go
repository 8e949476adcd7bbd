package dispatch

import (
	"net/netip"

	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
)

// Endpoint address-type tags shared by the wire formats that embed an IP
// endpoint (HELLO's destination trailer, RENDEZVOUS, PUSH_DIRECT_PATHS,
// CIRCUIT_TEST_REPORT).
const (
	addrTypeNone = 0
	addrType4    = 4
	addrType6    = 6
)

// encodeEndpoint appends [addr_type:1]{ if type != 0: [addr_bytes][port:2] }
// to pkt.
func encodeEndpoint(pkt *wire.Packet, ep ports.Endpoint) {
	if !ep.IsValid() {
		pkt.AppendByte(addrTypeNone)
		return
	}
	addr := ep.Addr
	if addr.Is4In6() {
		addr = addr.Unmap()
	}
	if addr.Is4() {
		pkt.AppendByte(addrType4)
		b := addr.As4()
		pkt.AppendBytes(b[:])
	} else {
		pkt.AppendByte(addrType6)
		b := addr.As16()
		pkt.AppendBytes(b[:])
	}
	pkt.AppendUint16(ep.Port)
}

// decodeEndpointAt reads the same form starting at payload-relative
// offset, returning the endpoint and the number of bytes consumed.
func decodeEndpointAt(pkt *wire.Packet, offset int) (ports.Endpoint, int, error) {
	addrType, err := pkt.PayloadByteAt(offset)
	if err != nil {
		return ports.Endpoint{}, 0, err
	}
	switch addrType {
	case addrTypeNone:
		return ports.Endpoint{}, 1, nil
	case addrType4:
		b, err := pkt.PayloadSlice(offset+1, 4)
		if err != nil {
			return ports.Endpoint{}, 0, err
		}
		port, err := pkt.PayloadUint16At(offset + 5)
		if err != nil {
			return ports.Endpoint{}, 0, err
		}
		var a4 [4]byte
		copy(a4[:], b)
		return ports.Endpoint{Addr: netip.AddrFrom4(a4), Port: port}, 7, nil
	case addrType6:
		b, err := pkt.PayloadSlice(offset+1, 16)
		if err != nil {
			return ports.Endpoint{}, 0, err
		}
		port, err := pkt.PayloadUint16At(offset + 17)
		if err != nil {
			return ports.Endpoint{}, 0, err
		}
		var a16 [16]byte
		copy(a16[:], b)
		return ports.Endpoint{Addr: netip.AddrFrom16(a16), Port: port}, 19, nil
	default:
		return ports.Endpoint{}, 0, wire.ErrShortPacket
	}
}

// decodeEndpointFromTypeLenBytesPort reads the PUSH_DIRECT_PATHS variant:
// [addr_type:1][addr_len:1][addr_bytes:addr_len][port:2], returning the
// number of bytes consumed starting at offset.
func decodeEndpointFromTypeLenBytesPort(pkt *wire.Packet, offset int) (ports.Endpoint, int, error) {
	addrType, err := pkt.PayloadByteAt(offset)
	if err != nil {
		return ports.Endpoint{}, 0, err
	}
	addrLen, err := pkt.PayloadByteAt(offset + 1)
	if err != nil {
		return ports.Endpoint{}, 0, err
	}
	b, err := pkt.PayloadSlice(offset+2, int(addrLen))
	if err != nil {
		return ports.Endpoint{}, 0, err
	}
	port, err := pkt.PayloadUint16At(offset + 2 + int(addrLen))
	if err != nil {
		return ports.Endpoint{}, 0, err
	}
	consumed := 2 + int(addrLen) + 2

	var addr netip.Addr
	switch {
	case addrType == addrType4 && addrLen == 4:
		var a4 [4]byte
		copy(a4[:], b)
		addr = netip.AddrFrom4(a4)
	case addrType == addrType6 && addrLen == 16:
		var a16 [16]byte
		copy(a16[:], b)
		addr = netip.AddrFrom16(a16)
	default:
		return ports.Endpoint{}, consumed, nil
	}
	return ports.Endpoint{Addr: addr, Port: port}, consumed, nil
}

// isAddressValidForPath rejects addresses unusable as a direct path
// (unspecified, loopback, or multicast), mirroring
// Path::isAddressValidForPath's role in PUSH_DIRECT_PATHS (§4.G).
func isAddressValidForPath(ep ports.Endpoint) bool {
	if !ep.IsValid() {
		return false
	}
	a := ep.Addr
	return !a.IsUnspecified() && !a.IsLoopback() && !a.IsMulticast()
}
