package dispatch

import (
	"net/netip"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
)

// handleNetworkConfigRequest implements §4.G NETWORK_CONFIG_REQUEST:
// `[nwid:8][meta_dict_len:2][meta_dict:bytes][optional: have_revision:8]`.
func (d *Dispatcher) handleNetworkConfigRequest(pkt *wire.Packet, peer ports.Peer, now uint64, remote ports.Endpoint) {
	nwid, err := pkt.PayloadUint64At(0)
	if err != nil {
		return
	}
	metaLen, err := pkt.PayloadUint16At(8)
	if err != nil {
		return
	}
	meta, err := pkt.PayloadSlice(10, int(metaLen))
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbNetworkConfigRequest, wire.VerbNop)

	if d.Controller == nil {
		d.replyError(peer, mustPacketID(pkt), wire.VerbNetworkConfigRequest, wire.ErrorUnsupportedOperation, encodeNwid(nwid))
		return
	}

	var sourceEp *ports.Endpoint
	if pkt.Hops() == 0 {
		sourceEp = &remote
	}

	result, dict := d.Controller.DoRequest(sourceEp, d.Local.Address, peer.Address(), nwid, meta)

	switch result {
	case ports.ControllerIgnore:
		return
	case ports.ControllerNotFound:
		d.replyError(peer, mustPacketID(pkt), wire.VerbNetworkConfigRequest, wire.ErrorObjNotFound, encodeNwid(nwid))
	case ports.ControllerAccessDenied:
		d.replyError(peer, mustPacketID(pkt), wire.VerbNetworkConfigRequest, wire.ErrorNetworkAccessDenied, encodeNwid(nwid))
	case ports.ControllerInternalError:
		d.replyError(peer, mustPacketID(pkt), wire.VerbNetworkConfigRequest, wire.ErrorUnsupportedOperation, encodeNwid(nwid))
	case ports.ControllerOK:
		out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbOK)
		out.AppendByte(byte(wire.VerbNetworkConfigRequest))
		out.AppendUint64(mustPacketID(pkt))
		out.AppendUint64(nwid)
		out.AppendUint16(uint16(len(dict)))
		out.AppendBytes(dict)
		wire.Compress(out)
		_ = wire.Armor(out, peer.Key(), true)
		if out.Len() > MaxPacketLength {
			return
		}
		d.send(peer, out)
	}
}

// handleNetworkConfigRefresh implements §4.G NETWORK_CONFIG_REFRESH: a
// stream of `[nwid:8]` IDs.
func (d *Dispatcher) handleNetworkConfigRefresh(pkt *wire.Packet, peer ports.Peer, now uint64) {
	peer.Received(now, pkt.PayloadLen(), wire.VerbNetworkConfigRefresh, wire.VerbNop)

	for off := 0; off+8 <= pkt.PayloadLen(); off += 8 {
		nwid, err := pkt.PayloadUint64At(off)
		if err != nil {
			return
		}
		if net, ok := d.Node.Network(nwid); ok && net.Controller() == peer.Address() {
			net.RequestConfiguration()
		}
	}
}

// handleNetworkMembershipCertificate implements §4.G
// NETWORK_MEMBERSHIP_CERTIFICATE: a stream of COMs.
func (d *Dispatcher) handleNetworkMembershipCertificate(pkt *wire.Packet, peer ports.Peer, now uint64) {
	peer.Received(now, pkt.PayloadLen(), wire.VerbNetworkMembershipCertificate, wire.VerbNop)

	off := 0
	for off < pkt.PayloadLen() {
		tail, err := pkt.PayloadSlice(off, pkt.PayloadLen()-off)
		if err != nil {
			return
		}
		com, n, err := identity.DeserializeCOM(tail)
		if err != nil {
			return
		}
		peer.ValidateAndSetCOM(com.NetworkID, com)
		off += n
	}
}

// handleWhois implements §4.G WHOIS: `[target_addr:5]`.
func (d *Dispatcher) handleWhois(pkt *wire.Packet, peer ports.Peer, now uint64) {
	target, err := pkt.PayloadAddressAt(0)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbWhois, wire.VerbNop)

	pid := mustPacketID(pkt)
	targetPeer, ok := d.Topology.Get(target)
	if !ok {
		out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbError)
		out.AppendByte(byte(wire.VerbWhois))
		out.AppendUint64(pid)
		out.AppendByte(byte(wire.ErrorObjNotFound))
		out.AppendAddress(target)
		_ = wire.Armor(out, peer.Key(), true)
		d.send(peer, out)
		return
	}

	out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbOK)
	out.AppendByte(byte(wire.VerbWhois))
	out.AppendUint64(pid)
	out.AppendBytes(targetPeer.Identity().Serialize())
	_ = wire.Armor(out, peer.Key(), true)
	d.send(peer, out)
}

// handleRendezvous implements §4.G RENDEZVOUS:
// `[with_addr:5][port:2][addrlen:1][addr:addrlen]`.
func (d *Dispatcher) handleRendezvous(pkt *wire.Packet, peer ports.Peer, now uint64) {
	with, err := pkt.PayloadAddressAt(0)
	if err != nil {
		return
	}
	port, err := pkt.PayloadUint16At(5)
	if err != nil {
		return
	}
	addrLen, err := pkt.PayloadByteAt(7)
	if err != nil {
		return
	}
	addrBytes, err := pkt.PayloadSlice(8, int(addrLen))
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbRendezvous, wire.VerbNop)

	if port == 0 || (addrLen != 4 && addrLen != 16) {
		return
	}
	withPeer, ok := d.Topology.Get(with)
	if !ok {
		return
	}

	at, ok := endpointFromAddrBytes(addrBytes, port)
	if !ok {
		return
	}
	local, _ := peer.BestPath()
	d.Switch.Rendezvous(withPeer, local, at)
}

// handleEcho implements §4.G ECHO: reply OK(ECHO) echoing the payload.
func (d *Dispatcher) handleEcho(pkt *wire.Packet, peer ports.Peer, now uint64) {
	echoed := pkt.Payload()
	peer.Received(now, pkt.PayloadLen(), wire.VerbEcho, wire.VerbNop)

	out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbOK)
	out.AppendByte(byte(wire.VerbEcho))
	out.AppendUint64(mustPacketID(pkt))
	out.AppendBytes(echoed)
	_ = wire.Armor(out, peer.Key(), true)
	d.send(peer, out)
}

// handlePushDirectPaths implements §4.G PUSH_DIRECT_PATHS: `[count:2]` then
// `count × [flags:1][ext_len:2][ext:ext_len][addr_type:1][addr_len:1]
// [addr_bytes:addr_len][port:2]`.
func (d *Dispatcher) handlePushDirectPaths(pkt *wire.Packet, peer ports.Peer, now uint64) {
	count, err := pkt.PayloadUint16At(0)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbPushDirectPaths, wire.VerbNop)

	off := 2
	for i := uint16(0); i < count; i++ {
		flags, err := pkt.PayloadByteAt(off)
		if err != nil {
			return
		}
		extLen, err := pkt.PayloadUint16At(off + 1)
		if err != nil {
			return
		}
		off += 3 + int(extLen)

		ep, consumed, err := decodeEndpointFromTypeLenBytesPort(pkt, off)
		if err != nil {
			return
		}
		off += consumed

		if flags&0x01 == 0 && isAddressValidForPath(ep) {
			local, _ := peer.BestPath()
			peer.AttemptToContactAt(local, ep, now)
		}
	}
}

// endpointFromAddrBytes builds a ports.Endpoint from raw 4- or 16-byte
// address bytes plus a port, the form RENDEZVOUS carries.
func endpointFromAddrBytes(b []byte, port uint16) (ports.Endpoint, bool) {
	switch len(b) {
	case 4:
		var a4 [4]byte
		copy(a4[:], b)
		return ports.Endpoint{Addr: netip.AddrFrom4(a4), Port: port}, true
	case 16:
		var a16 [16]byte
		copy(a16[:], b)
		return ports.Endpoint{Addr: netip.AddrFrom16(a16), Port: port}, true
	default:
		return ports.Endpoint{}, false
	}
}
