package dispatch

import (
	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
)

// handleFrame implements §4.F FRAME: `[nwid:8][ethertype:2][payload…]`.
func (d *Dispatcher) handleFrame(pkt *wire.Packet, peer ports.Peer, now uint64) {
	nwid, err := pkt.PayloadUint64At(0)
	if err != nil {
		return
	}
	ethertype, err := pkt.PayloadUint16At(8)
	if err != nil {
		return
	}
	payload, err := pkt.PayloadSlice(10, pkt.PayloadLen()-10)
	if err != nil {
		return
	}

	net, ok := d.Node.Network(nwid)
	if !ok {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbFrame, wire.VerbNop)

	if !net.IsAllowed(peer) {
		d.replyError(peer, mustPacketID(pkt), wire.VerbFrame, wire.ErrorNeedMembershipCertificate, encodeNwid(nwid))
		return
	}
	if !net.EthertypeAllowed(ethertype) {
		return
	}

	d.Node.PutFrame(nwid, deriveMAC(peer.Address(), nwid), net.MAC(), ethertype, 0, payload)
}

// handleExtFrame implements §4.F EXT_FRAME:
// `[nwid:8][flags:1]{ if flags&1: COM }[ethertype:2][to:6][from:6][payload…]`.
func (d *Dispatcher) handleExtFrame(pkt *wire.Packet, peer ports.Peer, now uint64) {
	nwid, err := pkt.PayloadUint64At(0)
	if err != nil {
		return
	}
	flags, err := pkt.PayloadByteAt(8)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbExtFrame, wire.VerbNop)

	net, ok := d.Node.Network(nwid)
	if !ok {
		return
	}

	off := 9
	comFailed := false
	if flags&0x01 != 0 {
		tail, err := pkt.PayloadSlice(off, pkt.PayloadLen()-off)
		if err != nil {
			return
		}
		com, n, err := identity.DeserializeCOM(tail)
		if err != nil {
			return
		}
		if !peer.ValidateAndSetCOM(nwid, com) {
			comFailed = true
		}
		off += n
	}

	if comFailed || !net.IsAllowed(peer) {
		d.replyError(peer, mustPacketID(pkt), wire.VerbExtFrame, wire.ErrorNeedMembershipCertificate, encodeNwid(nwid))
		return
	}

	ethertype, err := pkt.PayloadUint16At(off)
	if err != nil {
		return
	}
	toBytes, err := pkt.PayloadSlice(off+2, 6)
	if err != nil {
		return
	}
	fromBytes, err := pkt.PayloadSlice(off+8, 6)
	if err != nil {
		return
	}
	payloadOff := off + 14
	payload, err := pkt.PayloadSlice(payloadOff, pkt.PayloadLen()-payloadOff)
	if err != nil {
		return
	}

	var to, from [6]byte
	copy(to[:], toBytes)
	copy(from[:], fromBytes)

	if isMulticastMAC(to) {
		return
	}
	netMAC := net.MAC()
	if isZeroMAC(from) || isMulticastMAC(from) || from == netMAC {
		return
	}

	if from != deriveMAC(peer.Address(), nwid) {
		if !net.PermitsBridging(peer.Address()) {
			return
		}
		net.LearnBridgeRoute(from, peer.Address())
	} else if to != netMAC {
		if !net.PermitsBridging(d.Local.Address) {
			return
		}
	}

	d.Node.PutFrame(nwid, from, to, ethertype, 0, payload)
}

// handleMulticastLike implements §4.F MULTICAST_LIKE: repeated 18-byte
// `[nwid:8][mac:6][adi:4]` tuples.
func (d *Dispatcher) handleMulticastLike(pkt *wire.Packet, peer ports.Peer, now uint64) {
	peer.Received(now, pkt.PayloadLen(), wire.VerbMulticastLike, wire.VerbNop)

	const tupleLen = 18
	for off := 0; off+tupleLen <= pkt.PayloadLen(); off += tupleLen {
		nwid, err := pkt.PayloadUint64At(off)
		if err != nil {
			return
		}
		mac, err := pkt.PayloadSlice(off+8, 6)
		if err != nil {
			return
		}
		adi, err := pkt.PayloadUint32At(off + 14)
		if err != nil {
			return
		}
		var group ports.MulticastGroup
		copy(group.MAC[:], mac)
		group.ADI = adi
		d.Multicast.Add(now, nwid, group, peer.Address())
	}
}

// handleMulticastGather implements §4.F MULTICAST_GATHER:
// `[nwid:8][mac:6][adi:4][gather_limit:4]`.
func (d *Dispatcher) handleMulticastGather(pkt *wire.Packet, peer ports.Peer, now uint64) {
	nwid, err := pkt.PayloadUint64At(0)
	if err != nil {
		return
	}
	mac, err := pkt.PayloadSlice(8, 6)
	if err != nil {
		return
	}
	adi, err := pkt.PayloadUint32At(14)
	if err != nil {
		return
	}
	limit, err := pkt.PayloadUint32At(18)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbMulticastGather, wire.VerbNop)

	if limit == 0 {
		return
	}
	var group ports.MulticastGroup
	copy(group.MAC[:], mac)
	group.ADI = adi

	members := d.Multicast.Gather(nwid, group, int(limit))

	out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbOK)
	out.AppendByte(byte(wire.VerbMulticastGather))
	out.AppendUint64(mustPacketID(pkt))
	out.AppendUint64(nwid)
	out.AppendBytes(mac)
	out.AppendUint32(adi)
	out.AppendUint32(uint32(len(members)))
	for _, m := range members {
		out.AppendAddress(m)
	}
	_ = wire.Armor(out, peer.Key(), true)
	d.send(peer, out)
}

// handleMulticastFrame implements §4.F MULTICAST_FRAME:
// `[nwid:8][flags:1]{ if flags&1: COM }{ if flags&2: gather_limit:4 }
// { if flags&4: src_mac:6 }[dst_mac:6][dst_adi:4][ethertype:2][payload…]`.
func (d *Dispatcher) handleMulticastFrame(pkt *wire.Packet, peer ports.Peer, now uint64) {
	nwid, err := pkt.PayloadUint64At(0)
	if err != nil {
		return
	}
	flags, err := pkt.PayloadByteAt(8)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbMulticastFrame, wire.VerbNop)

	net, ok := d.Node.Network(nwid)
	if !ok {
		return
	}

	off := 9
	comFailed := false
	if flags&0x01 != 0 {
		tail, err := pkt.PayloadSlice(off, pkt.PayloadLen()-off)
		if err != nil {
			return
		}
		com, n, err := identity.DeserializeCOM(tail)
		if err != nil {
			return
		}
		if !peer.ValidateAndSetCOM(nwid, com) {
			comFailed = true
		}
		off += n
	}

	if comFailed || !net.IsAllowed(peer) {
		d.replyError(peer, mustPacketID(pkt), wire.VerbMulticastFrame, wire.ErrorNeedMembershipCertificate, encodeNwid(nwid))
		return
	}

	var gatherLimit uint32
	haveGather := flags&0x02 != 0
	if haveGather {
		gatherLimit, err = pkt.PayloadUint32At(off)
		if err != nil {
			return
		}
		off += 4
	}

	var from [6]byte
	haveSrcMAC := flags&0x04 != 0
	if haveSrcMAC {
		b, err := pkt.PayloadSlice(off, 6)
		if err != nil {
			return
		}
		copy(from[:], b)
		off += 6
	}

	dstMACBytes, err := pkt.PayloadSlice(off, 6)
	if err != nil {
		return
	}
	dstADI, err := pkt.PayloadUint32At(off + 6)
	if err != nil {
		return
	}
	ethertype, err := pkt.PayloadUint16At(off + 10)
	if err != nil {
		return
	}
	payloadOff := off + 12
	payloadLen := pkt.PayloadLen() - payloadOff
	payload, err := pkt.PayloadSlice(payloadOff, payloadLen)
	if err != nil {
		return
	}

	var dst [6]byte
	copy(dst[:], dstMACBytes)
	var group ports.MulticastGroup
	copy(group.MAC[:], dst[:])
	group.ADI = dstADI

	if payloadLen <= 0 || payloadLen > IfMTU || !isMulticastMAC(dst) {
		if haveGather && gatherLimit > 0 {
			d.replyMulticastGatherOnly(peer, mustPacketID(pkt), nwid, group, int(gatherLimit))
		}
		return
	}

	netMAC := net.MAC()
	if haveSrcMAC {
		if isZeroMAC(from) || isMulticastMAC(from) || from == netMAC {
			return
		}
		if from != deriveMAC(peer.Address(), nwid) {
			if !net.PermitsBridging(peer.Address()) {
				return
			}
			net.LearnBridgeRoute(from, peer.Address())
		}
	} else {
		from = deriveMAC(peer.Address(), nwid)
	}

	d.Node.PutFrame(nwid, from, dst, ethertype, 0, payload)

	if haveGather && gatherLimit > 0 {
		d.replyMulticastGatherOnly(peer, mustPacketID(pkt), nwid, group, int(gatherLimit))
	}
}

// replyMulticastGatherOnly sends OK(MULTICAST_FRAME) with flag bit 1 set and
// an inline gather result, per §4.F's MULTICAST_FRAME reply path.
func (d *Dispatcher) replyMulticastGatherOnly(peer ports.Peer, inRePID uint64, nwid uint64, group ports.MulticastGroup, limit int) {
	members := d.Multicast.Gather(nwid, group, limit)

	out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbOK)
	out.AppendByte(byte(wire.VerbMulticastFrame))
	out.AppendUint64(inRePID)
	out.AppendUint64(nwid)
	out.AppendByte(0x02)
	out.AppendBytes(group.MAC[:])
	out.AppendUint32(group.ADI)
	out.AppendUint32(uint32(len(members)))
	for _, m := range members {
		out.AppendAddress(m)
	}
	_ = wire.Armor(out, peer.Key(), true)
	d.send(peer, out)
}

func mustPacketID(pkt *wire.Packet) uint64 {
	pid, err := pkt.PacketID()
	if err != nil {
		return 0
	}
	return pid
}

func encodeNwid(nwid uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(nwid)
		nwid >>= 8
	}
	return b
}
