package dispatch

import (
	"time"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/ambereth/vl1/xcrypto"
)

// inReHeader decodes the [in_re_verb:1][in_re_pid:8] prefix shared by
// ERROR and OK (§4.E, §6).
func inReHeader(pkt *wire.Packet) (inReVerb wire.Verb, inRePID uint64, err error) {
	v, err := pkt.PayloadByteAt(0)
	if err != nil {
		return 0, 0, err
	}
	pid, err := pkt.PayloadUint64At(1)
	if err != nil {
		return 0, 0, err
	}
	return wire.Verb(v), pid, nil
}

// handleError implements §4.E's ERROR table.
func (d *Dispatcher) handleError(pkt *wire.Packet, peer ports.Peer, now uint64) {
	inReVerb, inRePID, err := inReHeader(pkt)
	if err != nil {
		return
	}
	code, err := pkt.PayloadByteAt(9)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbError, inReVerb)

	isRoot := d.Topology.IsRootAddress(peer.Address())

	switch wire.ErrorCode(code) {
	case wire.ErrorObjNotFound:
		switch inReVerb {
		case wire.VerbWhois:
			if isRoot {
				target, err := pkt.PayloadAddressAt(10)
				if err == nil {
					d.Switch.CancelWhois(target)
				}
			}
		case wire.VerbNetworkConfigRequest:
			nwid, err := pkt.PayloadUint64At(10)
			if err != nil {
				return
			}
			if net, ok := d.Node.Network(nwid); ok && net.Controller() == peer.Address() {
				net.SetStatus(ports.NetworkStatusNotFound)
			}
		}

	case wire.ErrorUnsupportedOperation:
		if inReVerb == wire.VerbNetworkConfigRequest {
			nwid, err := pkt.PayloadUint64At(10)
			if err != nil {
				return
			}
			if net, ok := d.Node.Network(nwid); ok && net.Controller() == peer.Address() {
				net.SetStatus(ports.NetworkStatusNotFound)
			}
		}

	case wire.ErrorIdentityCollision:
		if isRoot {
			d.Node.PostEvent(ports.EventFatalIdentityCollision)
		}

	case wire.ErrorNeedMembershipCertificate:
		nwid, err := pkt.PayloadUint64At(10)
		if err != nil {
			return
		}
		if net, ok := d.Node.Network(nwid); ok {
			if com, ok := net.COM(); ok {
				out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbNetworkMembershipCertificate)
				out.AppendBytes(com.Serialize())
				_ = wire.Armor(out, peer.Key(), true)
				d.send(peer, out)
			}
		}

	case wire.ErrorNetworkAccessDenied:
		nwid, err := pkt.PayloadUint64At(10)
		if err != nil {
			return
		}
		if net, ok := d.Node.Network(nwid); ok && net.Controller() == peer.Address() {
			net.SetStatus(ports.NetworkStatusAccessDenied)
		}

	case wire.ErrorUnwantedMulticast:
		nwid, err := pkt.PayloadUint64At(10)
		if err != nil {
			return
		}
		mac, err := pkt.PayloadSlice(18, 6)
		if err != nil {
			return
		}
		adi, err := pkt.PayloadUint32At(24)
		if err != nil {
			return
		}
		var group ports.MulticastGroup
		copy(group.MAC[:], mac)
		group.ADI = adi
		d.Multicast.Remove(nwid, group, peer.Address())
	}

	_ = inRePID
}

// handleOK implements §4.E's OK in-re cases.
func (d *Dispatcher) handleOK(pkt *wire.Packet, peer ports.Peer, now uint64) {
	inReVerb, inRePID, err := inReHeader(pkt)
	if err != nil {
		return
	}
	peer.Received(now, pkt.PayloadLen(), wire.VerbOK, inReVerb)

	switch inReVerb {
	case wire.VerbHello:
		d.handleOKHello(pkt, peer, now)
	case wire.VerbWhois:
		d.handleOKWhois(pkt, peer)
	case wire.VerbNetworkConfigRequest:
		d.handleOKNetworkConfigRequest(pkt, peer)
	case wire.VerbMulticastGather:
		d.handleOKMulticastGather(pkt, now)
	case wire.VerbMulticastFrame:
		d.handleOKMulticastFrame(pkt, peer, now)
	}

	_ = inRePID
}

func (d *Dispatcher) handleOKHello(pkt *wire.Packet, peer ports.Peer, now uint64) {
	echoedTimestamp, err := pkt.PayloadUint64At(9)
	if err != nil {
		return
	}
	if now >= echoedTimestamp {
		latency := now - echoedTimestamp
		if latency > 0xffff {
			latency = 0xffff
		}
		peer.AddDirectLatencyMeasurement(time.Duration(latency) * time.Millisecond)
	}
	proto, err := pkt.PayloadByteAt(17)
	if err == nil {
		major, _ := pkt.PayloadByteAt(18)
		minor, _ := pkt.PayloadByteAt(19)
		revision, _ := pkt.PayloadUint16At(20)
		peer.SetRemoteVersion(proto, major, minor, revision)
	}
	if theirViewOfUs, _, err := decodeEndpointAt(pkt, 22); err == nil {
		isRoot := d.Topology.IsRootAddress(peer.Address())
		d.SA.IAm(peer.Address(), ports.Endpoint{}, theirViewOfUs, isRoot, now)
	}
}

// handleOKWhois implements §4.E "OK(WHOIS): trusted sources only".
func (d *Dispatcher) handleOKWhois(pkt *wire.Packet, peer ports.Peer) {
	if !d.Topology.IsRootAddress(peer.Address()) {
		return
	}
	idBytes, err := pkt.PayloadSlice(9, identity.SerializedLen())
	if err != nil {
		return
	}
	remoteIdentity, err := identity.DeserializeIdentity(idBytes)
	if err != nil {
		return
	}
	if !remoteIdentity.LocallyValidate() {
		return
	}
	if _, exists := d.Topology.Get(remoteIdentity.Address); exists {
		return
	}
	key, err := xcrypto.Agree(d.LocalPrivateKey, remoteIdentity.PublicKey)
	if err != nil {
		return
	}
	newPeer := d.newPeer(remoteIdentity, key)
	installed := d.Topology.Add(newPeer)
	d.Switch.DoAnythingWaitingForPeer(installed)
}

func (d *Dispatcher) handleOKNetworkConfigRequest(pkt *wire.Packet, peer ports.Peer) {
	nwid, err := pkt.PayloadUint64At(9)
	if err != nil {
		return
	}
	dictLen, err := pkt.PayloadUint16At(17)
	if err != nil {
		return
	}
	dict, err := pkt.PayloadSlice(19, int(dictLen))
	if err != nil {
		return
	}
	net, ok := d.Node.Network(nwid)
	if !ok || net.Controller() != peer.Address() {
		return
	}
	net.ApplyConfig(dict)
}

func (d *Dispatcher) handleOKMulticastGather(pkt *wire.Packet, now uint64) {
	nwid, err := pkt.PayloadUint64At(9)
	if err != nil {
		return
	}
	mac, err := pkt.PayloadSlice(17, 6)
	if err != nil {
		return
	}
	adi, err := pkt.PayloadUint32At(23)
	if err != nil {
		return
	}
	count, err := pkt.PayloadUint32At(27)
	if err != nil {
		return
	}
	var group ports.MulticastGroup
	copy(group.MAC[:], mac)
	group.ADI = adi

	off := 31
	members := make([]identity.Address, 0, count)
	for i := uint32(0); i < count; i++ {
		a, err := pkt.PayloadAddressAt(off)
		if err != nil {
			break
		}
		members = append(members, a)
		off += identity.AddressLength
	}
	d.Multicast.AddMultiple(now, nwid, group, members)
}

func (d *Dispatcher) handleOKMulticastFrame(pkt *wire.Packet, peer ports.Peer, now uint64) {
	nwid, err := pkt.PayloadUint64At(9)
	if err != nil {
		return
	}
	flags, err := pkt.PayloadByteAt(17)
	if err != nil {
		return
	}
	off := 18
	if flags&0x01 != 0 {
		com, n, err := identity.DeserializeCOM(mustPayloadTail(pkt, off))
		if err != nil {
			return
		}
		peer.ValidateAndSetCOM(nwid, com)
		off += n
	}
	if flags&0x02 != 0 {
		mac, err := pkt.PayloadSlice(off, 6)
		if err != nil {
			return
		}
		adi, err := pkt.PayloadUint32At(off + 6)
		if err != nil {
			return
		}
		count, err := pkt.PayloadUint32At(off + 10)
		if err != nil {
			return
		}
		var group ports.MulticastGroup
		copy(group.MAC[:], mac)
		group.ADI = adi
		memberOff := off + 14
		members := make([]identity.Address, 0, count)
		for i := uint32(0); i < count; i++ {
			a, err := pkt.PayloadAddressAt(memberOff)
			if err != nil {
				break
			}
			members = append(members, a)
			memberOff += identity.AddressLength
		}
		d.Multicast.AddMultiple(now, nwid, group, members)
	}
}

// mustPayloadTail returns the remaining payload bytes from offset onward,
// or an empty slice on a bounds error (DeserializeCOM itself validates
// length so this is safe to pass through).
func mustPayloadTail(pkt *wire.Packet, offset int) []byte {
	b, err := pkt.PayloadSlice(offset, pkt.PayloadLen()-offset)
	if err != nil {
		return nil
	}
	return b
}

