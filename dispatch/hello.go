package dispatch

import (
	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/ambereth/vl1/xcrypto"
)

// handleHello implements §4.D: the only clear-MAC-authenticated verb, and
// the only one that introduces a new peer. It never returns an error to
// the caller; every failure path is a silent drop.
func (d *Dispatcher) handleHello(pkt *wire.Packet, remote ports.Endpoint) {
	protoVersion, err := pkt.PayloadByteAt(0)
	if err != nil {
		return
	}
	if protoVersion < MinProtocolVersion {
		return
	}
	major, err := pkt.PayloadByteAt(1)
	if err != nil {
		return
	}
	minor, err := pkt.PayloadByteAt(2)
	if err != nil {
		return
	}
	revision, err := pkt.PayloadUint16At(3)
	if err != nil {
		return
	}
	timestamp, err := pkt.PayloadUint64At(5)
	if err != nil {
		return
	}

	idBytes, err := pkt.PayloadSlice(13, identity.SerializedLen())
	if err != nil {
		return
	}
	remoteIdentity, err := identity.DeserializeIdentity(idBytes)
	if err != nil {
		return
	}

	src, err := pkt.Source()
	if err != nil {
		return
	}
	if src != remoteIdentity.Address {
		return
	}

	off := 13 + identity.SerializedLen()
	theirViewOfUs, consumed, err := decodeEndpointAt(pkt, off)
	haveDestination := err == nil
	if err == nil {
		off += consumed
	}

	var worldID, worldTimestamp uint64
	haveWorldTrailer := false
	if wid, err := pkt.PayloadUint64At(off); err == nil {
		if wts, err := pkt.PayloadUint64At(off + 8); err == nil {
			worldID, worldTimestamp = wid, wts
			haveWorldTrailer = true
		}
	}

	existingPeer, havePeer := d.Topology.Get(src)

	switch {
	case havePeer && !existingPeer.Identity().Equal(remoteIdentity):
		d.handleHelloCollision(pkt, existingPeer.Identity(), remoteIdentity)
		return

	case havePeer:
		ok, err := wire.Dearmor(pkt, existingPeer.Key())
		if err != nil || !ok {
			return
		}
		d.finishHello(pkt, existingPeer, remote, protoVersion, major, minor, revision, timestamp,
			haveDestination, theirViewOfUs, haveWorldTrailer, worldID, worldTimestamp)

	default:
		if !remoteIdentity.LocallyValidate() {
			return
		}
		key, err := xcrypto.Agree(d.LocalPrivateKey, remoteIdentity.PublicKey)
		if err != nil {
			return
		}
		ok, err := wire.Dearmor(pkt, key)
		if err != nil || !ok {
			return
		}
		newPeer := d.newPeer(remoteIdentity, key)
		installed := d.Topology.Add(newPeer)
		d.finishHello(pkt, installed, remote, protoVersion, major, minor, revision, timestamp,
			haveDestination, theirViewOfUs, haveWorldTrailer, worldID, worldTimestamp)
	}
}

// handleHelloCollision implements §4.D step 4: an adversary or a restarted
// peer claiming an address we already have bound to a different identity.
func (d *Dispatcher) handleHelloCollision(pkt *wire.Packet, existing, claimed identity.Identity) {
	ephemeralKey, err := xcrypto.Agree(d.LocalPrivateKey, claimed.PublicKey)
	if err != nil {
		return
	}
	ok, err := wire.Dearmor(pkt, ephemeralKey)
	if err != nil || !ok {
		return
	}
	pid, err := pkt.PacketID()
	if err != nil {
		return
	}
	out := wire.NewOutbound(claimed.Address, d.Local.Address, wire.VerbError)
	out.AppendByte(byte(wire.VerbHello))
	out.AppendUint64(pid)
	out.AppendByte(byte(wire.ErrorIdentityCollision))
	_ = wire.Armor(out, ephemeralKey, true)
	d.Node.PutPacket(d.LocalEndpoint, ports.Endpoint{}, out.Bytes())
}

func (d *Dispatcher) finishHello(
	pkt *wire.Packet,
	peer ports.Peer,
	remote ports.Endpoint,
	protoVersion, major, minor byte,
	revision uint16,
	timestamp uint64,
	haveDestination bool,
	theirViewOfUs ports.Endpoint,
	haveWorldTrailer bool,
	worldID, worldTimestamp uint64,
) {
	now := d.Node.Now()
	pid, err := pkt.PacketID()
	if err != nil {
		return
	}

	peer.Received(now, pkt.PayloadLen(), wire.VerbHello, wire.VerbNop)
	peer.SetRemoteVersion(protoVersion, major, minor, revision)

	if haveDestination {
		isRoot := d.Topology.IsRootAddress(peer.Address())
		d.SA.IAm(peer.Address(), remote, theirViewOfUs, isRoot, now)
	}

	d.sendHelloReply(peer, pid, timestamp, remote, haveWorldTrailer, worldID, worldTimestamp)
}

// sendHelloReply builds and arms OK(HELLO) per §4.D step 8-9.
func (d *Dispatcher) sendHelloReply(peer ports.Peer, inRePID uint64, echoedTimestamp uint64, remote ports.Endpoint, haveWorldTrailer bool, peerWorldID, peerWorldTimestamp uint64) {
	ourWorld := d.Topology.World()

	if haveWorldTrailer && peerWorldID != ourWorld.ID {
		// World-ID mismatch: do NOT send a reply (§4.D step 8).
		return
	}

	out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbOK)
	out.AppendByte(byte(wire.VerbHello))
	out.AppendUint64(inRePID)
	out.AppendUint64(echoedTimestamp)
	out.AppendByte(CurrentProtocolVersion)
	out.AppendByte(0) // major
	out.AppendByte(0) // minor
	out.AppendUint16(0) // revision
	encodeEndpoint(out, remote)

	switch {
	case haveWorldTrailer && ourWorld.Timestamp > peerWorldTimestamp:
		serialized := ourWorld.Serialize()
		out.AppendUint16(uint16(len(serialized)))
		out.AppendBytes(serialized)
	default:
		out.AppendUint16(0)
	}

	_ = wire.Armor(out, peer.Key(), true)
	d.send(peer, out)
}

// newPeer constructs the concrete peer implementation for a newly
// validated identity. Factored out so tests can substitute a different
// Peer constructor via Dispatcher.NewPeerFunc if set.
func (d *Dispatcher) newPeer(id identity.Identity, key [32]byte) ports.Peer {
	if d.NewPeerFunc != nil {
		return d.NewPeerFunc(id, key)
	}
	return defaultNewPeer(id, key)
}
