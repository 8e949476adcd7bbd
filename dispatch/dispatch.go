// Package dispatch implements the incoming-packet dispatcher and its verb
// handlers: the state machine that turns one inbound, possibly hostile
// datagram into an authenticated, decoded message and the side effects it
// triggers (§2, §4.C).
package dispatch

import (
	"log/slog"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/topology"
	"github.com/ambereth/vl1/wire"
)

// Protocol-level constants. Values follow the public wire protocol this
// spec describes; they are not tunable per deployment.
const (
	MinProtocolVersion     = 4
	CurrentProtocolVersion = 11
	IfMTU                  = 2800
	MaxPacketLength        = 16384
)

// Dispatcher holds everything try_decode needs: the local identity and key
// material, our own advertised endpoint, and the external collaborators it
// calls out to (§6).
type Dispatcher struct {
	Local           identity.Identity
	LocalPrivateKey [32]byte
	LocalEndpoint   ports.Endpoint

	Topology   ports.Topology
	Switch     ports.Switch
	Node       ports.Node
	Multicast  ports.Multicast
	SA         ports.SelfAwareness
	Controller ports.NetworkController // nil if this node runs no controller

	// NewPeerFunc constructs the ports.Peer for a newly validated
	// identity. Defaults to topology.NewPeer when nil; callers may set
	// their own constructor.
	NewPeerFunc func(id identity.Identity, key [32]byte) ports.Peer

	Log *slog.Logger
}

func defaultNewPeer(id identity.Identity, key [32]byte) ports.Peer {
	return topology.NewPeer(id, key)
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Log != nil {
		return d.Log
	}
	return slog.Default()
}

// TryDecode implements §4.C: it authenticates, decodes and dispatches one
// inbound packet received from remote (the UDP endpoint the datagram
// physically arrived from — distinct from the cryptographic source
// address carried in the header). The return value matches the spec's
// contract: true means processing completed (success or permanent drop);
// false means the caller should re-queue this exact datagram after a
// WHOIS round-trip resolves the unknown sender.
//
// Any panic raised by a verb handler is caught here, logged, and treated
// as a permanent drop — handlers never unwind past the dispatcher boundary
// (§4.C step 4, §7 propagation policy).
func (d *Dispatcher) TryDecode(pkt *wire.Packet, remote ports.Endpoint) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger().Error("recovered panic in verb handler", "panic", r)
			handled = true
		}
	}()

	src, err := pkt.Source()
	if err != nil {
		return true
	}
	verb, err := pkt.Verb()
	if err != nil {
		return true
	}
	cipher, err := pkt.Cipher()
	if err != nil {
		return true
	}

	if cipher == wire.CipherNonePoly1305 && verb == wire.VerbHello {
		d.handleHello(pkt, remote)
		return true
	}

	peer, ok := d.Topology.Get(src)
	if !ok {
		d.Switch.RequestWhois(src)
		return false
	}

	ok, err = wire.Dearmor(pkt, peer.Key())
	if err != nil || !ok {
		d.logger().Debug("dropping packet: MAC verification failed", "src", src)
		return true
	}
	if ok := wire.Uncompress(pkt); !ok {
		d.logger().Debug("dropping packet: malformed compressed payload", "src", src)
		return true
	}

	// Re-read verb: uncompress may have replaced the payload but never the
	// header, so this is just re-deriving it post-decrypt for clarity.
	verb, err = pkt.Verb()
	if err != nil {
		return true
	}

	now := d.Node.Now()

	switch verb {
	case wire.VerbError:
		d.handleError(pkt, peer, now)
	case wire.VerbOK:
		d.handleOK(pkt, peer, now)
	case wire.VerbWhois:
		d.handleWhois(pkt, peer, now)
	case wire.VerbRendezvous:
		d.handleRendezvous(pkt, peer, now)
	case wire.VerbFrame:
		d.handleFrame(pkt, peer, now)
	case wire.VerbExtFrame:
		d.handleExtFrame(pkt, peer, now)
	case wire.VerbEcho:
		d.handleEcho(pkt, peer, now)
	case wire.VerbMulticastLike:
		d.handleMulticastLike(pkt, peer, now)
	case wire.VerbNetworkMembershipCertificate:
		d.handleNetworkMembershipCertificate(pkt, peer, now)
	case wire.VerbNetworkConfigRequest:
		d.handleNetworkConfigRequest(pkt, peer, now, remote)
	case wire.VerbNetworkConfigRefresh:
		d.handleNetworkConfigRefresh(pkt, peer, now)
	case wire.VerbMulticastGather:
		d.handleMulticastGather(pkt, peer, now)
	case wire.VerbMulticastFrame:
		d.handleMulticastFrame(pkt, peer, now)
	case wire.VerbPushDirectPaths:
		d.handlePushDirectPaths(pkt, peer, now)
	case wire.VerbCircuitTest:
		return d.handleCircuitTest(pkt, peer, now, remote)
	case wire.VerbCircuitTestReport:
		d.handleCircuitTestReport(pkt, peer, now)
	case wire.VerbRequestProofOfWork:
		d.handleRequestProofOfWork(pkt, peer, now)
	default:
		peer.Received(now, pkt.PayloadLen(), verb, wire.VerbNop)
	}

	return true
}

// replyError builds, arms and sends an ERROR reply to peer:
// [in_re_verb:1][in_re_pid:8][code:1][payload...].
func (d *Dispatcher) replyError(peer ports.Peer, inRePID uint64, inReVerb wire.Verb, code wire.ErrorCode, extra []byte) {
	out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbError)
	out.AppendByte(byte(inReVerb))
	out.AppendUint64(inRePID)
	out.AppendByte(byte(code))
	out.AppendBytes(extra)
	_ = wire.Armor(out, peer.Key(), true)
	d.send(peer, out)
}

// replyOK builds, arms and sends an OK reply to peer:
// [in_re_verb:1][in_re_pid:8][payload...].
func (d *Dispatcher) replyOK(peer ports.Peer, inRePID uint64, inReVerb wire.Verb, payload []byte) *wire.Packet {
	out := wire.NewOutbound(peer.Address(), d.Local.Address, wire.VerbOK)
	out.AppendByte(byte(inReVerb))
	out.AppendUint64(inRePID)
	out.AppendBytes(payload)
	_ = wire.Armor(out, peer.Key(), true)
	d.send(peer, out)
	return out
}

// send delivers an armed outbound packet to peer's best known path, if
// any, else falls back to the zero endpoint (the Node implementation is
// expected to resolve that to its own notion of "wherever this peer last
// spoke from").
func (d *Dispatcher) send(peer ports.Peer, out *wire.Packet) {
	remote, _ := peer.BestPath()
	d.Node.PutPacket(d.LocalEndpoint, remote, out.Bytes())
}
