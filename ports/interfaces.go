package ports

import (
	"crypto/ed25519"
	"time"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/wire"
)

// Peer is the mutable state the dispatcher reads and writes for one remote
// identity (§3 "Peer"). Write paths are documented per method; the
// dispatcher never holds a Peer's internal lock across a PutPacket call
// (§5 "Shared-resource policy").
type Peer interface {
	Address() identity.Address
	Identity() identity.Identity
	// Key returns the per-peer shared secret used to MAC/encrypt traffic.
	Key() [32]byte
	// Received records liveness/accounting stats for one successfully
	// processed packet (§4.C step 3, §7 invariant 5).
	Received(now uint64, payloadLen int, verb, inReVerb wire.Verb)
	SetRemoteVersion(proto, major, minor byte, revision uint16)
	// ValidateAndSetCOM verifies and installs a certificate of membership
	// for one network, returning whether it validated.
	ValidateAndSetCOM(nwid uint64, com identity.CertificateOfMembership) bool
	COM(nwid uint64) (identity.CertificateOfMembership, bool)
	AddDirectLatencyMeasurement(sample time.Duration)
	AttemptToContactAt(local, at Endpoint, now uint64)
	// BestPath returns the peer's best known reachable endpoint, if any.
	BestPath() (Endpoint, bool)
}

// Network is membership state for one virtual LAN (§3 "Network").
type Network interface {
	ID() uint64
	MAC() [6]byte
	IsAllowed(peer Peer) bool
	PermitsBridging(addr identity.Address) bool
	EthertypeAllowed(ethertype uint16) bool
	Controller() identity.Address
	SetStatus(status NetworkStatus)
	RequestConfiguration()
	ApplyConfig(dict []byte)
	IsPublic() bool
	COM() (identity.CertificateOfMembership, bool)
	LearnBridgeRoute(from [6]byte, via identity.Address)
	// ControllerPublicKey returns the key that verifies signatures on
	// COMs issued for this network. The dispatcher does not call it: COMs
	// reach Peer.ValidateAndSetCOM without a signature check.
	ControllerPublicKey() ed25519.PublicKey
}

// Topology is the peer store (§6 "topology.get/add/is_root/world...").
type Topology interface {
	Get(addr identity.Address) (Peer, bool)
	Add(p Peer) Peer
	IsRoot(id identity.Identity) bool
	IsRootAddress(addr identity.Address) bool
	World() identity.World
	WorldID() uint64
	WorldTimestamp() uint64
}

// Switch is the outbound retry/WHOIS-queuing engine (§6 "sw.*").
type Switch interface {
	RequestWhois(addr identity.Address)
	CancelWhois(addr identity.Address)
	Rendezvous(peer Peer, local, at Endpoint)
	DoAnythingWaitingForPeer(peer Peer)
	Send(pkt *wire.Packet, requireTrust bool, nwid uint64)
}

// Node is the node-level surface: socket/tap I/O, the network table, the
// clock, and upward event posting (§6 "node.*").
type Node interface {
	Network(nwid uint64) (Network, bool)
	PutPacket(local, remote Endpoint, data []byte)
	PutFrame(nwid uint64, from, to [6]byte, ethertype uint16, vlan uint16, payload []byte)
	Now() uint64
	PostEvent(kind EventKind)
	PostCircuitTestReport(report CircuitTestReport)
}

// Multicast is the multicast-group subscription database (§6 "mc.*").
type Multicast interface {
	Add(now uint64, nwid uint64, group MulticastGroup, member identity.Address)
	AddMultiple(now uint64, nwid uint64, group MulticastGroup, members []identity.Address)
	Remove(nwid uint64, group MulticastGroup, member identity.Address)
	Gather(nwid uint64, group MulticastGroup, limit int) []identity.Address
}

// SelfAwareness is the NAT-reflection module (§6 "sa.iam").
type SelfAwareness interface {
	IAm(peerAddr identity.Address, via, theirViewOfUs Endpoint, trusted bool, now uint64)
}

// NetworkController is the local network-configuration controller back-end
// (§6 "local_network_controller.do_request").
type NetworkController interface {
	DoRequest(sourceEp *Endpoint, ourID, peerID identity.Address, nwid uint64, meta []byte) (ControllerResult, []byte)
}
