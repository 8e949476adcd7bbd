// Package ports defines the interfaces the dispatcher consumes from its
// surrounding system: the peer topology, the outbound switch, the
// tap/network layer, the multicast-group database, self-awareness/NAT
// reflection, and the network-configuration controller (§6 "Consumed
// upward interfaces"). Concrete implementations live in sibling packages
// (topology, mcast) or are supplied by an embedding application.
package ports

import (
	"net/netip"

	"github.com/ambereth/vl1/identity"
)

// Endpoint is a peer's reachable network address, the wire form of
// ZeroTier's InetAddress as referenced by CIRCUIT_TEST_REPORT and HELLO
// (§6).
type Endpoint struct {
	Addr netip.Addr
	Port uint16
}

func (e Endpoint) String() string {
	return netip.AddrPortFrom(e.Addr, e.Port).String()
}

// IsValid reports whether the endpoint carries a usable address.
func (e Endpoint) IsValid() bool {
	return e.Addr.IsValid() && e.Port != 0
}

// NetworkStatus reflects the controller-communication state of a Network
// (§4.E "mark network NotFound / AccessDenied").
type NetworkStatus int

const (
	NetworkStatusOK NetworkStatus = iota
	NetworkStatusNotFound
	NetworkStatusAccessDenied
	NetworkStatusRequesting
)

// ControllerResult is the outcome of a NETWORK_CONFIG_REQUEST handled by a
// local network controller (§4.G).
type ControllerResult int

const (
	ControllerOK ControllerResult = iota
	ControllerNotFound
	ControllerAccessDenied
	ControllerInternalError
	ControllerIgnore
)

// EventKind enumerates process-level events the dispatcher posts upward,
// most notably the one fatal condition the protocol defines (§4.E, §7.5).
type EventKind int

const (
	EventFatalIdentityCollision EventKind = iota
)

// MulticastGroup identifies a multicast group as a (MAC, 32-bit ADI) pair
// (§3 "MulticastGroup").
type MulticastGroup struct {
	MAC [6]byte
	ADI uint32
}

// CircuitTestHop is one entry in a CIRCUIT_TEST_REPORT's next-hop list
// (§6 "CIRCUIT_TEST_REPORT layout").
type CircuitTestHop struct {
	Addr     identity.Address
	Endpoint Endpoint
}

// CircuitTestReport is the decoded form of a CIRCUIT_TEST_REPORT payload
// (§6), handed upward via Node.PostCircuitTestReport.
type CircuitTestReport struct {
	Timestamp       uint64
	TestID          uint64
	RemoteTimestamp uint64
	Vendor          byte
	ProtoVersion    byte
	Major           byte
	Minor           byte
	Revision        uint16
	Platform        uint16
	Architecture    uint16
	ErrorCode       uint16
	Flags           uint64
	SourcePacketID  uint64
	UpstreamAddr    identity.Address
	SourceHopCount  byte
	LocalEndpoint   Endpoint
	RemoteEndpoint  Endpoint
	Additional      []byte
	NextHops        []CircuitTestHop
}
