package dispatch

import (
	"crypto/ed25519"
	"fmt"
	"net/netip"
	"slices"
	"strings"
	"testing"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/topology"
	"github.com/ambereth/vl1/wire"
	"github.com/ambereth/vl1/xcrypto"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// The mocks below follow the same record-and-assert shape as the teacher's
// RouterHarness: every port method that has an observable side effect
// appends a harnessEvent instead of doing real work, and tests assert on
// the resulting log with AssertContains/AssertNotContains.

type harnessEvent struct {
	name string
	args []any
}

func event(name string, args ...any) harnessEvent {
	return harnessEvent{name: name, args: args}
}

type harnessEvents []harnessEvent

func (e harnessEvents) String() string {
	out := make([]string, 0, len(e))
	for _, ev := range e {
		cur := ev.name
		for _, a := range ev.args {
			cur += " " + fmt.Sprint(a)
		}
		out = append(out, cur)
	}
	slices.Sort(out)
	return strings.Join(out, "\n")
}

// eventCmpOpts lets cmp.Equal compare netip.Addr (and anything built on it,
// like ports.Endpoint) despite its unexported fields.
var eventCmpOpts = cmp.Options{cmpopts.EquateComparable(netip.Addr{})}

func (e harnessEvents) contains(name string, args ...any) bool {
	for _, ev := range e {
		if ev.name != name || len(ev.args) < len(args) {
			continue
		}
		match := true
		for i, a := range args {
			if !cmp.Equal(ev.args[i], a, eventCmpOpts) {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (e harnessEvents) AssertContains(t *testing.T, name string, args ...any) {
	t.Helper()
	if !e.contains(name, args...) {
		t.Fatalf("expected event %q %v not found in:\n%s", name, args, e)
	}
}

func (e harnessEvents) AssertNotContains(t *testing.T, name string, args ...any) {
	t.Helper()
	if e.contains(name, args...) {
		t.Fatalf("unexpected event %q %v found in:\n%s", name, args, e)
	}
}

// mockEnv is a single object wired into every ports interface field a
// Dispatcher holds, recording every call as a harnessEvent.
type mockEnv struct {
	actions []harnessEvent

	peers map[identity.Address]ports.Peer
	roots map[identity.Address]bool
	world identity.World

	networks map[uint64]*mockNetwork

	nowVal uint64

	controllerResult ports.ControllerResult
	controllerDict   []byte
}

func newMockEnv() *mockEnv {
	return &mockEnv{
		peers:    make(map[identity.Address]ports.Peer),
		roots:    make(map[identity.Address]bool),
		networks: make(map[uint64]*mockNetwork),
	}
}

func (m *mockEnv) record(name string, args ...any) {
	m.actions = append(m.actions, event(name, args...))
}

func (m *mockEnv) GetActions() harnessEvents {
	out := m.actions
	m.actions = nil
	return out
}

// --- ports.Topology ---

func (m *mockEnv) Get(addr identity.Address) (ports.Peer, bool) {
	p, ok := m.peers[addr]
	return p, ok
}

func (m *mockEnv) Add(p ports.Peer) ports.Peer {
	m.peers[p.Address()] = p
	m.record("TOPOLOGY_ADD", p.Address())
	return p
}

func (m *mockEnv) IsRoot(id identity.Identity) bool {
	return m.roots[id.Address]
}

func (m *mockEnv) IsRootAddress(addr identity.Address) bool {
	return m.roots[addr]
}

func (m *mockEnv) World() identity.World {
	return m.world
}

func (m *mockEnv) WorldID() uint64 {
	return m.world.ID
}

func (m *mockEnv) WorldTimestamp() uint64 {
	return m.world.Timestamp
}

// --- ports.Switch ---

func (m *mockEnv) RequestWhois(addr identity.Address) {
	m.record("REQUEST_WHOIS", addr)
}

func (m *mockEnv) CancelWhois(addr identity.Address) {
	m.record("CANCEL_WHOIS", addr)
}

func (m *mockEnv) Rendezvous(peer ports.Peer, local, at ports.Endpoint) {
	m.record("RENDEZVOUS", peer.Address(), at)
}

func (m *mockEnv) DoAnythingWaitingForPeer(peer ports.Peer) {
	m.record("DO_ANYTHING_WAITING", peer.Address())
}

func (m *mockEnv) Send(pkt *wire.Packet, requireTrust bool, nwid uint64) {
	dst, _ := pkt.Destination()
	verb, _ := pkt.Verb()
	m.record("SEND", dst, verb, nwid)
}

// --- ports.Node ---

func (m *mockEnv) Network(nwid uint64) (ports.Network, bool) {
	n, ok := m.networks[nwid]
	if !ok {
		return nil, false
	}
	return n, true
}

func (m *mockEnv) PutPacket(local, remote ports.Endpoint, data []byte) {
	p := wire.View(data)
	verb, _ := p.Verb()
	m.record("PUT_PACKET", remote, verb)
}

func (m *mockEnv) PutFrame(nwid uint64, from, to [6]byte, ethertype uint16, vlan uint16, payload []byte) {
	m.record("PUT_FRAME", nwid, from, to, ethertype, len(payload))
}

func (m *mockEnv) Now() uint64 {
	return m.nowVal
}

func (m *mockEnv) PostEvent(kind ports.EventKind) {
	m.record("POST_EVENT", kind)
}

func (m *mockEnv) PostCircuitTestReport(report ports.CircuitTestReport) {
	m.record("POST_CIRCUIT_TEST_REPORT", report.TestID)
}

// --- ports.Multicast ---
//
// ports.Multicast's Add method name collides with ports.Topology's Add on
// mockEnv's receiver, so Multicast gets its own concrete type backed by
// the same action log instead.
type mockMulticast struct {
	env *mockEnv

	gatherResult []identity.Address
}

func (m *mockMulticast) Add(now uint64, nwid uint64, group ports.MulticastGroup, member identity.Address) {
	m.env.record("MULTICAST_ADD", nwid, group.MAC, member)
}

func (m *mockMulticast) AddMultiple(now uint64, nwid uint64, group ports.MulticastGroup, members []identity.Address) {
	m.env.record("MULTICAST_ADD_MULTIPLE", nwid, group.MAC, len(members))
}

func (m *mockMulticast) Remove(nwid uint64, group ports.MulticastGroup, member identity.Address) {
	m.env.record("MULTICAST_REMOVE", nwid, group.MAC, member)
}

func (m *mockMulticast) Gather(nwid uint64, group ports.MulticastGroup, limit int) []identity.Address {
	m.env.record("MULTICAST_GATHER", nwid, group.MAC, limit)
	if limit < len(m.gatherResult) {
		return m.gatherResult[:limit]
	}
	return m.gatherResult
}

// --- ports.SelfAwareness ---

func (m *mockEnv) IAm(peerAddr identity.Address, via, theirViewOfUs ports.Endpoint, trusted bool, now uint64) {
	m.record("IAM", peerAddr, theirViewOfUs, trusted)
}

// --- ports.NetworkController ---

func (m *mockEnv) DoRequest(sourceEp *ports.Endpoint, ourID, peerID identity.Address, nwid uint64, meta []byte) (ports.ControllerResult, []byte) {
	m.record("CONTROLLER_DO_REQUEST", peerID, nwid)
	return m.controllerResult, m.controllerDict
}

// mockNetwork implements ports.Network over a fixed in-memory config a
// test can mutate directly before exercising a handler.
type mockNetwork struct {
	env *mockEnv

	id           uint64
	mac          [6]byte
	allowed      bool
	bridgingOK   map[identity.Address]bool
	ethertypesOK map[uint16]bool
	controller   identity.Address
	public       bool
	com          identity.CertificateOfMembership
	haveCOM      bool
	controllerPub ed25519.PublicKey

	bridgeRoutes map[[6]byte]identity.Address
}

func newMockNetwork(env *mockEnv, id uint64, controller identity.Address) *mockNetwork {
	return &mockNetwork{
		env:          env,
		id:           id,
		allowed:      true,
		bridgingOK:   make(map[identity.Address]bool),
		ethertypesOK: make(map[uint16]bool),
		controller:   controller,
		bridgeRoutes: make(map[[6]byte]identity.Address),
	}
}

func (n *mockNetwork) ID() uint64     { return n.id }
func (n *mockNetwork) MAC() [6]byte   { return n.mac }
func (n *mockNetwork) IsAllowed(peer ports.Peer) bool { return n.allowed }
func (n *mockNetwork) PermitsBridging(addr identity.Address) bool { return n.bridgingOK[addr] }
func (n *mockNetwork) EthertypeAllowed(ethertype uint16) bool {
	if len(n.ethertypesOK) == 0 {
		return true
	}
	return n.ethertypesOK[ethertype]
}
func (n *mockNetwork) Controller() identity.Address { return n.controller }
func (n *mockNetwork) SetStatus(status ports.NetworkStatus) {
	n.env.record("NETWORK_SET_STATUS", n.id, status)
}
func (n *mockNetwork) RequestConfiguration() {
	n.env.record("NETWORK_REQUEST_CONFIG", n.id)
}
func (n *mockNetwork) ApplyConfig(dict []byte) {
	n.env.record("NETWORK_APPLY_CONFIG", n.id, len(dict))
}
func (n *mockNetwork) IsPublic() bool { return n.public }
func (n *mockNetwork) COM() (identity.CertificateOfMembership, bool) { return n.com, n.haveCOM }
func (n *mockNetwork) LearnBridgeRoute(from [6]byte, via identity.Address) {
	n.bridgeRoutes[from] = via
	n.env.record("NETWORK_LEARN_BRIDGE_ROUTE", n.id, via)
}
func (n *mockNetwork) ControllerPublicKey() ed25519.PublicKey { return n.controllerPub }

// --- fixture helpers ---

// genIdentity builds a fresh, locally-valid Identity plus its Curve25519
// private scalar. The scalar (and so the address) is derived from seed;
// the Ed25519 signing key and the proof-of-work nonce are random.
func genIdentity(t *testing.T, seed byte) (identity.Identity, [32]byte) {
	t.Helper()
	id, priv, _ := genFullIdentity(t, seed)
	return id, priv
}

// genFullIdentity is genIdentity plus the Ed25519 signing private key,
// needed by tests that must produce a valid CIRCUIT_TEST signature.
func genFullIdentity(t *testing.T, seed byte) (identity.Identity, [32]byte, ed25519.PrivateKey) {
	t.Helper()
	var s [32]byte
	s[0] = seed
	priv := xcrypto.GeneratePrivateKey(s)
	id, signingPriv, err := identity.GenerateIdentity(priv)
	require.NoError(t, err)
	return id, priv, signingPriv
}

// newHarness builds a Dispatcher wired entirely to mocks, plus the env to
// assert against and a locally-valid identity for d.Local.
func newHarness(t *testing.T) (*Dispatcher, *mockEnv) {
	t.Helper()
	env := newMockEnv()
	local, localPriv := genIdentity(t, 0xAA)

	d := &Dispatcher{
		Local:           local,
		LocalPrivateKey: localPriv,
		Topology:        env,
		Switch:          env,
		Node:            env,
		Multicast:       &mockMulticast{env: env},
		SA:              env,
	}
	return d, env
}

// addPeer installs a fresh peer identity in env's topology and returns the
// resulting ports.Peer (keyed with the secret agreed between it and
// d.Local) and the peer's own private scalar.
func addPeer(t *testing.T, d *Dispatcher, env *mockEnv, seed byte) (ports.Peer, [32]byte) {
	t.Helper()
	p, priv, _ := addPeerFull(t, d, env, seed)
	return p, priv
}

// addPeerFull is addPeer plus the installed peer's Ed25519 signing private
// key, needed by tests that sign a CIRCUIT_TEST as that peer.
func addPeerFull(t *testing.T, d *Dispatcher, env *mockEnv, seed byte) (ports.Peer, [32]byte, ed25519.PrivateKey) {
	t.Helper()
	id, priv, signingPriv := genFullIdentity(t, seed)
	key, err := xcrypto.Agree(priv, d.Local.PublicKey)
	require.NoError(t, err)
	p := topology.NewPeer(id, key)
	env.peers[id.Address] = p
	return p, priv, signingPriv
}

func mustEndpoint(s string) ports.Endpoint {
	ap, err := netip.ParseAddrPort(s)
	if err != nil {
		panic(err)
	}
	return ports.Endpoint{Addr: ap.Addr(), Port: ap.Port()}
}
