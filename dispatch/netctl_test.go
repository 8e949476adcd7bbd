package dispatch

import (
	"testing"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleWhoisRepliesOKForKnownTarget(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	target, _ := addPeer(t, d, env, 2)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbWhois)
	pkt.AppendAddress(target.Address())

	d.handleWhois(pkt, peer, 0)
	env.GetActions().AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbOK)
}

func TestHandleWhoisRepliesErrorForUnknownTarget(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	unknown := testAddress(t, 250)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbWhois)
	pkt.AppendAddress(unknown)

	d.handleWhois(pkt, peer, 0)
	env.GetActions().AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbError)
}

func TestHandleEchoRepliesWithSamePayload(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbEcho)
	pkt.AppendBytes([]byte("ping"))

	d.handleEcho(pkt, peer, 0)
	env.GetActions().AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbOK)
}

func TestHandleRendezvousRequestsHolePunch(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	with, _ := addPeer(t, d, env, 2)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbRendezvous)
	pkt.AppendAddress(with.Address())
	pkt.AppendUint16(9993)
	pkt.AppendByte(4)
	pkt.AppendBytes([]byte{10, 0, 0, 1})

	d.handleRendezvous(pkt, peer, 0)
	env.GetActions().AssertContains(t, "RENDEZVOUS", with.Address())
}

func TestHandleRendezvousIgnoresUnknownTarget(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	unknown := testAddress(t, 251)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbRendezvous)
	pkt.AppendAddress(unknown)
	pkt.AppendUint16(9993)
	pkt.AppendByte(4)
	pkt.AppendBytes([]byte{10, 0, 0, 1})

	d.handleRendezvous(pkt, peer, 0)
	env.GetActions().AssertNotContains(t, "RENDEZVOUS")
}

func TestHandlePushDirectPathsAttemptsContact(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbPushDirectPaths)
	pkt.AppendUint16(1) // count
	pkt.AppendByte(0x00) // flags: not excluded
	pkt.AppendUint16(0)  // ext_len
	pkt.AppendByte(4)    // addr_type
	pkt.AppendByte(4)    // addr_len
	pkt.AppendBytes([]byte{203, 0, 113, 5})
	pkt.AppendUint16(9993)

	d.handlePushDirectPaths(pkt, peer, 0)

	got, ok := peer.BestPath()
	require.True(t, ok)
	assert.Equal(t, uint16(9993), got.Port)
}

func TestHandlePushDirectPathsSkipsExcludedFlag(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbPushDirectPaths)
	pkt.AppendUint16(1)
	pkt.AppendByte(0x01) // flags bit0 set -> excluded
	pkt.AppendUint16(0)
	pkt.AppendByte(4)
	pkt.AppendByte(4)
	pkt.AppendBytes([]byte{203, 0, 113, 5})
	pkt.AppendUint16(9993)

	d.handlePushDirectPaths(pkt, peer, 0)

	_, ok := peer.BestPath()
	assert.False(t, ok)
}

func TestHandleNetworkConfigRequestWithoutControllerRepliesUnsupported(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbNetworkConfigRequest)
	pkt.AppendUint64(7)
	pkt.AppendUint16(0)

	d.handleNetworkConfigRequest(pkt, peer, 0, ports.Endpoint{})
	env.GetActions().AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbError)
}

func TestHandleNetworkConfigRequestOKSendsConfig(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	env.controllerResult = ports.ControllerOK
	env.controllerDict = []byte("k=v")
	d.Controller = env

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbNetworkConfigRequest)
	pkt.AppendUint64(7)
	pkt.AppendUint16(0)

	d.handleNetworkConfigRequest(pkt, peer, 0, ports.Endpoint{})

	actions := env.GetActions()
	actions.AssertContains(t, "CONTROLLER_DO_REQUEST", peer.Address(), uint64(7))
	actions.AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbOK)
}

func TestHandleNetworkConfigRequestAccessDenied(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	env.controllerResult = ports.ControllerAccessDenied
	d.Controller = env

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbNetworkConfigRequest)
	pkt.AppendUint64(7)
	pkt.AppendUint16(0)

	d.handleNetworkConfigRequest(pkt, peer, 0, ports.Endpoint{})
	env.GetActions().AssertContains(t, "PUT_PACKET", ports.Endpoint{}, wire.VerbError)
}

func TestHandleNetworkMembershipCertificateInstallsCOM(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)

	com := identity.CertificateOfMembership{NetworkID: 7, IssuedTo: peer.Address(), Timestamp: 1, Revision: 1, MaxDelta: 10}

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbNetworkMembershipCertificate)
	pkt.AppendBytes(com.Serialize())

	d.handleNetworkMembershipCertificate(pkt, peer, 0)

	got, ok := peer.COM(7)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Revision)
}

func TestHandleNetworkConfigRefreshOnlyFromController(t *testing.T) {
	d, env := newHarness(t)
	peer, _ := addPeer(t, d, env, 1)
	net := newMockNetwork(env, 7, peer.Address())
	env.networks[7] = net
	env.networks[8] = newMockNetwork(env, 8, testAddress(t, 250))

	pkt := wire.NewOutbound(d.Local.Address, peer.Address(), wire.VerbNetworkConfigRefresh)
	pkt.AppendUint64(7)
	pkt.AppendUint64(8)

	d.handleNetworkConfigRefresh(pkt, peer, 0)
	actions := env.GetActions()
	actions.AssertContains(t, "NETWORK_REQUEST_CONFIG", uint64(7))
	actions.AssertNotContains(t, "NETWORK_REQUEST_CONFIG", uint64(8))
}
