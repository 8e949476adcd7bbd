package topology

import (
	"testing"
	"time"

	"github.com/ambereth/vl1/identity"
	"github.com/ambereth/vl1/ports"
	"github.com/ambereth/vl1/wire"
	"github.com/ambereth/vl1/xcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testIdentity(t *testing.T, seed byte) identity.Identity {
	t.Helper()
	var s [32]byte
	s[0] = seed
	priv := xcrypto.GeneratePrivateKey(s)
	id, _, err := identity.GenerateIdentity(priv)
	require.NoError(t, err)
	return id
}

func TestPeerReceivedUpdatesLastReceived(t *testing.T) {
	id := testIdentity(t, 1)
	var key [32]byte
	p := NewPeer(id, key)

	p.Received(1000, 42, wire.VerbEcho, wire.VerbNop)
	assert.Equal(t, uint64(1000), p.LastReceived())
}

func TestPeerValidateAndSetCOMRejectsMismatch(t *testing.T) {
	id := testIdentity(t, 2)
	var key [32]byte
	p := NewPeer(id, key)

	com := identity.CertificateOfMembership{NetworkID: 5}
	assert.False(t, p.ValidateAndSetCOM(6, com))

	_, ok := p.COM(6)
	assert.False(t, ok)
}

func TestPeerValidateAndSetCOMInstalls(t *testing.T) {
	id := testIdentity(t, 3)
	var key [32]byte
	p := NewPeer(id, key)

	com := identity.CertificateOfMembership{NetworkID: 5, Revision: 1}
	assert.True(t, p.ValidateAndSetCOM(5, com))

	got, ok := p.COM(5)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Revision)
}

func TestPeerAttemptToContactAtSetsBestPath(t *testing.T) {
	id := testIdentity(t, 4)
	var key [32]byte
	p := NewPeer(id, key)

	_, ok := p.BestPath()
	assert.False(t, ok)

	ep := ports.Endpoint{Port: 9993}
	p.AttemptToContactAt(ports.Endpoint{}, ep, 1)

	got, ok := p.BestPath()
	require.True(t, ok)
	assert.Equal(t, ep, got)
}

func TestPeerAddDirectLatencyMeasurement(t *testing.T) {
	id := testIdentity(t, 5)
	var key [32]byte
	p := NewPeer(id, key)

	p.AddDirectLatencyMeasurement(20 * time.Millisecond)
	p.AddDirectLatencyMeasurement(25 * time.Millisecond)
	// Just confirm it doesn't panic and returns something in a sane range;
	// the filter's exact numeric output is not a contract.
	assert.GreaterOrEqual(t, p.SmoothedLatency(), time.Duration(0))
}
