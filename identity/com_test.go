package identity

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCOMSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	c := CertificateOfMembership{NetworkID: 7, IssuedTo: addr(1), Timestamp: 100, Revision: 1, MaxDelta: 60}
	c.Sign(priv)
	assert.True(t, c.Verify(pub))
}

func TestCOMVerifyRejectsTamperedRevision(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	c := CertificateOfMembership{NetworkID: 7, IssuedTo: addr(1), Timestamp: 100, Revision: 1, MaxDelta: 60}
	c.Sign(priv)
	c.Revision = 2
	assert.False(t, c.Verify(pub))
}

func TestCOMAgreesWith(t *testing.T) {
	a := CertificateOfMembership{NetworkID: 1, Timestamp: 1000, MaxDelta: 50}
	b := CertificateOfMembership{NetworkID: 1, Timestamp: 1040, MaxDelta: 50}
	assert.True(t, a.AgreesWith(b))

	c := CertificateOfMembership{NetworkID: 1, Timestamp: 1200, MaxDelta: 50}
	assert.False(t, a.AgreesWith(c))
}

func TestCOMAgreesWithRequiresSameNetwork(t *testing.T) {
	a := CertificateOfMembership{NetworkID: 1, Timestamp: 1000, MaxDelta: 50}
	b := CertificateOfMembership{NetworkID: 2, Timestamp: 1000, MaxDelta: 50}
	assert.False(t, a.AgreesWith(b))
}

func TestCOMSerializeRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	c := CertificateOfMembership{NetworkID: 7, IssuedTo: addr(3), Timestamp: 100, Revision: 9, MaxDelta: 60}
	c.Sign(priv)

	encoded := c.Serialize()
	decoded, n, err := DeserializeCOM(encoded)
	require.NoError(t, err)
	assert.Equal(t, len(encoded), n)
	assert.Equal(t, c.NetworkID, decoded.NetworkID)
	assert.Equal(t, c.IssuedTo, decoded.IssuedTo)
	assert.Equal(t, c.Timestamp, decoded.Timestamp)
	assert.Equal(t, c.Revision, decoded.Revision)
	assert.Equal(t, c.MaxDelta, decoded.MaxDelta)
	assert.True(t, decoded.Verify(pub))
}

func TestDeserializeCOMRejectsShortBuffer(t *testing.T) {
	_, _, err := DeserializeCOM([]byte{1, 2, 3})
	assert.Error(t, err)
}
