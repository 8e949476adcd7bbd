package identity

import (
	"testing"

	"github.com/ambereth/vl1/xcrypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrivateKey(seed byte) [xcrypto.PrivateKeySize]byte {
	var s [32]byte
	s[0] = seed
	return xcrypto.GeneratePrivateKey(s)
}

func addr(n byte) Address {
	a, err := AddressFromBytes([]byte{0, 0, 0, 0, n})
	if err != nil {
		panic(err)
	}
	return a
}

func TestGenerateIdentityLocallyValidates(t *testing.T) {
	id, _, err := GenerateIdentity(testPrivateKey(1))
	require.NoError(t, err)
	assert.True(t, id.LocallyValidate())
}

func TestLocallyValidateRejectsTamperedKey(t *testing.T) {
	id, _, err := GenerateIdentity(testPrivateKey(2))
	require.NoError(t, err)
	id.PublicKey[0] ^= 0xff
	assert.False(t, id.LocallyValidate())
}

func TestLocallyValidateRejectsMismatchedAddress(t *testing.T) {
	id, _, err := GenerateIdentity(testPrivateKey(3))
	require.NoError(t, err)
	id.Address = addr(9)
	assert.False(t, id.LocallyValidate())
}

func TestIdentitySerializeRoundTrip(t *testing.T) {
	id, _, err := GenerateIdentity(testPrivateKey(4))
	require.NoError(t, err)

	encoded := id.Serialize()
	assert.Equal(t, SerializedLen(), len(encoded))

	decoded, err := DeserializeIdentity(encoded)
	require.NoError(t, err)
	assert.True(t, id.Equal(decoded))
}

func TestDeserializeIdentityRejectsShortBuffer(t *testing.T) {
	_, err := DeserializeIdentity([]byte{1, 2, 3})
	assert.Error(t, err)
}
