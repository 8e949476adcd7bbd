package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArmorDearmorRoundTripPlaintext(t *testing.T) {
	var key [32]byte
	key[0] = 7

	p := NewOutbound(addr(1), addr(2), VerbEcho)
	p.AppendBytes([]byte("hello world"))

	require.NoError(t, Armor(p, key, false))

	ok, err := Dearmor(p, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello world"), p.Payload())
}

func TestArmorDearmorRoundTripEncrypted(t *testing.T) {
	var key [32]byte
	key[0] = 7

	p := NewOutbound(addr(1), addr(2), VerbEcho)
	p.AppendBytes([]byte("secret payload bytes"))

	require.NoError(t, Armor(p, key, true))
	// payload must no longer be plaintext on the wire
	assert.NotEqual(t, []byte("secret payload bytes"), p.Payload())

	ok, err := Dearmor(p, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("secret payload bytes"), p.Payload())
}

func TestDearmorRejectsWrongKey(t *testing.T) {
	var key, wrongKey [32]byte
	key[0] = 1
	wrongKey[0] = 2

	p := NewOutbound(addr(1), addr(2), VerbEcho)
	p.AppendBytes([]byte("payload"))
	require.NoError(t, Armor(p, key, true))

	ok, err := Dearmor(p, wrongKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDearmorRejectsTamperedPacket(t *testing.T) {
	var key [32]byte
	p := NewOutbound(addr(1), addr(2), VerbEcho)
	p.AppendBytes([]byte("payload"))
	require.NoError(t, Armor(p, key, false))

	raw := p.Bytes()
	raw[len(raw)-1] ^= 0xff

	ok, err := Dearmor(p, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCompressUncompressRoundTrip(t *testing.T) {
	p := NewOutbound(addr(1), addr(2), VerbNetworkConfigRequest)
	original := []byte("repeated repeated repeated repeated repeated payload data")
	p.AppendBytes(original)

	Compress(p)
	flags, err := p.VerbFlags()
	require.NoError(t, err)
	assert.Equal(t, byte(CompressedFlag), flags&CompressedFlag)
	assert.NotEqual(t, original, p.Payload())

	ok := Uncompress(p)
	assert.True(t, ok)
	assert.Equal(t, original, p.Payload())
}

func TestUncompressNoopWithoutFlag(t *testing.T) {
	p := NewOutbound(addr(1), addr(2), VerbEcho)
	p.AppendBytes([]byte("plain"))
	ok := Uncompress(p)
	assert.True(t, ok)
	assert.Equal(t, []byte("plain"), p.Payload())
}

func TestUncompressRejectsMalformedStream(t *testing.T) {
	p := NewOutbound(addr(1), addr(2), VerbEcho)
	p.AppendBytes([]byte("not actually s2 compressed data"))
	p.SetVerbFlag(CompressedFlag)

	ok := Uncompress(p)
	assert.False(t, ok)
}
