package xcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeMACVerifyMACRoundTrip(t *testing.T) {
	var key [32]byte
	key[0] = 9
	data := []byte("header-region-bytes-that-get-authenticated")

	mac := ComputeMAC(key, 12345, data)
	assert.True(t, VerifyMAC(key, 12345, data, mac))
}

func TestVerifyMACRejectsTamperedData(t *testing.T) {
	var key [32]byte
	data := []byte("original payload")
	mac := ComputeMAC(key, 1, data)

	tampered := append([]byte{}, data...)
	tampered[0] ^= 0xff
	assert.False(t, VerifyMAC(key, 1, tampered, mac))
}

func TestVerifyMACRejectsWrongPacketID(t *testing.T) {
	var key [32]byte
	data := []byte("payload")
	mac := ComputeMAC(key, 1, data)
	assert.False(t, VerifyMAC(key, 2, data, mac))
}

func TestOneTimePolyKeyVariesByPacketID(t *testing.T) {
	var key [32]byte
	a := OneTimePolyKey(key, 1)
	b := OneTimePolyKey(key, 2)
	assert.NotEqual(t, a, b)
}
