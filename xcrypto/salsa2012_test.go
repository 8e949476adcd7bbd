package xcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSalsa2012XORKeyStreamRoundTrip(t *testing.T) {
	var key [32]byte
	var nonce [8]byte
	for i := range key {
		key[i] = byte(i)
	}
	for i := range nonce {
		nonce[i] = byte(i + 1)
	}

	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated to span multiple 64-byte blocks of keystream")
	ciphertext := make([]byte, len(plaintext))
	Salsa2012XORKeyStream(ciphertext, plaintext, nonce, key)
	assert.NotEqual(t, plaintext, ciphertext)

	decrypted := make([]byte, len(ciphertext))
	Salsa2012XORKeyStream(decrypted, ciphertext, nonce, key)
	assert.Equal(t, plaintext, decrypted)
}

func TestSalsa2012XORKeyStreamFromSkipsBlocks(t *testing.T) {
	var key [32]byte
	var nonce [8]byte
	plaintext := make([]byte, 64)

	fromZero := make([]byte, len(plaintext))
	Salsa2012XORKeyStreamFrom(fromZero, plaintext, nonce, key, 0)

	fromOne := make([]byte, len(plaintext))
	Salsa2012XORKeyStreamFrom(fromOne, plaintext, nonce, key, 1)

	assert.NotEqual(t, fromZero, fromOne, "block 0 and block 1 keystreams must differ")
}

func TestSalsa2012KeystreamBlockDeterministic(t *testing.T) {
	var key [32]byte
	var nonce [8]byte
	key[0] = 0x42

	a := Salsa2012KeystreamBlock(nonce, key, 7)
	b := Salsa2012KeystreamBlock(nonce, key, 7)
	assert.Equal(t, a, b)

	c := Salsa2012KeystreamBlock(nonce, key, 8)
	assert.NotEqual(t, a, c)
}
