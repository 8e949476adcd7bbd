package xcrypto

// EncryptPayload XORs payload in place with the Salsa20/12 keystream, using
// block counter 1 onward so it never reuses the block consumed by
// OneTimePolyKey (block 0) for the same (key, packetID) pair. Symmetric:
// calling it twice with the same key/packetID restores the original bytes.
func EncryptPayload(sharedKey [32]byte, packetID uint64, payload []byte) {
	var nonce [8]byte
	putUint64(nonce[:], packetID)
	Salsa2012XORKeyStreamFrom(payload, payload, nonce, sharedKey, 1)
}
