package auth

import (
	"crypto/sha1" //nolint:gosec // required by the Minecraft/Mojang session protocol
	"math/big"
)

// ServerHash computes the "server ID hash" Mojang's sessionserver
// expects, per the documented algorithm: SHA-1 over serverID (always
// empty for this proxy) + sharedSecret + publicKeyDER, interpreted as
// a signed big-endian integer and formatted as lowercase hex with a
// leading '-' for negative values (the digest's sign bit, not its
// magnitude, decides the sign).
func ServerHash(serverID string, sharedSecret, publicKeyDER []byte) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte(serverID))
	h.Write(sharedSecret)
	h.Write(publicKeyDER)
	digest := h.Sum(nil)

	n := new(big.Int).SetBytes(digest)
	if digest[0]&0x80 != 0 {
		n = twosComplementNegate(digest)
	}
	return n.Text(16)
}

// twosComplementNegate reinterprets a SHA-1 digest with its high bit
// set as the negative two's-complement integer Java's BigInteger(byte[])
// constructor would produce, returning -n so big.Int's sign is correct.
func twosComplementNegate(digest []byte) *big.Int {
	inverted := make([]byte, len(digest))
	for i, b := range digest {
		inverted[i] = ^b
	}
	n := new(big.Int).SetBytes(inverted)
	n.Add(n, big.NewInt(1))
	return n.Neg(n)
}
