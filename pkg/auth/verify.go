package auth

import "crypto/subtle"

// VerifyTokenMatches compares a decrypted verify token against the
// one the proxy sent, in constant time since this guards against a
// client replaying a captured EncryptionResponse (spec.md §4.M).
func VerifyTokenMatches(sent, received []byte) bool {
	if len(sent) != len(received) {
		return false
	}
	return subtle.ConstantTimeCompare(sent, received) == 1
}
