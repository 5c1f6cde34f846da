// Package auth implements the proxy-as-authenticator flow of
// spec.md §4.M: RSA keypair generation, verify-token handling, and
// the Mojang session-server join/hasJoined exchange.
package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"
)

// KeySize matches vanilla's login encryption request (spec.md §4.M).
const KeySize = 1024

// KeyPair holds the proxy's session keypair, generated once at
// startup and reused across client-only logins.
type KeyPair struct {
	Private *rsa.PrivateKey
	// PublicDER is the DER-encoded SubjectPublicKeyInfo sent verbatim
	// in EncryptionRequest.PublicKey.
	PublicDER []byte
}

// GenerateKeyPair creates a fresh 1024-bit RSA keypair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, fmt.Errorf("generating RSA keypair: %w", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("encoding public key: %w", err)
	}
	return &KeyPair{Private: priv, PublicDER: der}, nil
}

// Decrypt decrypts one of the client's EncryptionResponse fields
// with PKCS#1 v1.5, as vanilla servers do.
func (k *KeyPair) Decrypt(ciphertext []byte) ([]byte, error) {
	return rsa.DecryptPKCS1v15(rand.Reader, k.Private, ciphertext)
}

// NewVerifyToken returns 4 cryptographically random bytes.
func NewVerifyToken() ([]byte, error) {
	token := make([]byte, 4)
	if _, err := rand.Read(token); err != nil {
		return nil, fmt.Errorf("generating verify token: %w", err)
	}
	return token, nil
}
