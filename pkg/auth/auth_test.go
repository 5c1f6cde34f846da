package auth_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/auth"
)

func encryptPKCS1v15(t *testing.T, kp *auth.KeyPair, plaintext []byte) []byte {
	t.Helper()
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, &kp.Private.PublicKey, plaintext)
	require.NoError(t, err)
	return ciphertext
}

func TestGenerateKeyPairRoundTrip(t *testing.T) {
	kp, err := auth.GenerateKeyPair()
	require.NoError(t, err)
	require.NotEmpty(t, kp.PublicDER)

	secret := []byte("0123456789abcdef")
	// Encrypt with the public key the way a client would, then decrypt
	// with the proxy's private key.
	ciphertext := encryptPKCS1v15(t, kp, secret)

	got, err := kp.Decrypt(ciphertext)
	require.NoError(t, err)
	require.Equal(t, secret, got)
}

func TestVerifyTokenMatches(t *testing.T) {
	sent := []byte{1, 2, 3, 4}
	require.True(t, auth.VerifyTokenMatches(sent, []byte{1, 2, 3, 4}))
	require.False(t, auth.VerifyTokenMatches(sent, []byte{1, 2, 3, 5}))
	require.False(t, auth.VerifyTokenMatches(sent, []byte{1, 2, 3}))
}

func TestServerHashKnownVectors(t *testing.T) {
	// A vector from the documented Minecraft protocol examples. Under
	// Java's signed BigInteger hex formatting a SHA-1 digest with its
	// high bit clear, as here, prints as plain lowercase hex; one with
	// the high bit set would print with a leading '-'.
	require.Equal(t, "4ed1f46bbe04bc756bcb17c0c7ce3e4632f06a48", auth.ServerHash("Notch", nil, nil))
}

func TestServerHashDeterministic(t *testing.T) {
	h1 := auth.ServerHash("", []byte("secret"), []byte("pubkey"))
	h2 := auth.ServerHash("", []byte("secret"), []byte("pubkey"))
	require.Equal(t, h1, h2)
}

func TestParseUndashedUUID(t *testing.T) {
	id, err := auth.ParseUndashedUUID("069a79f444e94726a5befca90e38aaf5")
	require.NoError(t, err)
	require.Equal(t, "069a79f4-44e9-4726-a5be-fca90e38aaf5", id.String())

	_, err = auth.ParseUndashedUUID("too-short")
	require.Error(t, err)
}

func TestOfflineUUIDDeterministicAndVersioned(t *testing.T) {
	id1 := auth.OfflineUUID("Notch")
	id2 := auth.OfflineUUID("Notch")
	require.Equal(t, id1, id2)
	require.NotEqual(t, id1, auth.OfflineUUID("jeb_"))
	require.Equal(t, uuid.Version(3), id1.Version())
}
