package codec_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/codec"
	"go.emberproxy.dev/ember/pkg/varint"
)

func TestFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := codec.NewEncoder(&buf)
	p := &codec.Packet{ID: 0x05, Data: []byte("hello world")}
	require.NoError(t, enc.WritePacket(p))

	dec := codec.NewDecoder(bufio.NewReader(&buf))
	got, err := dec.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, p.Data, got.Data)
}

func TestCompressionRoundTrip(t *testing.T) {
	const threshold = 64

	small := bytes.Repeat([]byte{0x01}, 10)
	large := bytes.Repeat([]byte{0x02}, 200)

	for _, body := range [][]byte{small, large} {
		var buf bytes.Buffer
		enc := codec.NewEncoder(&buf)
		enc.EnableCompression(threshold, -1)
		p := &codec.Packet{ID: 1, Data: body}
		require.NoError(t, enc.WritePacket(p))

		wire := buf.Bytes()
		// Skip the outer length VarInt to inspect the data_length prefix.
		r := bytes.NewReader(wire)
		_, err := varint.Read(r)
		require.NoError(t, err)
		dataLength, err := varint.Read(r)
		require.NoError(t, err)

		if len(body) < threshold {
			require.EqualValues(t, 0, dataLength)
		} else {
			require.EqualValues(t, len(body)+varint.Size(p.ID), dataLength)
		}

		dec := codec.NewDecoder(bufio.NewReader(&buf))
		dec.EnableCompression(threshold)
		got, err := dec.ReadPacket()
		require.NoError(t, err)
		require.Equal(t, body, got.Data)
	}
}

func TestEncryptionTransparency(t *testing.T) {
	secret := bytes.Repeat([]byte{0x42}, 16)

	var wire bytes.Buffer
	encWriter, err := codec.NewEncryptWriter(&wire, secret)
	require.NoError(t, err)
	enc := codec.NewEncoder(encWriter)

	p := &codec.Packet{ID: 7, Data: []byte("sealed payload")}
	require.NoError(t, enc.WritePacket(p))

	// The ciphertext must not contain the plaintext payload.
	require.NotContains(t, wire.String(), "sealed payload")

	decReader, err := codec.NewDecryptReader(bufio.NewReader(&wire), secret)
	require.NoError(t, err)
	dec := codec.NewDecoder(decReader)

	got, err := dec.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, p.ID, got.ID)
	require.Equal(t, p.Data, got.Data)
}

func TestCompressionThenEncryptionOrdering(t *testing.T) {
	// Writing must compress-then-encrypt; reading must decrypt-then-
	// decompress. Exercise both transforms stacked together.
	secret := bytes.Repeat([]byte{0x09}, 16)

	var wire bytes.Buffer
	encWriter, err := codec.NewEncryptWriter(&wire, secret)
	require.NoError(t, err)
	enc := codec.NewEncoder(encWriter)
	enc.EnableCompression(8, -1)

	body := bytes.Repeat([]byte("x"), 500)
	require.NoError(t, enc.WritePacket(&codec.Packet{ID: 2, Data: body}))

	decReader, err := codec.NewDecryptReader(bufio.NewReader(&wire), secret)
	require.NoError(t, err)
	dec := codec.NewDecoder(decReader)
	dec.EnableCompression(8)

	got, err := dec.ReadPacket()
	require.NoError(t, err)
	require.Equal(t, body, got.Data)
}
