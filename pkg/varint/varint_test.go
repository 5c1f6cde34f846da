package varint_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/varint"
)

func TestRoundTrip(t *testing.T) {
	values := []int32{0, 1, 2, 127, 128, 255, 2097151, -1, 2147483647}
	for _, v := range values {
		var buf bytes.Buffer
		require.NoError(t, varint.Write(&buf, v))
		require.Equal(t, varint.Size(v), buf.Len())

		got, err := varint.Read(bufio.NewReader(&buf))
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestReadLimitedTooLong(t *testing.T) {
	// 4 continuation bytes followed by a terminator: 5 bytes total,
	// which exceeds the wire's 3-byte length-prefix cap.
	raw := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	_, err := varint.ReadLimited(bufio.NewReader(bytes.NewReader(raw)), varint.MaxBytes)
	require.ErrorIs(t, err, varint.ErrTooLong)
}

func TestMaxValueFitsInThreeBytes(t *testing.T) {
	require.Equal(t, 3, varint.Size(varint.MaxValue))
}
