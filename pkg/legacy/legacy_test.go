package legacy_test

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/legacy"
)

func TestBetaKickResponseFormat(t *testing.T) {
	payload := legacy.KickResponse(legacy.VariantBeta, "A Server", "", 0, 3, 20)
	require.Equal(t, byte(legacy.KickByte), payload[0])
	text := decodeKickText(t, payload)
	require.Equal(t, "A Server§3§20", text)
}

func Test16KickResponseParsesAsTuple(t *testing.T) {
	payload := legacy.KickResponse(legacy.Variant16, "Hello", "1.6.4", 74, 5, 100)
	text := decodeKickText(t, payload)

	parts := strings.Split(text, "\x00")
	require.Len(t, parts, 6)
	require.Equal(t, "§1", parts[0])
	require.Equal(t, "74", parts[1])
	require.Equal(t, "1.6.4", parts[2])
	require.Equal(t, "Hello", parts[3])
	require.Equal(t, "5", parts[4])
	require.Equal(t, "100", parts[5])
}

func decodeKickText(t *testing.T, payload []byte) string {
	t.Helper()
	require.GreaterOrEqual(t, len(payload), 3)
	n := int(payload[1])<<8 | int(payload[2])
	body := payload[3:]
	require.Equal(t, n*2, len(body))
	var sb strings.Builder
	for i := 0; i < len(body); i += 2 {
		u := int(body[i])<<8 | int(body[i+1])
		sb.WriteRune(rune(u))
	}
	return sb.String()
}

func TestKickFieldsArePlainDecimal(t *testing.T) {
	// Sanity: the numeric fields of a kick payload are plain decimal
	// text, as strconv formats them. legacy.Parse's variant detection
	// is not exercised here.
	require.Equal(t, "20", strconv.Itoa(20))
}
