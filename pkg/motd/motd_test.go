package motd_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/motd"
)

func TestRenderThemed(t *testing.T) {
	set := config.MOTDSet{
		Unknown: &config.MOTDTheme{Description: "no such server", MaxPlayers: 20},
	}
	raw, err := motd.Render(set, motd.StateUnknown, 760)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	require.Equal(t, float64(760), doc["version"].(map[string]any)["protocol"])
	require.Equal(t, "no such server", doc["description"].(map[string]any)["text"])
	require.Equal(t, float64(20), doc["players"].(map[string]any)["max"])
}

func TestRenderFallsBackToDefaultMessage(t *testing.T) {
	raw, err := motd.Render(config.MOTDSet{}, motd.StateUnreachable, 760)
	require.NoError(t, err)
	require.Contains(t, raw, "Server unreachable")
}
