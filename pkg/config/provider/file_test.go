package provider

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/config"
)

func writeServerYAML(t *testing.T, dir, name string, domains []string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "domains:\n"
	for _, d := range domains {
		content += "  - " + d + "\n"
	}
	content += "addresses:\n  - 127.0.0.1:25566\nproxy_mode: passthrough\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileProviderConfigID(t *testing.T) {
	p := &FileProvider{FileType: "yaml"}
	require.Equal(t, "survival@FileProvider", p.configID("/etc/ember/servers/survival.yaml"))
}

func TestFileProviderMatchesType(t *testing.T) {
	p := &FileProvider{FileType: "yaml"}
	require.True(t, p.matchesType("a.yaml"))
	require.True(t, p.matchesType("a.yml"))
	require.False(t, p.matchesType("a.json"))
}

func TestFileProviderScanBuildsSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeServerYAML(t, dir, "survival.yaml", []string{"play.example.com"})
	writeServerYAML(t, dir, "creative.yaml", []string{"creative.example.com"})

	p := NewFileProvider(config.FileProviderConfig{ProxiesPath: []string{dir}, FileType: "yaml"})
	snapshot, err := p.scan()
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	survival, ok := snapshot["survival@FileProvider"]
	require.True(t, ok)
	require.Equal(t, []string{"play.example.com"}, survival.Domains)
}

func TestFileProviderRunEmitsFirstInit(t *testing.T) {
	dir := t.TempDir()
	writeServerYAML(t, dir, "lobby.yaml", []string{"lobby.example.com"})

	p := NewFileProvider(config.FileProviderConfig{ProxiesPath: []string{dir}, FileType: "yaml"})
	out := make(chan Message, ChannelCapacity)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx, out) }()

	select {
	case msg := <-out:
		require.Equal(t, KindFirstInit, msg.Kind)
		require.Contains(t, msg.Snapshot, "lobby@FileProvider")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first init")
	}

	cancel()
	<-done
}
