package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/config"
)

func TestFindServerByDomainWildcard(t *testing.T) {
	svc := config.NewService()
	svc.UpdateConfigurations([]*config.ServerConfig{
		{ConfigID: "a", Domains: []string{"*.mc.example.com"}, Addresses: []string{"10.0.0.1:25565"}},
		{ConfigID: "b", Domains: []string{"exact.example.com"}, Addresses: []string{"10.0.0.2:25565"}},
	})

	got, ok := svc.FindServerByDomain("sub.mc.example.com")
	require.True(t, ok)
	require.Equal(t, "a", got.ConfigID)

	got, ok = svc.FindServerByDomain("EXACT.example.com")
	require.True(t, ok)
	require.Equal(t, "b", got.ConfigID)

	_, ok = svc.FindServerByDomain("nope.example.com")
	require.False(t, ok)
}

func TestFindServerByDomainQuestionMark(t *testing.T) {
	svc := config.NewService()
	svc.UpdateConfigurations([]*config.ServerConfig{
		{ConfigID: "c", Domains: []string{"srv?.example.com"}, Addresses: []string{"10.0.0.3:25565"}},
	})
	_, ok := svc.FindServerByDomain("srv1.example.com")
	require.True(t, ok)
	_, ok = svc.FindServerByDomain("srv12.example.com")
	require.False(t, ok)
}

func TestUpdateConfigurationsInvalidSkipped(t *testing.T) {
	svc := config.NewService()
	svc.UpdateConfigurations([]*config.ServerConfig{
		{ConfigID: "empty"},
	})
	_, ok := svc.Get("empty")
	require.False(t, ok)
}

func TestRemoveConfiguration(t *testing.T) {
	svc := config.NewService()
	svc.UpdateConfigurations([]*config.ServerConfig{
		{ConfigID: "a", Domains: []string{"a.example.com"}},
	})
	svc.RemoveConfiguration("a")
	_, ok := svc.Get("a")
	require.False(t, ok)
}
