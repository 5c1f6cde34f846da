package filter_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/filter"
)

func TestCheckIPBlockTakesPrecedence(t *testing.T) {
	lists := config.AccessLists{
		AllowedIPs: []string{"10.0.0.0/8"},
		BlockedIPs: []string{"10.0.0.5"},
	}
	require.Equal(t, filter.Deny, filter.CheckIP(lists, "10.0.0.5"))
	require.Equal(t, filter.Allow, filter.CheckIP(lists, "10.0.0.6"))
	require.Equal(t, filter.Deny, filter.CheckIP(lists, "192.168.1.1"))
}

func TestCheckIPEmptyAllowListAllowsAll(t *testing.T) {
	lists := config.AccessLists{BlockedIPs: []string{"1.2.3.4"}}
	require.Equal(t, filter.Allow, filter.CheckIP(lists, "8.8.8.8"))
	require.Equal(t, filter.Deny, filter.CheckIP(lists, "1.2.3.4"))
}

func TestCheckNameCaseInsensitive(t *testing.T) {
	lists := config.AccessLists{AllowedNames: []string{"Notch"}}
	require.Equal(t, filter.Allow, filter.CheckName(lists, "notch"))
	require.Equal(t, filter.Deny, filter.CheckName(lists, "jeb"))
}

func TestLimitersAllowBurstThenDeny(t *testing.T) {
	limiters := filter.NewLimiters()
	cfg := config.RateLimit{RequestsPerSecond: 1, Burst: 2}

	require.True(t, limiters.Allow("srv", cfg))
	require.True(t, limiters.Allow("srv", cfg))
	require.False(t, limiters.Allow("srv", cfg))
}

func TestLimitersZeroRateDisabled(t *testing.T) {
	limiters := filter.NewLimiters()
	cfg := config.RateLimit{}
	for i := 0; i < 100; i++ {
		require.True(t, limiters.Allow("srv", cfg))
	}
}
