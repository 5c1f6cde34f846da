package supervisor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/supervisor"
)

type fakeActor struct {
	id, configID string
	done         chan struct{}
	shutdown     int
}

func (a *fakeActor) ID() string           { return a.id }
func (a *fakeActor) ConfigID() string     { return a.configID }
func (a *fakeActor) Done() <-chan struct{} { return a.done }
func (a *fakeActor) Shutdown() {
	a.shutdown++
	select {
	case <-a.done:
	default:
		close(a.done)
	}
}

func TestLogPlayerDisconnectAtMostOnce(t *testing.T) {
	sup := supervisor.New(nil)
	a := &fakeActor{id: "s1", configID: "survival", done: make(chan struct{})}
	sup.CreatePair(a)
	require.EqualValues(t, 1, sup.PlayerCount())

	sup.LogPlayerDisconnect("s1")
	require.EqualValues(t, 0, sup.PlayerCount())

	sup.LogPlayerDisconnect("s1")
	require.EqualValues(t, 0, sup.PlayerCount())
}

func TestShutdownAllActors(t *testing.T) {
	sup := supervisor.New(nil)
	a1 := &fakeActor{id: "s1", configID: "survival", done: make(chan struct{})}
	a2 := &fakeActor{id: "s2", configID: "creative", done: make(chan struct{})}
	sup.CreatePair(a1)
	sup.CreatePair(a2)

	sup.ShutdownAllActors()
	require.Equal(t, 1, a1.shutdown)
	require.Equal(t, 1, a2.shutdown)
	require.Equal(t, 0, sup.ActiveCount("survival"))
}

type fakeChecker struct {
	counts map[string]int
	shut   []string
}

func (f *fakeChecker) PlayerCount(configID string) int { return f.counts[configID] }
func (f *fakeChecker) RequestShutdown(configID string) { f.shut = append(f.shut, configID) }

func TestCheckAndMarkEmptyServersRequiresGracePeriod(t *testing.T) {
	checker := &fakeChecker{counts: map[string]int{}}
	sup := supervisor.New(checker)

	servers := []*config.ServerConfig{
		{ConfigID: "survival", ServerManager: &config.ServerManagerRef{EmptyShutdownTime: 10 * time.Millisecond}},
	}

	sup.CheckAndMarkEmptyServers(servers)
	require.Empty(t, checker.shut)

	time.Sleep(20 * time.Millisecond)
	sup.CheckAndMarkEmptyServers(servers)
	require.Equal(t, []string{"survival"}, checker.shut)
}

func TestCheckAndMarkEmptyServersSkipsNonEmpty(t *testing.T) {
	checker := &fakeChecker{counts: map[string]int{"survival": 3}}
	sup := supervisor.New(checker)
	servers := []*config.ServerConfig{
		{ConfigID: "survival", ServerManager: &config.ServerManagerRef{EmptyShutdownTime: time.Millisecond}},
	}
	time.Sleep(5 * time.Millisecond)
	sup.CheckAndMarkEmptyServers(servers)
	require.Empty(t, checker.shut)
}
