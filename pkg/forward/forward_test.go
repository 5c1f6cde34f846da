package forward_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"go.emberproxy.dev/ember/pkg/forward"
)

func TestPumpMovesBytesBothWays(t *testing.T) {
	clientLocal, clientRemote := net.Pipe()
	serverLocal, serverRemote := net.Pipe()

	closed := atomic.NewBool(false)
	done := make(chan *forward.Stats, 1)
	go func() { done <- forward.Pump(clientRemote, serverRemote, closed) }()

	go func() {
		_, _ = clientLocal.Write([]byte("hello from client"))
		clientLocal.Close()
	}()

	buf := make([]byte, 64)
	n, err := io.ReadAtLeast(serverLocal, buf, len("hello from client"))
	require.NoError(t, err)
	require.Equal(t, "hello from client", string(buf[:n]))

	serverLocal.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("pump did not complete after both ends closed")
	}
}
