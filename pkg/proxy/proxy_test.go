package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/packet"
)

func TestHandlerForKnownModes(t *testing.T) {
	for _, mode := range []config.ProxyMode{
		config.ModePassthrough, config.ModeOffline, config.ModeClientOnly,
		config.ModeServerOnly, config.ModeStatus,
	} {
		h, err := HandlerFor(mode, nil)
		require.NoError(t, err)
		require.NotNil(t, h)
	}
}

func TestHandlerForUnknownMode(t *testing.T) {
	_, err := HandlerFor(config.ProxyMode("bogus"), nil)
	require.Error(t, err)
}

func TestDecodePendingRoundTrip(t *testing.T) {
	hs := &packet.Handshake{ProtocolVersion: 760, ServerAddress: "play.example.com", ServerPort: 25565, NextState: 2}
	raw := append([]byte{}, hs.Encode()...)
	raw = append([]byte{byte(packet.HandshakePacketID)}, raw...)

	id, data, err := decodePending(raw)
	require.NoError(t, err)
	require.EqualValues(t, packet.HandshakePacketID, id)

	decoded, err := packet.DecodeHandshake(data)
	require.NoError(t, err)
	require.Equal(t, hs.ServerAddress, decoded.ServerAddress)
}

// newPipePair returns the two ends of a synchronous in-memory net.Pipe,
// standing in for a client or backend socket.
func newPipePair() (clientSide net.Conn, serverSide net.Conn) {
	return net.Pipe()
}

func TestPassthroughHandlerReplaysPendingPackets(t *testing.T) {
	clientLocal, clientRemote := newPipePair()
	defer clientLocal.Close()

	backendLocal, backendRemote := newPipePair()

	cfg := &config.ServerConfig{ConfigID: "s1", Addresses: []string{"backend:25565"}, ProxyMode: config.ModePassthrough}
	hs := &packet.Handshake{ProtocolVersion: 760, ServerAddress: "play.example.com", ServerPort: 25565, NextState: 2}

	clientConn := conn.New(clientRemote)
	pair := NewActorPair(clientConn, cfg, hs, Deps{
		Dial: func(ctx context.Context, addr string) (net.Conn, error) {
			return backendRemote, nil
		},
	})

	hsRaw := append([]byte{byte(packet.HandshakePacketID)}, hs.Encode()...)
	pair.Pending = [][]byte{hsRaw}

	done := make(chan error, 1)
	go func() { done <- PassthroughHandler{}.Mediate(context.Background(), pair) }()

	backendConn := conn.New(backendLocal)
	got := backendConn.Read()
	require.Equal(t, conn.KindPacket, got.Kind)
	require.EqualValues(t, packet.HandshakePacketID, got.Packet.ID)

	decoded, err := packet.DecodeHandshake(got.Packet.Data)
	require.NoError(t, err)
	require.Equal(t, "play.example.com", decoded.ServerAddress)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Mediate did not complete")
	}
	require.NotNil(t, pair.Server)

	backendConn.Close()
	clientConn.Close()
}
