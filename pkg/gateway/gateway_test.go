package gateway

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/filter"
	"go.emberproxy.dev/ember/pkg/gateway/statuscache"
	"go.emberproxy.dev/ember/pkg/packet"
	"go.emberproxy.dev/ember/pkg/proxy"
	"go.emberproxy.dev/ember/pkg/supervisor"
)

func newTestGateway(services *config.Service) *Gateway {
	global := &config.Global{Bind: ":0", Cache: config.CacheConfig{StatusTTLSeconds: 30, MaxStatusEntries: 100}}
	return &Gateway{
		Global:     global,
		Services:   services,
		Supervisor: supervisor.New(nil),
		Cache:      statuscache.New(30*time.Second, 100),
		Limiters:   filter.NewLimiters(),
		Deps:       proxy.Deps{},
	}
}

func TestPendingBytesRoundTrip(t *testing.T) {
	hs := &packet.Handshake{ProtocolVersion: 760, ServerAddress: "play.example.com", ServerPort: 25565, NextState: packet.NextStateLogin}
	raw := pendingBytes(hs.ToPacket())
	require.Equal(t, byte(packet.HandshakePacketID), raw[0])

	decoded, err := packet.DecodeHandshake(raw[1:])
	require.NoError(t, err)
	require.Equal(t, hs.ServerAddress, decoded.ServerAddress)
}

func TestHandleNettyUnknownDomainLoginIsKicked(t *testing.T) {
	clientLocal, clientRemote := net.Pipe()
	defer clientLocal.Close()

	g := newTestGateway(config.NewService())

	hs := &packet.Handshake{ProtocolVersion: 760, ServerAddress: "nope.example.com", ServerPort: 25565, NextState: packet.NextStateLogin}

	done := make(chan struct{})
	go func() {
		g.handleNetty(context.Background(), clientRemote, "1.2.3.4")
		close(done)
	}()

	clientConn := conn.New(clientLocal)
	require.NoError(t, clientConn.Write(conn.PacketValue(hs.ToPacket())))
	login := &packet.LoginStart{Username: "steve"}
	require.NoError(t, clientConn.Write(conn.PacketValue(login.ToPacket(false))))

	v := clientConn.Read()
	require.Equal(t, conn.KindPacket, v.Kind)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleNetty did not return")
	}
}

func TestHandleNettyStatusUnknownDomainSynthesizesMOTD(t *testing.T) {
	clientLocal, clientRemote := net.Pipe()
	defer clientLocal.Close()

	g := newTestGateway(config.NewService())

	hs := &packet.Handshake{ProtocolVersion: 760, ServerAddress: "nope.example.com", ServerPort: 25565, NextState: packet.NextStateStatus}

	done := make(chan struct{})
	go func() {
		g.handleNetty(context.Background(), clientRemote, "1.2.3.4")
		close(done)
	}()

	clientConn := conn.New(clientLocal)
	require.NoError(t, clientConn.Write(conn.PacketValue(hs.ToPacket())))

	v := clientConn.Read()
	require.Equal(t, conn.KindPacket, v.Kind)
	resp, err := packet.DecodeStatusResponse(v.Packet.Data)
	require.NoError(t, err)
	require.True(t, strings.Contains(resp.JSON, "Unknown server"))

	// The gateway waits for a ping after the response; disconnecting
	// without one ends the exchange.
	require.NoError(t, clientConn.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handleNetty did not return")
	}
}

func TestHandleNettyRoutesLoginToBackend(t *testing.T) {
	clientLocal, clientRemote := net.Pipe()
	defer clientLocal.Close()

	backendLocal, backendRemote := net.Pipe()

	services := config.NewService()
	cfg := &config.ServerConfig{
		ConfigID:  "s1",
		Domains:   []string{"play.example.com"},
		Addresses: []string{"backend:25565"},
		ProxyMode: config.ModePassthrough,
	}
	services.UpdateConfigurations([]*config.ServerConfig{cfg})

	g := newTestGateway(services)
	g.Deps.Dial = func(ctx context.Context, addr string) (net.Conn, error) {
		return backendRemote, nil
	}

	hs := &packet.Handshake{ProtocolVersion: 760, ServerAddress: "play.example.com", ServerPort: 25565, NextState: packet.NextStateLogin}

	done := make(chan struct{})
	go func() {
		g.handleNetty(context.Background(), clientRemote, "1.2.3.4")
		close(done)
	}()

	clientConn := conn.New(clientLocal)
	require.NoError(t, clientConn.Write(conn.PacketValue(hs.ToPacket())))
	login := &packet.LoginStart{Username: "steve"}
	require.NoError(t, clientConn.Write(conn.PacketValue(login.ToPacket(false))))

	backendConn := conn.New(backendLocal)
	got := backendConn.Read()
	require.Equal(t, conn.KindPacket, got.Kind)
	require.EqualValues(t, packet.HandshakePacketID, got.Packet.ID)

	got2 := backendConn.Read()
	require.Equal(t, conn.KindPacket, got2.Kind)
	require.EqualValues(t, packet.LoginStartPacketID, got2.Packet.ID)

	select {
	case <-done:
		t.Fatal("handleNetty returned before forwarding started")
	case <-time.After(200 * time.Millisecond):
	}

	backendConn.Close()
	clientConn.Close()
}
