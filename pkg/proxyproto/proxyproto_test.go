package proxyproto_test

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"go.emberproxy.dev/ember/pkg/proxyproto"
)

func newFakeConn(t *testing.T, data []byte) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go func() {
		server.Write(data)
		server.Close()
	}()
	return client
}

func TestDetectAndParseV1(t *testing.T) {
	header := []byte("PROXY TCP4 192.168.0.1 192.168.0.11 56324 25565\r\n")
	conn := newFakeConn(t, header)
	defer conn.Close()
	br := bufio.NewReader(conn)

	h, err := proxyproto.Detect(context.Background(), conn, br, time.Second)
	require.NoError(t, err)
	require.NotNil(t, h)
	require.Equal(t, 1, h.Version)
	require.Equal(t, "192.168.0.1", h.SrcAddr.String())
	require.Equal(t, uint16(56324), h.SrcPort)
}

func TestDetectAndParseV1Unknown(t *testing.T) {
	conn := newFakeConn(t, []byte("PROXY UNKNOWN\r\n"))
	defer conn.Close()
	br := bufio.NewReader(conn)

	h, err := proxyproto.Detect(context.Background(), conn, br, time.Second)
	require.NoError(t, err)
	require.True(t, h.Unknown)
}

func TestDetectNoHeaderPassesThrough(t *testing.T) {
	conn := newFakeConn(t, []byte{0x00, 0x10, 0x00, 0x09, 'l', 'o', 'c', 'a', 'l'})
	defer conn.Close()
	br := bufio.NewReader(conn)

	h, err := proxyproto.Detect(context.Background(), conn, br, time.Second)
	require.NoError(t, err)
	require.Nil(t, h)

	first, err := br.ReadByte()
	require.NoError(t, err)
	require.Equal(t, byte(0x00), first)
}

func TestBuildAndParseV2RoundTrip(t *testing.T) {
	src := &net.TCPAddr{IP: net.ParseIP("10.1.2.3"), Port: 4444}
	dst := &net.TCPAddr{IP: net.ParseIP("10.1.2.4"), Port: 25565}

	raw := proxyproto.BuildV2(src, dst)
	conn := newFakeConn(t, raw)
	defer conn.Close()
	br := bufio.NewReader(conn)

	h, err := proxyproto.Detect(context.Background(), conn, br, time.Second)
	require.NoError(t, err)
	require.Equal(t, 2, h.Version)
	require.Equal(t, "10.1.2.3", h.SrcAddr.String())
	require.Equal(t, uint16(4444), h.SrcPort)
	require.Equal(t, uint16(25565), h.DstPort)
}

func TestBuildV1Format(t *testing.T) {
	src := &net.TCPAddr{IP: net.ParseIP("1.2.3.4"), Port: 111}
	dst := &net.TCPAddr{IP: net.ParseIP("5.6.7.8"), Port: 222}
	got := proxyproto.BuildV1(src, dst)
	require.Equal(t, "PROXY TCP4 1.2.3.4 5.6.7.8 111 222\r\n", string(got))
}
