// Package gateway implements the request_server pipeline of spec.md
// §4.G: accept a socket, recognize legacy or netty handshakes, resolve
// the target server config, apply admission filters, and hand the
// session off to pkg/proxy's actor pair for mediation. Status-state
// requests are always answered by the gateway itself, regardless of a
// server's configured proxy mode; only login-state sessions dispatch
// into a mode Handler.
package gateway

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"go.emberproxy.dev/ember/pkg/codec"
	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/filter"
	"go.emberproxy.dev/ember/pkg/gateway/statuscache"
	"go.emberproxy.dev/ember/pkg/legacy"
	"go.emberproxy.dev/ember/pkg/motd"
	"go.emberproxy.dev/ember/pkg/packet"
	"go.emberproxy.dev/ember/pkg/proxy"
	"go.emberproxy.dev/ember/pkg/proxyproto"
	"go.emberproxy.dev/ember/pkg/supervisor"
	"go.emberproxy.dev/ember/pkg/varint"
)

// Gateway owns the listening socket and the collaborators needed to
// route and mediate every accepted connection.
type Gateway struct {
	Global     *config.Global
	Services   *config.Service
	Supervisor *supervisor.Supervisor
	Cache      *statuscache.Cache
	Limiters   *filter.Limiters
	Deps       proxy.Deps

	listener net.Listener
}

// New returns a Gateway ready to Listen/Serve.
func New(global *config.Global, services *config.Service, sup *supervisor.Supervisor, deps proxy.Deps) *Gateway {
	return &Gateway{
		Global:     global,
		Services:   services,
		Supervisor: sup,
		Cache:      statuscache.New(time.Duration(global.Cache.StatusTTLSeconds)*time.Second, global.Cache.MaxStatusEntries),
		Limiters:   filter.NewLimiters(),
		Deps:       deps,
	}
}

// Listen binds the configured address.
func (g *Gateway) Listen() error {
	l, err := net.Listen("tcp", g.Global.Bind)
	if err != nil {
		return fmt.Errorf("gateway: binding %s: %w", g.Global.Bind, err)
	}
	g.listener = l
	zap.S().Infow("gateway listening", "bind", g.Global.Bind)
	return nil
}

// Serve accepts connections until ctx is canceled, and spawns the
// background health-check ticker (spec.md §4.F, §4.G).
func (g *Gateway) Serve(ctx context.Context) error {
	go g.Supervisor.RunHealthCheck(ctx, g.Services.All)

	go func() {
		<-ctx.Done()
		_ = g.listener.Close()
	}()

	for {
		raw, err := g.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("gateway: accept: %w", err)
			}
		}
		go g.handle(ctx, raw)
	}
}

func (g *Gateway) handle(ctx context.Context, raw net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Errorw("panic handling connection", "panic", r, "remote", raw.RemoteAddr())
			_ = raw.Close()
		}
	}()

	br := bufio.NewReader(raw)
	var header *proxyproto.Header

	if g.Global.ProxyProtocol.ReceiveEnabled {
		timeout := time.Duration(g.Global.ProxyProtocol.ReceiveTimeoutSecs) * time.Second
		h, err := proxyproto.Detect(ctx, raw, br, timeout)
		if err != nil {
			zap.S().Debugw("proxy protocol detection failed", "error", err, "remote", raw.RemoteAddr())
			_ = raw.Close()
			return
		}
		header = h
	}

	wrapped := &bufferedConn{Conn: raw, r: br}
	remoteIP := clientIP(raw.RemoteAddr(), header)

	first, err := br.Peek(1)
	if err != nil || len(first) == 0 {
		_ = raw.Close()
		return
	}

	if first[0] == legacy.PingByte {
		_, _ = br.Discard(1)
		g.handleLegacy(wrapped, br)
		return
	}

	g.handleNetty(ctx, wrapped, remoteIP)
}

// bufferedConn lets a net.Conn be handed off with a bufio.Reader that
// has already consumed some of its bytes (PROXY protocol detection, the
// legacy-ping lead byte) without losing them.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

// Unwrap exposes the real socket underneath, so the forwarder's splice
// path (pkg/forward) can type-assert *net.TCPConn instead of always
// falling back to the buffered-copy path (spec.md §4.K).
func (b *bufferedConn) Unwrap() net.Conn { return b.Conn }

// handleLegacy answers a pre-1.7 legacy ping directly on the raw
// socket; these clients never speak the framed packet protocol
// (spec.md §4.B).
func (g *Gateway) handleLegacy(raw net.Conn, br *bufio.Reader) {
	defer raw.Close()

	ping, err := legacy.Parse(br)
	if err != nil {
		zap.S().Debugw("malformed legacy ping", "error", err)
		return
	}

	var cfg *config.ServerConfig
	if ping.Hostname != "" {
		cfg, _ = g.Services.FindServerByDomain(ping.Hostname)
	}

	motdText := "§cServer not found"
	online, max := 0, 0
	if cfg != nil {
		if theme := cfg.MOTDs.Online; theme != nil {
			motdText = theme.Description
			max = theme.MaxPlayers
		}
		online = g.Supervisor.ActiveCount(cfg.ConfigID)
	}

	resp := legacy.KickResponse(ping.Variant, motdText, motd.DefaultVersionName, int(ping.Protocol), online, max)
	_, _ = raw.Write(resp)
}

// handleNetty decodes the handshake packet and dispatches the session
// per spec.md §4.G.
func (g *Gateway) handleNetty(ctx context.Context, raw net.Conn, remoteIP string) {
	c := conn.New(raw)

	v := c.Read()
	if v.Kind != conn.KindPacket || v.Packet.ID != packet.HandshakePacketID {
		_ = c.Close()
		return
	}
	hs, err := packet.DecodeHandshake(v.Packet.Data)
	if err != nil {
		zap.S().Debugw("malformed handshake", "error", err, "remote", remoteIP)
		_ = c.Close()
		return
	}

	domain, _, _ := hs.ParsedAddress()
	cfg, found := g.Services.FindServerByDomain(domain)
	if !found {
		cfg, found = g.Services.FindServerByIP(domain)
	}

	if hs.NextState == packet.NextStateStatus {
		g.serveStatus(ctx, c, hs, cfg, found, remoteIP)
		return
	}

	if hs.NextState != packet.NextStateLogin {
		_ = c.Close()
		return
	}

	loginStart := c.Read()
	if loginStart.Kind != conn.KindPacket || loginStart.Packet.ID != packet.LoginStartPacketID {
		_ = c.Close()
		return
	}
	hasUUID := hs.ProtocolVersion >= 759
	login, err := packet.DecodeLoginStart(loginStart.Packet.Data, hasUUID)
	if err != nil {
		_ = c.Close()
		return
	}

	if !found {
		zap.S().Infow("login for unknown domain", "domain", domain, "remote", remoteIP)
		g.kick(c, "No server found for this address.")
		return
	}

	if filter.CheckIP(cfg.Filters.Lists, remoteIP) == filter.Deny {
		g.kick(c, "Your IP address is not allowed to connect.")
		return
	}
	if !g.Limiters.Allow(cfg.ConfigID, cfg.Filters.RateLimit) {
		g.kick(c, "Too many connection attempts, try again later.")
		return
	}
	if filter.CheckName(cfg.Filters.Lists, login.Username) == filter.Deny {
		g.kick(c, "Your username is not allowed to connect.")
		return
	}

	pair := proxy.NewActorPair(c, cfg, hs, g.Deps)
	pair.Pending = [][]byte{
		pendingBytes(v.Packet),
		pendingBytes(loginStart.Packet),
	}

	handler, err := proxy.HandlerFor(cfg.ProxyMode, g.Cache)
	if err != nil {
		zap.S().Errorw("unresolvable proxy mode", "config_id", cfg.ConfigID, "mode", cfg.ProxyMode, "error", err)
		g.kick(c, "Server misconfigured.")
		return
	}

	proxy.Serve(ctx, pair, handler, g.Supervisor)
}

// serveStatus answers a status-state request directly, per spec.md
// §4.G and §4.J — this happens regardless of the resolved server's
// configured proxy mode.
func (g *Gateway) serveStatus(ctx context.Context, c *conn.Connection, hs *packet.Handshake, cfg *config.ServerConfig, found bool, remoteIP string) {
	if !found {
		g.respondStatus(c, hs, config.MOTDSet{}, motd.StateUnknown)
		return
	}

	pair := proxy.NewActorPair(c, cfg, hs, g.Deps)
	handler := &proxy.StatusHandler{Cache: g.Cache}
	if err := handler.Mediate(ctx, pair); err != nil {
		zap.S().Debugw("status mediation failed", "config_id", cfg.ConfigID, "error", err)
	}
	_ = c.Close()
}

func (g *Gateway) respondStatus(c *conn.Connection, hs *packet.Handshake, set config.MOTDSet, state motd.State) {
	defer c.Close()

	doc, err := motd.Render(set, state, int(hs.ProtocolVersion))
	if err != nil {
		return
	}
	resp := &packet.StatusResponse{JSON: doc}
	if err := c.Write(conn.PacketValue(resp.ToPacket())); err != nil {
		return
	}

	pingValue := c.Read()
	if pingValue.Kind != conn.KindPacket {
		return
	}
	ping, err := packet.DecodeStatusPing(pingValue.Packet.Data)
	if err != nil {
		return
	}
	_ = c.Write(conn.PacketValue(ping.ToPacket()))
}

func (g *Gateway) kick(c *conn.Connection, message string) {
	d := packet.NewTextDisconnect(message)
	_ = c.Write(conn.PacketValue(d.ToPacket()))
	_ = c.Close()
}

// pendingBytes re-serializes a decoded packet back into the raw
// id+data form ActorPair.Pending replays verbatim (mirrors
// codec.Encoder.WritePacket's framing, minus the length prefix).
func pendingBytes(p *codec.Packet) []byte {
	buf := varint.Append(nil, p.ID)
	return append(buf, p.Data...)
}

func clientIP(remote net.Addr, header *proxyproto.Header) string {
	if header != nil {
		if tcp := header.RemoteAddr(); tcp != nil {
			return tcp.IP.String()
		}
	}
	if tcp, ok := remote.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	return remote.String()
}
