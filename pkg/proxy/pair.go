// Package proxy implements the actor-pair session model of spec.md
// §4.E: each accepted client socket is joined with a dialed backend
// socket, the login is mediated according to the server's configured
// ProxyMode, and bytes are then pumped between the two sockets by
// pkg/forward. The pair's ToServer/ToClient channels are allocated but
// nothing in this package sends on or receives from them.
package proxy

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.emberproxy.dev/ember/pkg/auth"
	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/config"
	"go.emberproxy.dev/ember/pkg/forward"
	"go.emberproxy.dev/ember/pkg/packet"
	"go.emberproxy.dev/ember/pkg/proxyproto"
	"go.emberproxy.dev/ember/pkg/supervisor"
)

// clientServerChannelCapacity and supervisorChannelCapacity match the
// bounded channel sizing named in spec.md §4.E.
const (
	clientServerChannelCapacity = 64
	supervisorChannelCapacity   = 100
)

// Handler implements one ProxyMode's mediation behavior: how the
// handshake/login exchange is conducted before the session settles
// into raw byte forwarding.
type Handler interface {
	// Mediate drives the handshake/login dance for the pair and
	// returns once both sides are ready for (or have been kicked
	// before reaching) the raw forwarding stage.
	Mediate(ctx context.Context, pair *ActorPair) error
}

// DialFunc opens the backend connection; overridable in tests.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// DefaultDial dials TCP with a bounded connect timeout.
func DefaultDial(ctx context.Context, addr string) (net.Conn, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// Deps bundles the collaborators an ActorPair needs beyond the two
// sockets themselves.
type Deps struct {
	Dial      DialFunc
	KeyPair   *auth.KeyPair
	Sessions  *auth.SessionClient
	ProxyProt config.ProxyProtocolConfig
}

// ActorPair is one mediated session: a client connection and the
// backend connection it is (or will be) joined to. Shutdown is
// coordinated through Shutdown and Done, not through the ToServer/
// ToClient channels.
type ActorPair struct {
	id       string
	configID string

	Client     *conn.Connection
	Server     *conn.Connection
	ServerAddr string

	Handshake *packet.Handshake
	// Pending holds the already-framed id+data payloads the gateway
	// read from the client before routing (the handshake and, in the
	// login state, the login-start packet), replayed verbatim to the
	// backend by most Handlers before the session goes raw.
	Pending [][]byte
	cfg     *config.ServerConfig
	deps    Deps

	closed atomic.Bool
	done   chan struct{}

	// ToServer/ToClient are available to Handler implementations that
	// need to hand off pre-decoded packets between the two halves
	// before raw forwarding begins (spec.md §4.E).
	ToServer chan conn.Value
	ToClient chan conn.Value
}

// NewActorPair constructs a pair around an already-accepted client
// connection; the backend isn't dialed until a Handler does so.
func NewActorPair(client *conn.Connection, cfg *config.ServerConfig, hs *packet.Handshake, deps Deps) *ActorPair {
	if deps.Dial == nil {
		deps.Dial = DefaultDial
	}
	return &ActorPair{
		id:        uuid.New().String(),
		configID:  cfg.ConfigID,
		Client:    client,
		Handshake: hs,
		cfg:       cfg,
		deps:      deps,
		done:      make(chan struct{}),
		ToServer:  make(chan conn.Value, clientServerChannelCapacity),
		ToClient:  make(chan conn.Value, clientServerChannelCapacity),
	}
}

func (p *ActorPair) ID() string       { return p.id }
func (p *ActorPair) ConfigID() string { return p.configID }
func (p *ActorPair) Done() <-chan struct{} { return p.done }

// Shutdown closes both sockets and unblocks Done exactly once.
func (p *ActorPair) Shutdown() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	if p.Client != nil {
		_ = p.Client.Close()
	}
	if p.Server != nil {
		_ = p.Server.Close()
	}
	close(p.done)
}

// DialServer opens the backend connection for addr, optionally
// preceded by an outbound PROXY protocol header when the server
// config requests it (spec.md §4.L).
func (p *ActorPair) DialServer(ctx context.Context, addr string) error {
	p.ServerAddr = addr
	raw, err := p.deps.Dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dialing backend %s: %w", addr, err)
	}

	if p.cfg.SendProxyProtocol {
		version := p.cfg.ProxyProtoVersion
		if version == 0 {
			version = 1
		}
		src, _ := p.Client.RemoteAddr().(*net.TCPAddr)
		dst, _ := raw.RemoteAddr().(*net.TCPAddr)
		header, err := proxyproto.Build(version, src, dst)
		if err != nil {
			_ = raw.Close()
			return fmt.Errorf("building proxy protocol header: %w", err)
		}
		if _, err := raw.Write(header); err != nil {
			_ = raw.Close()
			return fmt.Errorf("writing proxy protocol header: %w", err)
		}
	}

	p.Server = conn.New(raw)
	return nil
}

// RunForwarding flips both connections to raw mode and pumps bytes
// until either side closes (spec.md §4.K), then deregisters via sup.
// Any bytes already sitting in either side's packet-decoder buffer —
// pipelined client bytes read alongside the handshake/login-start, or
// backend bytes buffered while draining its login response — are
// flushed to the peer first, so nothing sent before the flip is lost.
func (p *ActorPair) RunForwarding(sup *supervisor.Supervisor) {
	p.Client.EnableRawMode()
	p.Server.EnableRawMode()

	clientRaw := p.Client.Raw()
	serverRaw := p.Server.Raw()

	if buffered := p.Client.DrainBuffered(); len(buffered) > 0 {
		if _, err := serverRaw.Write(buffered); err != nil {
			sup.LogPlayerDisconnect(p.id)
			p.Shutdown()
			return
		}
	}
	if buffered := p.Server.DrainBuffered(); len(buffered) > 0 {
		if _, err := clientRaw.Write(buffered); err != nil {
			sup.LogPlayerDisconnect(p.id)
			p.Shutdown()
			return
		}
	}

	closedFlag := atomic.NewBool(false)
	forward.Pump(clientRaw, serverRaw, closedFlag)

	sup.LogPlayerDisconnect(p.id)
	p.Shutdown()
}

// Serve runs a Handler's mediation stage and, if it completes without
// kicking the client, proceeds to raw forwarding. Errors from Mediate
// are logged and terminate the pair.
func Serve(ctx context.Context, pair *ActorPair, handler Handler, sup *supervisor.Supervisor) {
	sup.CreatePair(pair)

	if err := handler.Mediate(ctx, pair); err != nil {
		zap.S().Debugw("session ended during mediation", "session_id", pair.id, "config_id", pair.configID, "error", err)
		sup.LogPlayerDisconnect(pair.id)
		pair.Shutdown()
		return
	}

	if pair.Server == nil {
		// Handler fully answered the session itself (e.g. status mode).
		sup.LogPlayerDisconnect(pair.id)
		pair.Shutdown()
		return
	}

	pair.RunForwarding(sup)
}
