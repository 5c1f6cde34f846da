package proxy

import (
	"context"
	"fmt"
	"time"

	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/gateway/statuscache"
	"go.emberproxy.dev/ember/pkg/motd"
	"go.emberproxy.dev/ember/pkg/packet"
)

// StatusHandler implements ModeStatus (spec.md §3, §4.J): the proxy
// answers the status ping itself, either by relaying a cached or
// freshly fetched backend response or, when the backend cannot be
// reached, a synthetic MOTDSet-themed document. It never dials a
// second connection for an actual login attempt.
type StatusHandler struct {
	Cache *statuscache.Cache
}

func (h *StatusHandler) Mediate(ctx context.Context, pair *ActorPair) error {
	addr, hasAddr := pair.cfg.PrimaryAddress()

	var json string
	var err error
	if hasAddr && h.Cache != nil {
		ttl := time.Duration(pair.cfg.Caches.StatusTTLSeconds) * time.Second
		key := statuscache.Key(addr, int(pair.Handshake.ProtocolVersion))
		json, err = h.Cache.Get(ctx, key, ttl, func(ctx context.Context) (string, error) {
			return fetchBackendStatus(ctx, pair, addr)
		})
	} else {
		err = fmt.Errorf("status: %s has no backend address", pair.configID)
	}

	if err != nil {
		json, err = motd.Render(pair.cfg.MOTDs, motd.StateUnreachable, int(pair.Handshake.ProtocolVersion))
		if err != nil {
			return err
		}
	}

	resp := &packet.StatusResponse{JSON: json}
	if err := pair.Client.Write(packetValue(resp.ToPacket())); err != nil {
		return fmt.Errorf("status: sending status response: %w", err)
	}

	pingValue := pair.Client.Read()
	if pingValue.Kind != conn.KindPacket {
		return nil // client disconnected without pinging; not an error
	}
	ping, err := packet.DecodeStatusPing(pingValue.Packet.Data)
	if err != nil {
		return nil
	}
	return pair.Client.Write(packetValue(ping.ToPacket()))
}

// fetchBackendStatus dials the backend just long enough to run the
// status handshake and capture its response JSON.
func fetchBackendStatus(ctx context.Context, pair *ActorPair, addr string) (string, error) {
	raw, err := pair.deps.Dial(ctx, addr)
	if err != nil {
		return "", fmt.Errorf("dialing backend for status: %w", err)
	}
	backend := conn.New(raw)
	defer backend.Close()

	if err := backend.Write(packetValue(pair.Handshake.ToPacket())); err != nil {
		return "", fmt.Errorf("sending handshake to backend: %w", err)
	}
	if err := backend.WriteBytes([]byte{0x00}); err != nil { // StatusRequest has no fields
		return "", fmt.Errorf("sending status request to backend: %w", err)
	}

	v := backend.Read()
	if v.Kind != conn.KindPacket {
		return "", fmt.Errorf("backend closed before status response")
	}
	resp, err := packet.DecodeStatusResponse(v.Packet.Data)
	if err != nil {
		return "", fmt.Errorf("decoding backend status response: %w", err)
	}
	return resp.JSON, nil
}
