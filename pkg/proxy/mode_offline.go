package proxy

import (
	"context"
	"fmt"

	"go.emberproxy.dev/ember/pkg/auth"
	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/packet"
)

// OfflineHandler implements ModeOffline (spec.md §3): the proxy
// terminates login itself without contacting Mojang, assigning the
// player vanilla's deterministic offline UUID, then opens an
// unencrypted connection to the backend and replays a rewritten
// login-start carrying that UUID.
type OfflineHandler struct{}

func (OfflineHandler) Mediate(ctx context.Context, pair *ActorPair) error {
	loginStart, err := lastLoginStart(pair)
	if err != nil {
		return err
	}

	offlineID := auth.OfflineUUID(loginStart.Username)

	addr, ok := pair.cfg.PrimaryAddress()
	if !ok {
		return fmt.Errorf("offline: %s has no backend address", pair.configID)
	}
	if err := pair.DialServer(ctx, addr); err != nil {
		return err
	}

	hsPacket := pair.Handshake.ToPacket()
	if err := pair.Server.Write(packetValue(hsPacket)); err != nil {
		return fmt.Errorf("offline: sending handshake to backend: %w", err)
	}
	rewritten := &packet.LoginStart{Username: loginStart.Username, UUID: &offlineID}
	if err := pair.Server.Write(packetValue(rewritten.ToPacket(true))); err != nil {
		return fmt.Errorf("offline: sending login start to backend: %w", err)
	}

	// Relay the backend's own compression + login-success to the
	// client instead of fabricating a second login-success: the
	// backend already knows the rewritten offline UUID and username,
	// so its answer is authoritative (spec.md §4.B, offline mode).
	for {
		v := pair.Server.Read()
		if v.Kind != conn.KindPacket {
			return fmt.Errorf("offline: backend closed before completing login")
		}
		switch v.Packet.ID {
		case packet.SetCompressionPacketID:
			sc, err := packet.DecodeSetCompression(v.Packet.Data)
			if err != nil {
				return fmt.Errorf("offline: decoding backend set-compression: %w", err)
			}
			pair.Server.EnableCompression(int(sc.Threshold))
			if err := pair.Client.Write(packetValue(v.Packet)); err != nil {
				return fmt.Errorf("offline: forwarding set-compression to client: %w", err)
			}
			pair.Client.EnableCompression(int(sc.Threshold))
		case packet.LoginSuccessPacketID:
			if err := pair.Client.Write(packetValue(v.Packet)); err != nil {
				return fmt.Errorf("offline: forwarding login success to client: %w", err)
			}
			return nil
		default:
			return fmt.Errorf("offline: unexpected backend packet 0x%02x during login", v.Packet.ID)
		}
	}
}
