package proxy

import (
	"context"
	"crypto/rand"
	"fmt"

	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/packet"
)

// ServerOnlyHandler implements ModeServerOnly, a supplemented feature
// for backends that require an encrypted transport but whose identity
// checks are handled upstream of this proxy (e.g. by a trusted-header
// forwarding scheme): the client leg stays unauthenticated exactly
// like ModeOffline, while the proxy itself completes the encryption
// handshake the backend initiates, generating its own shared secret
// rather than relaying one from a real player session (there is no
// client-provided secret to relay, since the client leg never
// negotiated encryption at all).
type ServerOnlyHandler struct{}

func (ServerOnlyHandler) Mediate(ctx context.Context, pair *ActorPair) error {
	loginStart, err := lastLoginStart(pair)
	if err != nil {
		return err
	}

	addr, ok := pair.cfg.PrimaryAddress()
	if !ok {
		return fmt.Errorf("server-only: %s has no backend address", pair.configID)
	}
	if err := pair.DialServer(ctx, addr); err != nil {
		return err
	}

	if err := pair.Server.Write(packetValue(pair.Handshake.ToPacket())); err != nil {
		return fmt.Errorf("server-only: sending handshake to backend: %w", err)
	}
	if err := pair.Server.Write(packetValue(loginStart.ToPacket(true))); err != nil {
		return fmt.Errorf("server-only: sending login start to backend: %w", err)
	}

	next := pair.Server.Read()
	if next.Kind != conn.KindPacket {
		return fmt.Errorf("server-only: backend closed before responding to login")
	}
	if next.Packet.ID != packet.EncryptionRequestPacketID {
		// Backend isn't online-mode; replay the packet toward the
		// client and let the session proceed unencrypted end to end.
		return pair.Client.Write(packetValue(next.Packet))
	}

	encReq, err := packet.DecodeEncryptionRequest(next.Packet.Data)
	if err != nil {
		return fmt.Errorf("server-only: decoding backend encryption request: %w", err)
	}

	sharedSecret := make([]byte, 16)
	if _, err := rand.Read(sharedSecret); err != nil {
		return fmt.Errorf("server-only: generating shared secret: %w", err)
	}

	encryptedSecret, encryptedToken, err := encryptForBackend(encReq, sharedSecret)
	if err != nil {
		return err
	}
	resp := &packet.EncryptionResponse{SharedSecret: encryptedSecret, VerifyToken: encryptedToken}
	if err := pair.Server.Write(packetValue(resp.ToPacket())); err != nil {
		return fmt.Errorf("server-only: sending encryption response to backend: %w", err)
	}
	if err := pair.Server.EnableEncryption(sharedSecret); err != nil {
		return fmt.Errorf("server-only: enabling backend encryption: %w", err)
	}
	return nil
}
