package proxy

import (
	"context"
	"fmt"

	"go.emberproxy.dev/ember/pkg/auth"
	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/filter"
	"go.emberproxy.dev/ember/pkg/packet"
)

// ClientOnlyHandler implements ModeClientOnly (spec.md §3, §4.M): the
// proxy acts as the authenticator, running the full encryption
// request/response dance with the client and verifying the resulting
// session against Mojang, then opens an unencrypted connection to the
// backend carrying the now-authoritative profile.
type ClientOnlyHandler struct{}

func (ClientOnlyHandler) Mediate(ctx context.Context, pair *ActorPair) error {
	loginStart, err := lastLoginStart(pair)
	if err != nil {
		return err
	}
	if pair.deps.KeyPair == nil {
		return fmt.Errorf("client-only: no session keypair configured")
	}

	compression := &packet.SetCompression{Threshold: defaultCompressionThreshold}
	if err := pair.Client.Write(packetValue(compression.ToPacket())); err != nil {
		return fmt.Errorf("client-only: sending set compression: %w", err)
	}
	pair.Client.EnableCompression(defaultCompressionThreshold)

	verifyToken, err := auth.NewVerifyToken()
	if err != nil {
		return err
	}
	encReq := &packet.EncryptionRequest{
		PublicKey:              pair.deps.KeyPair.PublicDER,
		VerifyToken:            verifyToken,
		RequiresAuthentication: true,
	}
	if err := pair.Client.Write(packetValue(encReq.ToPacket())); err != nil {
		return fmt.Errorf("client-only: sending encryption request: %w", err)
	}

	respValue := pair.Client.Read()
	if respValue.Kind != conn.KindPacket {
		return fmt.Errorf("client-only: expected encryption response packet")
	}
	encResp, err := packet.DecodeEncryptionResponse(respValue.Packet.Data)
	if err != nil {
		return fmt.Errorf("client-only: decoding encryption response: %w", err)
	}

	decryptedToken, err := pair.deps.KeyPair.Decrypt(encResp.VerifyToken)
	if err != nil || !auth.VerifyTokenMatches(verifyToken, decryptedToken) {
		return fmt.Errorf("client-only: verify token mismatch")
	}
	sharedSecret, err := pair.deps.KeyPair.Decrypt(encResp.SharedSecret)
	if err != nil {
		return fmt.Errorf("client-only: decrypting shared secret: %w", err)
	}

	if err := pair.Client.EnableEncryption(sharedSecret); err != nil {
		return fmt.Errorf("client-only: enabling client encryption: %w", err)
	}

	serverHash := auth.ServerHash("", sharedSecret, pair.deps.KeyPair.PublicDER)
	sessions := pair.deps.Sessions
	if sessions == nil {
		sessions = auth.NewSessionClient()
	}
	clientIP := ""
	if tcp := pair.Client.RemoteAddr(); tcp != nil {
		clientIP = tcp.String()
	}
	profile, err := sessions.HasJoined(ctx, loginStart.Username, serverHash, clientIP)
	if err != nil {
		return fmt.Errorf("client-only: querying session server: %w", err)
	}
	if profile == nil {
		return fmt.Errorf("client-only: %s failed Mojang session verification", loginStart.Username)
	}

	id, err := auth.ParseUndashedUUID(profile.ID)
	if err != nil {
		return fmt.Errorf("client-only: parsing profile id: %w", err)
	}
	if filter.CheckUUID(pair.cfg.Filters.Lists, id.String()) == filter.Deny {
		return fmt.Errorf("client-only: %s's account is banned", profile.Name)
	}

	addr, ok := pair.cfg.PrimaryAddress()
	if !ok {
		return fmt.Errorf("client-only: %s has no backend address", pair.configID)
	}
	if err := pair.DialServer(ctx, addr); err != nil {
		return err
	}
	if err := pair.Server.Write(packetValue(pair.Handshake.ToPacket())); err != nil {
		return fmt.Errorf("client-only: sending handshake to backend: %w", err)
	}
	rewritten := &packet.LoginStart{Username: profile.Name, UUID: &id}
	if err := pair.Server.Write(packetValue(rewritten.ToPacket(true))); err != nil {
		return fmt.Errorf("client-only: sending login start to backend: %w", err)
	}
	if err := awaitBackendLoginSuccess(pair.Server); err != nil {
		return fmt.Errorf("client-only: %w", err)
	}

	success := &packet.LoginSuccess{UUID: id, Username: profile.Name}
	if err := pair.Client.Write(packetValue(success.ToPacket())); err != nil {
		return fmt.Errorf("client-only: sending login success: %w", err)
	}

	ack := pair.Client.Read()
	if ack.Kind != conn.KindPacket || ack.Packet.ID != packet.LoginAcknowledgedPacketID {
		return fmt.Errorf("client-only: expected login-acknowledged from client")
	}
	if err := pair.Server.Write(packetValue(ack.Packet)); err != nil {
		return fmt.Errorf("client-only: forwarding login-acknowledged to backend: %w", err)
	}
	return nil
}
