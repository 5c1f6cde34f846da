package proxy

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"fmt"

	"go.emberproxy.dev/ember/pkg/codec"
	"go.emberproxy.dev/ember/pkg/conn"
	"go.emberproxy.dev/ember/pkg/packet"
	"go.emberproxy.dev/ember/pkg/varint"
)

func packetValue(p *codec.Packet) conn.Value {
	return conn.PacketValue(p)
}

// defaultCompressionThreshold is the proxy's own chosen threshold when
// it terminates login itself (client-only mode, spec.md §4.B step 2);
// vanilla servers default to the same value.
const defaultCompressionThreshold = 256

// awaitBackendLoginSuccess reads the backend's login response — an
// optional set-compression followed by login-success — enabling
// compression on the server connection if the backend announced one,
// and discarding both packets rather than forwarding them: the caller
// has already sent (or is about to send) its own login-success to the
// client, so the backend's copy must never reach the client raw
// (spec.md §4.B step 8).
func awaitBackendLoginSuccess(server *conn.Connection) error {
	for {
		v := server.Read()
		if v.Kind != conn.KindPacket {
			return fmt.Errorf("backend closed before completing login")
		}
		switch v.Packet.ID {
		case packet.SetCompressionPacketID:
			sc, err := packet.DecodeSetCompression(v.Packet.Data)
			if err != nil {
				return fmt.Errorf("decoding backend set-compression: %w", err)
			}
			server.EnableCompression(int(sc.Threshold))
		case packet.LoginSuccessPacketID:
			return nil
		default:
			return fmt.Errorf("unexpected backend packet 0x%02x during login", v.Packet.ID)
		}
	}
}

// decodePending splits one of ActorPair.Pending's raw id+data payloads
// back into its packet id and body, mirroring how codec.Decoder frames
// a packet before compression/encryption are applied.
func decodePending(raw []byte) (id int32, data []byte, err error) {
	r := bytes.NewReader(raw)
	id, err = varint.Read(r)
	if err != nil {
		return 0, nil, err
	}
	data = raw[len(raw)-r.Len():]
	return id, data, nil
}

// lastLoginStart decodes the login-start packet the gateway buffered
// in pair.Pending (always the final entry for a login-state session),
// required by Handlers that need the username before replaying it.
func lastLoginStart(pair *ActorPair) (*packet.LoginStart, error) {
	if len(pair.Pending) == 0 {
		return nil, fmt.Errorf("no buffered login-start packet")
	}
	id, data, err := decodePending(pair.Pending[len(pair.Pending)-1])
	if err != nil {
		return nil, fmt.Errorf("decoding buffered login-start: %w", err)
	}
	if id != packet.LoginStartPacketID {
		return nil, fmt.Errorf("expected login-start packet, got id 0x%02x", id)
	}
	hasUUID := pair.Handshake.ProtocolVersion >= protocolWithLoginUUID
	return packet.DecodeLoginStart(data, hasUUID)
}

// protocolWithLoginUUID is the protocol version (1.19, 759) from which
// LoginStart carries an optional UUID field.
const protocolWithLoginUUID = 759

// encryptForBackend RSA-encrypts the shared secret and echoed verify
// token with a backend's EncryptionRequest public key, exactly as a
// vanilla client would when playing the client role (spec.md §4.M,
// ModeServerOnly).
func encryptForBackend(req *packet.EncryptionRequest, sharedSecret []byte) (encSecret, encToken []byte, err error) {
	pub, err := x509.ParsePKIXPublicKey(req.PublicKey)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing backend public key: %w", err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, nil, fmt.Errorf("backend public key is not RSA")
	}
	encSecret, err = rsa.EncryptPKCS1v15(rand.Reader, rsaPub, sharedSecret)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypting shared secret: %w", err)
	}
	encToken, err = rsa.EncryptPKCS1v15(rand.Reader, rsaPub, req.VerifyToken)
	if err != nil {
		return nil, nil, fmt.Errorf("encrypting verify token: %w", err)
	}
	return encSecret, encToken, nil
}
