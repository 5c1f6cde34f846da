package packet

import (
	"bytes"

	"go.emberproxy.dev/ember/pkg/codec"
)

// EncryptionRequest is sent by the proxy (acting as authenticator) in
// client-only mode (spec.md §4.B step 3, §4.M).
type EncryptionRequest struct {
	ServerID               string // always "" for this proxy
	PublicKey              []byte // DER SubjectPublicKeyInfo
	VerifyToken            []byte // 4 random bytes
	RequiresAuthentication bool
}

func (e *EncryptionRequest) Encode() []byte {
	buf := WriteString(nil, e.ServerID)
	buf = AppendByteArray(buf, e.PublicKey)
	buf = AppendByteArray(buf, e.VerifyToken)
	buf = AppendBool(buf, e.RequiresAuthentication)
	return buf
}

func (e *EncryptionRequest) ToPacket() *codec.Packet {
	return &codec.Packet{ID: EncryptionRequestPacketID, Data: e.Encode()}
}

// DecodeEncryptionRequest parses an encryption request the proxy
// receives while playing the client role toward a backend (spec.md
// §4.M, ModeServerOnly).
func DecodeEncryptionRequest(data []byte) (*EncryptionRequest, error) {
	r := bytes.NewReader(data)
	serverID, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	pubKey, err := ReadByteArray(r)
	if err != nil {
		return nil, err
	}
	token, err := ReadByteArray(r)
	if err != nil {
		return nil, err
	}
	return &EncryptionRequest{ServerID: serverID, PublicKey: pubKey, VerifyToken: token, RequiresAuthentication: true}, nil
}

func (e *EncryptionResponse) Encode() []byte {
	buf := AppendByteArray(nil, e.SharedSecret)
	buf = AppendByteArray(buf, e.VerifyToken)
	return buf
}

func (e *EncryptionResponse) ToPacket() *codec.Packet {
	return &codec.Packet{ID: EncryptionResponsePacketID, Data: e.Encode()}
}

// EncryptionResponse is the client's reply, both fields RSA-encrypted
// with the public key from EncryptionRequest.
type EncryptionResponse struct {
	SharedSecret []byte
	VerifyToken  []byte
}

func DecodeEncryptionResponse(data []byte) (*EncryptionResponse, error) {
	r := bytes.NewReader(data)
	secret, err := ReadByteArray(r)
	if err != nil {
		return nil, err
	}
	token, err := ReadByteArray(r)
	if err != nil {
		return nil, err
	}
	return &EncryptionResponse{SharedSecret: secret, VerifyToken: token}, nil
}

// StatusRequest (id 0x00 in status state) has no fields.
type StatusRequest struct{}

// StatusResponse carries the raw status JSON document.
type StatusResponse struct {
	JSON string
}

const (
	StatusRequestPacketID  int32 = 0x00
	StatusResponsePacketID int32 = 0x00
	StatusPingPacketID     int32 = 0x01
)

func (s *StatusResponse) Encode() []byte {
	return WriteString(nil, s.JSON)
}

func (s *StatusResponse) ToPacket() *codec.Packet {
	return &codec.Packet{ID: StatusResponsePacketID, Data: s.Encode()}
}

func DecodeStatusResponse(data []byte) (*StatusResponse, error) {
	r := bytes.NewReader(data)
	j, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	return &StatusResponse{JSON: j}, nil
}

// StatusPing/Pong carries an opaque 8-byte payload echoed verbatim.
type StatusPing struct {
	Payload int64
}

func DecodeStatusPing(data []byte) (*StatusPing, error) {
	if len(data) != 8 {
		return nil, codec.ErrInvalidFormat
	}
	var v int64
	for _, b := range data {
		v = v<<8 | int64(b)
	}
	return &StatusPing{Payload: v}, nil
}

func (s *StatusPing) Encode() []byte {
	buf := make([]byte, 8)
	v := uint64(s.Payload)
	for i := 7; i >= 0; i-- {
		buf[i] = byte(v)
		v >>= 8
	}
	return buf
}

func (s *StatusPing) ToPacket() *codec.Packet {
	return &codec.Packet{ID: StatusPingPacketID, Data: s.Encode()}
}
