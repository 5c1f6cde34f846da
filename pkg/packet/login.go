package packet

import (
	"bytes"

	"github.com/google/uuid"

	"go.emberproxy.dev/ember/pkg/codec"
	"go.emberproxy.dev/ember/pkg/varint"
)

// Packet ids for the login state the proxy must recognize.
const (
	LoginStartPacketID          int32 = 0x00
	EncryptionRequestPacketID   int32 = 0x01
	EncryptionResponsePacketID  int32 = 0x01
	LoginSuccessPacketID        int32 = 0x02
	SetCompressionPacketID      int32 = 0x03
	LoginAcknowledgedPacketID   int32 = 0x03
)

// LoginStart is the first login-phase packet sent by the client.
type LoginStart struct {
	Username string
	UUID     *uuid.UUID // nil on protocol versions that don't send one
}

// DecodeLoginStart parses a login-start packet body. hasUUID reflects
// whether the client's protocol version includes the UUID field
// (added in 1.19).
func DecodeLoginStart(data []byte, hasUUID bool) (*LoginStart, error) {
	r := bytes.NewReader(data)
	name, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	ls := &LoginStart{Username: name}
	if hasUUID && r.Len() > 0 {
		raw, err := ReadByteArrayFixed(r, 16)
		if err != nil {
			return nil, err
		}
		id, err := uuid.FromBytes(raw)
		if err != nil {
			return nil, codec.ErrInvalidFormat
		}
		ls.UUID = &id
	}
	return ls, nil
}

// ReadByteArrayFixed reads exactly n raw bytes (no length prefix).
func ReadByteArrayFixed(r *bytes.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Encode serializes the login-start packet.
func (l *LoginStart) Encode(hasUUID bool) []byte {
	buf := WriteString(nil, l.Username)
	if hasUUID {
		if l.UUID != nil {
			idBytes, _ := l.UUID.MarshalBinary()
			buf = append(buf, idBytes...)
		} else {
			buf = append(buf, make([]byte, 16)...)
		}
	}
	return buf
}

func (l *LoginStart) ToPacket(hasUUID bool) *codec.Packet {
	return &codec.Packet{ID: LoginStartPacketID, Data: l.Encode(hasUUID)}
}

// SetCompression announces the compression threshold to the peer.
type SetCompression struct {
	Threshold int32
}

func (s *SetCompression) ToPacket() *codec.Packet {
	return &codec.Packet{ID: SetCompressionPacketID, Data: varint.Append(nil, s.Threshold)}
}

func DecodeSetCompression(data []byte) (*SetCompression, error) {
	r := bytes.NewReader(data)
	threshold, err := varint.Read(r)
	if err != nil {
		return nil, err
	}
	return &SetCompression{Threshold: threshold}, nil
}

// Property is a login-success game profile property (e.g. "textures").
type Property struct {
	Name      string
	Value     string
	Signature string // optional
	Signed    bool
}

// LoginSuccess carries the authoritative UUID and profile for the
// client-only flow (spec.md §4.B step 9).
type LoginSuccess struct {
	UUID       uuid.UUID
	Username   string
	Properties []Property
}

func DecodeLoginSuccess(data []byte) (*LoginSuccess, error) {
	r := bytes.NewReader(data)
	idBytes, err := ReadByteArrayFixed(r, 16)
	if err != nil {
		return nil, err
	}
	id, err := uuid.FromBytes(idBytes)
	if err != nil {
		return nil, codec.ErrInvalidFormat
	}
	name, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	count, err := varint.Read(r)
	if err != nil {
		return nil, err
	}
	props := make([]Property, 0, count)
	for i := int32(0); i < count; i++ {
		n, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		v, err := ReadString(r)
		if err != nil {
			return nil, err
		}
		signed, err := ReadBool(r)
		if err != nil {
			return nil, err
		}
		var sig string
		if signed {
			sig, err = ReadString(r)
			if err != nil {
				return nil, err
			}
		}
		props = append(props, Property{Name: n, Value: v, Signature: sig, Signed: signed})
	}
	return &LoginSuccess{UUID: id, Username: name, Properties: props}, nil
}

func (l *LoginSuccess) Encode() []byte {
	idBytes, _ := l.UUID.MarshalBinary()
	buf := append([]byte(nil), idBytes...)
	buf = WriteString(buf, l.Username)
	buf = varint.Append(buf, int32(len(l.Properties)))
	for _, p := range l.Properties {
		buf = WriteString(buf, p.Name)
		buf = WriteString(buf, p.Value)
		buf = AppendBool(buf, p.Signed)
		if p.Signed {
			buf = WriteString(buf, p.Signature)
		}
	}
	return buf
}

func (l *LoginSuccess) ToPacket() *codec.Packet {
	return &codec.Packet{ID: LoginSuccessPacketID, Data: l.Encode()}
}
