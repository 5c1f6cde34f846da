package packet

import (
	"bytes"
	"strings"

	"go.emberproxy.dev/ember/pkg/codec"
	"go.emberproxy.dev/ember/pkg/varint"
)

// NextState values carried by the handshake packet.
const (
	NextStateStatus int32 = 1
	NextStateLogin  int32 = 2
)

// Separator marks the annotation style found trailing a handshake's
// server_address field (spec.md §4.B).
type Separator string

const (
	SepNone   Separator = ""
	SepForge  Separator = "\x00"
	SepRealIP Separator = "///"
)

// Handshake is the first packet (id 0x00) sent by any client.
type Handshake struct {
	ProtocolVersion int32
	ServerAddress   string // raw, possibly annotated
	ServerPort      uint16
	NextState       int32
}

// PacketID for the handshake.
const HandshakePacketID int32 = 0x00

// DecodeHandshake parses a handshake packet body.
func DecodeHandshake(data []byte) (*Handshake, error) {
	r := bytes.NewReader(data)
	protocolVersion, err := varint.Read(r)
	if err != nil {
		return nil, err
	}
	addr, err := ReadString(r)
	if err != nil {
		return nil, err
	}
	port, err := ReadUint16(r)
	if err != nil {
		return nil, err
	}
	nextState, err := varint.Read(r)
	if err != nil {
		return nil, err
	}
	return &Handshake{
		ProtocolVersion: protocolVersion,
		ServerAddress:   addr,
		ServerPort:      port,
		NextState:       nextState,
	}, nil
}

// Encode serializes the handshake back into a packet body.
func (h *Handshake) Encode() []byte {
	buf := varint.Append(nil, h.ProtocolVersion)
	buf = WriteString(buf, h.ServerAddress)
	buf = AppendUint16(buf, h.ServerPort)
	buf = varint.Append(buf, h.NextState)
	return buf
}

// ToPacket wraps the handshake as a codec.Packet.
func (h *Handshake) ToPacket() *codec.Packet {
	return &codec.Packet{ID: HandshakePacketID, Data: h.Encode()}
}

// ParsedAddress splits server_address into its leading domain, the
// annotation separator found (if any), and the raw suffix following
// it, preserving the suffix bit-exact for round-tripping (spec.md §4.B,
// §8 property 5).
func (h *Handshake) ParsedAddress() (domain string, sep Separator, suffix string) {
	if idx := strings.IndexByte(h.ServerAddress, 0); idx >= 0 {
		return h.ServerAddress[:idx], SepForge, h.ServerAddress[idx+1:]
	}
	if idx := strings.Index(h.ServerAddress, string(SepRealIP)); idx >= 0 {
		return h.ServerAddress[:idx], SepRealIP, h.ServerAddress[idx+len(SepRealIP):]
	}
	return h.ServerAddress, SepNone, ""
}

// WithRewrittenDomain returns a copy of the handshake with only the
// leading domain replaced; any Forge/real-IP annotation suffix is
// preserved verbatim.
func (h *Handshake) WithRewrittenDomain(newDomain string) Handshake {
	_, sep, suffix := h.ParsedAddress()
	rewritten := *h
	rewritten.ServerAddress = newDomain + string(sep) + suffix
	return rewritten
}

// RealIPMetadata, when sep == SepRealIP, parses the "ip:port///unix_ts"
// suffix format (spec.md §4.B).
func RealIPMetadata(suffix string) (addr string, unixTS string, ok bool) {
	parts := strings.SplitN(suffix, string(SepRealIP), 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
