// Package legacy implements the pre-netty "legacy ping" sub-protocol
// recognized by any client older than 1.7 (spec.md §4.B).
package legacy

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf16"
)

// PingByte is the first byte of every legacy ping variant.
const PingByte = 0xFE

// HandshakeByte is the first byte of the legacy (pre-1.7) handshake.
// Nothing checks for it: the gateway only branches on PingByte, so a
// connection starting with this byte goes down the netty path.
const HandshakeByte = 0x02

// KickByte prefixes every legacy disconnect/kick response.
const KickByte = 0xFF

// Variant identifies which legacy ping sub-protocol a client used.
type Variant int

const (
	// VariantBeta is the oldest form: a single 0xFE byte, no follow-up.
	VariantBeta Variant = iota
	// Variant14 is "0xFE 0x01" with no plugin message payload.
	Variant14
	// Variant16 is "0xFE 0x01 0xFA" followed by a UTF-16BE plugin
	// message carrying protocol, hostname, and port.
	Variant16
)

// Ping is a parsed legacy ping request.
type Ping struct {
	Variant  Variant
	Protocol int32
	Hostname string
	Port     int32
}

var ErrMalformed = errors.New("legacy: malformed ping")

// Parse reads a legacy ping from r. The caller must already have
// consumed and confirmed the leading PingByte.
func Parse(r *bufio.Reader) (*Ping, error) {
	next, err := r.Peek(1)
	if err != nil || len(next) == 0 {
		// EOF right after 0xFE: Beta 1.8-1.3 client.
		return &Ping{Variant: VariantBeta}, nil
	}
	if next[0] != 0x01 {
		return &Ping{Variant: VariantBeta}, nil
	}
	_, _ = r.Discard(1) // consume 0x01

	marker, err := r.Peek(1)
	if err != nil || len(marker) == 0 || marker[0] != 0xFA {
		// 1.4-1.5 client: no plugin message follows.
		return &Ping{Variant: Variant14}, nil
	}
	_, _ = r.Discard(1) // consume 0xFA

	// UTF-16BE-prefixed channel name, always "MC|PingHost".
	channel, err := readUTF16String(r)
	if err != nil {
		return nil, err
	}
	if channel != "MC|PingHost" {
		return nil, ErrMalformed
	}

	var payloadLen uint16
	if err := binary.Read(r, binary.BigEndian, &payloadLen); err != nil {
		return nil, err
	}
	payload := make([]byte, payloadLen)
	if _, err := readFull(r, payload); err != nil {
		return nil, err
	}
	pr := bytes.NewReader(payload)

	protocolByte, err := pr.ReadByte()
	if err != nil {
		return nil, err
	}

	var hostLen uint16
	if err := binary.Read(pr, binary.BigEndian, &hostLen); err != nil {
		return nil, err
	}
	hostBuf := make([]byte, int(hostLen)*2)
	if _, err := pr.Read(hostBuf); err != nil {
		return nil, err
	}
	hostname := decodeUTF16BE(hostBuf)

	var port int32
	if err := binary.Read(pr, binary.BigEndian, &port); err != nil {
		return nil, err
	}

	return &Ping{
		Variant:  Variant16,
		Protocol: int32(protocolByte),
		Hostname: hostname,
		Port:     port,
	}, nil
}

// KickResponse builds the 0xFF kick packet payload for the given
// variant, per spec.md §4.B and §8 property 9.
func KickResponse(variant Variant, motd, versionName string, protocol, online, max int) []byte {
	var text string
	switch variant {
	case VariantBeta:
		text = fmt.Sprintf("%s§%d§%d", motd, online, max)
	default:
		text = fmt.Sprintf("§1\x00%d\x00%s\x00%s\x00%d\x00%d", protocol, versionName, motd, online, max)
	}
	encoded := encodeUTF16BE(text)

	var buf bytes.Buffer
	buf.WriteByte(KickByte)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len([]rune(text))))
	buf.Write(encoded)
	return buf.Bytes()
}

func readUTF16String(r *bufio.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, int(n)*2)
	if _, err := readFull(r, buf); err != nil {
		return "", err
	}
	return decodeUTF16BE(buf), nil
}

func decodeUTF16BE(b []byte) string {
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = binary.BigEndian.Uint16(b[i*2:])
	}
	return string(utf16.Decode(units))
}

func encodeUTF16BE(s string) []byte {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.BigEndian.PutUint16(buf[i*2:], u)
	}
	return buf
}

func readFull(r *bufio.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		nn, err := r.Read(buf[n:])
		n += nn
		if err != nil {
			return n, err
		}
	}
	return n, nil
}
