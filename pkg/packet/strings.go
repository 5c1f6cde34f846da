// Package packet implements the handful of handshake/login/status
// packet bodies the proxy needs to understand (spec.md §4.B); it does
// not attempt full protocol coverage, since in-game payload packets
// are replayed opaquely (spec.md §1 Non-goals).
package packet

import (
	"bytes"
	"unicode/utf8"

	"go.emberproxy.dev/ember/pkg/codec"
	"go.emberproxy.dev/ember/pkg/varint"
)

// maxStringBytes bounds a ProtocolString's encoded length: 32767
// characters times the worst-case 4 bytes/char for UTF-8.
const maxStringBytes = 32767 * 4

// ReadString reads a VarInt-length-prefixed UTF-8 string.
func ReadString(r *bytes.Reader) (string, error) {
	n, err := varint.Read(r)
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > maxStringBytes || int(n) > r.Len() {
		return "", codec.ErrInvalidFormat
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return "", err
	}
	if !utf8.Valid(buf) {
		return "", codec.ErrInvalidFormat
	}
	return string(buf), nil
}

// WriteString appends a VarInt-length-prefixed UTF-8 string to buf.
func WriteString(buf []byte, s string) []byte {
	buf = varint.Append(buf, int32(len(s)))
	return append(buf, s...)
}

// ReadUint16 reads a big-endian unsigned 16-bit integer (used for the
// handshake's server port).
func ReadUint16(r *bytes.Reader) (uint16, error) {
	hi, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	lo, err := r.ReadByte()
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// AppendUint16 appends a big-endian unsigned 16-bit integer to buf.
func AppendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

// ReadByteArray reads a VarInt-length-prefixed raw byte slice.
func ReadByteArray(r *bytes.Reader) ([]byte, error) {
	n, err := varint.Read(r)
	if err != nil {
		return nil, err
	}
	if n < 0 || int(n) > r.Len() {
		return nil, codec.ErrInvalidFormat
	}
	buf := make([]byte, n)
	if _, err := r.Read(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// AppendByteArray appends a VarInt-length-prefixed raw byte slice.
func AppendByteArray(buf, data []byte) []byte {
	buf = varint.Append(buf, int32(len(data)))
	return append(buf, data...)
}

// ReadBool reads a single boolean byte.
func ReadBool(r *bytes.Reader) (bool, error) {
	b, err := r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// AppendBool appends a single boolean byte.
func AppendBool(buf []byte, v bool) []byte {
	if v {
		return append(buf, 0x01)
	}
	return append(buf, 0x00)
}
