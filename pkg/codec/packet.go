// Package codec implements the Minecraft Java Edition wire framing:
// VarInt length/id prefixes, zlib threshold compression, and CFB8
// stream encryption, layered in the fixed order required by the
// protocol (spec.md §4.A).
package codec

import "errors"

// MaxUncompressedSize is the cap on a decompressed packet body
// (spec.md §4.A): 8 MiB.
const MaxUncompressedSize = 8 * 1024 * 1024

// Packet is one decoded frame: an id and its raw body.
type Packet struct {
	ID   int32
	Data []byte
}

var (
	// ErrInvalidLength is returned for a length VarInt over 3 bytes, or
	// a declared payload exceeding the 2,097,151-byte wire cap.
	ErrInvalidLength = errors.New("codec: invalid packet length")
	// ErrCompression is returned when a decompressed payload's length
	// doesn't match the declared uncompressed length.
	ErrCompression = errors.New("codec: compression mismatch")
	// ErrInvalidFormat is returned for malformed protocol primitives,
	// e.g. non-UTF-8 where a ProtocolString is expected.
	ErrInvalidFormat = errors.New("codec: invalid format")
)
