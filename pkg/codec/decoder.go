package codec

import (
	"bytes"
	"compress/zlib"
	"io"

	"go.emberproxy.dev/ember/pkg/varint"
)

// Decoder turns a byte stream into framed Packets, applying
// decompression per spec.md §4.A. Decryption, when active, is applied
// by the underlying byteReader (see SetReader), never by the Decoder
// itself — this keeps the "never decompress before decrypting"
// ordering rule structurally enforced rather than merely documented.
type Decoder struct {
	r         byteReader
	threshold int // -1 when compression is disabled
}

// NewDecoder returns a Decoder reading frames from r.
func NewDecoder(r byteReader) *Decoder {
	return &Decoder{r: r, threshold: -1}
}

// SetReader swaps the underlying reader, used to splice in a
// DecryptReader once enable_encryption fires (spec.md §4.C).
func (d *Decoder) SetReader(r byteReader) {
	d.r = r
}

// EnableCompression turns on the data_length prefix handling with the
// given threshold. Compression, once enabled, is never disabled
// (mirrors encryption's one-way switch).
func (d *Decoder) EnableCompression(threshold int) {
	d.threshold = threshold
}

// CompressionEnabled reports whether EnableCompression has been called.
func (d *Decoder) CompressionEnabled() bool {
	return d.threshold >= 0
}

// ReadPacket reads and decodes exactly one frame.
func (d *Decoder) ReadPacket() (*Packet, error) {
	length, err := varint.ReadLimited(d.r, varint.MaxBytes)
	if err != nil {
		if err == varint.ErrTooLong {
			return nil, ErrInvalidLength
		}
		return nil, err
	}
	if length < 0 || length > varint.MaxValue {
		return nil, ErrInvalidLength
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return nil, err
	}

	if d.CompressionEnabled() {
		return decodeCompressed(body)
	}
	return decodeUncompressed(body)
}

func decodeUncompressed(body []byte) (*Packet, error) {
	br := bytes.NewReader(body)
	id, err := varint.Read(br)
	if err != nil {
		return nil, err
	}
	data := make([]byte, br.Len())
	_, _ = br.Read(data)
	return &Packet{ID: id, Data: data}, nil
}

func decodeCompressed(body []byte) (*Packet, error) {
	br := bytes.NewReader(body)
	dataLength, err := varint.Read(br)
	if err != nil {
		return nil, err
	}

	rest := make([]byte, br.Len())
	_, _ = br.Read(rest)

	if dataLength == 0 {
		// Declared uncompressed: rest is the raw id+data.
		return decodeUncompressed(rest)
	}

	if dataLength > MaxUncompressedSize {
		return nil, ErrInvalidLength
	}

	zr, err := zlib.NewReader(bytes.NewReader(rest))
	if err != nil {
		return nil, ErrCompression
	}
	defer zr.Close()

	decompressed := make([]byte, dataLength)
	if _, err := io.ReadFull(zr, decompressed); err != nil {
		return nil, ErrCompression
	}
	// Confirm there isn't trailing data beyond the declared length,
	// which would mean the declared length was a lie.
	var extra [1]byte
	if n, _ := zr.Read(extra[:]); n != 0 {
		return nil, ErrCompression
	}

	return decodeUncompressed(decompressed)
}
