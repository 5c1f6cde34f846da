package codec

import (
	"bytes"
	"compress/zlib"
	"io"

	"go.emberproxy.dev/ember/pkg/varint"
)

// Encoder turns Packets into framed bytes, applying compression
// per spec.md §4.A. Encryption, when active, is applied by whatever
// io.Writer SetWriter installs, so the write-side transform order
// (serialize -> compress -> length-prefix -> encrypt) falls out of
// composition rather than being hand-sequenced here.
type Encoder struct {
	w         io.Writer
	threshold int // -1 when compression is disabled
	level     int
}

// NewEncoder returns an Encoder writing frames to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w, threshold: -1, level: zlib.DefaultCompression}
}

// SetWriter swaps the underlying writer, used to splice in an
// EncryptWriter once enable_encryption fires.
func (e *Encoder) SetWriter(w io.Writer) {
	e.w = w
}

// EnableCompression turns on the data_length prefix with the given
// threshold and zlib level.
func (e *Encoder) EnableCompression(threshold, level int) {
	e.threshold = threshold
	e.level = level
}

// WritePacket encodes and writes a single packet.
func (e *Encoder) WritePacket(p *Packet) error {
	body := varint.Append(nil, p.ID)
	body = append(body, p.Data...)
	return e.writeFrame(body)
}

// Write writes a pre-assembled id+data payload, used to replay
// captured packets verbatim (spec.md §4.G ServerResponse.read_packets).
func (e *Encoder) Write(payload []byte) error {
	return e.writeFrame(payload)
}

func (e *Encoder) writeFrame(body []byte) error {
	var frame []byte
	if e.threshold >= 0 {
		if len(body) >= e.threshold {
			var buf bytes.Buffer
			zw, err := zlib.NewWriterLevel(&buf, e.level)
			if err != nil {
				return err
			}
			if _, err := zw.Write(body); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			frame = varint.Append(nil, int32(len(body)))
			frame = append(frame, buf.Bytes()...)
		} else {
			frame = varint.Append(nil, 0)
			frame = append(frame, body...)
		}
	} else {
		frame = body
	}

	lengthPrefixed := varint.Append(nil, int32(len(frame)))
	lengthPrefixed = append(lengthPrefixed, frame...)
	_, err := e.w.Write(lengthPrefixed)
	return err
}
