// Package conn implements the per-socket Connection abstraction of
// spec.md §4.C: one TCP half-pair exposing packet-or-raw reads and
// writes, with one-way encryption/compression switches and a raw-mode
// flip for zero-copy handoff.
package conn

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"go.emberproxy.dev/ember/pkg/codec"
)

// ErrClosed is returned by Write after the connection has closed.
var ErrClosed = errors.New("conn: connection is closed")

// Kind tags the variant of a ReadValue/WriteValue (spec.md §4.C).
type Kind int

const (
	KindPacket Kind = iota
	KindRaw
	KindNothing
	KindEOF
)

// Value is the tagged union read() returns and write() accepts.
type Value struct {
	Kind   Kind
	Packet *codec.Packet
	Raw    []byte
}

// PacketValue wraps a decoded packet.
func PacketValue(p *codec.Packet) Value { return Value{Kind: KindPacket, Packet: p} }

// RawValue wraps a raw byte slice.
func RawValue(b []byte) Value { return Value{Kind: KindRaw, Raw: b} }

// Mode selects whether Connection speaks framed packets or raw bytes.
type Mode int32

const (
	ModeProtocol Mode = iota
	ModeRaw
)

const rawReadBufferSize = 16 * 1024

// Connection owns one TCP socket half-pair plus the codec state
// layered on top of it.
type Connection struct {
	ID uuid.UUID

	c        net.Conn
	readBuf  *bufio.Reader
	writeBuf *bufio.Writer
	decoder  *codec.Decoder
	encoder  *codec.Encoder

	mode   atomic.Int32
	closed atomic.Bool
	once   sync.Once

	mu sync.Mutex // guards writeBuf flush ordering
}

// New wraps c, ready to read/write framed packets.
func New(c net.Conn) *Connection {
	rb := bufio.NewReader(c)
	wb := bufio.NewWriter(c)
	conn := &Connection{
		ID:       uuid.New(),
		c:        c,
		readBuf:  rb,
		writeBuf: wb,
		decoder:  codec.NewDecoder(rb),
		encoder:  codec.NewEncoder(wb),
	}
	return conn
}

// Mode reports the current read/write mode.
func (c *Connection) Mode() Mode {
	return Mode(c.mode.Load())
}

// EnableRawMode flips the connection to byte-pumping mode; it still
// honors any active compression/encryption (spec.md §4.C).
func (c *Connection) EnableRawMode() {
	c.mode.Store(int32(ModeRaw))
}

// EnableCompression is a one-way switch (spec.md §4.A).
func (c *Connection) EnableCompression(threshold int) {
	c.decoder.EnableCompression(threshold)
	c.encoder.EnableCompression(threshold, -1)
}

// EnableEncryption is a one-way switch; once enabled it is never
// disabled for the life of the connection (spec.md §4.A).
func (c *Connection) EnableEncryption(sharedSecret []byte) error {
	decryptReader, err := codec.NewDecryptReader(c.readBuf, sharedSecret)
	if err != nil {
		return err
	}
	encryptWriter, err := codec.NewEncryptWriter(c.writeBuf, sharedSecret)
	if err != nil {
		return err
	}
	c.decoder.SetReader(decryptReader)
	c.encoder.SetWriter(encryptWriter)
	return nil
}

// Read returns the next packet or raw chunk, depending on Mode.
// Socket EOF or an unrecoverable error yields {Kind: KindEOF} and
// marks the connection closed, rather than propagating the error —
// callers treat EOF as terminal, not retried (spec.md §4.A, §4.C).
func (c *Connection) Read() Value {
	if c.Closed() {
		return Value{Kind: KindEOF}
	}
	if c.Mode() == ModeRaw {
		buf := make([]byte, rawReadBufferSize)
		n, err := c.readBuf.Read(buf)
		if err != nil {
			c.closeOnErr(err)
			return Value{Kind: KindEOF}
		}
		if n == 0 {
			return Value{Kind: KindNothing}
		}
		return RawValue(buf[:n])
	}

	p, err := c.decoder.ReadPacket()
	if err != nil {
		c.closeOnErr(err)
		return Value{Kind: KindEOF}
	}
	return PacketValue(p)
}

// Write sends a packet or raw chunk and flushes.
func (c *Connection) Write(v Value) error {
	if c.Closed() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var err error
	switch v.Kind {
	case KindPacket:
		err = c.encoder.WritePacket(v.Packet)
	case KindRaw:
		_, err = c.writeBuf.Write(v.Raw)
	case KindNothing:
		return nil
	default:
		return nil
	}
	if err != nil {
		c.closeOnErr(err)
		return err
	}
	if err = c.writeBuf.Flush(); err != nil {
		c.closeOnErr(err)
		return err
	}
	return nil
}

// WriteBytes writes a raw id+data payload already framed by the
// caller (used to replay captured handshake/login packets verbatim).
func (c *Connection) WriteBytes(payload []byte) error {
	if c.Closed() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.encoder.Write(payload); err != nil {
		c.closeOnErr(err)
		return err
	}
	if err := c.writeBuf.Flush(); err != nil {
		c.closeOnErr(err)
		return err
	}
	return nil
}

func (c *Connection) closeOnErr(err error) {
	if err == nil || err == io.EOF {
		_ = c.Close()
		return
	}
	_ = c.Close()
	zap.L().Debug("connection closed on error", zap.Error(err), zap.Stringer("session", c.ID))
}

// Closed reports whether the connection has been closed.
func (c *Connection) Closed() bool {
	return c.closed.Load()
}

// Close is idempotent; after it returns, Read always yields KindEOF.
func (c *Connection) Close() (err error) {
	c.once.Do(func() {
		c.closed.Store(true)
		err = c.c.Close()
	})
	return err
}

// RemoteAddr returns the peer address of the underlying socket.
func (c *Connection) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}

// Raw exposes the underlying net.Conn, used by the zero-copy forwarder
// once both sides are raw and no further protocol work remains
// (spec.md §4.K). If the wrapped conn was itself wrapped for a
// buffered peek (e.g. the gateway's PROXY-protocol/legacy-ping
// handoff), it is unwrapped down to the real socket so splice can
// engage; DrainBuffered must be called first so bytes already sitting
// in any intervening bufio.Reader aren't silently skipped.
func (c *Connection) Raw() net.Conn {
	raw := c.c
	for {
		u, ok := raw.(interface{ Unwrap() net.Conn })
		if !ok {
			return raw
		}
		raw = u.Unwrap()
	}
}

// DrainBuffered returns and discards any bytes the packet decoder's
// reader has already pulled from the socket but not yet consumed —
// pipelined client bytes that arrived before the raw-mode flip
// (spec.md §4.K scenario S3). Must be called after EnableRawMode and
// before the peer starts copying from Raw(), or those bytes are lost.
func (c *Connection) DrainBuffered() []byte {
	n := c.readBuf.Buffered()
	if n == 0 {
		return nil
	}
	b, _ := c.readBuf.Peek(n)
	out := make([]byte, len(b))
	copy(out, b)
	_, _ = c.readBuf.Discard(len(b))
	return out
}
