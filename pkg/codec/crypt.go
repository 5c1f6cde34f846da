package codec

import (
	"crypto/aes"
	"crypto/cipher"
	"io"
)

// byteReader is the minimal surface the decoder's length-VarInt reader
// needs: a plain Read for packet bodies and a ReadByte so each byte of
// an active cipher stream is decrypted the instant it's consumed
// (spec.md §4.A).
type byteReader interface {
	io.Reader
	io.ByteReader
}

// DecryptReader decrypts every byte read from an underlying
// byteReader using AES/CFB8 with key=iv=secret, as required by the
// Minecraft protocol (spec.md §4.A, §4.M).
type DecryptReader struct {
	src    byteReader
	stream cipher.Stream
}

// NewDecryptReader builds a DecryptReader over src using secret as
// both the AES key and the CFB8 IV. secret must be 16 bytes.
func NewDecryptReader(src byteReader, secret []byte) (*DecryptReader, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return &DecryptReader{src: src, stream: NewCFB8Decrypter(block, secret)}, nil
}

// ReadByte decrypts and returns exactly one byte.
func (d *DecryptReader) ReadByte() (byte, error) {
	b, err := d.src.ReadByte()
	if err != nil {
		return 0, err
	}
	var out [1]byte
	d.stream.XORKeyStream(out[:], []byte{b})
	return out[0], nil
}

// Read decrypts len(p) bytes, one at a time, preserving strict byte
// ordering through the stream cipher.
func (d *DecryptReader) Read(p []byte) (int, error) {
	for i := range p {
		b, err := d.ReadByte()
		if err != nil {
			return i, err
		}
		p[i] = b
	}
	return len(p), nil
}

// EncryptWriter encrypts every byte written to an underlying
// io.Writer using AES/CFB8 with key=iv=secret.
type EncryptWriter struct {
	dst    io.Writer
	stream cipher.Stream
}

// NewEncryptWriter builds an EncryptWriter over dst using secret as
// both the AES key and the CFB8 IV. secret must be 16 bytes.
func NewEncryptWriter(dst io.Writer, secret []byte) (*EncryptWriter, error) {
	block, err := aes.NewCipher(secret)
	if err != nil {
		return nil, err
	}
	return &EncryptWriter{dst: dst, stream: NewCFB8Encrypter(block, secret)}, nil
}

// Write encrypts p byte-by-byte and writes the ciphertext through.
func (e *EncryptWriter) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	e.stream.XORKeyStream(out, p)
	n, err := e.dst.Write(out)
	if err != nil {
		// A partial ciphertext write would desynchronize the shift
		// register from what the peer expects; any error here is
		// terminal for the connection (spec.md §4.A failure modes).
		return n, err
	}
	return len(p), nil
}
