package codec

import "crypto/cipher"

// cfb8 implements AES/CFB8 as used by the Minecraft protocol: the
// same 16-byte value is used as both key and IV, and the cipher
// operates on a one-byte feedback shift register rather than a full
// block. crypto/cipher's built-in CFB mode feeds back whole blocks, so
// there is no stdlib or ecosystem type for this; the scheme is
// reimplemented directly against cipher.Block (see DESIGN.md).
type cfb8 struct {
	block     cipher.Block
	shiftReg  []byte
	decrypt   bool
	scratch   []byte
}

func newCFB8(block cipher.Block, iv []byte, decrypt bool) cipher.Stream {
	sr := make([]byte, len(iv))
	copy(sr, iv)
	return &cfb8{
		block:    block,
		shiftReg: sr,
		decrypt:  decrypt,
		scratch:  make([]byte, block.BlockSize()),
	}
}

// NewCFB8Encrypter returns a cipher.Stream that encrypts successive
// bytes using CFB8 over block, starting from iv.
func NewCFB8Encrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, false)
}

// NewCFB8Decrypter returns a cipher.Stream that decrypts successive
// bytes using CFB8 over block, starting from iv.
func NewCFB8Decrypter(block cipher.Block, iv []byte) cipher.Stream {
	return newCFB8(block, iv, true)
}

func (x *cfb8) XORKeyStream(dst, src []byte) {
	for i := range src {
		x.block.Encrypt(x.scratch, x.shiftReg)

		var cipherByte, plainByte byte
		if x.decrypt {
			cipherByte = src[i]
			plainByte = cipherByte ^ x.scratch[0]
		} else {
			plainByte = src[i]
			cipherByte = plainByte ^ x.scratch[0]
		}

		// Shift the register left by one byte and append the
		// ciphertext byte, per the CFB8 feedback definition.
		copy(x.shiftReg, x.shiftReg[1:])
		x.shiftReg[len(x.shiftReg)-1] = cipherByte

		if x.decrypt {
			dst[i] = plainByte
		} else {
			dst[i] = cipherByte
		}
	}
}
