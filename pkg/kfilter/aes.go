package kfilter

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// aesSalt is a fixed salt, matching original_source's AESBufferFilter
// (a constant int64 salt, not per-message) — key stretching alone
// supplies the work factor, so a shared salt across deployments
// reproduces the C++ filter's exact interop behavior rather than a
// more conservative per-install random salt.
var aesSalt = []byte{0x70, 0xe4, 0xed, 0x2d, 0x19, 0xa4, 0x47, 0xef}

const aesRounds = 10000

// AESFilter is a BufferChain BufferFilter performing AES-256-CBC
// encryption with a key and IV both derived from a password (see
// NewAESFilter), grounded on original_source's AESBufferFilter.
// Every encoded buffer is prefixed
// with its plaintext length so CBC's block padding can be undone on
// decode.
type AESFilter struct {
	key [32]byte
	iv  [16]byte
}

// aesFilterID is the 4-byte buffer-filter tag AESFilter prepends on
// encode and checks for on decode.
var aesFilterID = [4]byte{'A', 'E', 'S', '1'}

const aesFilterVersion = 1

// ID identifies this filter on the wire.
func (f *AESFilter) ID() [4]byte { return aesFilterID }

// Version reports this filter's wire encoding version.
func (f *AESFilter) Version() uint32 { return aesFilterVersion }

// NewAESFilter derives a 256-bit key and IV from password the same way
// original_source's generate_key does: PBKDF2-HMAC-SHA256 over a fixed
// salt for 10000 rounds, producing 48 bytes split into a 32-byte key
// and 16-byte IV.
func NewAESFilter(password string) *AESFilter {
	derived := pbkdf2.Key([]byte(password), aesSalt, aesRounds, 48, sha256.New)
	f := &AESFilter{}
	copy(f.key[:], derived[:32])
	copy(f.iv[:], derived[32:48])
	return f
}

// Encode PKCS#7-pads buf to the AES block size and encrypts it with
// AES-256-CBC, prefixing the result with the original plaintext length
// so Decode can strip padding exactly.
func (f *AESFilter) Encode(buf []byte) ([]byte, error) {
	block, err := aes.NewCipher(f.key[:])
	if err != nil {
		return nil, fmt.Errorf("kfilter: aes cipher: %w", err)
	}

	padded := pkcs7Pad(buf, block.BlockSize())
	out := make([]byte, 4+len(padded))
	binary.BigEndian.PutUint32(out[:4], uint32(len(buf)))

	cbc := cipher.NewCBCEncrypter(block, f.iv[:])
	cbc.CryptBlocks(out[4:], padded)
	return out, nil
}

// Decode reverses Encode.
func (f *AESFilter) Decode(buf []byte) ([]byte, error) {
	if len(buf) < 4 {
		return nil, fmt.Errorf("kfilter: aes ciphertext too short")
	}
	plainLen := int(binary.BigEndian.Uint32(buf[:4]))
	cipherText := buf[4:]

	block, err := aes.NewCipher(f.key[:])
	if err != nil {
		return nil, fmt.Errorf("kfilter: aes cipher: %w", err)
	}
	if len(cipherText)%block.BlockSize() != 0 {
		return nil, fmt.Errorf("kfilter: aes ciphertext not block-aligned")
	}

	out := make([]byte, len(cipherText))
	cbc := cipher.NewCBCDecrypter(block, f.iv[:])
	cbc.CryptBlocks(out, cipherText)

	if plainLen > len(out) {
		return nil, fmt.Errorf("kfilter: aes decoded length exceeds buffer")
	}
	return out[:plainLen], nil
}

func pkcs7Pad(buf []byte, blockSize int) []byte {
	padLen := blockSize - len(buf)%blockSize
	out := make([]byte, len(buf)+padLen)
	copy(out, buf)
	for i := len(buf); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}
