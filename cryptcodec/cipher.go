// Package cryptcodec provides the optional at-rest encryption and
// compression stages the mapper applies to a serialized event payload
// before it reaches the recorder: compress, then encrypt (decrypt, then
// decompress, on the way back).
package cryptcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

// ErrDataIntegrity is returned when decryption fails authentication (the
// GCM tag does not match). This is fatal for the affected record: the
// bytes cannot be trusted to be the plaintext that was encrypted.
var ErrDataIntegrity = errors.New("cryptcodec: data integrity check failed")

const nonceSize = 12 // 96-bit GCM nonce
const tagSize = 16   // GCM authentication tag

// Cipher encrypts and decrypts opaque byte payloads using an authenticated
// cipher. Implementations must be safe for concurrent use.
type Cipher interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(frame []byte) ([]byte, error)
}

// AESGCMCipher implements Cipher with AES-GCM. Accepts 16, 24, or 32-byte
// keys (AES-128/192/256). Each call to Encrypt draws a fresh random nonce
// from crypto/rand; the output frame is nonce || tag || ciphertext. The
// standard library's cipher.AEAD.Seal appends ciphertext || tag, so Encrypt
// and Decrypt relocate the tag explicitly to produce and consume this
// frame layout.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCMCipher constructs an AESGCMCipher from a raw key. The key must
// be exactly 16, 24, or 32 bytes.
func NewAESGCMCipher(key []byte) (*AESGCMCipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptcodec: invalid AES key: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cryptcodec: constructing GCM: %w", err)
	}
	return &AESGCMCipher{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random nonce, returning
// nonce || tag || ciphertext.
func (c *AESGCMCipher) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cryptcodec: generating nonce: %w", err)
	}
	// Seal produces ciphertext || tag; relocate the tag to the front of the
	// ciphertext so the frame on the wire is nonce || tag || ciphertext.
	sealed := c.aead.Seal(nil, nonce, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	frame := make([]byte, 0, nonceSize+tagSize+len(ciphertext))
	frame = append(frame, nonce...)
	frame = append(frame, tag...)
	frame = append(frame, ciphertext...)
	return frame, nil
}

// Decrypt opens a nonce || tag || ciphertext frame produced by Encrypt. A
// tag mismatch (tampering, wrong key, or a non-frame byte string) surfaces
// as ErrDataIntegrity.
func (c *AESGCMCipher) Decrypt(frame []byte) ([]byte, error) {
	if len(frame) < nonceSize+tagSize {
		return nil, fmt.Errorf("%w: frame shorter than nonce+tag", ErrDataIntegrity)
	}
	nonce := frame[:nonceSize]
	tag := frame[nonceSize : nonceSize+tagSize]
	ciphertext := frame[nonceSize+tagSize:]

	// Open expects Seal's layout (ciphertext || tag), so reassemble it.
	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDataIntegrity, err)
	}
	return plaintext, nil
}
