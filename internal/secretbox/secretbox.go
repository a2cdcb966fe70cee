// Package secretbox seals provider credentials at rest with AES-256-GCM.
//
// Sealed values look like enc:v1:<base64url nonce>:<base64url ciphertext>.
// The prefix lets stored legacy plaintext be told apart without attempting
// a decrypt.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	Prefix            = "enc:v1:"
	nonceSizeGCM      = 12 // 96-bit GCM nonce
	requiredKeyLength = 32 // AES-256
	sep               = ":"
)

var (
	// ErrMissingKey is returned when sealing is attempted without key material.
	ErrMissingKey = errors.New("ENCRYPTION_KEY is not set; generate one with: openssl rand -hex 32")

	// ErrDecrypt covers malformed and tampered ciphertext alike.
	ErrDecrypt = errors.New("credential decryption failed")
)

var b64 = base64.RawURLEncoding

// Cipher is safe for concurrent use.
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// New builds a Cipher from a 64 character hex key. An empty key yields a
// Cipher that fails every Encrypt/Decrypt with ErrMissingKey, so a process
// without key material still boots and only credential operations fail.
func New(hexKey string) (*Cipher, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return &Cipher{rand: rand.Reader}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decode ENCRYPTION_KEY: %w", err)
	}
	if len(key) != requiredKeyLength {
		return nil, fmt.Errorf("ENCRYPTION_KEY must decode to %d bytes, got %d", requiredKeyLength, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// Ready reports whether key material is loaded.
func (c *Cipher) Ready() bool {
	return c != nil && c.aead != nil
}

// Encrypt seals plaintext with a fresh random nonce; equal inputs never
// produce equal outputs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if !c.Ready() {
		return "", ErrMissingKey
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := c.aead.Seal(nil, nonce, []byte(plaintext), nil)

	return Prefix + b64.EncodeToString(nonce) + sep + b64.EncodeToString(ct), nil
}

// Decrypt opens a value produced by Encrypt.
func (c *Cipher) Decrypt(value string) (string, error) {
	if !c.Ready() {
		return "", ErrMissingKey
	}

	nonce, ct, ok := split(value)
	if !ok {
		return "", fmt.Errorf("%w: malformed ciphertext", ErrDecrypt)
	}
	pt, err := c.aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	return string(pt), nil
}

// IsEncrypted is a structural check; it never touches key material.
func IsEncrypted(value string) bool {
	_, _, ok := split(value)
	return ok
}

func split(value string) (nonce, ct []byte, ok bool) {
	if !strings.HasPrefix(value, Prefix) {
		return nil, nil, false
	}
	parts := strings.Split(strings.TrimPrefix(value, Prefix), sep)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil, false
	}
	nonce, err := b64.DecodeString(parts[0])
	if err != nil || len(nonce) != nonceSizeGCM {
		return nil, nil, false
	}
	ct, err = b64.DecodeString(parts[1])
	// GCM output is at least one tag long.
	if err != nil || len(ct) < 16 {
		return nil, nil, false
	}
	return nonce, ct, true
}
