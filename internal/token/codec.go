package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"coupon-share-service/internal/apperr"

	"golang.org/x/crypto/hkdf"
)

const keyInfo = "coupon-share-service/token/v1"

// encoding is unpadded URL-safe Base64. Strict mode rejects tokens whose
// trailing padding bits were tampered with.
var encoding = base64.RawURLEncoding.Strict()

// Codec turns coupon codes into opaque URL-safe tokens and back.
// It is safe for concurrent use.
type Codec struct {
	aead cipher.AEAD
}

// NewCodec derives an AES-256-GCM key from the shared secret.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Codec{aead: gcm}, nil
}

// Encode encrypts code under a fresh random nonce. Two calls with the same
// code return different tokens; both decode to code.
func (c *Codec) Encode(code string) (string, error) {
	if code == "" {
		return "", apperr.InvalidMetadata("coupon code is required")
	}

	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(code), nil)
	return encoding.EncodeToString(sealed), nil
}

// Decode reverses Encode. Any token that was not produced by Encode under
// the same secret fails with apperr.ErrInvalidToken.
func (c *Codec) Decode(token string) (string, error) {
	raw, err := encoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return "", apperr.InvalidToken("malformed token", err)
	}

	nonceSize := c.aead.NonceSize()
	if len(raw) <= nonceSize {
		return "", apperr.InvalidToken("token too short", nil)
	}

	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", apperr.InvalidToken("token authentication failed", err)
	}
	if len(plaintext) == 0 || !utf8.Valid(plaintext) {
		return "", apperr.InvalidToken("token does not carry a coupon code", nil)
	}

	return string(plaintext), nil
}
