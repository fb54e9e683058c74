package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// sealedPrefix marks values written by Sealed; they are bound to their
// storage key as GCM additional data. legacyPrefix values were sealed without
// additional data and still open. Values with neither prefix are plain JSON
// from before encryption was enabled and are returned unchanged.
var (
	sealedPrefix = []byte("enc:v2:")
	legacyPrefix = []byte("enc:v1:")
)

// Sealed encrypts every value with AES-256-GCM before it reaches the
// underlying KV. Stored values are text so they fit the local_storage column.
type Sealed struct {
	KV
	aead cipher.AEAD
}

// NewSealed wraps kv with the given 32-byte key.
func NewSealed(kv KV, key []byte) (*Sealed, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("storage encryption: key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("storage encryption: create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("storage encryption: create GCM: %w", err)
	}
	return &Sealed{KV: kv, aead: aead}, nil
}

// ParseKey decodes a 64-character hex key.
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("storage encryption key is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("storage encryption key must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := s.KV.Get(ctx, key)
	if err != nil || !ok {
		return raw, ok, err
	}
	var plain []byte
	switch {
	case bytes.HasPrefix(raw, sealedPrefix):
		plain, err = s.open(raw[len(sealedPrefix):], []byte(key))
	case bytes.HasPrefix(raw, legacyPrefix):
		plain, err = s.open(raw[len(legacyPrefix):], nil)
	default:
		return raw, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return plain, true, nil
}

func (s *Sealed) Set(ctx context.Context, key string, value []byte) error {
	sealed, err := s.seal(value, []byte(key))
	if err != nil {
		return err
	}
	return s.KV.Set(ctx, key, sealed)
}

func (s *Sealed) seal(plain, aad []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("storage encrypt: generate nonce: %w", err)
	}
	ct := s.aead.Seal(nonce, nonce, plain, aad)

	out := make([]byte, len(sealedPrefix)+base64.StdEncoding.EncodedLen(len(ct)))
	n := copy(out, sealedPrefix)
	base64.StdEncoding.Encode(out[n:], ct)
	return out, nil
}

func (s *Sealed) open(encoded, aad []byte) ([]byte, error) {
	data := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(data, encoded)
	if err != nil {
		return nil, fmt.Errorf("storage decrypt: base64 decode: %w", err)
	}
	data = data[:n]

	nonceSize := s.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("storage decrypt: ciphertext too short")
	}
	plain, err := s.aead.Open(nil, data[:nonceSize], data[nonceSize:], aad)
	if err != nil {
		return nil, fmt.Errorf("storage decrypt: %w", err)
	}
	return plain, nil
}
