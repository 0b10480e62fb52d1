// Package secrets seals social OAuth tokens at rest. Account rows hold the
// sealed form; the key never leaves configuration.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

const keySalt = "showrunner_oauth_tokens"

// Sealer encrypts and decrypts token strings with AES-GCM using a key
// derived from the configured token key.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer derives the sealing key from the configured secret. An empty
// secret is a configuration error.
func NewSealer(secret string) (*Sealer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("secrets: token key required")
	}
	derived := sha256.Sum256([]byte(keySalt + secret))
	block, err := aes.NewCipher(derived[:])
	if err != nil {
		return nil, fmt.Errorf("secrets: build cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secrets: build gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts a token. Empty tokens stay empty so optional columns stay
// optional.
func (s *Sealer) Seal(plain string) (string, error) {
	if s == nil || s.aead == nil {
		return "", errors.New("secrets: sealer not initialized")
	}
	if plain == "" {
		return "", nil
	}
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("secrets: generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open decrypts a sealed token. Empty input stays empty. A token sealed
// under a different key fails rather than yielding garbage.
func (s *Sealer) Open(sealed string) (string, error) {
	if s == nil || s.aead == nil {
		return "", errors.New("secrets: sealer not initialized")
	}
	if sealed == "" {
		return "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("secrets: decode token: %w", err)
	}
	nonceSize := s.aead.NonceSize()
	if len(raw) <= nonceSize {
		return "", errors.New("secrets: sealed token too short")
	}
	plain, err := s.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("secrets: decrypt token (was the token key changed?): %w", err)
	}
	return string(plain), nil
}
