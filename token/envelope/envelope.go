// Package envelope seals opaque token strings with AES-256-GCM.
//
// A sealed value has the form hex(nonce):hex(ciphertext):hex(tag). It can only be
// opened with the key that sealed it and only while the tag matches, so any edit to
// a cookie-held envelope is detected before its plaintext is trusted.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
)

const (
	KeySize   = 32 // AES-256
	NonceSize = 12
	TagSize   = 16

	separator = ":"
)

// ParseKey decodes a hex encoded AES-256 key.
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "encryption key is not hex")
	}
	if len(key) != KeySize {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Seal encrypts plaintext under key with a fresh random nonce.
func Seal(plaintext string, key []byte) (string, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return strings.Join([]string{
		hex.EncodeToString(nonce),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, separator), nil
}

// Open reverses Seal. It returns ErrMalformedEnvelope for anything that is not
// three hex fields of the right sizes and ErrAuthenticationFailed when the tag
// does not verify.
func Open(envelope string, key []byte) (string, error) {
	fields := strings.Split(envelope, separator)
	if len(fields) != 3 {
		return "", apperrors.Wrapf(apperrors.ErrMalformedEnvelope, "expected 3 fields, got %d", len(fields))
	}

	nonce, err := hex.DecodeString(fields[0])
	if err != nil || len(nonce) != NonceSize {
		return "", apperrors.Wrapf(apperrors.ErrMalformedEnvelope, "bad nonce")
	}
	ciphertext, err := hex.DecodeString(fields[1])
	if err != nil {
		return "", apperrors.Wrapf(apperrors.ErrMalformedEnvelope, "bad ciphertext")
	}
	tag, err := hex.DecodeString(fields[2])
	if err != nil || len(tag) != TagSize {
		return "", apperrors.Wrapf(apperrors.ErrMalformedEnvelope, "bad tag")
	}

	aead, err := newAEAD(key)
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, append(ciphertext, tag...), nil)
	if err != nil {
		return "", apperrors.ErrAuthenticationFailed
	}
	return string(plaintext), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "encryption key must be %d bytes", KeySize)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInvalidConfig, "aes.NewCipher: %v", err)
	}
	return cipher.NewGCMWithNonceSize(block, NonceSize)
}

// KeyProvider supplies the raw encryption key.
type KeyProvider interface {
	GetEncryptionKey() ([]byte, error)
}

// Sealer binds Seal and Open to a configured key. The key is resolved on first
// use and reused afterwards; a failed resolution is returned on every call.
type Sealer struct {
	provider KeyProvider
	once     sync.Once
	key      []byte
	keyErr   error
}

func NewSealer(provider KeyProvider) *Sealer {
	return &Sealer{provider: provider}
}

func (s *Sealer) Seal(plaintext string) (string, error) {
	key, err := s.resolveKey()
	if err != nil {
		return "", err
	}
	return Seal(plaintext, key)
}

func (s *Sealer) Open(envelope string) (string, error) {
	key, err := s.resolveKey()
	if err != nil {
		return "", err
	}
	return Open(envelope, key)
}

func (s *Sealer) resolveKey() ([]byte, error) {
	s.once.Do(func() {
		s.key, s.keyErr = s.provider.GetEncryptionKey()
		if s.keyErr == nil && len(s.key) != KeySize {
			s.keyErr = apperrors.Wrapf(apperrors.ErrInvalidConfig, "encryption key must be %d bytes", KeySize)
		}
	})
	return s.key, s.keyErr
}
