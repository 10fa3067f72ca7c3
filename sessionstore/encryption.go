package sessionstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinSecretLength is the shortest accepted encryption secret.
	MinSecretLength = 32
	keySize         = 32
	hkdfInfo        = "go-auth-client session values v1"
)

// sealer encrypts stored values with AES-256-GCM. The slot (profile and key) is
// bound in as additional data so a value cannot be moved to another slot.
type sealer struct {
	aead cipher.AEAD
}

func newSealer(secret []byte) (*sealer, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("[sessionstore newSealer] secret must be at least %d bytes: %w", MinSecretLength, autherrors.ErrInvalidInput)
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &sealer{aead: aead}, nil
}

func (s *sealer) seal(profileID, key, plaintext string) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, []byte(plaintext), slot(profileID, key)), nil
}

func (s *sealer) open(profileID, key string, sealed []byte) (string, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return "", autherrors.ErrDecrypt
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], slot(profileID, key))
	if err != nil {
		return "", fmt.Errorf("%w: %v", autherrors.ErrDecrypt, err)
	}
	return string(plaintext), nil
}

func slot(profileID, key string) []byte {
	return []byte(profileID + "\x00" + key)
}
