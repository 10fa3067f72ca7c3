// Package random produces the unguessable strings used for anti-forgery state and nonces.
package random

import (
	"crypto/rand"
	"fmt"
	"io"

	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
)

// Alphabet is the 62 symbol alphanumeric alphabet tokens are drawn from.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxUnbiased is the largest multiple of len(Alphabet) that fits in a byte.
// Bytes at or above it are rejected so every symbol is equally likely.
const maxUnbiased = 256 - (256 % len(Alphabet))

// Generator draws alphanumeric strings from a cryptographically secure source.
type Generator struct {
	source io.Reader
}

// New returns a Generator backed by crypto/rand.
func New() *Generator {
	return &Generator{source: rand.Reader}
}

// NewWithSource returns a Generator reading from source. Intended for tests that
// need to simulate an unavailable random source.
func NewWithSource(source io.Reader) *Generator {
	return &Generator{source: source}
}

// String returns length characters drawn uniformly from Alphabet.
func (g *Generator) String(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("[random String] length must be positive: %w", autherrors.ErrInvalidInput)
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length+length/4+8)
	for len(out) < length {
		if _, err := io.ReadFull(g.source, buf); err != nil {
			return "", fmt.Errorf("[random String] %w: %v", autherrors.ErrRandomUnavailable, err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// String draws from the default generator.
func String(length int) (string, error) {
	return New().String(length)
}
