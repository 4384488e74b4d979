package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"strings"

	"keymaker/internal/errors"

	"github.com/Picocrypt/serpent"
)

// CipherKind names the block cipher run in OFB mode to protect an identity
// key at rest in memory.
type CipherKind string

const (
	// CipherAES is AES-256 in OFB mode (default).
	CipherAES CipherKind = "aes"
	// CipherSerpent is Serpent-256 in OFB mode.
	CipherSerpent CipherKind = "serpent"
)

// Key and IV sizes shared by both ciphers.
const (
	CipherKeySize = 32
	CipherIVSize  = 16
)

// ParseCipherKind converts a cipher name to a CipherKind.
func ParseCipherKind(s string) (CipherKind, error) {
	switch k := CipherKind(strings.ToLower(strings.TrimSpace(s))); k {
	case CipherAES, CipherSerpent:
		return k, nil
	case "":
		return CipherAES, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownCipher, s)
	}
}

// KeySize returns the key length in bytes.
func (k CipherKind) KeySize() int { return CipherKeySize }

// IVSize returns the IV length in bytes (the block size).
func (k CipherKind) IVSize() int { return CipherIVSize }

// StreamCipher is an output-feedback keystream. Applying it twice with the
// same key and IV restores the input, so the same call encrypts and decrypts.
type StreamCipher struct {
	stream cipher.Stream
}

// NewStreamCipher creates an OFB keystream for kind keyed by (key, iv).
//
// CRITICAL: key and iv must be derived from a nonce that is never reused for a
// different identity key under the same PIN.
func NewStreamCipher(kind CipherKind, key, iv []byte) (*StreamCipher, error) {
	if len(key) != kind.KeySize() || len(iv) != kind.IVSize() {
		return nil, errors.NewCryptoError("cipher", fmt.Errorf("%w: key %d bytes, iv %d bytes", errors.ErrCipherFailure, len(key), len(iv)))
	}

	var block cipher.Block
	var err error
	switch kind {
	case CipherAES:
		block, err = aes.NewCipher(key)
	case CipherSerpent:
		block, err = serpent.NewCipher(key)
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownCipher, kind)
	}
	if err != nil {
		return nil, errors.NewCryptoError("cipher", err)
	}

	//nolint:staticcheck // OFB is required: the protocol depends on a self-inverse keystream.
	return &StreamCipher{stream: cipher.NewOFB(block, iv)}, nil
}

// Apply XORs the keystream into buf in place.
func (c *StreamCipher) Apply(buf []byte) {
	c.stream.XORKeyStream(buf, buf)
}

// Close drops the cipher state. The expanded key schedule lives inside the
// aes and serpent block ciphers, which expose no way to wipe it, so it stays
// on the heap until collected. Callers still wipe the key and IV they passed
// in.
func (c *StreamCipher) Close() {
	if c == nil {
		return
	}
	c.stream = nil
}
