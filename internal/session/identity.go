package session

import (
	"encoding/hex"
	"sync"

	"keymaker/internal/crypto"
	"keymaker/internal/keymaker"
)

// NonceSize is the length of the per-import random nonce.
const NonceSize = 12

// Identity is an identity key held encrypted in memory.
//
// The key is encrypted under a keystream derived from the PIN and Nonce, and
// KeyHash authenticates the plaintext key so a wrong PIN is detected before
// anything is derived from it. An Identity is never modified after import;
// decrypt operations on it are serialized.
type Identity struct {
	Label   [keymaker.LabelLength]byte
	Nonce   [NonceSize]byte
	KeyHash [keymaker.HashLength]byte

	cipher       crypto.CipherKind
	keyEncrypted []byte

	mu        sync.Mutex
	destroyed bool
}

// LabelHex returns the label as lowercase hex, suitable for a prompt.
func (id *Identity) LabelHex() string {
	return hex.EncodeToString(id.Label[:])
}

// Cipher returns the cipher protecting the key.
func (id *Identity) Cipher() crypto.CipherKind {
	return id.cipher
}

// Destroy wipes the encrypted key and the authentication tag. The identity
// cannot be used afterwards. Safe to call more than once.
func (id *Identity) Destroy() {
	if id == nil {
		return
	}
	id.mu.Lock()
	defer id.mu.Unlock()

	crypto.SecureZeroMultiple(id.keyEncrypted, id.KeyHash[:], id.Nonce[:])
	id.keyEncrypted = nil
	id.destroyed = true
}
