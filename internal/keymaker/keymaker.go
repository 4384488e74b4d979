package keymaker

import (
	"fmt"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"
	"keymaker/internal/passgen"
)

// IdentityKey is the root secret of one identity. It must be closed when no
// longer needed.
type IdentityKey struct {
	buf *crypto.SecretBuffer
}

// NewIdentityKey takes ownership of buf.
func NewIdentityKey(buf *crypto.SecretBuffer) *IdentityKey {
	return &IdentityKey{buf: buf}
}

// Bytes returns the key material, or nil once closed.
func (k *IdentityKey) Bytes() []byte {
	if k == nil {
		return nil
	}
	return k.buf.Bytes()
}

// Len returns the key length in bytes.
func (k *IdentityKey) Len() int {
	if k == nil {
		return 0
	}
	return k.buf.Len()
}

// Close wipes the key. Safe to call more than once.
func (k *IdentityKey) Close() {
	if k == nil {
		return
	}
	k.buf.Close()
}

// KeyMaker derives identity keys and passwords for one profile.
// A KeyMaker holds no secrets and is safe for concurrent use.
type KeyMaker struct {
	profile  Profile
	backend  crypto.Backend
	charsets [][]byte
}

// New creates an engine for profile using backend. A nil backend selects the
// default one.
//
// Fails with a *errors.ConfigError if the profile version is not Version or
// the profile cannot produce any output.
func New(profile Profile, backend crypto.Backend) (*KeyMaker, error) {
	if profile.Version != Version {
		return nil, errors.NewConfigError("version",
			fmt.Errorf("%w: got %d, want %d", errors.ErrVersionMismatch, profile.Version, Version))
	}
	if profile.Crypto.IdentityKeyLength == 0 {
		return nil, errors.NewConfigError("crypto.identity_key_length", errors.ErrInvalidOutputLength)
	}
	if err := profile.Crypto.Scrypt.Validate(); err != nil {
		return nil, errors.NewConfigError("crypto.scrypt", err)
	}

	charsets := passgen.Charsets(profile.User.Password)
	if int(profile.User.Password.Length) < len(charsets) {
		return nil, errors.NewConfigError("user.password.length",
			fmt.Errorf("%w: length %d is shorter than %d charsets",
				errors.ErrInvalidCharsets, profile.User.Password.Length, len(charsets)))
	}

	if backend == nil {
		b, err := crypto.Lookup(crypto.DefaultBackend)
		if err != nil {
			return nil, errors.NewConfigError("backend", err)
		}
		backend = b
	}

	return &KeyMaker{profile: profile, backend: backend, charsets: charsets}, nil
}

// Profile returns the engine's profile.
func (km *KeyMaker) Profile() Profile {
	return km.profile
}

// CheckPIN rejects a PIN shorter than the profile's PIN length.
// The error never includes the PIN.
func (km *KeyMaker) CheckPIN(pin []byte) error {
	if minLen := int(km.profile.User.PINLength); len(pin) < minLen {
		return errors.NewValidationError("pin", fmt.Sprintf("must be at least %d characters", minLen))
	}
	return nil
}

// Derive runs the KDF with the profile's cost parameters.
func (km *KeyMaker) Derive(input, salt, out []byte) error {
	return km.backend.Derive(km.profile.Crypto.Scrypt, input, salt, out)
}

// Hash returns the 64-byte hash of input under salt, computed with the fixed
// hash parameters.
func (km *KeyMaker) Hash(input, salt []byte) ([HashLength]byte, error) {
	var out [HashLength]byte
	err := km.HashTo(input, salt, out[:])
	return out, err
}

// HashTo fills out with the hash of input under salt.
func (km *KeyMaker) HashTo(input, salt, out []byte) error {
	return km.backend.Derive(hashParams, input, salt, out)
}

// DeriveIdentity derives the identity key for (passphrase, name, generation)
// salted with pin.
func (km *KeyMaker) DeriveIdentity(passphrase, name []byte, generation byte, pin []byte) (*IdentityKey, error) {
	passphraseHash, err := km.Hash(passphrase, pin)
	defer crypto.SecureZero(passphraseHash[:])
	if err != nil {
		return nil, err
	}
	nameHash, err := km.Hash(name, pin)
	defer crypto.SecureZero(nameHash[:])
	if err != nil {
		return nil, err
	}
	return km.DeriveIdentityFromRaw(&passphraseHash, &nameHash, generation, pin)
}

// DeriveIdentityFromRaw derives the identity key from already hashed
// passphrase and name.
func (km *KeyMaker) DeriveIdentityFromRaw(passphraseHash, nameHash *[HashLength]byte, generation byte, pin []byte) (*IdentityKey, error) {
	input := crypto.ConcatSecret(passphraseHash[:], nameHash[:], []byte{generation})
	defer input.Close()

	key := crypto.NewSecretBuffer(int(km.profile.Crypto.IdentityKeyLength))
	if err := km.Derive(input.Bytes(), pin, key.Bytes()); err != nil {
		key.Close()
		return nil, err
	}
	return NewIdentityKey(key), nil
}

// DeriveSeed fills out with pseudorandom bytes for (name, generation) under
// key.
func (km *KeyMaker) DeriveSeed(key *IdentityKey, pin, name []byte, generation byte, out []byte) error {
	if key.Len() == 0 {
		return errors.ErrKeyClosed
	}

	nameHash, err := km.Hash(name, pin)
	defer crypto.SecureZero(nameHash[:])
	if err != nil {
		return err
	}

	input := crypto.ConcatSecret(key.Bytes(), nameHash[:], []byte{generation})
	defer input.Close()

	return km.Derive(input.Bytes(), pin, out)
}

// DerivePassword derives the password for (name, generation) under key.
// The caller must close the returned buffer.
func (km *KeyMaker) DerivePassword(key *IdentityKey, name []byte, generation byte, pin []byte) (*crypto.SecretBuffer, error) {
	seed := crypto.NewSecretBuffer(2 * int(km.profile.User.Password.Length))
	defer seed.Close()

	if err := km.DeriveSeed(key, pin, name, generation, seed.Bytes()); err != nil {
		return nil, err
	}

	numbers := passgen.Numbers(seed.Bytes())
	defer clear(numbers)

	password, err := passgen.Encode(km.charsets, numbers)
	if err != nil {
		return nil, err
	}
	return crypto.NewSecretBufferFrom(password), nil
}

// IdentityLabel returns a short non-secret fingerprint of an identity so an
// operator can recognize it without seeing the passphrase.
func (km *KeyMaker) IdentityLabel(passphraseHash *[HashLength]byte, pin, name []byte) ([LabelLength]byte, error) {
	input := crypto.ConcatSecret(passphraseHash[:], name)
	defer input.Close()

	var label [LabelLength]byte
	err := km.HashTo(input.Bytes(), pin, label[:])
	return label, err
}
