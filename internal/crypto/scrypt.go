package crypto

import (
	"fmt"

	"keymaker/internal/errors"

	"golang.org/x/crypto/scrypt"
)

func init() {
	Register(BackendXCrypto, xcryptoScrypt{})
}

// xcryptoScrypt is the default backend, built on golang.org/x/crypto/scrypt.
type xcryptoScrypt struct{}

func (xcryptoScrypt) Derive(params ScryptParams, input, salt, out []byte) error {
	if err := checkDerive(params, out); err != nil {
		return err
	}

	key, err := scrypt.Key(input, salt, params.N, params.R, params.P, len(out))
	if err != nil {
		return errors.NewCryptoError("scrypt", fmt.Errorf("%w: %v", errors.ErrInvalidParams, err))
	}
	copy(out, key)
	SecureZero(key)
	return nil
}
