// Package keymaker implements the derivation hierarchy: passphrase and PIN to
// identity key, identity key to per-target seeds, seeds to passwords and other
// output formats.
//
// All derivations are deterministic. Given the same profile, passphrase, PIN,
// name and generation, every KDF backend produces byte-identical results.
package keymaker

import (
	"keymaker/internal/crypto"
	"keymaker/internal/passgen"
)

// Version is the only profile version this engine accepts.
const Version uint8 = 1

// Sizes of fixed-length derivation outputs.
const (
	HashLength  = 64 // 512 bits
	LabelLength = 3  // 24 bits
)

// DefaultIdentity is the name of the identity derived when none is given.
var DefaultIdentity = []byte{0}

// hashParams are the cost parameters of Hash and HashTo. They never change
// for the lifetime of the process and are independent of the profile.
var hashParams = crypto.ScryptParams{N: 65536, R: 8, P: 1}

// HashParams returns the fixed cost parameters used for generic hashing.
func HashParams() crypto.ScryptParams { return hashParams }

// PasswordSettings controls the password alphabet and length.
type PasswordSettings = passgen.Settings

// Profile holds every parameter that affects derived output.
type Profile struct {
	Crypto  CryptoProfile `yaml:"crypto"`
	User    UserProfile   `yaml:"user"`
	Version uint8         `yaml:"version"`
}

// CryptoProfile holds the identity key size and its KDF cost.
type CryptoProfile struct {
	IdentityKeyLength uint16              `yaml:"identity_key_length"`
	Scrypt            crypto.ScryptParams `yaml:"scrypt"`
}

// UserProfile holds operator-facing settings.
type UserProfile struct {
	Password  PasswordSettings `yaml:"password"`
	PINLength uint8            `yaml:"pin_length"`
}

// Default returns the default profile.
func Default() Profile {
	return Profile{
		Crypto: CryptoProfile{
			IdentityKeyLength: 1024,
			Scrypt:            crypto.ScryptParams{N: 131072, R: 8, P: 6},
		},
		User: UserProfile{
			Password: PasswordSettings{
				AllowAmbiguousChars: false,
				IncludeSymbol:       true,
				Length:              12,
			},
			PINLength: 6,
		},
		Version: Version,
	}
}

// Entropy returns the estimated password entropy in bits for this profile.
func (p Profile) Entropy() float64 {
	return passgen.Entropy(p.User.Password)
}
