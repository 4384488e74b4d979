// Package keymakertesting provides fast engines for tests.
package keymakertesting

import (
	"testing"

	"keymaker/internal/crypto"
	"keymaker/internal/keymaker"
)

// FastParams are the cost parameters every call is forced to by FastBackend.
var FastParams = crypto.ScryptParams{N: 16, R: 1, P: 1}

// FastBackend wraps a backend and replaces the requested cost parameters with
// FastParams, including the fixed hash parameters. Outputs are still
// deterministic functions of input and salt, just cheap to compute.
type FastBackend struct {
	crypto.Backend
}

// Derive implements crypto.Backend.
func (b FastBackend) Derive(_ crypto.ScryptParams, input, salt, out []byte) error {
	return b.Backend.Derive(FastParams, input, salt, out)
}

// Profile returns the default profile with a small identity key.
func Profile() keymaker.Profile {
	p := keymaker.Default()
	p.Crypto.IdentityKeyLength = 64
	return p
}

// New returns an engine for profile backed by the fast default backend.
func New(t testing.TB, profile keymaker.Profile) *keymaker.KeyMaker {
	t.Helper()

	backend, err := crypto.Lookup(crypto.DefaultBackend)
	if err != nil {
		t.Fatalf("lookup backend: %v", err)
	}

	km, err := keymaker.New(profile, FastBackend{backend})
	if err != nil {
		t.Fatalf("keymaker.New: %v", err)
	}
	return km
}
