// Package crypto provides cryptographic primitives for KeyMaker.
// This is AUDIT-CRITICAL code - changes here directly affect every derived
// identity key and password.
package crypto

import (
	"crypto/rand"
	"fmt"
	"math"
	"sort"
	"sync"

	"keymaker/internal/errors"
)

// RandomBytes generates n cryptographically secure random bytes.
func RandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.NewCryptoError("rand", fmt.Errorf("invalid length %d", n))
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, errors.NewCryptoError("rand", fmt.Errorf("%w: %v", errors.ErrRandFailure, err))
	}

	// Sanity check: bytes should not be all zeros
	allZero := true
	for _, v := range b {
		if v != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		return nil, errors.NewCryptoError("rand", fmt.Errorf("%w: produced zero bytes", errors.ErrRandFailure))
	}

	return b, nil
}

// ScryptParams are the scrypt cost knobs.
type ScryptParams struct {
	N int `yaml:"n"` // CPU/memory cost, power of two
	R int `yaml:"r"` // block size
	P int `yaml:"p"` // parallelization
}

// MaxOutputLength is the largest output scrypt can produce: (2^32 - 1) * 32 bytes.
const MaxOutputLength = (1<<32 - 1) * 32

// Validate checks params against the limits every backend enforces.
func (p ScryptParams) Validate() error {
	if p.N <= 1 || p.N&(p.N-1) != 0 {
		return fmt.Errorf("%w: N must be > 1 and a power of 2 (got %d)", errors.ErrInvalidParams, p.N)
	}
	if p.R <= 0 || p.P <= 0 {
		return fmt.Errorf("%w: r and p must be positive (got r=%d p=%d)", errors.ErrInvalidParams, p.R, p.P)
	}
	if uint64(p.R)*uint64(p.P) >= 1<<30 || p.R > math.MaxInt/128/p.P || p.R > math.MaxInt/256 || p.N > math.MaxInt/128/p.R {
		return fmt.Errorf("%w: parameters are too large", errors.ErrInvalidParams)
	}
	return nil
}

func (p ScryptParams) String() string {
	return fmt.Sprintf("scrypt-%d-%d-%d", p.N, p.R, p.P)
}

// Memory returns the bytes one derivation holds in its ROMix table (128*r*N).
func (p ScryptParams) Memory() int64 {
	return 128 * int64(p.R) * int64(p.N)
}

// checkDerive validates a derive request before any work is done.
func checkDerive(params ScryptParams, out []byte) error {
	if err := params.Validate(); err != nil {
		return errors.NewCryptoError("scrypt", err)
	}
	if len(out) == 0 || uint64(len(out)) > MaxOutputLength {
		return errors.NewCryptoError("scrypt", fmt.Errorf("%w: %d bytes", errors.ErrInvalidOutputLength, len(out)))
	}
	return nil
}

// Backend is a memory-hard key derivation function.
//
// Derive fills out entirely from (params, input, salt). Implementations must be
// deterministic and produce identical bytes for identical valid inputs, so
// that backends can be swapped without changing any derived secret.
type Backend interface {
	Derive(params ScryptParams, input, salt, out []byte) error
}

// Registered backend names.
const (
	BackendXCrypto   = "xcrypto"
	BackendReference = "reference"

	DefaultBackend = BackendXCrypto
)

var (
	backendsMu sync.RWMutex
	backends   = map[string]Backend{}
)

// Register makes a backend available under name, replacing any previous one.
func Register(name string, b Backend) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = b
}

// Lookup returns the backend registered under name.
func Lookup(name string) (Backend, error) {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	b, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownBackend, name)
	}
	return b, nil
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
