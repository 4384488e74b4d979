// Package crypto provides cryptographic primitives for KeyMaker.
// This file contains memory zeroing utilities for secure cleanup of sensitive data.

package crypto

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// SecureZero overwrites a byte slice with zeros to prevent sensitive data
// from persisting in memory.
//
// ⚠️ SECURITY NOTE: Due to Go's garbage collector and potential compiler
// optimizations, this function cannot guarantee complete erasure. Copies made
// by the runtime (slice growth, string conversion) are out of its reach.
func SecureZero(b []byte) {
	if len(b) == 0 {
		return
	}
	memguard.WipeBytes(b)
}

// SecureZeroMultiple zeros multiple byte slices in a single call.
func SecureZeroMultiple(slices ...[]byte) {
	for _, s := range slices {
		SecureZero(s)
	}
}

// SecretBuffer owns a byte slice holding secret material (passphrase, PIN,
// derived key, derived password) and wipes it on Close.
//
// Every SecretBuffer must be closed on every exit path:
//
//	pin := crypto.NewSecretBuffer(6)
//	defer pin.Close()
//	// ... use pin.Bytes() ...
type SecretBuffer struct {
	data   []byte
	closed bool
}

// NewSecretBuffer allocates a zero-filled secret buffer of n bytes.
func NewSecretBuffer(n int) *SecretBuffer {
	if n < 0 {
		n = 0
	}
	return &SecretBuffer{data: make([]byte, n)}
}

// NewSecretBufferFrom moves data into a new SecretBuffer.
// The data is copied and the source slice is wiped, leaving the buffer as the
// only holder of the secret.
func NewSecretBufferFrom(data []byte) *SecretBuffer {
	copied := make([]byte, len(data))
	copy(copied, data)
	SecureZero(data)
	return &SecretBuffer{data: copied}
}

// ConcatSecret returns a new SecretBuffer holding the concatenation of parts.
// The parts are left untouched.
func ConcatSecret(parts ...[]byte) *SecretBuffer {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	buf := NewSecretBuffer(n)
	off := 0
	for _, p := range parts {
		off += copy(buf.data[off:], p)
	}
	return buf
}

// Bytes returns the underlying secret data.
// Returns nil if the buffer has been closed.
func (s *SecretBuffer) Bytes() []byte {
	if s == nil || s.closed {
		return nil
	}
	return s.data
}

// Len returns the length of the secret data.
func (s *SecretBuffer) Len() int {
	if s == nil || s.closed {
		return 0
	}
	return len(s.data)
}

// Reveal returns the secret as a string. The returned string is an
// unscrubbable copy; use it only at the final delivery point.
func (s *SecretBuffer) Reveal() string {
	return string(s.Bytes())
}

// String never prints the secret, so a buffer passed to fmt or a logger by
// mistake stays opaque.
func (s *SecretBuffer) String() string {
	return fmt.Sprintf("SecretBuffer(%d bytes)", s.Len())
}

// Close securely zeros the secret data and marks the buffer as closed.
// This method is idempotent and safe on a nil receiver.
func (s *SecretBuffer) Close() {
	if s == nil || s.closed {
		return
	}
	SecureZero(s.data)
	s.data = nil
	s.closed = true
}

// IsClosed returns whether the buffer has been closed.
func (s *SecretBuffer) IsClosed() bool {
	return s == nil || s.closed
}

// CloseAll closes every buffer, skipping nils.
func CloseAll(bufs ...*SecretBuffer) {
	for _, b := range bufs {
		b.Close()
	}
}
