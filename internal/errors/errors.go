// Package errors provides typed errors for KeyMaker operations.
// This enables callers to use errors.Is() and errors.As() for specific error handling.
//
// None of the error types carry secret material: messages name the failing
// operation or field, never the passphrase, PIN, derived keys or passwords.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
// Use errors.Is(err, errors.ErrAuthFailed) to check for specific errors.
var (
	// Operation errors
	ErrCancelled      = errors.New("operation cancelled")
	ErrAuthFailed     = errors.New("incorrect PIN")
	ErrAttemptsLocked = errors.New("too many incorrect PIN attempts, try again later")
	ErrInput          = errors.New("secret input failed")
	ErrKeyClosed      = errors.New("identity key is closed")

	// Configuration errors
	ErrVersionMismatch = errors.New("unsupported profile version")
	ErrUnknownBackend  = errors.New("unknown KDF backend")
	ErrUnknownCipher   = errors.New("unknown cipher")
	ErrUnknownFormat   = errors.New("unknown output format")

	// Crypto errors
	ErrInvalidParams       = errors.New("invalid scrypt parameters")
	ErrInvalidOutputLength = errors.New("invalid output length")
	ErrRandFailure         = errors.New("crypto/rand failure")
	ErrCipherFailure       = errors.New("cipher operation failed")

	// Encoding errors
	ErrInvalidCharsets = errors.New("invalid charset partitions")
)

// CryptoError represents an error during cryptographic operations.
// It wraps the underlying error with operation context.
type CryptoError struct {
	Op  string // Operation name: "rand", "scrypt", "cipher"
	Err error  // Underlying error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("crypto %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("crypto %s failed", e.Op)
}

func (e *CryptoError) Unwrap() error {
	return e.Err
}

// NewCryptoError creates a new CryptoError.
func NewCryptoError(op string, err error) *CryptoError {
	return &CryptoError{Op: op, Err: err}
}

// ConfigError represents a profile or settings error detected before any
// derivation takes place. It is fatal: no engine is produced.
type ConfigError struct {
	Field string // Field that failed: "version", "backend", "cipher"
	Err   error  // Underlying error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config %s invalid", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, err error) *ConfigError {
	return &ConfigError{Field: field, Err: err}
}

// InputError represents a failure reading a secret from the operator.
// It is fatal to the current command only.
type InputError struct {
	Prompt string // Prompt label, e.g. "PIN"
	Err    error  // Underlying I/O error
}

func (e *InputError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("reading %s: %v", e.Prompt, e.Err)
	}
	return fmt.Sprintf("reading %s failed", e.Prompt)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Is reports ErrInput for every InputError.
func (e *InputError) Is(target error) bool {
	return target == ErrInput
}

// NewInputError creates a new InputError.
func NewInputError(prompt string, err error) *InputError {
	return &InputError{Prompt: prompt, Err: err}
}

// ValidationError represents an input validation error.
type ValidationError struct {
	Field   string // Field name that failed validation
	Message string // Human-readable error message
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// Is checks if target matches any of our sentinel errors.
// This is a convenience function for common error checks.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New is errors.New, re-exported so callers need a single import.
func New(text string) error {
	return errors.New(text)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsCancelled checks if the error indicates a cancelled operation.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// IsAuthFailed checks if the error indicates authentication failure.
func IsAuthFailed(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

// IsKDF checks if the error comes from invalid KDF parameters or output length.
func IsKDF(err error) bool {
	return errors.Is(err, ErrInvalidParams) || errors.Is(err, ErrInvalidOutputLength)
}
