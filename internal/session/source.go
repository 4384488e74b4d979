package session

import (
	"context"

	"keymaker/internal/crypto"
)

// Prompt labels passed to a SecretSource.
const (
	PromptPassphrase = "passphrase"
	PromptPIN        = "PIN"
)

// SecretSource reads secrets typed by the operator.
//
// ReadSecret returns the raw bytes entered for prompt. The caller owns the
// returned buffer and must close it. Read failures should be reported as
// *errors.InputError.
type SecretSource interface {
	ReadSecret(ctx context.Context, prompt string) (*crypto.SecretBuffer, error)
}

// Reporter receives progress updates while slow derivations run.
type Reporter interface {
	SetStatus(text string)
	Update()
}

type nullReporter struct{}

func (nullReporter) SetStatus(string) {}
func (nullReporter) Update()          {}
