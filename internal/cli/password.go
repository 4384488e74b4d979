package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"
	"keymaker/internal/session"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var errSecretEmpty = errors.New("cannot be empty")

// Prompt colors: passphrase in red, PIN in orange, prompt symbol in green.
var (
	passphraseColor = color.New(color.FgRed, color.Bold)
	pinColor        = color.New(color.FgYellow)
	promptColor     = color.New(color.FgGreen)
)

func secretColor(prompt string) *color.Color {
	if prompt == session.PromptPassphrase {
		return passphraseColor
	}
	return pinColor
}

// terminalSource implements session.SecretSource on a terminal.
// When the input is not a terminal it reads one line per secret from in,
// which shares its buffer with the command loop.
type terminalSource struct {
	in       *bufio.Reader
	out      io.Writer
	fd       int
	terminal bool
}

// ReadSecret prompts for a secret and reads it without echo.
// Falls back to a buffered line read if the input is not a terminal.
func (s *terminalSource) ReadSecret(ctx context.Context, prompt string) (*crypto.SecretBuffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrCancelled, err)
	}

	secretColor(prompt).Fprint(s.out, prompt+": ")

	var raw []byte
	if s.terminal {
		pw, err := term.ReadPassword(s.fd)
		fmt.Fprintln(s.out) // newline after hidden input
		if err != nil {
			crypto.SecureZero(pw)
			return nil, errors.NewInputError(prompt, err)
		}
		raw = pw
	} else {
		line, err := s.in.ReadBytes('\n')
		if err != nil && (err != io.EOF || len(line) == 0) {
			crypto.SecureZero(line)
			return nil, errors.NewInputError(prompt, err)
		}
		raw = trimNewline(line)
	}

	if len(raw) == 0 {
		return nil, errors.NewInputError(prompt, errSecretEmpty)
	}
	return crypto.NewSecretBufferFrom(raw), nil
}

// trimNewline strips a trailing "\n" or "\r\n" and wipes the stripped bytes.
func trimNewline(line []byte) []byte {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
		if n > 0 && line[n-1] == '\r' {
			n--
		}
	}
	crypto.SecureZero(line[n:])
	return line[:n]
}
