package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"
	"keymaker/internal/keymaker"
)

func load(t *testing.T, args ...string) (*Settings, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	AddFlags(fs)
	require.NoError(t, fs.Parse(args))

	v, err := NewViper(fs)
	require.NoError(t, err)
	return Load(v)
}

func TestDefaults(t *testing.T) {
	s, err := load(t)
	require.NoError(t, err)

	require.Equal(t, Defaults(), *s)
	require.Equal(t, keymaker.Default(), s.Profile())
	require.Equal(t, keymaker.DefaultIdentity, s.IdentityName())
}

func TestFlagsOverride(t *testing.T) {
	s, err := load(t,
		"--scrypt-n=1024", "--scrypt-r=2", "--scrypt-p=3",
		"--password-length=20", "--symbols=false", "--ambiguous",
		"--cipher=SERPENT", "--identity=work", "--attempt-interval=1m",
		"--backend=reference", "--format=ssh", "--key-length=256")
	require.NoError(t, err)

	p := s.Profile()
	require.Equal(t, crypto.ScryptParams{N: 1024, R: 2, P: 3}, p.Crypto.Scrypt)
	require.Equal(t, uint16(256), p.Crypto.IdentityKeyLength)
	require.Equal(t, uint8(20), p.User.Password.Length)
	require.False(t, p.User.Password.IncludeSymbol)
	require.True(t, p.User.Password.AllowAmbiguousChars)
	require.Equal(t, "serpent", s.Cipher)
	require.Equal(t, "ssh", s.Format)
	require.Equal(t, crypto.BackendReference, s.Backend)
	require.Equal(t, []byte("work"), s.IdentityName())
	require.Equal(t, time.Minute, s.AttemptInterval)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("KEYMAKER_SCRYPT_N", "2048")
	t.Setenv("KEYMAKER_PASSWORD_LENGTH", "16")
	t.Setenv("KEYMAKER_LOG_LEVEL", "debug")

	s, err := load(t)
	require.NoError(t, err)
	require.Equal(t, 2048, s.ScryptN)
	require.Equal(t, uint8(16), s.PasswordLength)
	require.Equal(t, "debug", s.LogLevel)

	// Flags win over the environment.
	s, err = load(t, "--scrypt-n=4096")
	require.NoError(t, err)
	require.Equal(t, 4096, s.ScryptN)
}

func TestValidation(t *testing.T) {
	cases := []struct {
		args  []string
		field string
	}{
		{[]string{"--scrypt-n=1000"}, KeyScryptN},
		{[]string{"--scrypt-n=1"}, KeyScryptN},
		{[]string{"--scrypt-r=0"}, KeyScryptR},
		{[]string{"--scrypt-p=0"}, KeyScryptP},
		{[]string{"--key-length=0"}, KeyKeyLength},
		{[]string{"--password-length=2"}, KeyPasswordLength},
		{[]string{"--cipher=des"}, KeyCipher},
		{[]string{"--format=pgp"}, KeyFormat},
		{[]string{"--backend=bcrypt"}, KeyBackend},
		{[]string{"--log-level=trace"}, KeyLogLevel},
		{[]string{"--attempts=-2"}, KeyAttempts},
	}

	for _, tc := range cases {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			_, err := load(t, tc.args...)
			var cfgErr *errors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			require.Contains(t, cfgErr.Field, tc.field)
			require.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestValidationReportsAllFields(t *testing.T) {
	_, err := load(t, "--scrypt-r=0", "--scrypt-p=0")
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, KeyScryptR+","+KeyScryptP, cfgErr.Field)
}

func TestGuardOptions(t *testing.T) {
	s := Defaults()
	opts := s.GuardOptions()
	require.Equal(t, crypto.CipherAES, opts.Cipher)
	require.Equal(t, 3, opts.AttemptBurst)

	s.Attempts = 0
	require.Equal(t, -1, s.GuardOptions().AttemptBurst)
	s.Attempts = -1
	require.Equal(t, -1, s.GuardOptions().AttemptBurst)
}

func TestEngine(t *testing.T) {
	s := Defaults()
	km, err := s.Engine()
	require.NoError(t, err)
	require.Equal(t, s.Profile(), km.Profile())

	s.Backend = "missing"
	_, err = s.Engine()
	require.ErrorIs(t, err, errors.ErrUnknownBackend)
}

func TestProfileYAML(t *testing.T) {
	s := Defaults()
	out, err := s.ProfileYAML()
	require.NoError(t, err)

	text := string(out)
	require.Contains(t, text, "identity_key_length: 1024")
	require.Contains(t, text, " n: 131072\n")
	require.NotContains(t, text, `"n"`)
	require.Contains(t, text, "include_symbol: true")
	require.Contains(t, text, "version: 1")

	var back keymaker.Profile
	require.NoError(t, yaml.Unmarshal(out, &back))
	require.Equal(t, s.Profile(), back)
}
