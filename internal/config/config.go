// Package config builds runtime settings from command-line flags and
// KEYMAKER_* environment variables, validates them and turns them into a
// keymaker profile.
//
// Flags win over environment variables, which win over the defaults. Nothing
// is read from or written to disk.
package config

import (
	"strings"
	"time"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"
	"keymaker/internal/keymaker"
	"keymaker/internal/session"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable, e.g. KEYMAKER_SCRYPT_N.
const EnvPrefix = "KEYMAKER"

// Setting keys, shared by flags, environment variables and Settings.
const (
	KeyBackend         = "backend"
	KeyCipher          = "cipher"
	KeyFormat          = "format"
	KeyIdentity        = "identity"
	KeyKeyLength       = "key-length"
	KeyScryptN         = "scrypt-n"
	KeyScryptR         = "scrypt-r"
	KeyScryptP         = "scrypt-p"
	KeyPasswordLength  = "password-length"
	KeySymbols         = "symbols"
	KeyAmbiguous       = "ambiguous"
	KeyPINLength       = "pin-length"
	KeyAttempts        = "attempts"
	KeyAttemptInterval = "attempt-interval"
	KeyLogLevel        = "log-level"
	KeyLogFile         = "log-file"
	KeyNoColor         = "no-color"
)

// Settings holds every runtime setting.
type Settings struct {
	Backend string `mapstructure:"backend" validate:"required,backend"`
	Cipher  string `mapstructure:"cipher" validate:"oneof=aes serpent"`
	Format  string `mapstructure:"format" validate:"oneof=password phrase ssh"`

	// Identity is the identity name; empty selects the default identity.
	Identity string `mapstructure:"identity"`

	KeyLength uint16 `mapstructure:"key-length" validate:"min=1"`
	ScryptN   int    `mapstructure:"scrypt-n" validate:"pow2"`
	ScryptR   int    `mapstructure:"scrypt-r" validate:"min=1"`
	ScryptP   int    `mapstructure:"scrypt-p" validate:"min=1"`

	PasswordLength uint8 `mapstructure:"password-length" validate:"min=4"`
	Symbols        bool  `mapstructure:"symbols"`
	Ambiguous      bool  `mapstructure:"ambiguous"`
	PINLength      uint8 `mapstructure:"pin-length"`

	// Attempts is the number of consecutive PIN failures tolerated before
	// the session locks; zero or -1 disables the limit.
	Attempts        int           `mapstructure:"attempts" validate:"min=-1"`
	AttemptInterval time.Duration `mapstructure:"attempt-interval"`

	LogLevel string `mapstructure:"log-level" validate:"oneof=debug info warn error"`
	LogFile  string `mapstructure:"log-file"`
	NoColor  bool   `mapstructure:"no-color"`
}

// Defaults returns the settings matching keymaker.Default.
func Defaults() Settings {
	p := keymaker.Default()
	return Settings{
		Backend:         crypto.DefaultBackend,
		Cipher:          string(crypto.CipherAES),
		Format:          string(keymaker.FormatPassword),
		KeyLength:       p.Crypto.IdentityKeyLength,
		ScryptN:         p.Crypto.Scrypt.N,
		ScryptR:         p.Crypto.Scrypt.R,
		ScryptP:         p.Crypto.Scrypt.P,
		PasswordLength:  p.User.Password.Length,
		Symbols:         p.User.Password.IncludeSymbol,
		Ambiguous:       p.User.Password.AllowAmbiguousChars,
		PINLength:       p.User.PINLength,
		Attempts:        session.DefaultAttemptBurst,
		AttemptInterval: session.DefaultAttemptInterval,
		LogLevel:        "warn",
	}
}

// AddFlags registers one flag per setting on fs, with defaults from Defaults.
func AddFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String(KeyBackend, d.Backend, "KDF backend ("+strings.Join(crypto.Backends(), ", ")+")")
	fs.String(KeyCipher, d.Cipher, "cipher protecting identity keys in memory (aes, serpent)")
	fs.String(KeyFormat, d.Format, "output format ("+keymaker.FormatList(", ")+")")
	fs.String(KeyIdentity, d.Identity, "identity name (default identity when empty)")
	fs.Uint16(KeyKeyLength, d.KeyLength, "identity key length in bytes")
	fs.Int(KeyScryptN, d.ScryptN, "scrypt CPU/memory cost (power of two)")
	fs.Int(KeyScryptR, d.ScryptR, "scrypt block size")
	fs.Int(KeyScryptP, d.ScryptP, "scrypt parallelization")
	fs.Uint8(KeyPasswordLength, d.PasswordLength, "password length")
	fs.Bool(KeySymbols, d.Symbols, "include symbols in passwords")
	fs.Bool(KeyAmbiguous, d.Ambiguous, "allow ambiguous characters (0 1 l I O and extra symbols)")
	fs.Uint8(KeyPINLength, d.PINLength, "minimum PIN length")
	fs.Int(KeyAttempts, d.Attempts, "PIN failures tolerated before locking, -1 for unlimited")
	fs.Duration(KeyAttemptInterval, d.AttemptInterval, "time to earn back one PIN attempt")
	fs.String(KeyLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(KeyLogFile, d.LogFile, "write logs to this file instead of stderr")
	fs.Bool(KeyNoColor, d.NoColor, "disable colored prompts")
}

// NewViper returns a viper instance reading KEYMAKER_* variables, with fs
// bound when non-nil.
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	d := Defaults()
	v.SetDefault(KeyBackend, d.Backend)
	v.SetDefault(KeyCipher, d.Cipher)
	v.SetDefault(KeyFormat, d.Format)
	v.SetDefault(KeyIdentity, d.Identity)
	v.SetDefault(KeyKeyLength, d.KeyLength)
	v.SetDefault(KeyScryptN, d.ScryptN)
	v.SetDefault(KeyScryptR, d.ScryptR)
	v.SetDefault(KeyScryptP, d.ScryptP)
	v.SetDefault(KeyPasswordLength, d.PasswordLength)
	v.SetDefault(KeySymbols, d.Symbols)
	v.SetDefault(KeyAmbiguous, d.Ambiguous)
	v.SetDefault(KeyPINLength, d.PINLength)
	v.SetDefault(KeyAttempts, d.Attempts)
	v.SetDefault(KeyAttemptInterval, d.AttemptInterval)
	v.SetDefault(KeyLogLevel, d.LogLevel)
	v.SetDefault(KeyLogFile, d.LogFile)
	v.SetDefault(KeyNoColor, d.NoColor)

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return nil, errors.Wrap(err, "binding flags")
		}
	}
	return v, nil
}

// Load reads and validates the settings held by v.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.NewConfigError("settings", err)
	}
	s.Cipher = strings.ToLower(strings.TrimSpace(s.Cipher))
	s.Format = strings.ToLower(strings.TrimSpace(s.Format))
	s.LogLevel = strings.ToLower(strings.TrimSpace(s.LogLevel))

	if err := NewValidator().Validate(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Profile builds the keymaker profile described by s.
func (s *Settings) Profile() keymaker.Profile {
	return keymaker.Profile{
		Crypto: keymaker.CryptoProfile{
			IdentityKeyLength: s.KeyLength,
			Scrypt:            crypto.ScryptParams{N: s.ScryptN, R: s.ScryptR, P: s.ScryptP},
		},
		User: keymaker.UserProfile{
			Password: keymaker.PasswordSettings{
				AllowAmbiguousChars: s.Ambiguous,
				IncludeSymbol:       s.Symbols,
				Length:              s.PasswordLength,
			},
			PINLength: s.PINLength,
		},
		Version: keymaker.Version,
	}
}

// IdentityName returns the identity name bytes, or keymaker.DefaultIdentity
// when none is set.
func (s *Settings) IdentityName() []byte {
	if s.Identity == "" {
		return keymaker.DefaultIdentity
	}
	return []byte(s.Identity)
}

// GuardOptions returns the session options described by s.
func (s *Settings) GuardOptions() session.Options {
	burst := s.Attempts
	if burst == 0 {
		burst = -1
	}
	return session.Options{
		Cipher:          crypto.CipherKind(s.Cipher),
		AttemptBurst:    burst,
		AttemptInterval: s.AttemptInterval,
	}
}

// Engine creates the keymaker engine for s with the selected backend.
func (s *Settings) Engine() (*keymaker.KeyMaker, error) {
	backend, err := crypto.Lookup(s.Backend)
	if err != nil {
		return nil, errors.NewConfigError("backend", err)
	}
	return keymaker.New(s.Profile(), backend)
}

// ProfileYAML renders the profile described by s as YAML for display.
func (s *Settings) ProfileYAML() ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(s.Profile()); err != nil {
		return nil, err
	}
	plainKeys(&doc)
	return yaml.Marshal(&doc)
}

// plainKeys clears the quoting yaml.v3 puts on keys that YAML 1.1 reads as
// booleans, such as the scrypt "n". Profile keys are plain field names.
func plainKeys(n *yaml.Node) {
	if n.Kind == yaml.MappingNode {
		for i := 0; i < len(n.Content); i += 2 {
			n.Content[i].Style &^= yaml.DoubleQuotedStyle | yaml.SingleQuotedStyle
		}
	}
	for _, c := range n.Content {
		plainKeys(c)
	}
}
