// Package session keeps identity keys encrypted in memory between uses and
// derives passwords from them on request.
//
// Import asks for the passphrase and PIN once, derives the identity key and
// stores it encrypted under a PIN-derived keystream. Every later request asks
// for the PIN again, decrypts a transient copy, authenticates it against the
// tag computed at import, and only then derives the requested output. All
// transient secrets are wiped before the call returns.
package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"
	"keymaker/internal/keymaker"
	"keymaker/internal/log"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Default PIN attempt limits: three failures in a row lock the guard, then
// one more attempt is allowed every ten seconds.
const (
	DefaultAttemptBurst    = 3
	DefaultAttemptInterval = 10 * time.Second
)

// Options configures a Guard. The zero value selects AES-256-OFB and the
// default attempt limits.
type Options struct {
	Cipher crypto.CipherKind

	// AttemptBurst is the number of consecutive PIN failures tolerated.
	// Zero selects DefaultAttemptBurst, negative disables the limiter.
	AttemptBurst int
	// AttemptInterval is the time needed to earn back one attempt.
	AttemptInterval time.Duration

	Now      func() time.Time
	Reporter Reporter
	Logger   log.Logger
}

// Guard runs the import and use protocols for one session.
// A Guard is safe for concurrent use; requests on the same Identity are
// serialized.
type Guard struct {
	km       *keymaker.KeyMaker
	source   SecretSource
	cipher   crypto.CipherKind
	limiter  *rate.Limiter
	now      func() time.Time
	reporter Reporter
	logger   log.Logger
	id       string
}

// NewGuard creates a guard deriving with km and reading secrets from source.
func NewGuard(km *keymaker.KeyMaker, source SecretSource, opts Options) (*Guard, error) {
	kind, err := crypto.ParseCipherKind(string(opts.Cipher))
	if err != nil {
		return nil, errors.NewConfigError("cipher", err)
	}

	g := &Guard{
		km:       km,
		source:   source,
		cipher:   kind,
		now:      opts.Now,
		reporter: opts.Reporter,
		id:       uuid.NewString(),
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.reporter == nil {
		g.reporter = nullReporter{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	g.logger = logger.WithFields(log.String("session", g.id))

	if opts.AttemptBurst >= 0 {
		burst := opts.AttemptBurst
		if burst == 0 {
			burst = DefaultAttemptBurst
		}
		interval := opts.AttemptInterval
		if interval <= 0 {
			interval = DefaultAttemptInterval
		}
		g.limiter = rate.NewLimiter(rate.Every(interval), burst)
	}

	return g, nil
}

// SessionID identifies this guard in log output.
func (g *Guard) SessionID() string {
	return g.id
}

// Import reads the passphrase and PIN, derives the identity key for name
// (generation 0) and returns it encrypted.
func (g *Guard) Import(ctx context.Context, name []byte) (*Identity, error) {
	start := g.now()
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	nonce, err := crypto.RandomBytes(NonceSize)
	if err != nil {
		return nil, err
	}

	passphrase, err := g.source.ReadSecret(ctx, PromptPassphrase)
	if err != nil {
		return nil, err
	}
	defer passphrase.Close()

	pin, err := g.source.ReadSecret(ctx, PromptPIN)
	if err != nil {
		return nil, err
	}
	defer pin.Close()

	if err := g.km.CheckPIN(pin.Bytes()); err != nil {
		return nil, err
	}

	g.status("Hashing passphrase...")
	passphraseHash, err := g.km.Hash(passphrase.Bytes(), pin.Bytes())
	defer crypto.SecureZero(passphraseHash[:])
	if err != nil {
		return nil, err
	}
	passphrase.Close()

	nameHash, err := g.km.Hash(name, pin.Bytes())
	defer crypto.SecureZero(nameHash[:])
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	g.status("Deriving identity key...")
	key, err := g.km.DeriveIdentityFromRaw(&passphraseHash, &nameHash, 0, pin.Bytes())
	if err != nil {
		return nil, err
	}
	defer key.Close()

	label, err := g.km.IdentityLabel(&passphraseHash, pin.Bytes(), name)
	if err != nil {
		return nil, err
	}
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	g.status("Protecting identity key...")
	stream, err := g.keystream(g.cipher, pin.Bytes(), nonce)
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	// The tag covers the plaintext key and must be computed before encrypting.
	keyHash, err := g.km.Hash(key.Bytes(), nonce)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		Label:        label,
		KeyHash:      keyHash,
		cipher:       g.cipher,
		keyEncrypted: append([]byte(nil), key.Bytes()...),
	}
	copy(id.Nonce[:], nonce)
	stream.Apply(id.keyEncrypted)

	g.logger.Info("identity imported",
		log.Hex("label", label[:]),
		log.String("cipher", string(g.cipher)),
		log.Duration("elapsed", g.now().Sub(start)))

	return id, nil
}

// DerivePassword reads the PIN, unlocks id and derives the password for name
// (generation 0). The caller must close the returned buffer once the password
// has been delivered.
func (g *Guard) DerivePassword(ctx context.Context, id *Identity, name []byte) (*crypto.SecretBuffer, error) {
	out, err := g.Derive(ctx, id, name, keymaker.FormatPassword)
	if err != nil {
		return nil, err
	}
	return out.Secret, nil
}

// Derive is DerivePassword for any output format.
func (g *Guard) Derive(ctx context.Context, id *Identity, name []byte, format keymaker.Format) (*keymaker.Output, error) {
	format, err := keymaker.ParseFormat(string(format))
	if err != nil {
		return nil, err
	}

	start := g.now()
	var out *keymaker.Output
	err = g.unlock(ctx, id, func(key *keymaker.IdentityKey, pin []byte) error {
		g.status(fmt.Sprintf("Deriving %s...", format))
		var err error
		out, err = g.km.DeriveFormat(key, name, 0, pin, format)
		return err
	})
	if err != nil {
		return nil, err
	}

	g.logger.Debug("derived",
		log.Hex("label", id.Label[:]),
		log.String("format", string(format)),
		log.Duration("elapsed", g.now().Sub(start)))
	return out, nil
}

// unlock runs fn with the decrypted, authenticated identity key of id.
// The key and PIN are wiped when unlock returns.
func (g *Guard) unlock(ctx context.Context, id *Identity, fn func(key *keymaker.IdentityKey, pin []byte) error) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	id.mu.Lock()
	defer id.mu.Unlock()

	if id.destroyed {
		return errors.ErrKeyClosed
	}
	if err := g.checkAttempts(); err != nil {
		return err
	}

	pin, err := g.source.ReadSecret(ctx, PromptPIN)
	if err != nil {
		return err
	}
	defer pin.Close()

	g.status("Unlocking identity...")
	stream, err := g.keystream(id.cipher, pin.Bytes(), id.Nonce[:])
	if err != nil {
		return err
	}
	key := keymaker.NewIdentityKey(crypto.ConcatSecret(id.keyEncrypted))
	defer key.Close()
	stream.Apply(key.Bytes())
	stream.Close()

	tag, err := g.km.Hash(key.Bytes(), id.Nonce[:])
	defer crypto.SecureZero(tag[:])
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare(tag[:], id.KeyHash[:]) != 1 {
		left := g.recordFailure()
		g.logger.Warn("authentication failed",
			log.Hex("label", id.Label[:]),
			log.Int("attempts_left", left))
		return errors.ErrAuthFailed
	}

	if err := checkContext(ctx); err != nil {
		return err
	}
	return fn(key, pin.Bytes())
}

// keystream derives the cipher key and IV from (pin, nonce).
func (g *Guard) keystream(kind crypto.CipherKind, pin, nonce []byte) (*crypto.StreamCipher, error) {
	key := crypto.NewSecretBuffer(kind.KeySize())
	defer key.Close()
	iv := crypto.NewSecretBuffer(kind.IVSize())
	defer iv.Close()

	if err := g.km.HashTo(pin, nonce, key.Bytes()); err != nil {
		return nil, err
	}
	if err := g.km.HashTo(nonce, pin, iv.Bytes()); err != nil {
		return nil, err
	}
	return crypto.NewStreamCipher(kind, key.Bytes(), iv.Bytes())
}

func (g *Guard) checkAttempts() error {
	if g.limiter == nil {
		return nil
	}
	if g.limiter.TokensAt(g.now()) < 1 {
		return errors.ErrAttemptsLocked
	}
	return nil
}

// recordFailure spends one attempt and returns how many are left, or -1 when
// attempts are unlimited.
func (g *Guard) recordFailure() int {
	if g.limiter == nil {
		return -1
	}
	now := g.now()
	g.limiter.AllowN(now, 1)
	return int(g.limiter.TokensAt(now))
}

func (g *Guard) status(text string) {
	g.reporter.SetStatus(text)
	g.reporter.Update()
}

func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrCancelled, err)
	}
	return nil
}
