package keymaker

import (
	"crypto/ed25519"
	"encoding/binary"
	"encoding/pem"
	"fmt"
	"strings"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"

	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/ssh"
)

// Format selects what a seed is turned into.
type Format string

const (
	FormatPassword Format = "password"
	FormatPhrase   Format = "phrase" // BIP39 mnemonic, 24 words
	FormatSSH      Format = "ssh"    // Ed25519 OpenSSH key pair
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatPassword, FormatPhrase, FormatSSH}
}

// FormatList returns the supported format names separated by sep.
func FormatList(sep string) string {
	names := make([]string, 0, len(Formats()))
	for _, f := range Formats() {
		names = append(names, string(f))
	}
	return strings.Join(names, sep)
}

// ParseFormat converts a format name to a Format. Empty means password.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatPassword, FormatPhrase, FormatSSH:
		return f, nil
	case "":
		return FormatPassword, nil
	default:
		return "", fmt.Errorf("%w: %q", errors.ErrUnknownFormat, s)
	}
}

const formatSeedLength = 32

// Output is a derived secret in some format. Public carries the non-secret
// half when the format has one (the authorized_keys line for ssh).
type Output struct {
	Format Format
	Secret *crypto.SecretBuffer
	Public string
}

// Close wipes the secret.
func (o *Output) Close() {
	if o == nil {
		return
	}
	o.Secret.Close()
}

// seedTags separate the seed of each non-password format from the password
// seed of the same name.
var seedTags = map[Format]string{
	FormatPhrase: "bip39",
	FormatSSH:    "ssh-ed25519",
}

// formatName returns name followed by a NUL byte and the seed tag of f.
func formatName(name []byte, f Format) *crypto.SecretBuffer {
	return crypto.ConcatSecret(name, []byte{0}, []byte(seedTags[f]))
}

func (km *KeyMaker) formatSeed(key *IdentityKey, name []byte, generation byte, pin []byte, f Format) (*crypto.SecretBuffer, error) {
	seedName := formatName(name, f)
	defer seedName.Close()

	seed := crypto.NewSecretBuffer(formatSeedLength)
	if err := km.DeriveSeed(key, pin, seedName.Bytes(), generation, seed.Bytes()); err != nil {
		seed.Close()
		return nil, err
	}
	return seed, nil
}

// DerivePhrase derives a 24-word BIP39 mnemonic for (name, generation).
func (km *KeyMaker) DerivePhrase(key *IdentityKey, name []byte, generation byte, pin []byte) (*crypto.SecretBuffer, error) {
	seed, err := km.formatSeed(key, name, generation, pin, FormatPhrase)
	if err != nil {
		return nil, err
	}
	defer seed.Close()

	mnemonic, err := bip39.NewMnemonic(seed.Bytes())
	if err != nil {
		return nil, errors.NewCryptoError("bip39", err)
	}
	return crypto.NewSecretBufferFrom([]byte(mnemonic)), nil
}

// DeriveSSHKey derives an Ed25519 key pair for (name, generation). It returns
// the OpenSSH private key PEM and the authorized_keys line, with name as the
// key comment. The PEM is byte-identical across derivations.
func (km *KeyMaker) DeriveSSHKey(key *IdentityKey, name []byte, generation byte, pin []byte) (*crypto.SecretBuffer, string, error) {
	seed, err := km.formatSeed(key, name, generation, pin, FormatSSH)
	if err != nil {
		return nil, "", err
	}
	defer seed.Close()

	priv := ed25519.NewKeyFromSeed(seed.Bytes())
	defer crypto.SecureZero(priv)

	pub, err := ssh.NewPublicKey(priv.Public())
	if err != nil {
		return nil, "", errors.NewCryptoError("ssh", err)
	}
	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(pub)))
	if len(name) > 0 {
		authorized += " " + string(name)
	}

	data := marshalOpenSSH(priv, pub, string(name))
	defer crypto.SecureZero(data)

	return crypto.NewSecretBufferFrom(pem.EncodeToMemory(&pem.Block{Type: "OPENSSH PRIVATE KEY", Bytes: data})), authorized, nil
}

const openSSHMagic = "openssh-key-v1\x00"

// marshalOpenSSH encodes an unencrypted openssh-key-v1 private key.
// ssh.MarshalPrivateKey draws the check integer from crypto/rand; here it is
// taken from the public key so equal keys encode to equal bytes.
func marshalOpenSSH(priv ed25519.PrivateKey, pub ssh.PublicKey, comment string) []byte {
	pubBytes := priv.Public().(ed25519.PublicKey)
	check := binary.BigEndian.Uint32(pubBytes)

	b := struct {
		Check1  uint32
		Check2  uint32
		Keytype string
		Pub     []byte
		Priv    []byte
		Comment string
		Pad     []byte `ssh:"rest"`
	}{check, check, ssh.KeyAlgoED25519, pubBytes, priv, comment, nil}

	// The private block is padded with 1, 2, 3... to the cipher block size,
	// which is 8 for "none".
	unpadded := ssh.Marshal(b)
	for i := byte(1); (len(unpadded)+len(b.Pad))%8 != 0; i++ {
		b.Pad = append(b.Pad, i)
	}
	crypto.SecureZero(unpadded)
	block := ssh.Marshal(b)
	defer crypto.SecureZero(block)

	body := ssh.Marshal(struct {
		CipherName   string
		KdfName      string
		KdfOpts      string
		NumKeys      uint32
		PubKey       []byte
		PrivKeyBlock []byte
	}{"none", "none", "", 1, pub.Marshal(), block})
	defer crypto.SecureZero(body)
	return append([]byte(openSSHMagic), body...)
}

// DeriveFormat derives the output for (name, generation) in format f.
// FormatPassword is identical to DerivePassword.
func (km *KeyMaker) DeriveFormat(key *IdentityKey, name []byte, generation byte, pin []byte, f Format) (*Output, error) {
	switch f {
	case FormatPassword, "":
		pw, err := km.DerivePassword(key, name, generation, pin)
		if err != nil {
			return nil, err
		}
		return &Output{Format: FormatPassword, Secret: pw}, nil
	case FormatPhrase:
		phrase, err := km.DerivePhrase(key, name, generation, pin)
		if err != nil {
			return nil, err
		}
		return &Output{Format: f, Secret: phrase}, nil
	case FormatSSH:
		priv, pub, err := km.DeriveSSHKey(key, name, generation, pin)
		if err != nil {
			return nil, err
		}
		return &Output{Format: f, Secret: priv, Public: pub}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFormat, f)
	}
}
