package cli

import (
	"fmt"

	"keymaker/internal/crypto"
	"keymaker/internal/keymaker"
	"keymaker/internal/passgen"
	"keymaker/internal/util"

	"github.com/spf13/cobra"
)

func newProfileCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the effective profile and what it costs",
		Long: `Profile prints the profile built from the current flags and environment,
the memory each derivation needs, the password entropy estimate and a
sample password with its zxcvbn strength score. The sample is random and
not derived from any identity.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runProfile()
		},
	}
}

func (a *app) runProfile() error {
	km, err := a.engine(a.settings)
	if err != nil {
		return err
	}
	text, err := a.settings.ProfileYAML()
	if err != nil {
		return err
	}

	p := km.Profile()
	sample, err := passgen.Sample(p.User.Password)
	if err != nil {
		return err
	}
	defer crypto.SecureZero(sample)

	w := a.out
	fmt.Fprintln(w, "# profile")
	w.Write(text)
	fmt.Fprintln(w, "# report")
	fmt.Fprintf(w, "backend: %s\n", a.settings.Backend)
	fmt.Fprintf(w, "cipher: %s\n", a.settings.Cipher)
	fmt.Fprintf(w, "identity key memory: %s\n", util.Sizeify(p.Crypto.Scrypt.Memory()))
	fmt.Fprintf(w, "hash memory: %s\n", util.Sizeify(keymaker.HashParams().Memory()))
	fmt.Fprintf(w, "password entropy: %s\n", util.Bitsify(p.Entropy()))
	fmt.Fprintf(w, "sample password: %s (strength %d/4)\n", sample, passgen.Strength(sample))
	return nil
}

func newBackendsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the available KDF backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range crypto.Backends() {
				mark := " "
				if name == a.settings.Backend {
					mark = "*"
				}
				fmt.Fprintf(a.out, "%s %s\n", mark, name)
			}
			return nil
		},
	}
}
