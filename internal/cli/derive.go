package cli

import (
	"context"
	"fmt"

	"keymaker/internal/crypto"
	"keymaker/internal/errors"
	"keymaker/internal/keymaker"
	"keymaker/internal/session"

	"github.com/spf13/cobra"
)

func newDeriveCmd(a *app) *cobra.Command {
	var generation uint8

	cmd := &cobra.Command{
		Use:   "derive <name>",
		Short: "Derive one secret for a name and exit",
		Long: `Derive asks for the passphrase and PIN, derives the secret of <name> in
the selected --format and prints it. Use --generation to derive a
replacement secret for the same name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDerive(cmd.Context(), []byte(args[0]), generation)
		},
	}
	cmd.Flags().Uint8VarP(&generation, "generation", "g", 0, "generation counter of the name")
	return cmd
}

func (a *app) runDerive(ctx context.Context, name []byte, generation byte) error {
	km, err := a.engine(a.settings)
	if err != nil {
		return err
	}
	format, err := keymaker.ParseFormat(a.settings.Format)
	if err != nil {
		return err
	}

	var passphrase, pin *crypto.SecretBuffer
	defer func() { crypto.CloseAll(passphrase, pin) }()

	src := a.source()
	if passphrase, err = src.ReadSecret(ctx, session.PromptPassphrase); err != nil {
		return err
	}
	if pin, err = src.ReadSecret(ctx, session.PromptPIN); err != nil {
		return err
	}

	if err := km.CheckPIN(pin.Bytes()); err != nil {
		return err
	}

	reporter := a.newReporter()
	defer reporter.Finish()

	reporter.SetStatus("Deriving identity key...")
	reporter.Update()
	key, err := km.DeriveIdentity(passphrase.Bytes(), a.settings.IdentityName(), 0, pin.Bytes())
	if err != nil {
		return err
	}
	defer key.Close()
	passphrase.Close()

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrCancelled, err)
	}

	reporter.SetStatus(fmt.Sprintf("Deriving %s...", format))
	reporter.Update()
	out, err := km.DeriveFormat(key, name, generation, pin.Bytes(), format)
	if err != nil {
		return err
	}
	defer out.Close()

	reporter.Finish()
	return a.deliver(out)
}
