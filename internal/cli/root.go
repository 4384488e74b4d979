package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"keymaker/internal/config"
	"keymaker/internal/errors"
	"keymaker/internal/keymaker"
	"keymaker/internal/log"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// app carries the streams and settings shared by every command.
type app struct {
	in       *bufio.Reader
	out      io.Writer
	errOut   io.Writer
	fd       int
	terminal bool

	settings  *config.Settings
	logCloser io.Closer

	// engine builds the keymaker engine; replaced in tests.
	engine func(s *config.Settings) (*keymaker.KeyMaker, error)
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	a := &app{
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		fd:     -1,
		engine: (*config.Settings).Engine,
	}
	if f, ok := in.(*os.File); ok {
		a.fd = int(f.Fd())
		a.terminal = term.IsTerminal(a.fd)
	}
	return a
}

func (a *app) source() *terminalSource {
	return &terminalSource{in: a.in, out: a.errOut, fd: a.fd, terminal: a.terminal}
}

func (a *app) newReporter() *Reporter {
	return NewReporter(a.errOut, !a.terminal)
}

// newRootCmd builds the command tree. Running the root command without a
// subcommand starts an interactive session.
func newRootCmd(a *app, version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keymaker",
		Short: "Derive passwords and keys from a passphrase and a PIN",
		Long: `keymaker derives passwords, BIP39 phrases and SSH keys deterministically
from a passphrase, a PIN and a target name. Nothing is stored on disk.

Running keymaker without a command asks for the passphrase and PIN once,
keeps the identity key encrypted in memory, then reads one target name per
line. Every derivation asks for the PIN again.

  - scrypt for every derivation (memory-hard, configurable cost)
  - AES-256-OFB or Serpent-256-OFB protecting the identity key in memory
  - every setting can also be given as a KEYMAKER_* environment variable`,
		Version:           version,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runSession,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	config.AddFlags(cmd.PersistentFlags())
	cmd.AddCommand(newDeriveCmd(a), newProfileCmd(a), newBackendsCmd(a))
	return cmd
}

// setup loads the settings and configures logging and colors.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(cmd.Flags())
	if err != nil {
		return err
	}
	s, err := config.Load(v)
	if err != nil {
		return err
	}
	a.settings = s

	if s.NoColor {
		color.NoColor = true
	}

	level, _ := log.ParseLevel(s.LogLevel)
	if s.LogFile != "" {
		closer, err := log.EnableFileLogging(s.LogFile, level)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.logCloser = closer
	} else {
		log.SetLogger(log.NewLogger(a.errOut, level))
	}
	return nil
}

// close releases the log file, if any, and disables logging.
func (a *app) close() {
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
	log.SetLogger(nil)
}

// Execute runs the command line and returns the process exit code.
func Execute(version string) int {
	// The first interrupt cancels the context; a second one kills the process.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	context.AfterFunc(ctx, stop)

	a := newApp(os.Stdin, os.Stdout, os.Stderr)
	defer a.close()
	if err := newRootCmd(a, version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, report(err))
		return 1
	}
	return 0
}

// report formats a fatal error for the terminal.
func report(err error) string {
	msg := "keymaker: " + err.Error()
	if errors.IsKDF(err) {
		msg += " (check the scrypt settings and the identity key length)"
	}
	return msg
}
