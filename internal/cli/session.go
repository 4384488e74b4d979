package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"keymaker/internal/errors"
	"keymaker/internal/keymaker"
	"keymaker/internal/session"

	"github.com/spf13/cobra"
)

const promptSymbol = "¤"

var sessionHelp = fmt.Sprintf(`Enter a target name to derive its secret. Names are used verbatim.
Commands:
  :format [%s]  show or change the output format
  :help                          show this help
  :q, :quit                      end the session
Start a name with a backslash to derive a name beginning with ':'.`, keymaker.FormatList("|"))

// runSession imports the identity, then derives one secret per input line
// until EOF, interrupt or :quit.
func (a *app) runSession(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	km, err := a.engine(a.settings)
	if err != nil {
		return err
	}

	reporter := a.newReporter()
	opts := a.settings.GuardOptions()
	opts.Reporter = reporter
	guard, err := session.NewGuard(km, a.source(), opts)
	if err != nil {
		return err
	}

	id, err := guard.Import(ctx, a.settings.IdentityName())
	reporter.Finish()
	if err != nil {
		return err
	}
	defer id.Destroy()
	reporter.PrintSuccess("identity %s ready, :help lists the commands", id.LabelHex())

	s := &replState{
		app:      a,
		guard:    guard,
		id:       id,
		reporter: reporter,
		format:   keymaker.Format(a.settings.Format),
	}
	return s.loop(ctx)
}

type replState struct {
	*app
	guard    *session.Guard
	id       *session.Identity
	reporter *Reporter
	format   keymaker.Format
}

func (s *replState) loop(ctx context.Context) error {
	prompt := s.id.LabelHex() + " " + promptSymbol + " "
	for {
		if ctx.Err() != nil {
			return nil
		}

		promptColor.Fprint(s.errOut, prompt)
		line, err := s.in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			fmt.Fprintln(s.errOut)
			if err == io.EOF {
				return nil
			}
			return errors.NewInputError("command", err)
		}

		quit, err := s.handle(ctx, strings.TrimRight(line, "\r\n"))
		switch {
		case err == nil:
		case errors.IsCancelled(err):
			return nil
		case recoverable(err):
			s.reporter.PrintError("%v", err)
		default:
			return err
		}
		if quit {
			return nil
		}
	}
}

// recoverable reports whether the session can go on after err.
func recoverable(err error) bool {
	var verr *errors.ValidationError
	return errors.IsAuthFailed(err) ||
		errors.Is(err, errors.ErrAttemptsLocked) ||
		errors.Is(err, errors.ErrInput) ||
		errors.As(err, &verr)
}

// handle runs one input line and reports whether the session should end.
func (s *replState) handle(ctx context.Context, line string) (bool, error) {
	switch {
	case line == "":
		return false, nil
	case strings.HasPrefix(line, `\`):
		line = line[1:]
	case strings.HasPrefix(line, ":"):
		return s.command(line), nil
	}

	out, err := s.guard.Derive(ctx, s.id, []byte(line), s.format)
	s.reporter.Finish()
	if err != nil {
		return false, err
	}
	defer out.Close()

	return false, s.deliver(out)
}

// command runs a colon command and reports whether the session should end.
func (s *replState) command(line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":q", ":quit", ":exit":
		return true
	case ":format", ":f":
		if len(fields) == 1 {
			fmt.Fprintf(s.errOut, "format: %s (available: %s)\n", s.format, keymaker.FormatList(", "))
			return false
		}
		f, err := keymaker.ParseFormat(fields[1])
		if err != nil {
			s.reporter.PrintError("%v", err)
			return false
		}
		s.format = f
	case ":help", ":h", ":?":
		fmt.Fprintln(s.errOut, sessionHelp)
	default:
		s.reporter.PrintError("unknown command %q, try :help", fields[0])
	}
	return false
}

// deliver writes a derived secret to the output stream.
func (a *app) deliver(out *keymaker.Output) error {
	var err error
	write := func(b []byte) {
		if err == nil {
			_, err = a.out.Write(b)
		}
	}

	switch out.Format {
	case keymaker.FormatSSH:
		write(out.Secret.Bytes())
		write([]byte(out.Public + "\n"))
	default:
		write([]byte(string(out.Format) + ": "))
		write(out.Secret.Bytes())
		write([]byte("\n"))
	}
	if err != nil {
		return errors.Wrap(err, "writing output")
	}
	return nil
}
