// Command accounts drives the local account store from a terminal: register,
// sign in and out, reset a password, and ask the route guards for a verdict.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"wellnesscoach/site-accounts/internal/accounts"
	"wellnesscoach/site-accounts/internal/app"
	"wellnesscoach/site-accounts/internal/config"
	"wellnesscoach/site-accounts/internal/forms"
	"wellnesscoach/site-accounts/internal/guard"
	"wellnesscoach/site-accounts/internal/observability"
)

const usage = `usage: accounts <command> [flags]

commands:
  register        -first NAME -last NAME -email EMAIL [-password P -confirm P]
  login           -email EMAIL [-password P]
  logout
  whoami
  reset-password  -email EMAIL [-password P -confirm P]
  users
  guard           [-page admin|auth]
`

var errUsage = errors.New("usage")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	logger := observability.NewLogger(observability.Options{
		ServiceName: "accounts",
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})

	a, err := app.New(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create app: %v\n", err)
		os.Exit(1)
	}

	c := newCLI(a.Accounts, a.Guard, os.Stdin, os.Stdout)
	code := c.run(os.Args[1:], os.Stderr)
	if err := a.Close(); err != nil {
		logger.Warn().Err(err).Msg("close storage")
	}
	os.Exit(code)
}

type cli struct {
	store *accounts.Store
	guard guard.Guard
	in    *bufio.Reader
	out   io.Writer

	// readSecret reads a password without echo; nil means read a plain line.
	readSecret func() (string, error)
}

func newCLI(store *accounts.Store, g guard.Guard, in io.Reader, out io.Writer) *cli {
	c := &cli{store: store, guard: g, in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.readSecret = func() (string, error) {
			b, err := term.ReadPassword(int(f.Fd()))
			fmt.Fprintln(c.out)
			return string(b), err
		}
	}
	return c
}

// run executes one command and returns the process exit code.
func (c *cli) run(args []string, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "register":
		err = c.register(args[1:])
	case "login":
		err = c.login(args[1:])
	case "logout":
		err = c.logout()
	case "whoami":
		c.whoami()
	case "reset-password":
		err = c.resetPassword(args[1:])
	case "users":
		err = c.users()
	case "guard":
		err = c.checkGuard(args[1:])
	case "help", "-h", "--help":
		fmt.Fprint(c.out, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", args[0], usage)
		return 2
	}

	var fieldErrs forms.FieldErrors
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintln(stderr, err)
		fmt.Fprint(stderr, usage)
		return 2
	case errors.As(err, &fieldErrs):
		fmt.Fprintf(stderr, "invalid input: %v\n", fieldErrs)
		return 2
	default:
		fmt.Fprintln(stderr, err)
		return 1
	}
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, fs.Arg(0))
	}
	return nil
}

func (c *cli) register(args []string) error {
	fs := newFlagSet("register")
	var form forms.RegistrationForm
	fs.StringVar(&form.FirstName, "first", "", "first name")
	fs.StringVar(&form.LastName, "last", "", "last name")
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.Password, "password", "", "password")
	fs.StringVar(&form.ConfirmPassword, "confirm", "", "password confirmation")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if form.Password, form.ConfirmPassword, err = c.passwordPair(form.Password, form.ConfirmPassword); err != nil {
		return err
	}
	if err := forms.Validate(&form); err != nil {
		return err
	}

	rec, err := c.store.Register(form.FirstName, form.LastName, form.Email, form.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "registered %s (%s)\n", rec.Email, rec.DisplayName())
	return nil
}

func (c *cli) login(args []string) error {
	fs := newFlagSet("login")
	var form forms.LoginForm
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.Password, "password", "", "password")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	if form.Password == "" {
		p, err := c.prompt("Password: ")
		if err != nil {
			return err
		}
		form.Password = p
	}
	if err := forms.Validate(&form); err != nil {
		return err
	}

	sess, err := c.store.Login(form.Email, form.Password)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "signed in as %s\n", sess.DisplayName())
	return nil
}

func (c *cli) logout() error {
	if _, ok := c.store.CurrentUser(); !ok {
		fmt.Fprintln(c.out, "not signed in")
		return nil
	}
	if err := c.store.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "signed out")
	return nil
}

func (c *cli) whoami() {
	sess, ok := c.store.CurrentUser()
	if !ok {
		fmt.Fprintln(c.out, "not signed in")
		return
	}
	role := "member"
	if sess.HasAdminRights() {
		role = accounts.RoleAdmin
	}
	fmt.Fprintf(c.out, "%s [%s] <%s> %s\n", sess.DisplayName(), sess.Initials(), sess.Email, role)
}

func (c *cli) resetPassword(args []string) error {
	fs := newFlagSet("reset-password")
	var form forms.ResetPasswordForm
	fs.StringVar(&form.Email, "email", "", "email")
	fs.StringVar(&form.NewPassword, "password", "", "new password")
	fs.StringVar(&form.ConfirmPassword, "confirm", "", "new password confirmation")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if form.NewPassword, form.ConfirmPassword, err = c.passwordPair(form.NewPassword, form.ConfirmPassword); err != nil {
		return err
	}
	if err := forms.Validate(&form); err != nil {
		return err
	}

	if err := c.store.ResetPassword(form.Email, form.NewPassword); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "password updated for %s\n", accounts.NormalizeEmail(form.Email))
	return nil
}

func (c *cli) users() error {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tNAME\tROLE\tLAST LOGIN\tLAST LOGOUT")
	for _, u := range c.store.ListUsers() {
		role := "member"
		if u.HasAdminRights() {
			role = accounts.RoleAdmin
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.Email, u.DisplayName(), role, dash(u.LoginTime), dash(u.LogoutTime))
	}
	return tw.Flush()
}

func (c *cli) checkGuard(args []string) error {
	fs := newFlagSet("guard")
	page := fs.String("page", "admin", "admin or auth")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var res guard.Result
	switch *page {
	case "admin":
		res = c.guard.Admin(c.store)
	case "auth":
		res = c.guard.RequireAuth(c.store)
	default:
		return fmt.Errorf("%w: unknown page %q", errUsage, *page)
	}

	if res.Decision == guard.Render {
		fmt.Fprintln(c.out, res.Decision)
		return nil
	}
	fmt.Fprintf(c.out, "%s %s\n", res.Decision, res.Location)
	return nil
}

// passwordPair prompts for whichever of password and confirmation is
// missing. A password given without a confirmation confirms itself.
func (c *cli) passwordPair(password, confirm string) (string, string, error) {
	if password != "" {
		if confirm == "" {
			confirm = password
		}
		return password, confirm, nil
	}
	password, err := c.prompt("Password: ")
	if err != nil {
		return "", "", err
	}
	confirm, err = c.prompt("Confirm password: ")
	if err != nil {
		return "", "", err
	}
	return password, confirm, nil
}

func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.out, label)
	if c.readSecret != nil {
		return c.readSecret()
	}
	line, err := c.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
