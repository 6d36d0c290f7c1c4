package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/foliodev/folio/internal/client"
	"github.com/foliodev/folio/internal/service"
)

const (
	serverKey     = "folio_server"
	defaultServer = "http://localhost:8080"
	maxAttempts   = 3
)

var sessionFile string

// openClient builds a client over the persisted session. server overrides
// the URL remembered at login.
func openClient(server string) (*client.Client, *client.FileStorage, error) {
	path := sessionFile
	if path == "" {
		var err error
		path, err = client.DefaultSessionPath()
		if err != nil {
			return nil, nil, err
		}
	}
	fs := client.NewFileStorage(path)

	if server == "" {
		server, _ = fs.Get(serverKey)
	}
	if server == "" {
		server = defaultServer
	}

	sess := client.NewSession(fs)
	if err := sess.Load(); err != nil {
		return nil, nil, fmt.Errorf("load session: %w", err)
	}
	c, err := client.New(server, client.WithSession(sess))
	if err != nil {
		return nil, nil, err
	}
	return c, fs, nil
}

func addClientFlags(cmd *cobra.Command, server *string) {
	cmd.Flags().StringVar(server, "server", "", "folio server URL (default: the one used at login, or "+defaultServer+")")
	cmd.Flags().StringVar(&sessionFile, "session-file", "", "session file (default ~/.folio/session.json)")
}

// ---------- login ----------

func newLoginCmd() *cobra.Command {
	var (
		server string
		email  string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to a folio server as an admin",
		Long: `Sign in interactively. Depending on the account, this asks for your password,
lets you register one on first use, or emails you a one-time code.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, fs, err := openClient(server)
			if err != nil {
				return err
			}
			p := newPrompter(os.Stdin, cmd.OutOrStdout())
			if err := runLogin(cmd.Context(), c, p, cmd.OutOrStdout(), email); err != nil {
				return err
			}
			if server == "" {
				server = defaultServer
				if prev, _ := fs.Get(serverKey); prev != "" {
					server = prev
				}
			}
			return fs.Set(serverKey, server)
		},
	}

	addClientFlags(cmd, &server)
	cmd.Flags().StringVar(&email, "email", "", "Admin email (prompted if omitted)")

	return cmd
}

// runLogin drives the sign-in state machine: email check, then the password,
// registration, or one-time code branch.
func runLogin(ctx context.Context, c *client.Client, p *prompter, out io.Writer, email string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var err error
	if email == "" {
		if email, err = p.line("Email: "); err != nil {
			return err
		}
	}
	email = strings.ToLower(strings.TrimSpace(email))

	status, err := c.CheckEmail(ctx, email)
	if err != nil {
		if client.StatusCode(err) == http.StatusForbidden {
			return fmt.Errorf("%s is not authorized to sign in", email)
		}
		return err
	}

	useOTP := false
	if status.HasPassword {
		useOTP, err = passwordStep(ctx, c, p, out, email)
	} else {
		fmt.Fprintln(out, "No password is set for this account yet.")
		var choice string
		if choice, err = p.choice("Register a password or sign in with an emailed code?", "register", "otp"); err != nil {
			return err
		}
		if choice == "otp" {
			useOTP = true
		} else {
			err = registerStep(ctx, c, p, out, email)
		}
	}
	if err != nil {
		return err
	}
	if useOTP {
		if err := otpStep(ctx, c, p, out, email); err != nil {
			return err
		}
	}

	fmt.Fprintf(out, "Signed in as %s\n", c.Session().User().Email)
	return nil
}

// passwordStep returns true when the user switches to the code branch.
func passwordStep(ctx context.Context, c *client.Client, p *prompter, out io.Writer, email string) (bool, error) {
	for attempt := 1; ; attempt++ {
		pw, err := p.secret("Password (or 'otp' for an emailed code): ")
		if err != nil {
			return false, err
		}
		if strings.EqualFold(pw, "otp") {
			return true, nil
		}
		_, err = c.Login(ctx, email, pw)
		if err == nil {
			return false, nil
		}
		if client.StatusCode(err) != http.StatusUnauthorized || attempt >= maxAttempts {
			return false, err
		}
		fmt.Fprintln(out, "Invalid password, try again.")
	}
}

func registerStep(ctx context.Context, c *client.Client, p *prompter, out io.Writer, email string) error {
	for attempt := 1; ; attempt++ {
		pw, err := p.secret("New password: ")
		if err != nil {
			return err
		}
		confirm, err := p.secret("Confirm password: ")
		if err != nil {
			return err
		}
		var problem string
		switch {
		case pw != confirm:
			problem = "Passwords do not match."
		case utf8.RuneCountInString(pw) < service.MinPasswordLength:
			problem = fmt.Sprintf("Password must be at least %d characters.", service.MinPasswordLength)
		case len(pw) > service.MaxPasswordBytes:
			problem = fmt.Sprintf("Password must be at most %d bytes.", service.MaxPasswordBytes)
		}
		if problem != "" {
			if attempt >= maxAttempts {
				return errors.New(strings.TrimSuffix(problem, "."))
			}
			fmt.Fprintln(out, problem)
			continue
		}

		mobile, err := p.line("Mobile number (optional): ")
		if err != nil {
			return err
		}
		_, err = c.Register(ctx, email, pw, mobile)
		return err
	}
}

func otpStep(ctx context.Context, c *client.Client, p *prompter, out io.Writer, email string) error {
	if err := c.SendOTP(ctx, email); err != nil {
		return err
	}
	fmt.Fprintf(out, "A 6-digit code was sent to %s.\n", email)

	failures := 0
	for {
		code, err := p.line("Code (or 'resend'): ")
		if err != nil {
			return err
		}
		if strings.EqualFold(code, "resend") {
			if err := c.SendOTP(ctx, email); err != nil {
				return err
			}
			fmt.Fprintln(out, "A new code was sent; earlier codes no longer work.")
			continue
		}
		_, err = c.VerifyOTP(ctx, email, code)
		if err == nil {
			return nil
		}
		failures++
		if client.StatusCode(err) != http.StatusUnauthorized || failures >= maxAttempts {
			return err
		}
		fmt.Fprintln(out, "Invalid or expired code, try again.")
	}
}

// ---------- logout / whoami ----------

func newLogoutCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored admin session",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openClient(server)
			if err != nil {
				return err
			}
			if err := c.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
	addClientFlags(cmd, &server)
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	var server string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Check the stored session against the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := openClient(server)
			if err != nil {
				return err
			}
			return runWhoami(cmd.Context(), c, cmd.OutOrStdout())
		},
	}
	addClientFlags(cmd, &server)
	return cmd
}

func runWhoami(ctx context.Context, c *client.Client, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !c.Session().Authenticated() {
		return errors.New("not signed in (run 'folio login')")
	}
	info, err := c.CurrentSession(ctx)
	if client.StatusCode(err) == http.StatusUnauthorized {
		_ = c.Session().Logout()
		return client.ErrSessionExpired
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s (id %d), token expires %s\n",
		info.User.Email, info.User.ID, info.ExpiresAt.Local().Format("2006-01-02 15:04"))
	return nil
}
