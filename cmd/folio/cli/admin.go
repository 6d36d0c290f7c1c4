package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/foliodev/folio/internal/store"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage the admin whitelist",
		Long: `Seed and inspect whitelisted admin identities. Only seeded emails can sign in;
public registration only sets a password on an identity seeded here.`,
	}

	cmd.AddCommand(newAdminSeedCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminResetPasswordCmd())

	return cmd
}

// withStore loads settings, opens the store, and runs fn with it.
func withStore(ctx context.Context, fn func(context.Context, *store.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(cfg, false)
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

// ---------- admin seed ----------

func newAdminSeedCmd() *cobra.Command {
	var (
		email  string
		mobile string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Whitelist an admin email",
		Example: `  folio admin seed --email admin@example.com
  folio admin seed --email admin@example.com --mobile "+1 555 0100"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				return runAdminSeed(ctx, cmd.OutOrStdout(), st, email, mobile)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&mobile, "mobile", "", "Optional mobile number")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminSeed(ctx context.Context, out io.Writer, st *store.Store, email, mobile string) error {
	email = store.NormalizeEmail(email)
	if !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %q", email)
	}
	var mob *string
	if m := strings.TrimSpace(mobile); m != "" {
		mob = &m
	}

	admin, created, err := st.SeedAdmin(ctx, email, mob)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		fmt.Fprintf(out, "Whitelisted %s (id %d)\n", admin.Email, admin.ID)
	} else {
		fmt.Fprintf(out, "%s is already whitelisted (id %d)\n", admin.Email, admin.ID)
	}
	if !admin.HasPassword() {
		fmt.Fprintln(out, "  The admin sets a password on first sign-in, or signs in with an emailed code.")
	}
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List whitelisted admins",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				return runAdminList(ctx, cmd.OutOrStdout(), st, jsonOutput)
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(ctx context.Context, out io.Writer, st *store.Store, jsonOutput bool) error {
	admins, err := st.ListAdmins(ctx)
	if err != nil {
		return fmt.Errorf("list admins: %w", err)
	}

	type adminRow struct {
		ID          int64  `json:"id"`
		Email       string `json:"email"`
		HasPassword bool   `json:"has_password"`
		Mobile      string `json:"mobile,omitempty"`
		CreatedAt   string `json:"created_at"`
	}
	rows := make([]adminRow, len(admins))
	for i, a := range admins {
		rows[i] = adminRow{
			ID:          a.ID,
			Email:       a.Email,
			HasPassword: a.HasPassword(),
			Mobile:      deref(a.Mobile),
			CreatedAt:   a.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}
	}

	if jsonOutput {
		return printJSON(out, rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No admins whitelisted. Use 'folio admin seed --email ...' to add one.")
		return nil
	}

	fmt.Fprintf(out, "%-6s %-32s %-9s %-16s %s\n", "ID", "EMAIL", "PASSWORD", "MOBILE", "CREATED")
	fmt.Fprintf(out, "%-6s %-32s %-9s %-16s %s\n", "--", "-----", "--------", "------", "-------")
	for _, r := range rows {
		pw := "no"
		if r.HasPassword {
			pw = "yes"
		}
		fmt.Fprintf(out, "%-6d %-32s %-9s %-16s %s\n", r.ID, r.Email, pw, r.Mobile, r.CreatedAt)
	}
	return nil
}

// ---------- admin reset-password ----------

func newAdminResetPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Clear an admin's password so they can register again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, st *store.Store) error {
				return runAdminResetPassword(ctx, cmd.OutOrStdout(), st, email)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminResetPassword(ctx context.Context, out io.Writer, st *store.Store, email string) error {
	err := st.ResetAdminPassword(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s is not whitelisted", store.NormalizeEmail(email))
	}
	if err != nil {
		return fmt.Errorf("reset password: %w", err)
	}
	fmt.Fprintf(out, "Password cleared for %s; the next sign-in goes through registration.\n", store.NormalizeEmail(email))
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
