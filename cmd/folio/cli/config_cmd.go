package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/foliodev/folio/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage folio configuration",
		Long:  "Initialize a default configuration file or display the current effective configuration.",
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())

	return cmd
}

// ---------- config init ----------

func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		path  string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a default folio.yaml configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigInit(cmd.OutOrStdout(), path, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config file")
	cmd.Flags().StringVarP(&path, "output", "o", "folio.yaml", "Where to write the file")

	return cmd
}

func runConfigInit(out io.Writer, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "Set auth.jwt_secret (or FOLIO_AUTH_JWT_SECRET), then run 'folio admin seed' and 'folio serve'.")
	return nil
}

// ---------- config show ----------

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd.OutOrStdout())
		},
	}
}

func runConfigShow(out io.Writer) error {
	cfg, err := loadSettings()
	if err != nil {
		return err
	}

	path := cfgFile
	if path == "" {
		path = "(none found, using defaults)"
		if used := configFileUsed(); used != "" {
			path = used
		}
	}
	fmt.Fprintf(out, "# config file: %s\n", path)

	masked := *cfg
	masked.Auth.JWTSecret = maskSecret(cfg.Auth.JWTSecret)
	masked.Mail.Password = maskSecret(cfg.Mail.Password)
	masked.Database.DSN = maskDSN(cfg.Database.DSN)

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&masked)
}
