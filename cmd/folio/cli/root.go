package cli

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	logLevel   string
	appVersion string
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folio",
		Short: "Portfolio content API with passwordless admin sign-in",
		Long: `folio serves the public content of a personal portfolio site and the
admin sign-in flow used to edit it.

Admins are whitelisted out of band with 'folio admin seed'. A whitelisted
admin signs in with a password, registers one on first use, or asks for a
one-time code by email. Content is stored as whole JSON documents per bucket.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./folio.yaml or ~/.folio/folio.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")

	cobra.OnInitialize(initConfig)

	// Server and operator commands
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newOTPCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newOpenAPICmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))

	// Admin client commands
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newContentCmd())

	return cmd
}

func initConfig() {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("folio")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.folio")
	}

	viper.SetEnvPrefix("FOLIO")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	viper.ReadInConfig() // Ignore error - config file is optional
}
