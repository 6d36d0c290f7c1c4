package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/foliodev/folio/internal/config"
	"github.com/foliodev/folio/internal/server"
	"github.com/foliodev/folio/internal/service"
)

const devJWTSecret = "folio-dev-secret-change-me"

// minProductionBcryptCost is enforced unless --dev is given.
const minProductionBcryptCost = 10

func newServeCmd() *cobra.Command {
	var (
		port   int
		host   string
		dev    bool
		noCORS bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the folio API server",
		Long:  "Start the HTTP server that exposes the admin sign-in endpoints and the content API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSettings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if noCORS {
				cfg.Server.CORS.Origins = nil
			}
			return runServe(cmd.Context(), cfg, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Development mode (debug logging, insecure fallback JWT secret, codes logged instead of mailed)")
	cmd.Flags().BoolVar(&noCORS, "no-cors", false, "Disable CORS headers")

	return cmd
}

func runServe(ctx context.Context, cfg *config.YAMLConfig, dev bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg, dev)

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		if !dev {
			return fmt.Errorf("auth.jwt_secret is not set (set FOLIO_AUTH_JWT_SECRET or run with --dev)")
		}
		logger.Warn("using the built-in development JWT secret; tokens are forgeable")
		secret = devJWTSecret
	}
	if !dev && cfg.Auth.BcryptCost > 0 && cfg.Auth.BcryptCost < minProductionBcryptCost {
		return fmt.Errorf("auth.bcrypt_cost %d is below the production minimum of %d", cfg.Auth.BcryptCost, minProductionBcryptCost)
	}

	shutdown, err := config.ParseDuration(cfg.Server.ShutdownTimeout, 15*time.Second)
	if err != nil {
		return err
	}
	maxBody, err := config.ParseSize(cfg.Server.MaxBodySize, 1<<20)
	if err != nil {
		return err
	}

	mailer, err := newMailer(cfg, dev, logger)
	if err != nil {
		return fmt.Errorf("init mailer: %w", err)
	}

	// 1. Store
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	logger.Info("store initialized", "driver", st.Dialect())

	// 2. Services
	authSvc := newAuthService(cfg, st, mailer, secret, logger)
	contentSvc := service.NewContentService(st, logger)

	admins, err := st.ListAdmins(ctx)
	if err != nil {
		logger.Warn("failed to check for admins", "error", err)
	} else if len(admins) == 0 {
		logger.Warn("no admin is whitelisted - run: folio admin seed --email you@example.com")
	}

	// 3. HTTP server
	srv := server.New(server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: shutdown,
		CORSOrigins:     cfg.Server.CORS.Origins,
		MaxBodySize:     maxBody,
		AuthRateLimit:   cfg.Auth.RateLimitPerMinute,
		Version:         versionString(),
	}, st, authSvc, contentSvc, logger)

	fmt.Printf("→ folio %s\n", versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.Run(ctx)
}
