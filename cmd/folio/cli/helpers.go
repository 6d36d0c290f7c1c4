package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/foliodev/folio/internal/config"
	"github.com/foliodev/folio/internal/mail"
	"github.com/foliodev/folio/internal/service"
	"github.com/foliodev/folio/internal/store"
)

// resolveDataDir returns database.data_dir, or ~/.folio as fallback.
func resolveDataDir(cfg *config.YAMLConfig) string {
	if cfg.Database.DataDir != "" {
		return cfg.Database.DataDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".folio")
}

// loadSettings builds the effective configuration: defaults, then the config
// file if one was found, then FOLIO_* environment variables.
func loadSettings() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()

	path := cfgFile
	if path == "" {
		path = viper.ConfigFileUsed()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil || cfgFile != "" {
			loaded, err := config.LoadYAMLConfig(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	applyEnv(cfg, envOverrides())
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides returns a viper instance that only sees FOLIO_* variables, so
// IsSet reports explicit environment overrides and nothing else.
func envOverrides() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("FOLIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func applyEnv(cfg *config.YAMLConfig, v *viper.Viper) {
	str := func(dst *string, key string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(dst *int, key string) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str(&cfg.Server.Host, "server.host")
	num(&cfg.Server.Port, "server.port")
	str(&cfg.Server.MaxBodySize, "server.max_body_size")
	str(&cfg.Server.ShutdownTimeout, "server.shutdown_timeout")
	if v.IsSet("server.cors_origins") {
		cfg.Server.CORS.Origins = splitList(v.GetString("server.cors_origins"))
	}

	str(&cfg.Database.Driver, "database.driver")
	str(&cfg.Database.DSN, "database.dsn")
	str(&cfg.Database.DataDir, "database.data_dir")
	num(&cfg.Database.MaxOpenConns, "database.max_open_conns")
	num(&cfg.Database.MaxIdleConns, "database.max_idle_conns")
	str(&cfg.Database.ConnMaxLifetime, "database.conn_max_lifetime")

	str(&cfg.Auth.JWTSecret, "auth.jwt_secret")
	num(&cfg.Auth.BcryptCost, "auth.bcrypt_cost")
	num(&cfg.Auth.RateLimitPerMinute, "auth.rate_limit_per_minute")

	str(&cfg.Mail.Host, "mail.host")
	num(&cfg.Mail.Port, "mail.port")
	str(&cfg.Mail.Username, "mail.username")
	str(&cfg.Mail.Password, "mail.password")
	str(&cfg.Mail.From, "mail.from")
	str(&cfg.Mail.TLS, "mail.tls")

	str(&cfg.MCP.Transport, "mcp.transport")
	num(&cfg.MCP.Port, "mcp.port")

	str(&cfg.Logging.Level, "logging.level")
	str(&cfg.Logging.Format, "logging.format")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// newLogger builds the process logger. --log-level wins over logging.level.
func newLogger(cfg *config.YAMLConfig, debug bool) *slog.Logger {
	level := slog.LevelInfo
	name := cfg.Logging.Level
	if logLevel != "" {
		name = logLevel
	}
	switch strings.ToLower(name) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if debug {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Logging.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// openStore opens the configured database and applies migrations. SQLite
// without a DSN lives in the data directory.
func openStore(ctx context.Context, cfg *config.YAMLConfig, logger *slog.Logger) (*store.Store, error) {
	driver := store.Dialect(strings.ToLower(cfg.Database.Driver))
	dsn := cfg.Database.DSN
	if driver == store.DialectSQLite && dsn == "" {
		var err error
		dsn, err = store.SQLiteDSN(resolveDataDir(cfg))
		if err != nil {
			return nil, err
		}
	}
	lifetime, err := config.ParseDuration(cfg.Database.ConnMaxLifetime, 5*time.Minute)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, store.Config{
		Driver:          driver,
		DSN:             dsn,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: lifetime,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Debug("store opened", "driver", st.Dialect())
	return st, nil
}

// newMailer selects SMTP delivery when mail.host is set. Without a host,
// codes are written to the log, which is only allowed in dev mode.
func newMailer(cfg *config.YAMLConfig, dev bool, logger *slog.Logger) (mail.Sender, error) {
	if cfg.Mail.Host == "" {
		if !dev {
			return nil, fmt.Errorf("mail.host is not set (set FOLIO_MAIL_HOST or run with --dev)")
		}
		logger.Warn("mail.host not set, one-time codes will be written to the log")
		return mail.LogSender{Logger: logger}, nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		TLS:      cfg.Mail.TLS,
	})
}

// newAuthService wires the auth state machine from configuration.
func newAuthService(cfg *config.YAMLConfig, st *store.Store, mailer mail.Sender, secret string, logger *slog.Logger) *service.AuthService {
	opts := []service.Option{service.WithLogger(logger)}
	if cfg.Auth.BcryptCost > 0 {
		opts = append(opts, service.WithBcryptCost(cfg.Auth.BcryptCost))
	}
	return service.NewAuthService(st, mailer, secret, opts...)
}

// --- output ---

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// maskSecret keeps the last four characters of long secrets.
func maskSecret(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) <= 8:
		return "****"
	default:
		return "****" + s[len(s)-4:]
	}
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}

// --- prompts ---

// prompter reads interactive answers. Passwords are read without echo when
// stdin is a terminal.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out, fd: -1}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd = int(f.Fd())
	}
	return p
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	s, err := p.in.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) secret(label string) (string, error) {
	if p.fd < 0 {
		return p.line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(b), nil
}

// choice asks until the answer is one of the options; the first option is
// the default for an empty answer.
func (p *prompter) choice(label string, options ...string) (string, error) {
	for {
		ans, err := p.line(fmt.Sprintf("%s [%s]: ", label, strings.Join(options, "/")))
		if err != nil {
			return "", err
		}
		if ans == "" {
			return options[0], nil
		}
		for _, o := range options {
			if strings.EqualFold(ans, o) {
				return o, nil
			}
		}
		fmt.Fprintf(p.out, "Please answer one of: %s\n", strings.Join(options, ", "))
	}
}

// configFileUsed returns the config file viper found, if it exists.
func configFileUsed() string {
	path := viper.ConfigFileUsed()
	if path == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// maskDSN hides the password in URL-style and user:pass@host DSNs.
func maskDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "****")
			return u.String()
		}
		return dsn
	}
	at := strings.LastIndex(dsn, "@")
	colon := strings.Index(dsn, ":")
	if at > 0 && colon >= 0 && colon < at {
		return dsn[:colon+1] + "****" + dsn[at:]
	}
	return dsn
}
