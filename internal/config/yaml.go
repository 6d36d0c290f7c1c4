package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig represents the top-level folio configuration file.
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Mail     MailConfig     `yaml:"mail"`
	MCP      MCPConfig      `yaml:"mcp"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	MaxBodySize     string     `yaml:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing for the admin panel.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// DatabaseConfig selects the relational backend.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	DataDir         string `yaml:"data_dir"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
}

// AuthConfig controls token signing and credential hashing.
type AuthConfig struct {
	JWTSecret          string `yaml:"jwt_secret"`
	BcryptCost         int    `yaml:"bcrypt_cost"`
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`
}

// MailConfig controls outbound delivery of one-time codes. An empty Host
// is only accepted by serve --dev, which writes codes to the server log.
type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	TLS      string `yaml:"tls"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	Transport string `yaml:"transport"`
	Port      int    `yaml:"port"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file. Environment
// variables referenced as ${VAR_NAME} in the file are expanded before parsing.
// Fields missing from the file keep their defaults.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables: ${VAR_NAME}
	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     "1MB",
			ShutdownTimeout: "15s",
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: "5m",
		},
		Auth: AuthConfig{
			BcryptCost: 12,
		},
		Mail: MailConfig{
			Port: 587,
			From: "folio@localhost",
			TLS:  "starttls",
		},
		MCP: MCPConfig{
			Transport: "stdio",
			Port:      3001,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks enumerated fields and durations.
func (c *YAMLConfig) Validate() error {
	switch strings.ToLower(c.Database.Driver) {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver: unsupported driver %q (want sqlite, postgres or mysql)", c.Database.Driver)
	}
	if c.Database.Driver != "sqlite" && c.Database.DSN == "" {
		return fmt.Errorf("database.dsn: required for driver %q", c.Database.Driver)
	}
	if c.Auth.BcryptCost != 0 && (c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31) {
		return fmt.Errorf("auth.bcrypt_cost: %d is out of range 4-31", c.Auth.BcryptCost)
	}
	if c.Auth.RateLimitPerMinute < 0 {
		return fmt.Errorf("auth.rate_limit_per_minute: must not be negative")
	}
	switch strings.ToLower(c.Mail.TLS) {
	case "", "starttls", "tls", "none":
	default:
		return fmt.Errorf("mail.tls: unsupported mode %q (want starttls, tls or none)", c.Mail.TLS)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format: unsupported format %q (want text or json)", c.Logging.Format)
	}
	if _, err := ParseDuration(c.Server.ShutdownTimeout, 0); err != nil {
		return fmt.Errorf("server.shutdown_timeout: %w", err)
	}
	if _, err := ParseDuration(c.Database.ConnMaxLifetime, 0); err != nil {
		return fmt.Errorf("database.conn_max_lifetime: %w", err)
	}
	if _, err := ParseSize(c.Server.MaxBodySize, 0); err != nil {
		return fmt.Errorf("server.max_body_size: %w", err)
	}
	return nil
}

// ParseDuration parses s, returning def when s is empty.
func ParseDuration(s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return time.ParseDuration(strings.TrimSpace(s))
}

// ParseSize parses a human byte size such as "512KB" or "1MB", returning def
// when s is empty.
func ParseSize(s string, def int64) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return def, nil
	}
	mult := int64(1)
	for _, unit := range []struct {
		suffix string
		mult   int64
	}{
		{"GB", 1 << 30},
		{"MB", 1 << 20},
		{"KB", 1 << 10},
		{"B", 1},
	} {
		if strings.HasSuffix(s, unit.suffix) {
			mult = unit.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, unit.suffix))
			break
		}
	}
	var n int64
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * mult, nil
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	cfg := DefaultYAMLConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	header := "# folio configuration. Every key can be overridden with a FOLIO_ environment\n" +
		"# variable, e.g. FOLIO_AUTH_JWT_SECRET or FOLIO_DATABASE_DSN.\n"
	return os.WriteFile(path, append([]byte(header), data...), 0600)
}
