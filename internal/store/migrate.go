package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*/*.sql
var migrationsFS embed.FS

// goose keeps its dialect, filesystem and logger in package globals.
var gooseMu sync.Mutex

func (s *Store) migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	dialect := map[Dialect]string{
		DialectSQLite:   "sqlite3",
		DialectPostgres: "postgres",
		DialectMySQL:    "mysql",
	}[s.dialect]

	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{logger: s.logger})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, s.db.DB, "migrations/"+string(s.dialect)); err != nil {
		return err
	}
	return nil
}

// gooseLogger routes goose's printf-style output into slog.
type gooseLogger struct {
	logger *slog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "migrate")
}
