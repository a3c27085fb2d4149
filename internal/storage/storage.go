package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"dbwarden/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog/log"
)

// Storage owns the database connection pool.
type Storage struct {
	db       *sql.DB
	orm      *ORM
	dialect  Dialect
	migrator *Migrator
}

// New opens the database described by cfg.
//
// Supported drivers:
//   - "sqlite": development and single-node deployments
//   - "sqlserver": the dashboard repository database
//   - "postgres": shared deployments
//
// Connection pooling is configured from cfg. Pending migrations are applied
// when cfg.AutoMigrate is set.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dialect.Name == sqliteDialect.Name {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply connection pool settings from config
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	orm := NewORM(db, dialect)
	migrator, err := NewMigrator(ctx, orm)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize migrator: %w", err)
	}

	s := &Storage{db: db, orm: orm, dialect: dialect, migrator: migrator}

	if cfg.AutoMigrate {
		if _, err := migrator.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
	}

	log.Info().
		Str("driver", dialect.Name).
		Int("max_open_conns", cfg.MaxOpenConns).
		Msg("Storage initialized")

	return s, nil
}

// sqliteDSN enables WAL, foreign keys, and a busy timeout unless the DSN sets them.
func sqliteDSN(dsn string) string {
	params := []string{"_journal_mode=WAL", "_foreign_keys=on", "_busy_timeout=5000"}

	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range params {
		name := p[:strings.IndexByte(p, '=')+1]
		if strings.Contains(dsn, name) {
			continue
		}
		dsn += sep + p
		sep = "&"
	}
	return dsn
}

// DB returns the underlying connection pool.
func (s *Storage) DB() *sql.DB {
	return s.db
}

// Dialect returns the active SQL dialect.
func (s *Storage) Dialect() Dialect {
	return s.dialect
}

// Migrator returns the schema migrator.
func (s *Storage) Migrator() *Migrator {
	return s.migrator
}

// Ping verifies the database is reachable and reports the round trip time.
func (s *Storage) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// Close closes the underlying database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}
