package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Migration is one versioned schema change with its inverse.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

// MigrationRecord is a row of schema_migrations.
type MigrationRecord struct {
	Version   int       `db:"version"`
	Name      string    `db:"name"`
	AppliedAt time.Time `db:"applied_at"`
}

// Migrator applies the built-in schema migrations in version order and
// records each one in schema_migrations.
type Migrator struct {
	orm        *ORM
	migrations []Migration
}

// NewMigrator ensures the tracking table exists and registers the built-in
// migrations rendered for the ORM's dialect.
func NewMigrator(ctx context.Context, orm *ORM) (*Migrator, error) {
	m := &Migrator{orm: orm}
	if err := m.createMigrationsTable(ctx); err != nil {
		return nil, err
	}
	m.registerBuiltinMigrations()
	return m, nil
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	d := m.orm.dialect
	body := fmt.Sprintf("schema_migrations (version INTEGER PRIMARY KEY, name %s NOT NULL, applied_at %s NOT NULL)",
		d.TextType, d.TimeType)

	query := "CREATE TABLE IF NOT EXISTS " + body
	if d.Name == sqlServerDialect.Name {
		query = "IF OBJECT_ID(N'schema_migrations', N'U') IS NULL CREATE TABLE " + body
	}
	if _, err := m.orm.Exec(ctx, query); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

// registerBuiltinMigrations registers the threshold schema.
//
// Scope columns use -1 for "not applicable at this level", so the primary key
// covers every scope shape without nullable key columns.
func (m *Migrator) registerBuiltinMigrations() {
	d := m.orm.dialect

	m.add(Migration{
		Version: 1,
		Name:    "create_thresholds_table",
		UpSQL: fmt.Sprintf(`
			CREATE TABLE thresholds (
				reference %[1]s NOT NULL,
				instance_id INTEGER NOT NULL DEFAULT -1,
				database_id INTEGER NOT NULL DEFAULT -1,
				file_id INTEGER NOT NULL DEFAULT -1,
				mode %[2]s NOT NULL CHECK (mode IN ('inherit', 'enabled', 'disabled')),
				check_type %[2]s NULL,
				warning_threshold %[3]s NULL,
				critical_threshold %[3]s NULL,
				updated_at %[4]s NOT NULL,
				PRIMARY KEY (reference, instance_id, database_id, file_id)
			);
		`, d.TextType, d.ShortTextType, d.FloatType, d.TimeType),
		DownSQL: `DROP TABLE thresholds;`,
	})

	m.add(Migration{
		Version: 2,
		Name:    "create_thresholds_scope_index",
		UpSQL:   `CREATE INDEX idx_thresholds_scope ON thresholds(instance_id, database_id, file_id);`,
		DownSQL: `DROP INDEX idx_thresholds_scope` + dropIndexSuffix(d) + `;`,
	})
}

// dropIndexSuffix returns the table qualifier SQL Server requires on DROP INDEX.
func dropIndexSuffix(d Dialect) string {
	if d.Name == sqlServerDialect.Name {
		return " ON thresholds"
	}
	return ""
}

// add registers a migration, keeping the list ordered by version.
func (m *Migrator) add(mg Migration) {
	m.migrations = append(m.migrations, mg)
	slices.SortFunc(m.migrations, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
}

// Migrate applies every pending migration, each in its own transaction, and
// returns how many ran.
func (m *Migrator) Migrate(ctx context.Context) (int, error) {
	pending, err := m.GetPendingMigrations(ctx)
	if err != nil {
		return 0, err
	}

	for n, mg := range pending {
		log.Info().Int("version", mg.Version).Str("name", mg.Name).Msg("Applying migration")

		err := m.orm.InTx(ctx, func(tx *ORM) error {
			if err := execScript(ctx, tx, mg.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
				mg.Version, mg.Name, time.Now().UTC())
			return err
		})
		if err != nil {
			return n, fmt.Errorf("migration %d (%s): %w", mg.Version, mg.Name, err)
		}
	}

	if len(pending) > 0 {
		log.Info().Int("count", len(pending)).Msg("Database migrations completed")
	}
	return len(pending), nil
}

// Rollback reverts up to steps of the most recently applied migrations and
// returns how many were reverted.
func (m *Migrator) Rollback(ctx context.Context, steps int) (int, error) {
	applied, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return 0, err
	}

	n := 0
	for i := len(applied) - 1; i >= 0 && n < steps; i-- {
		version := applied[i].Version
		idx := slices.IndexFunc(m.migrations, func(mg Migration) bool { return mg.Version == version })
		if idx < 0 {
			return n, fmt.Errorf("applied migration %d is not registered", version)
		}
		mg := m.migrations[idx]

		log.Info().Int("version", mg.Version).Str("name", mg.Name).Msg("Reverting migration")

		err := m.orm.InTx(ctx, func(tx *ORM) error {
			if err := execScript(ctx, tx, mg.DownSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "DELETE FROM schema_migrations WHERE version = ?", mg.Version)
			return err
		})
		if err != nil {
			return n, fmt.Errorf("revert migration %d (%s): %w", mg.Version, mg.Name, err)
		}
		n++
	}
	return n, nil
}

// execScript runs a script statement by statement. Statements are split on
// semicolons, so literals must not contain one.
func execScript(ctx context.Context, tx *ORM, script string) error {
	for i, stmt := range strings.Split(script, ";") {
		if stmt = strings.TrimSpace(stmt); stmt == "" {
			continue
		}
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

// GetMigrationStatus returns the applied migrations ordered by version.
func (m *Migrator) GetMigrationStatus(ctx context.Context) ([]MigrationRecord, error) {
	records, err := From[MigrationRecord](m.orm, "schema_migrations").OrderBy("version").All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read migration status: %w", err)
	}
	return records, nil
}

// GetPendingMigrations returns the registered migrations not applied yet.
func (m *Migrator) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	applied, err := m.GetMigrationStatus(ctx)
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, mg := range m.migrations {
		if !slices.ContainsFunc(applied, func(r MigrationRecord) bool { return r.Version == mg.Version }) {
			pending = append(pending, mg)
		}
	}
	return pending, nil
}
