package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

//go:embed migrations
var migrations embed.FS

const migrationTable = "schema_migrations"

type migration struct {
	name string
	up   string
}

func getMigrations() ([]migration, error) {
	migDir, err := migrations.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}
	res := make([]migration, 0, len(migDir))
	for _, f := range migDir {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".sql") {
			continue
		}
		content, err := migrations.ReadFile(filepath.ToSlash(filepath.Join("migrations", f.Name())))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Name(), err)
		}
		res = append(res, migration{name: f.Name(), up: extractUp(string(content))})
	}
	slices.SortFunc(res, func(a, b migration) int {
		return strings.Compare(a.name, b.name)
	})
	return res, nil
}

// extractUp returns the statements between the Up and Down markers
func extractUp(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	content = content[upIdx+len("-- +migrate Up"):]
	if downIdx := strings.Index(content, "-- +migrate Down"); downIdx != -1 {
		content = content[:downIdx]
	}
	return content
}

// applyMigrations runs every migration that is not recorded in the migration table, each in its own transaction
func (d *DB) applyMigrations(ctx context.Context) error {
	if _, err := d.sqlDB.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`, migrationTable)); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}
	migs, err := getMigrations()
	if err != nil {
		return err
	}
	for _, m := range migs {
		var count int
		err := d.sqlDB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE name = ?", migrationTable), m.name).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", m.name, err)
		}
		if count > 0 {
			continue
		}
		if err := d.inTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("INSERT INTO %s (name, applied_at) VALUES (?, ?)", migrationTable), m.name, time.Now().UTC().UnixMilli())
			return err
		}); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", m.name, err)
		}
		d.logger.Info("applied migration", "name", m.name)
	}
	return nil
}
