package postgresql

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/cmlabs-hris/payroll-backend-go/internal/repository/postgresql/migrations"
)

// Migrate applies the embedded schema migrations that have not run yet.
func Migrate(ctx context.Context, db *database.DB) error {
	if _, err := db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	entries, err := fs.ReadDir(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := fs.ReadFile(migrations.FS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := database.ExtractUpMigration(string(content))

		err = WithTransaction(ctx, db, func(txCtx context.Context) error {
			q := GetQuerier(txCtx, db)
			tag, err := q.Exec(txCtx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT DO NOTHING`, file)
			if err != nil {
				return fmt.Errorf("record migration %s: %w", file, err)
			}
			if tag.RowsAffected() == 0 {
				return nil
			}
			if _, err := q.Exec(txCtx, upSQL); err != nil {
				return fmt.Errorf("exec migration %s: %w", file, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
