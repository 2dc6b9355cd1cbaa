// Migration runner
package migration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Database is the part of *database.Manager the runner needs.
type Database interface {
	Migrate() error
	Exec(ctx context.Context, stmt string) error
}

type Runner struct {
	db     Database
	logger *logrus.Logger
}

func NewRunner(db Database, logger *logrus.Logger) *Runner {
	return &Runner{
		db:     db,
		logger: logger,
	}
}

// RunMigrations auto-migrates the models, then applies every .sql file in
// migrationsPath in name order. A missing directory is skipped.
func (r *Runner) RunMigrations(ctx context.Context, migrationsPath string) error {
	r.logger.Info("Starting database migrations...")

	if err := r.db.Migrate(); err != nil {
		return fmt.Errorf("GORM auto-migration failed: %w", err)
	}

	if err := r.runSQLMigrations(ctx, migrationsPath); err != nil {
		return fmt.Errorf("SQL migrations failed: %w", err)
	}

	r.logger.Info("Database migrations completed successfully")
	return nil
}

func (r *Runner) runSQLMigrations(ctx context.Context, migrationsPath string) error {
	files, err := sqlFiles(migrationsPath)
	if os.IsNotExist(err) {
		r.logger.WithField("path", migrationsPath).Warn("Migrations directory not found, skipping SQL migrations")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, fileName := range files {
		if err := r.runSQLFile(ctx, filepath.Join(migrationsPath, fileName)); err != nil {
			return fmt.Errorf("failed to run migration %s: %w", fileName, err)
		}
		r.logger.WithField("file", fileName).Info("Migration executed successfully")
	}
	return nil
}

func sqlFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (r *Runner) runSQLFile(ctx context.Context, filePath string) error {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	sqlContent := string(content)

	// Dollar-quoted bodies may contain semicolons, so such files run whole.
	if strings.Contains(sqlContent, "$$") {
		return r.db.Exec(ctx, removeComments(sqlContent))
	}

	for i, stmt := range splitStatements(sqlContent) {
		r.logger.WithFields(logrus.Fields{
			"file":      filepath.Base(filePath),
			"statement": i + 1,
		}).Debug("Executing SQL statement")

		if err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}
	return nil
}

func removeComments(sql string) string {
	lines := strings.Split(sql, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func splitStatements(sql string) []string {
	var result []string
	for _, stmt := range strings.Split(removeComments(sql), ";") {
		stmt = strings.Join(strings.Fields(stmt), " ")
		if stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}
