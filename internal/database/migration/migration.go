package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_blogposts",
		SQL: `CREATE TABLE IF NOT EXISTS blogposts (
  id           BIGSERIAL     PRIMARY KEY,
  text         VARCHAR(2000) NOT NULL,
  username     VARCHAR(128)  NOT NULL,
  published_at TIMESTAMPTZ   NOT NULL DEFAULT now(),
  avatar       VARCHAR(512),
  image        VARCHAR(512)
);`,
	},
	{
		Name: "create_index_blogposts_published_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_blogposts_published_at ON blogposts (published_at DESC, id DESC);`,
	},
}

// EnsureMigrated checks if the 'blogposts' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	start := time.Now()
	log := logger.With(zap.String("component", "database"))

	log.Info("db_migration_check")

	var exists bool
	query := "SELECT to_regclass('public.blogposts') IS NOT NULL"
	if err := db.QueryRowContext(ctx, query).Scan(&exists); err != nil {
		log.Error("db_migration_failed",
			zap.String("reason", "failed to check sentinel table"),
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info("db_migration_skip",
			zap.String("reason", "schema already exists"),
			zap.Duration("duration", time.Since(start)),
		)
		return nil
	}

	log.Info("db_migration_start", zap.Int("steps", len(steps)))

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			log.Error("db_migration_failed",
				zap.String("migration_step", step.Name),
				zap.Error(err),
				zap.Duration("duration", time.Since(start)),
				zap.Duration("step_duration", time.Since(stepStart)),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info("db_migration_step",
			zap.String("migration_step", step.Name),
			zap.Duration("step_duration", time.Since(stepStart)),
		)
	}

	log.Info("db_migration_success", zap.Duration("duration", time.Since(start)))
	return nil
}
