package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"assessment-service/internal/config"
	"assessment-service/internal/infra/memory"
	pginfra "assessment-service/internal/infra/postgres"
	pgmigrations "assessment-service/internal/infra/postgres/migrations"
)

// NewMigrateCmd applies database migrations and optionally imports lesson content.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var lessonsFile string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath, lessonsFile)
		},
	}
	cmd.Flags().StringVar(&lessonsFile, "lessons", "", "YAML content file to import into the lessons table")
	return cmd
}

func runMigrations(ctx context.Context, configPath, lessonsFile string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := setupLogger(cfg.Log.Env)
	if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
		return err
	}
	if lessonsFile == "" {
		return nil
	}
	lessons, err := memory.LoadLessonsFile(lessonsFile)
	if err != nil {
		return err
	}
	db := openBun(cfg.Postgres.URL)
	defer db.Close()
	if err := pginfra.NewStore(db).UpsertLessons(ctx, lessons); err != nil {
		return err
	}
	log.Info("lessons imported", "file", lessonsFile, "lessons", len(lessons))
	return nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := openBun(cfg.Postgres.URL)
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		log.Info("no new migrations")
		return nil
	}
	log.Info("migrations applied", "group", group.String())
	return nil
}
