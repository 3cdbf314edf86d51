package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
	pginfra "assessment-service/internal/infra/postgres"
	"assessment-service/internal/infra/rabbit"
	redisinfra "assessment-service/internal/infra/redis"
	"assessment-service/internal/infra/sqlite"
)

// backend is the set of infrastructure collaborators selected by config.
type backend struct {
	store     app.Store
	sessions  app.SessionRepository
	content   app.ContentRepository
	publisher app.Publisher
	closers   []func() error

	redisClient *redis.Client
}

// redis returns the shared client, connecting on first use.
func (b *backend) redis(cfg config.Config) *redis.Client {
	if b.redisClient == nil {
		b.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, b.redisClient.Close)
	}
	return b.redisClient
}

func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildStore opens only the persistence store; admin commands need nothing else.
func buildStore(ctx context.Context, cfg config.Config, b *backend, log *slog.Logger) error {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		path := cfg.SQLite.Path
		if path == "" {
			p, err := sqlite.DefaultDBPath()
			if err != nil {
				return err
			}
			path = p
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return err
		}
		b.store = store
		b.closers = append(b.closers, store.Close)
		log.Info("using sqlite store", "path", path)
	case config.DriverRedis:
		b.store = redisinfra.NewStore(b.redis(cfg))
		log.Info("using redis store", "addr", cfg.Redis.Addr)
	case config.DriverPostgres:
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return err
		}
		db := openBun(cfg.Postgres.URL)
		b.closers = append(b.closers, db.Close)
		b.store = pginfra.NewStore(db)
		log.Info("using postgres store")
	default:
		b.store = memory.NewStore()
		log.Warn("using in-memory store; attempts are lost on restart")
	}
	return nil
}

// buildBackend wires the store, session registry, content cache and event
// publisher for the server.
func buildBackend(ctx context.Context, cfg config.Config, log *slog.Logger) (*backend, error) {
	b := &backend{publisher: app.NopPublisher{}}
	if err := buildStore(ctx, cfg, b, log); err != nil {
		b.Close()
		return nil, err
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = b.redis(cfg)
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	loader, err := lessonLoader(ctx, cfg, b, log)
	if err != nil {
		b.Close()
		return nil, err
	}
	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)
	if redisClient != nil {
		b.content = redisinfra.NewContentRepository(redisClient, loader, contentTTL)
		b.sessions = redisinfra.NewSessionStore(redisClient, redisTTL, log)
	} else {
		b.content = memory.NewContentRepository(loader, contentTTL)
		b.sessions = memory.NewSessionStore()
	}

	if cfg.Rabbit.URL != "" {
		pub, err := rabbit.Dial(cfg.Rabbit.URL, cfg.Rabbit.Exchange, log)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.publisher = pub
		b.closers = append(b.closers, pub.Close)
	}
	return b, nil
}

// lessonLoader prefers an authored content file, then the Postgres lessons
// table, then the built-in sample lessons.
func lessonLoader(ctx context.Context, cfg config.Config, b *backend, log *slog.Logger) (memory.LessonLoader, error) {
	if cfg.Content.File != "" {
		lessons, err := memory.LoadLessonsFile(cfg.Content.File)
		if err != nil {
			return nil, err
		}
		log.Info("loaded lesson content", "file", cfg.Content.File, "lessons", len(lessons))
		return memory.NewStaticLessonLoader(lessons), nil
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, func() error { pool.Close(); return nil })
		return pginfra.NewLessonLoader(pool), nil
	}
	log.Warn("no content source configured; serving sample lessons")
	return memory.NewStaticLessonLoader(sampleLessons()), nil
}

func openBun(dsn string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	return bun.NewDB(sqldb, pgdialect.New())
}

func serviceOptions(cfg config.Config, b *backend, log *slog.Logger) []app.Option {
	opts := []app.Option{app.WithLogger(log), app.WithPublisher(b.publisher)}
	if cfg.Assessment.DefaultAllowedAttempts > 0 {
		opts = append(opts, app.WithDefaultAllowedAttempts(cfg.Assessment.DefaultAllowedAttempts))
	}
	return opts
}

// sampleLessons provides a minimal lesson set for demos; configure content.file
// or Postgres for real content.
func sampleLessons() []domain.Lesson {
	return []domain.Lesson{
		{
			ID:       "greetings",
			Language: "en",
			Questions: []domain.Question{
				{ID: "greetings-1", Prompt: "Which is a polite greeting?", Options: []string{"Hey you", "Good morning", "What?"}, CorrectOptionIndex: 1, Hint: "Think about the time of day."},
				{ID: "greetings-2", Prompt: "How do you answer \"How are you?\"", Options: []string{"I'm fine, thanks", "Yes", "Tomorrow"}, CorrectOptionIndex: 0},
				{ID: "greetings-3", Prompt: "Which word means goodbye?", Options: []string{"Hello", "Farewell", "Welcome", "Please"}, CorrectOptionIndex: 1, Explanation: "Farewell is a formal goodbye."},
			},
		},
		{
			ID:       "numbers",
			Language: "en",
			Questions: []domain.Question{
				{ID: "numbers-1", Prompt: "What is 2 + 2?", Options: []string{"3", "4", "5"}, CorrectOptionIndex: 1},
				{ID: "numbers-2", Prompt: "Which number is spelled \"seven\"?", Options: []string{"6", "7", "8", "9"}, CorrectOptionIndex: 1},
			},
		},
	}
}
