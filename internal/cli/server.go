package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"assessment-service/internal/app"
	"assessment-service/internal/avatar"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	transport "assessment-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := setupLogger(cfg.Log.Env)
	slog.SetDefault(log)

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	b, err := buildBackend(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn("closing backend", "err", err)
		}
	}()

	service := app.NewAssessmentService(b.store, b.content, b.sessions, serviceOptions(cfg, b, log)...)
	if err := seedEventConfigs(ctx, cfg, service, log); err != nil {
		return err
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("auth.jwtSecret not set; using an ephemeral secret, admin tokens will not survive a restart")
	}

	wsHandler := transport.NewWSHandler(service, transport.AvatarSettings{
		FPS:        cfg.Avatar.FPS,
		Easing:     cfg.Avatar.Easing,
		IdleAnchor: avatar.Vec2{X: cfg.Avatar.IdleAnchor.X, Y: cfg.Avatar.IdleAnchor.Y},
	}, cfg.Content.DefaultLanguage, log)
	router := transport.NewRouter(&transport.Container{
		Service: service,
		WS:      wsHandler,
		Auth:    transport.NewAuthenticator(secret),
		Log:     log,
	})

	// No WriteTimeout: websocket connections outlive any request deadline.
	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Info("starting assessment service", "port", finalPort, "storage", cfg.Storage.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// seedEventConfigs adds policy bundles from the configured file that the
// store does not have yet. assessment.activeConfig (or the file's own choice)
// is activated only on a store with no active config, so admin changes
// survive restarts.
func seedEventConfigs(ctx context.Context, cfg config.Config, service *app.AssessmentService, log *slog.Logger) error {
	active := cfg.Assessment.ActiveConfig
	var configs []domain.EventConfig
	if cfg.Assessment.EventConfigFile != "" {
		file, err := config.LoadEventConfigs(cfg.Assessment.EventConfigFile)
		if err != nil {
			return err
		}
		if active == "" {
			active = file.Active
		}
		configs = file.Configs
	}
	added, err := service.BootstrapEventConfigs(ctx, configs, active)
	if err != nil {
		return err
	}
	log.Info("seeded event configs", "file", cfg.Assessment.EventConfigFile, "added", added, "skipped", len(configs)-added)
	return nil
}
