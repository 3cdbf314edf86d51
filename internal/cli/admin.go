package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"assessment-service/internal/app"
	"assessment-service/internal/config"
	"assessment-service/internal/domain"
	transport "assessment-service/internal/transport/http"
)

// NewAdminCmd groups administrator operations that run against the configured store.
func NewAdminCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer attempt requests, overrides and event configs",
	}
	cmd.AddCommand(newTokenCmd(configPath))
	cmd.AddCommand(newRequestsCmd(configPath))
	cmd.AddCommand(newResolveCmd(configPath))
	cmd.AddCommand(newOverrideCmd(configPath))
	cmd.AddCommand(newConfigCmd(configPath))
	return cmd
}

func newTokenCmd(configPath *string) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an admin JWT for the REST admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwtSecret (or JWT_SECRET) must be set to issue tokens")
			}
			token, err := transport.NewAuthenticator(cfg.Auth.JWTSecret).IssueAdminToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime; 0 for no expiry")
	return cmd
}

func newRequestsCmd(configPath *string) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "requests",
		Short: "List attempt requests",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), *configPath, func(ctx context.Context, svc *app.AssessmentService) error {
				reqs, err := svc.ListRequests(ctx, domain.RequestStatus(status))
				if err != nil {
					return err
				}
				return printJSON(cmd, reqs)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(domain.RequestPending), "pending, approved, rejected or empty for all")
	return cmd
}

func newResolveCmd(configPath *string) *cobra.Command {
	var decision string
	var allowed int
	cmd := &cobra.Command{
		Use:   "resolve REQUEST_ID",
		Short: "Approve or reject an attempt request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var newAllowed *int
			if cmd.Flags().Changed("allowed") {
				newAllowed = &allowed
			}
			return withService(cmd.Context(), *configPath, func(ctx context.Context, svc *app.AssessmentService) error {
				req, err := svc.ResolveRequest(ctx, args[0], domain.RequestStatus(decision), newAllowed)
				if err != nil {
					return err
				}
				return printJSON(cmd, req)
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", string(domain.RequestApproved), "approved or rejected")
	cmd.Flags().IntVar(&allowed, "allowed", 0, "new total attempt allowance (approval only)")
	return cmd
}

func newOverrideCmd(configPath *string) *cobra.Command {
	var override domain.AttemptOverride
	cmd := &cobra.Command{
		Use:   "override",
		Short: "Set a user's attempt allowance for a lesson",
		RunE: func(cmd *cobra.Command, args []string) error {
			if override.UserID == "" || override.LessonID == "" {
				return fmt.Errorf("--user and --lesson are required")
			}
			return withService(cmd.Context(), *configPath, func(ctx context.Context, svc *app.AssessmentService) error {
				if err := svc.SetOverride(ctx, override); err != nil {
					return err
				}
				return printJSON(cmd, override)
			})
		},
	}
	cmd.Flags().StringVar(&override.UserID, "user", "", "user id")
	cmd.Flags().StringVar(&override.LessonID, "lesson", "", "lesson id")
	cmd.Flags().IntVar(&override.Allowed, "allowed", 0, "total attempts allowed")
	return cmd
}

func newConfigCmd(configPath *string) *cobra.Command {
	var file, activate string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Import, activate or list event configs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), *configPath, func(ctx context.Context, svc *app.AssessmentService) error {
				if file != "" {
					seed, err := config.LoadEventConfigs(file)
					if err != nil {
						return err
					}
					active := activate
					if active == "" {
						active = seed.Active
					}
					if err := svc.SeedEventConfigs(ctx, seed.Configs, active); err != nil {
						return err
					}
				} else if activate != "" {
					if err := svc.ActivateEventConfig(ctx, activate); err != nil {
						return err
					}
				}
				cfgs, err := svc.ListEventConfigs(ctx)
				if err != nil {
					return err
				}
				active, err := svc.ActiveEventConfig(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, map[string]any{"active": active.Name, "configs": cfgs})
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML file of event configs to import")
	cmd.Flags().StringVar(&activate, "activate", "", "name of the config to activate")
	return cmd
}

// withService opens only the store; admin commands never start sessions.
func withService(ctx context.Context, configPath string, fn func(context.Context, *app.AssessmentService) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := setupLogger(cfg.Log.Env)
	b := &backend{publisher: app.NopPublisher{}}
	defer b.Close()
	if err := buildStore(ctx, cfg, b, log); err != nil {
		return err
	}
	svc := app.NewAssessmentService(b.store, nil, nil, serviceOptions(cfg, b, log)...)
	return fn(ctx, svc)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
