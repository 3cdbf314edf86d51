package app

import (
	"context"
	"errors"
	"fmt"

	"assessment-service/internal/domain"
	"assessment-service/internal/policy"
)

// ValidateEventConfig rejects names and limits the resolver cannot interpret.
func ValidateEventConfig(cfg domain.EventConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("event config needs a name")
	}
	if cfg.MaxHints < policy.Unlimited || cfg.MaxFiftyFifty < policy.Unlimited {
		return fmt.Errorf("event config %s: limits must be >= -1", cfg.Name)
	}
	for lesson, v := range cfg.PerLessonHintLimits {
		if v < policy.Unlimited {
			return fmt.Errorf("event config %s: hint limit for %s must be >= -1", cfg.Name, lesson)
		}
	}
	for lesson, v := range cfg.PerLessonFiftyFiftyLimits {
		if v < policy.Unlimited {
			return fmt.Errorf("event config %s: fifty-fifty limit for %s must be >= -1", cfg.Name, lesson)
		}
	}
	for lesson, v := range cfg.QuestionCountOverrides {
		if v < 0 {
			return fmt.Errorf("event config %s: question count for %s must be >= 0", cfg.Name, lesson)
		}
	}
	return nil
}

// SaveEventConfig stores a named config. Open sessions keep the policy they
// resolved at start.
func (s *AssessmentService) SaveEventConfig(ctx context.Context, cfg domain.EventConfig) error {
	if err := ValidateEventConfig(cfg); err != nil {
		return err
	}
	if err := s.store.SaveEventConfig(ctx, cfg); err != nil {
		return fmt.Errorf("%w: save event config: %v", domain.ErrPersistence, err)
	}
	s.log.Info("event config saved", "config", cfg.Name)
	return nil
}

func (s *AssessmentService) ActivateEventConfig(ctx context.Context, name string) error {
	if err := s.store.ActivateEventConfig(ctx, name); err != nil {
		return err
	}
	s.log.Info("event config activated", "config", name)
	return nil
}

func (s *AssessmentService) ListEventConfigs(ctx context.Context) ([]domain.EventConfig, error) {
	return s.store.ListEventConfigs(ctx)
}

// ActiveEventConfig returns the active config, or the fallback when none is active.
func (s *AssessmentService) ActiveEventConfig(ctx context.Context) (domain.EventConfig, error) {
	return s.activeConfig(ctx)
}

// SetOverride grants an attempt allowance without a request.
func (s *AssessmentService) SetOverride(ctx context.Context, override domain.AttemptOverride) error {
	return s.governor.SetOverride(ctx, override)
}

func (s *AssessmentService) ListRequests(ctx context.Context, status domain.RequestStatus) ([]domain.AttemptRequest, error) {
	return s.governor.ListRequests(ctx, status)
}

// SeedEventConfigs saves every config and activates the named one, if any.
func (s *AssessmentService) SeedEventConfigs(ctx context.Context, cfgs []domain.EventConfig, active string) error {
	for _, cfg := range cfgs {
		if err := s.SaveEventConfig(ctx, cfg); err != nil {
			return err
		}
	}
	if active == "" {
		return nil
	}
	return s.ActivateEventConfig(ctx, active)
}

// BootstrapEventConfigs stores the configs the store does not know yet and
// activates active only when no config is active. Configs and activations
// already in the store are left as an admin last set them. It returns the
// number of configs added.
func (s *AssessmentService) BootstrapEventConfigs(ctx context.Context, cfgs []domain.EventConfig, active string) (int, error) {
	existing, err := s.store.ListEventConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list event configs: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, cfg := range existing {
		known[cfg.Name] = struct{}{}
	}
	added := 0
	for _, cfg := range cfgs {
		if _, ok := known[cfg.Name]; ok {
			continue
		}
		if err := s.SaveEventConfig(ctx, cfg); err != nil {
			return added, err
		}
		known[cfg.Name] = struct{}{}
		added++
	}
	if active == "" {
		return added, nil
	}
	_, err = s.store.ActiveEventConfig(ctx)
	if err == nil {
		return added, nil
	}
	if !errors.Is(err, domain.ErrConfigNotFound) {
		return added, fmt.Errorf("active event config: %w", err)
	}
	return added, s.ActivateEventConfig(ctx, active)
}
