package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", "server:\n  port: \"9090\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, "local", cfg.Log.Env)
	assert.Equal(t, "en", cfg.Content.DefaultLanguage)
	assert.Equal(t, 30, cfg.Avatar.FPS)
	assert.Equal(t, "assessment.events", cfg.Rabbit.Exchange)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeFile(t, "config.yaml", `
storage:
  driver: memory
redis:
  addr: localhost:6379
auth:
  jwtSecret: from-file
`)
	t.Setenv("STORAGE_DRIVER", "redis")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("DEFAULT_ALLOWED_ATTEMPTS", "4")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 4, cfg.Assessment.DefaultAllowedAttempts)
}

func TestLoadRejectsIncompleteDriver(t *testing.T) {
	path := writeFile(t, "config.yaml", "storage:\n  driver: postgres\n")
	_, err := Load(path)
	assert.Error(t, err)

	path = writeFile(t, "config.yaml", "storage:\n  driver: cassandra\n")
	_, err = Load(path)
	assert.Error(t, err)
}

func TestTTLDuration(t *testing.T) {
	assert.Equal(t, 5*time.Minute, TTLDuration("", 5*time.Minute))
	assert.Equal(t, 30*time.Second, TTLDuration("30s", 5*time.Minute))
	assert.Equal(t, 5*time.Minute, TTLDuration("soon", 5*time.Minute))
}

func TestLoadEventConfigs(t *testing.T) {
	path := writeFile(t, "event_configs.yaml", `
active: spring-cohort
configs:
  - name: spring-cohort
    hintsAllowed: true
    maxHints: -1
    fiftyFiftyAllowed: true
    maxFiftyFifty: 2
    questionCountOverrides:
      lesson-1: 5
    perLessonHintLimits:
      lesson-2: 1
`)
	file, err := LoadEventConfigs(path)
	require.NoError(t, err)
	assert.Equal(t, "spring-cohort", file.Active)
	require.Len(t, file.Configs, 1)
	cfg := file.Configs[0]
	assert.Equal(t, -1, cfg.MaxHints)
	assert.Equal(t, 2, cfg.MaxFiftyFifty)
	assert.Equal(t, 5, cfg.QuestionCountOverrides["lesson-1"])
	assert.Equal(t, 1, cfg.PerLessonHintLimits["lesson-2"])
}
