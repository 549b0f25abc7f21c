package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, cfg.Claims.ResponseWindow)
	assert.Equal(t, 72*time.Hour, cfg.Claims.InvestigationWindow)
	assert.Equal(t, float64(50), cfg.Claims.AutoResolveThreshold)
	assert.Equal(t, 3, cfg.Refund.MaxRetries)
	assert.Equal(t, 5, cfg.Refund.MaxPolls)
	assert.Equal(t, "lmstfy", cfg.Scheduler.Driver)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
app:
  name: disputes-test
refund:
  max_retries: 5
  retry_base_delay: 30s
scheduler:
  driver: local
  local_path: /tmp/jobs.db
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("REFUND_MAX_RETRIES", "7")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "disputes-test", cfg.App.Name)
	assert.Equal(t, 7, cfg.Refund.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Refund.RetryBaseDelay)
	assert.Equal(t, "local", cfg.Scheduler.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown scheduler",
			mutate:  func(c *Config) { c.Scheduler.Driver = "cron" },
			wantErr: "unknown scheduler driver",
		},
		{
			name:    "production without jwt secret",
			mutate:  func(c *Config) { c.App.Env = "production" },
			wantErr: "jwt.secret",
		},
		{
			name:    "zero poll budget",
			mutate:  func(c *Config) { c.Refund.MaxPolls = 0 },
			wantErr: "budgets",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "claims", SSLMode: "disable"}
	assert.Equal(t, "host=db user=u password=p dbname=claims port=5432 sslmode=disable", c.DSN())
}
