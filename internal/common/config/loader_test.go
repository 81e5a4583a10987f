package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalConfig = `
camunda:
  broker_address: localhost:26500
database:
  postgres:
    host: localhost
    port: 5432
    database: registrations
    user: ${REG_TEST_DB_USER}
  redis:
    address: localhost:6379
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	t.Setenv("REG_TEST_DB_USER", "registrar")

	cfg, err := LoadFromFile(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "registrar", cfg.Database.Postgres.User)
	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, 3000, cfg.Workflow.GateDwell)
	assert.Equal(t, "company_registration", cfg.Workflow.ApplicationType)
	assert.Equal(t, "/dashboard", cfg.Workflow.Routes.Dashboard)
	assert.Equal(t, "/admin/registrations", cfg.Workflow.Routes.AdminList)
	assert.Equal(t, "/packages", cfg.Workflow.Routes.EntitlementOut)
	assert.Equal(t, "registrations", cfg.Database.Elasticsearch.Index)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromFile_WorkerDefaults(t *testing.T) {
	t.Setenv("REG_TEST_DB_USER", "registrar")

	body := minimalConfig + `
workers:
  submit-registration:
    enabled: true
  request-client-fill:
    enabled: false
    max_retries: 5
`
	cfg, err := LoadFromFile(writeConfig(t, body))
	require.NoError(t, err)

	submit := GetWorkerConfig(cfg, "submit-registration")
	assert.Equal(t, 5, submit.MaxJobsActive)
	assert.Equal(t, 30000, submit.Timeout)
	assert.Equal(t, 3, submit.MaxRetries)

	assert.False(t, IsWorkerEnabled(cfg, "request-client-fill"))
	assert.Equal(t, 5, GetWorkerConfig(cfg, "request-client-fill").MaxRetries)
	assert.True(t, IsWorkerEnabled(cfg, "unknown-worker"))
}

func TestLoadFromFile_RequiresBroker(t *testing.T) {
	t.Setenv("REG_TEST_DB_USER", "registrar")

	body := `
database:
  postgres:
    host: localhost
    database: registrations
    user: registrar
  redis:
    address: localhost:6379
`
	_, err := LoadFromFile(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "camunda.broker_address is required")
}

func TestLoadFromFile_EmailRequiresSender(t *testing.T) {
	t.Setenv("REG_TEST_DB_USER", "registrar")

	body := minimalConfig + `
notifications:
  email:
    enabled: true
`
	_, err := LoadFromFile(writeConfig(t, body))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from_email")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, int64(3000), GetDuration(3000).Milliseconds())
}
