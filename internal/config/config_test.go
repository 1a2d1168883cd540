package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresWorkerAPIURL(t *testing.T) {
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WORKER_API_URL", "http://localhost:5000")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.WorkerAPIURL)
	assert.Equal(t, "./data/dispatch.db", cfg.DatabasePath)
	assert.Equal(t, 30*time.Second, cfg.WorkerTimeout)
	assert.Equal(t, ":8080", cfg.HTTPListenAddr)
	assert.Empty(t, cfg.DispatchCron)
	assert.Empty(t, cfg.EtcdEndpoints)
	assert.Equal(t, 5*time.Second, cfg.EtcdTimeout)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WORKER_API_URL", "http://worker.internal:5000")
	t.Setenv("WORKER_API_KEY", "secret")
	t.Setenv("WORKER_TIMEOUT", "5s")
	t.Setenv("DATABASE_PATH", "/var/lib/dispatch/jobs.db")
	t.Setenv("DISPATCH_CRON", "0 * * * * *")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://worker.internal:5000", cfg.WorkerAPIURL)
	assert.Equal(t, "secret", cfg.WorkerAPIKey)
	assert.Equal(t, 5*time.Second, cfg.WorkerTimeout)
	assert.Equal(t, "/var/lib/dispatch/jobs.db", cfg.DatabasePath)
	assert.Equal(t, "0 * * * * *", cfg.DispatchCron)
}

func TestLoadRejectsNonURLWorkerEndpoint(t *testing.T) {
	t.Setenv("WORKER_API_URL", "not a url")

	_, err := Load()
	require.Error(t, err)
}
