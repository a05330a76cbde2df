package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"TASKDESK_API_BASE", "TASKDESK_HTTP_TIMEOUT_SECONDS", "TASKDESK_LANG",
		"TASKDESK_TASK_POLL_SECONDS", "TASKDESK_TASK_POLL_MAX",
		"TASKDESK_PAYMENT_POLL_SECONDS", "TASKDESK_PAYMENT_POLL_MAX",
		"REDIS_ADDR", "METRICS_ADDR",
	} {
		t.Setenv(k, "")
	}
	cfg := Load(filepath.Join(t.TempDir(), "missing.env"))

	assert.Equal(t, DefaultAPIBase, cfg.APIBase)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "zh-CN", cfg.Lang)
	assert.Equal(t, 5*time.Second, cfg.TaskPollInterval)
	assert.Equal(t, 60, cfg.TaskPollMax)
	assert.Equal(t, 5*time.Second, cfg.PaymentPollInterval)
	assert.Equal(t, 120, cfg.PaymentPollMax)
	assert.Empty(t, cfg.RedisAddr)
	assert.NotEmpty(t, cfg.StatePath)
}

func TestLoadFromEnvFile(t *testing.T) {
	t.Setenv("TASKDESK_API_BASE", "")
	t.Setenv("TASKDESK_TASK_POLL_MAX", "")
	// godotenv does not override variables that are already set, so unset
	// these two for the duration of the test.
	require.NoError(t, os.Unsetenv("TASKDESK_API_BASE"))
	require.NoError(t, os.Unsetenv("TASKDESK_TASK_POLL_MAX"))
	t.Setenv("TASKDESK_TASK_POLL_SECONDS", "2")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("TASKDESK_API_BASE=https://example.test/api/\nTASKDESK_TASK_POLL_MAX=3\n"), 0o600))

	cfg := Load(path)
	t.Cleanup(func() {
		_ = os.Unsetenv("TASKDESK_API_BASE")
		_ = os.Unsetenv("TASKDESK_TASK_POLL_MAX")
	})

	assert.Equal(t, "https://example.test/api", cfg.APIBase)
	assert.Equal(t, 3, cfg.TaskPollMax)
	assert.Equal(t, 2*time.Second, cfg.TaskPollInterval)
}

func TestReadEnvIntRejectsGarbage(t *testing.T) {
	t.Setenv("TASKDESK_TEST_INT", "abc")
	assert.Equal(t, 7, readEnvIntDefault("TASKDESK_TEST_INT", 7))
	t.Setenv("TASKDESK_TEST_INT", "-3")
	assert.Equal(t, 7, readEnvIntDefault("TASKDESK_TEST_INT", 7))
}
