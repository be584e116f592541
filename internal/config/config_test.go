package config

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, 3, cfg.SearchMinLength)
	assert.Equal(t, 5*time.Minute, cfg.SearchCacheTTL)
	assert.Equal(t, "facturas", cfg.ExportDir)
	assert.Equal(t, "Cliente General", cfg.DefaultCustomer)
	assert.True(t, cfg.ExportPDFCompress)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("SEARCH_MIN_LENGTH", "4")
	t.Setenv("SEARCH_CACHE_TTL", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address())
	assert.Equal(t, 4, cfg.SearchMinLength)
	assert.Equal(t, 30*time.Second, cfg.SearchCacheTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SEARCH_MIN_LENGTH", "0")

	_, err := Load()
	assert.ErrorContains(t, err, "SEARCH_MIN_LENGTH")
}

func TestLoadReportsUnreadableDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, os.Mkdir(".env", 0o755))

	_, err := Load()
	require.Error(t, err)
	assert.ErrorContains(t, err, "load .env")
	assert.Contains(t, fmt.Sprintf("%+v", err), "config.Load")
}

func TestValidateErrorsCarryStack(t *testing.T) {
	cfg := Config{SearchMinLength: 3, SearchCacheTTL: time.Minute, UploadMaxBytes: 1, ExportDir: " ", DefaultCustomer: "x"}

	err := cfg.Validate()
	assert.EqualError(t, err, "EXPORT_DIR must not be blank")
	assert.Contains(t, fmt.Sprintf("%+v", err), "config.Config.Validate")
}
