package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/a11ykraft/a11ykraft/internal/adapters/outbound/config"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

// clearEnv unsets the override variables for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{appconfig.EnvLogLevel, appconfig.EnvBrowserControlURL, appconfig.EnvMaxConcurrency} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestYAMLLoader_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := appconfig.New().Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultScanConfig(), cfg)
}

func TestYAMLLoader_FileOverlaysDefaults(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".a11ykraft.yaml", `
site_url: https://example.com
wcag_level: AAA
engines: [htmlcheck, pa11y]
analysis:
  max_concurrency: 8
  retry_failed_pages: false
pa11y:
  standard: WCAG2AAA
`)

	cfg, err := appconfig.New().Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", cfg.SiteURL)
	assert.Equal(t, domain.LevelAAA, cfg.Level())
	assert.Equal(t, []string{"htmlcheck", "pa11y"}, cfg.Engines)
	assert.Equal(t, 8, cfg.Analysis.MaxConcurrency)
	assert.False(t, cfg.Analysis.RetryFailedPages)
	assert.Equal(t, "WCAG2AAA", cfg.Pa11y.Standard)

	// untouched keys keep their defaults
	assert.Equal(t, 10, cfg.Analysis.BatchSize)
	assert.Equal(t, "pa11y", cfg.Pa11y.Binary)
	assert.Equal(t, 50, cfg.MaxPages)
}

func TestYAMLLoader_InvalidYAML(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".a11ykraft.yaml", `{{{invalid yaml`)

	_, err := appconfig.New().Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing .a11ykraft.yaml")
}

func TestYAMLLoader_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown level", "wcag_level: AAAA", "unknown wcag_level"},
		{"unknown engine", "engines: [lighthouse]", "unknown engine"},
		{"axe without browser", "engines: [axe]\naxe:\n  script_path: axe.min.js", "requires browser.mode"},
		{"zero batch", "analysis:\n  batch_size: 0", "batch_size must be > 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			dir := t.TempDir()
			writeFile(t, dir, ".a11ykraft.yaml", tt.content)

			_, err := appconfig.New().Load(dir)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid .a11ykraft.yaml")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestYAMLLoader_EnvironmentOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(appconfig.EnvLogLevel, "debug")
	t.Setenv(appconfig.EnvMaxConcurrency, "12")
	t.Setenv(appconfig.EnvBrowserControlURL, "ws://127.0.0.1:9222/devtools/browser/abc")

	cfg, err := appconfig.New().Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 12, cfg.Analysis.MaxConcurrency)
	assert.Equal(t, domain.BrowserRod, cfg.Browser.Mode)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/abc", cfg.Browser.ControlURL)
}

func TestYAMLLoader_BadConcurrencyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv(appconfig.EnvMaxConcurrency, "many")

	_, err := appconfig.New().Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), appconfig.EnvMaxConcurrency)
}

func TestYAMLLoader_DotEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "A11YKRAFT_LOG_LEVEL=warn\n")

	cfg, err := appconfig.New().Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}
