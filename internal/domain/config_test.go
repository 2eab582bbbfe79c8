package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

func TestDefaultScanConfig_IsValid(t *testing.T) {
	cfg := domain.DefaultScanConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, domain.LevelAA, cfg.Level())
	assert.Equal(t, []string{domain.EngineHTMLCheck}, cfg.Engines)
	assert.Equal(t, domain.BrowserStatic, cfg.Browser.Mode)
}

func TestScanConfig_Options(t *testing.T) {
	cfg := domain.DefaultScanConfig()
	opts := cfg.Options()
	assert.Equal(t, 4, opts.MaxConcurrency)
	assert.Equal(t, 10, opts.BatchSize)
	assert.Equal(t, time.Second, opts.DelayBetweenBatches)
	assert.Equal(t, 500*time.Millisecond, opts.BaseBackoff)
	assert.Equal(t, time.Minute, opts.PageTimeout)
	assert.Equal(t, 3, opts.Attempts())
	assert.Equal(t, opts, domain.DefaultAnalysisOptions())
}

func TestScanConfig_LevelFallsBackToAA(t *testing.T) {
	cfg := domain.ScanConfig{WCAGLevel: "aaa"}
	assert.Equal(t, domain.LevelAAA, cfg.Level())

	cfg.WCAGLevel = "B"
	assert.Equal(t, domain.LevelAA, cfg.Level())
}

func TestValidate_UnknownLevel(t *testing.T) {
	cfg := domain.DefaultScanConfig()
	cfg.WCAGLevel = "AAAA"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown wcag_level")
}

func TestValidate_Engines(t *testing.T) {
	tests := []struct {
		name    string
		engines []string
		want    string
	}{
		{"empty", nil, "at least one"},
		{"unknown", []string{"lighthouse"}, "unknown engine"},
		{"duplicate", []string{"htmlcheck", "htmlcheck"}, "listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := domain.DefaultScanConfig()
			cfg.Engines = tt.engines
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_AxeNeedsLiveBrowserAndScript(t *testing.T) {
	cfg := domain.DefaultScanConfig()
	cfg.Engines = []string{domain.EngineAxe}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "browser.mode")

	cfg.Browser.Mode = domain.BrowserRod
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "axe.script_path")

	cfg.Axe.ScriptPath = "/opt/axe.min.js"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_UnknownBrowserMode(t *testing.T) {
	cfg := domain.DefaultScanConfig()
	cfg.Browser.Mode = "firefox"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown browser.mode")
}

func TestValidate_MaxPages(t *testing.T) {
	cfg := domain.DefaultScanConfig()
	cfg.MaxPages = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_pages")
}

func TestValidate_AnalysisOptions(t *testing.T) {
	cfg := domain.DefaultScanConfig()
	cfg.Analysis.MaxConcurrency = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, domain.KindInvalidOptions, domain.KindOf(err))
}

func TestAnalysisOptions_Validate(t *testing.T) {
	valid := domain.DefaultAnalysisOptions()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*domain.AnalysisOptions)
		want   string
	}{
		{"zero concurrency", func(o *domain.AnalysisOptions) { o.MaxConcurrency = 0 }, "max_concurrency"},
		{"zero batch", func(o *domain.AnalysisOptions) { o.BatchSize = 0 }, "batch_size"},
		{"negative delay", func(o *domain.AnalysisOptions) { o.DelayBetweenBatches = -time.Second }, "delay_between_batches"},
		{"retries without attempts", func(o *domain.AnalysisOptions) { o.MaxRetries = 0 }, "max_retries"},
		{"negative backoff", func(o *domain.AnalysisOptions) { o.BaseBackoff = -1 }, "base_backoff"},
		{"negative timeout", func(o *domain.AnalysisOptions) { o.PageTimeout = -1 }, "page_timeout"},
		{"retries without backoff", func(o *domain.AnalysisOptions) { o.BaseBackoff = 0 }, "base_backoff"},
		{"too many attempts", func(o *domain.AnalysisOptions) { o.MaxRetries = domain.MaxAttempts + 1 }, "max_retries"},
		{"backoff too long", func(o *domain.AnalysisOptions) { o.BaseBackoff = 2 * time.Minute }, "base_backoff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := valid
			tt.mutate(&o)
			err := o.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, domain.KindInvalidOptions, domain.KindOf(err))
		})
	}
}

func TestAnalysisOptions_Attempts(t *testing.T) {
	assert.Equal(t, 1, domain.AnalysisOptions{RetryFailedPages: false, MaxRetries: 5}.Attempts())
	assert.Equal(t, 5, domain.AnalysisOptions{RetryFailedPages: true, MaxRetries: 5}.Attempts())
	assert.Equal(t, 1, domain.AnalysisOptions{RetryFailedPages: true, MaxRetries: 0}.Attempts())

	// Retries disabled: max_retries is not checked.
	o := domain.DefaultAnalysisOptions()
	o.RetryFailedPages = false
	o.MaxRetries = 0
	assert.NoError(t, o.Validate())
}

func TestAnalysisOptions_BackoffOnlyNeededForRetries(t *testing.T) {
	tests := []struct {
		name     string
		retry    bool
		attempts int
		backoff  time.Duration
	}{
		{"retries disabled", false, 3, 0},
		{"single attempt", true, 1, 0},
		{"attempt ceiling", true, domain.MaxAttempts, time.Millisecond},
		{"backoff ceiling", true, 3, domain.MaxBaseBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := domain.DefaultAnalysisOptions()
			o.RetryFailedPages = tt.retry
			o.MaxRetries = tt.attempts
			o.BaseBackoff = tt.backoff
			assert.NoError(t, o.Validate())
		})
	}
}
