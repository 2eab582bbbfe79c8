package domain

import (
	"fmt"
	"time"
)

// Engine names recognized in configuration.
const (
	EngineHTMLCheck = "htmlcheck"
	EngineAxe       = "axe"
	EnginePa11y     = "pa11y"
)

// ValidEngines enumerates all rule engines that can be configured.
var ValidEngines = []string{EngineHTMLCheck, EngineAxe, EnginePa11y}

// Browser modes.
const (
	BrowserStatic = "static"
	BrowserRod    = "rod"
)

// ScanConfig holds project-level configuration loaded from .a11ykraft.yaml.
type ScanConfig struct {
	SiteURL   string         `yaml:"site_url"   json:"site_url,omitempty"`
	WCAGLevel string         `yaml:"wcag_level" json:"wcag_level,omitempty"`
	Engines   []string       `yaml:"engines"    json:"engines,omitempty"`
	MaxPages  int            `yaml:"max_pages"  json:"max_pages,omitempty"`
	Analysis  AnalysisConfig `yaml:"analysis"   json:"analysis"`
	Browser   BrowserConfig  `yaml:"browser"    json:"browser"`
	Axe       AxeConfig      `yaml:"axe"        json:"axe"`
	Pa11y     Pa11yConfig    `yaml:"pa11y"      json:"pa11y"`
	Log       LogConfig      `yaml:"log"        json:"log"`
	Storage   StorageConfig  `yaml:"storage"    json:"storage"`
}

// AnalysisConfig is the YAML shape of AnalysisOptions. Durations are in milliseconds.
type AnalysisConfig struct {
	MaxConcurrency        int  `yaml:"max_concurrency"          json:"max_concurrency"`
	BatchSize             int  `yaml:"batch_size"               json:"batch_size"`
	DelayBetweenBatchesMs int  `yaml:"delay_between_batches_ms" json:"delay_between_batches_ms"`
	RetryFailedPages      bool `yaml:"retry_failed_pages"       json:"retry_failed_pages"`
	MaxRetries            int  `yaml:"max_retries"              json:"max_retries"`
	BaseBackoffMs         int  `yaml:"base_backoff_ms"          json:"base_backoff_ms"`
	PageTimeoutMs         int  `yaml:"page_timeout_ms"          json:"page_timeout_ms"`
	CaptureScreenshots    bool `yaml:"capture_screenshots"      json:"capture_screenshots"`
}

type BrowserConfig struct {
	Mode       string `yaml:"mode"        json:"mode"`
	ControlURL string `yaml:"control_url" json:"control_url,omitempty"`
	Headless   bool   `yaml:"headless"    json:"headless"`
	UserAgent  string `yaml:"user_agent"  json:"user_agent,omitempty"`
}

type AxeConfig struct {
	ScriptPath string   `yaml:"script_path" json:"script_path,omitempty"`
	RunOnly    []string `yaml:"run_only"    json:"run_only,omitempty"`
}

type Pa11yConfig struct {
	Binary   string `yaml:"binary"   json:"binary"`
	Standard string `yaml:"standard" json:"standard"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `yaml:"level"       json:"level"`
	Format     string `yaml:"format"      json:"format"`
	Output     string `yaml:"output"      json:"output"`
	FilePath   string `yaml:"file_path"   json:"file_path,omitempty"`
	MaxSize    int    `yaml:"max_size"    json:"max_size,omitempty"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups,omitempty"`
	MaxAge     int    `yaml:"max_age"     json:"max_age,omitempty"`
	Compress   bool   `yaml:"compress"    json:"compress,omitempty"`
}

type StorageConfig struct {
	History  bool   `yaml:"history"  json:"history"`
	Database string `yaml:"database" json:"database,omitempty"`
}

// DefaultScanConfig returns the configuration used when no file exists.
func DefaultScanConfig() ScanConfig {
	return ScanConfig{
		WCAGLevel: string(LevelAA),
		Engines:   []string{EngineHTMLCheck},
		MaxPages:  50,
		Analysis: AnalysisConfig{
			MaxConcurrency:        4,
			BatchSize:             10,
			DelayBetweenBatchesMs: 1000,
			RetryFailedPages:      true,
			MaxRetries:            3,
			BaseBackoffMs:         500,
			PageTimeoutMs:         60000,
		},
		Browser: BrowserConfig{Mode: BrowserStatic, Headless: true},
		Pa11y:   Pa11yConfig{Binary: "pa11y", Standard: "WCAG2AA"},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Storage: StorageConfig{History: true, Database: ".a11ykraft/reports.db"},
	}
}

// Validate checks the config for invalid values and returns a descriptive error.
func (c ScanConfig) Validate() error {
	// 1. wcag_level must be A, AA or AAA
	if _, ok := ParseWCAGLevel(c.WCAGLevel); !ok {
		return fmt.Errorf("unknown wcag_level %q (valid: A, AA, AAA)", c.WCAGLevel)
	}

	// 2. at least one known engine, no duplicates
	if len(c.Engines) == 0 {
		return fmt.Errorf("engines must list at least one rule engine")
	}
	seen := make(map[string]bool)
	for _, e := range c.Engines {
		if !isValidEngine(e) {
			return fmt.Errorf("unknown engine %q (valid: htmlcheck, axe, pa11y)", e)
		}
		if seen[e] {
			return fmt.Errorf("engine %q listed twice", e)
		}
		seen[e] = true
	}

	// 3. axe needs a live browser and the axe-core script
	if seen[EngineAxe] {
		if c.Browser.Mode != BrowserRod {
			return fmt.Errorf("engine axe requires browser.mode %q", BrowserRod)
		}
		if c.Axe.ScriptPath == "" {
			return fmt.Errorf("engine axe requires axe.script_path")
		}
	}

	// 4. browser mode
	if c.Browser.Mode != BrowserStatic && c.Browser.Mode != BrowserRod {
		return fmt.Errorf("unknown browser.mode %q (valid: static, rod)", c.Browser.Mode)
	}

	// 5. page limit
	if c.MaxPages < 1 {
		return fmt.Errorf("max_pages must be > 0 (got %d)", c.MaxPages)
	}

	// 6. analysis options
	if err := c.Options().Validate(); err != nil {
		return err
	}

	return nil
}

// Options converts the YAML analysis block into AnalysisOptions.
func (c ScanConfig) Options() AnalysisOptions {
	a := c.Analysis
	return AnalysisOptions{
		MaxConcurrency:      a.MaxConcurrency,
		BatchSize:           a.BatchSize,
		DelayBetweenBatches: time.Duration(a.DelayBetweenBatchesMs) * time.Millisecond,
		RetryFailedPages:    a.RetryFailedPages,
		MaxRetries:          a.MaxRetries,
		BaseBackoff:         time.Duration(a.BaseBackoffMs) * time.Millisecond,
		PageTimeout:         time.Duration(a.PageTimeoutMs) * time.Millisecond,
		CaptureScreenshots:  a.CaptureScreenshots,
	}
}

// Level returns the configured WCAG level, AA when unset or invalid.
func (c ScanConfig) Level() WCAGLevel {
	if l, ok := ParseWCAGLevel(c.WCAGLevel); ok {
		return l
	}
	return LevelAA
}

func isValidEngine(name string) bool {
	for _, e := range ValidEngines {
		if e == name {
			return true
		}
	}
	return false
}

// AnalysisOptions controls one worker pool invocation.
type AnalysisOptions struct {
	MaxConcurrency      int
	BatchSize           int
	DelayBetweenBatches time.Duration
	RetryFailedPages    bool
	// MaxRetries is the total number of attempts per page when RetryFailedPages is set.
	MaxRetries  int
	BaseBackoff time.Duration
	// PageTimeout bounds a single attempt. Zero disables the limit.
	PageTimeout        time.Duration
	CaptureScreenshots bool
}

// DefaultAnalysisOptions mirrors the analysis block of DefaultScanConfig.
func DefaultAnalysisOptions() AnalysisOptions {
	return DefaultScanConfig().Options()
}

// Attempts returns how many times a failing page task is tried.
func (o AnalysisOptions) Attempts() int {
	if !o.RetryFailedPages || o.MaxRetries < 1 {
		return 1
	}
	return o.MaxRetries
}

const (
	// MaxAttempts bounds MaxRetries so the exponential backoff stays finite.
	MaxAttempts = 10
	// MaxBaseBackoff bounds the first retry delay.
	MaxBaseBackoff = time.Minute
)

// Validate rejects option sets a run cannot start with. When retries are
// enabled the backoff must be positive so retry delays strictly increase.
func (o AnalysisOptions) Validate() error {
	switch {
	case o.MaxConcurrency < 1:
		return NewError(KindInvalidOptions, fmt.Sprintf("max_concurrency must be > 0 (got %d)", o.MaxConcurrency), nil)
	case o.BatchSize < 1:
		return NewError(KindInvalidOptions, fmt.Sprintf("batch_size must be > 0 (got %d)", o.BatchSize), nil)
	case o.DelayBetweenBatches < 0:
		return NewError(KindInvalidOptions, "delay_between_batches must not be negative", nil)
	case o.RetryFailedPages && o.MaxRetries < 1:
		return NewError(KindInvalidOptions, fmt.Sprintf("max_retries must be > 0 when retries are enabled (got %d)", o.MaxRetries), nil)
	case o.RetryFailedPages && o.MaxRetries > MaxAttempts:
		return NewError(KindInvalidOptions, fmt.Sprintf("max_retries must be <= %d (got %d)", MaxAttempts, o.MaxRetries), nil)
	case o.BaseBackoff < 0:
		return NewError(KindInvalidOptions, "base_backoff must not be negative", nil)
	case o.Attempts() > 1 && o.BaseBackoff == 0:
		return NewError(KindInvalidOptions, "base_backoff must be > 0 when retries are enabled", nil)
	case o.BaseBackoff > MaxBaseBackoff:
		return NewError(KindInvalidOptions, fmt.Sprintf("base_backoff must be <= %s (got %s)", MaxBaseBackoff, o.BaseBackoff), nil)
	case o.PageTimeout < 0:
		return NewError(KindInvalidOptions, "page_timeout must not be negative", nil)
	}
	return nil
}
