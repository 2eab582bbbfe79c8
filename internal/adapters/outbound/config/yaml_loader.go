package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/a11ykraft/a11ykraft/internal/domain"
)

const (
	fileName = ".a11ykraft.yaml"
	envFile  = ".env"
)

// Environment variables that override the file.
const (
	EnvLogLevel          = "A11YKRAFT_LOG_LEVEL"
	EnvBrowserControlURL = "A11YKRAFT_BROWSER_CONTROL_URL"
	EnvMaxConcurrency    = "A11YKRAFT_MAX_CONCURRENCY"
)

// YAMLLoader implements domain.ConfigLoader by reading .a11ykraft.yaml.
type YAMLLoader struct{}

// New creates a YAMLLoader.
func New() *YAMLLoader { return &YAMLLoader{} }

// Load reads .a11ykraft.yaml from projectPath over the defaults, applies
// environment overrides (after loading projectPath/.env if present) and
// validates the result. A missing file yields the defaults.
func (l *YAMLLoader) Load(projectPath string) (domain.ScanConfig, error) {
	cfg := domain.DefaultScanConfig()

	data, err := os.ReadFile(filepath.Join(projectPath, fileName))
	switch {
	case err == nil:
		// Decoding over the defaults keeps them for keys the file omits.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return domain.ScanConfig{}, fmt.Errorf("parsing %s: %w", fileName, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return domain.ScanConfig{}, err
	}

	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load(filepath.Join(projectPath, envFile))

	if err := applyEnv(&cfg); err != nil {
		return domain.ScanConfig{}, err
	}

	if err := cfg.Validate(); err != nil {
		return domain.ScanConfig{}, fmt.Errorf("invalid %s: %w", fileName, err)
	}
	return cfg, nil
}

func applyEnv(cfg *domain.ScanConfig) error {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBrowserControlURL)); v != "" {
		cfg.Browser.ControlURL = v
		cfg.Browser.Mode = domain.BrowserRod
	}
	if v := strings.TrimSpace(os.Getenv(EnvMaxConcurrency)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a number", EnvMaxConcurrency, v)
		}
		cfg.Analysis.MaxConcurrency = n
	}
	return nil
}
