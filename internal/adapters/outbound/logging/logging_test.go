package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a11ykraft/a11ykraft/internal/adapters/outbound/logging"
	"github.com/a11ykraft/a11ykraft/internal/domain"
)

func TestNew_Defaults(t *testing.T) {
	logger, err := logging.New(domain.DefaultScanConfig().Log)
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stderr, logger.Out)
}

func TestNew_JSONToStdout(t *testing.T) {
	logger, err := logging.New(domain.LogConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)
	assert.Equal(t, os.Stdout, logger.Out)
}

func TestNew_FileOutputWritesThroughRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "a11ykraft.log")
	logger, err := logging.New(domain.LogConfig{Level: "info", Format: "json", Output: "file", FilePath: path, MaxSize: 1})
	require.NoError(t, err)

	logger.WithField("run", "r1").Info("analysis started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"analysis started"`)
	assert.Contains(t, string(data), `"run":"r1"`)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  domain.LogConfig
		want string
	}{
		{"bad level", domain.LogConfig{Level: "loud"}, "invalid log level"},
		{"bad format", domain.LogConfig{Level: "info", Format: "xml"}, "unsupported log format"},
		{"bad output", domain.LogConfig{Level: "info", Output: "syslog"}, "unsupported log output"},
		{"file without path", domain.LogConfig{Level: "info", Output: "file"}, "file_path is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := logging.New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestDiscard(t *testing.T) {
	l := logging.Discard()
	l.Error("dropped")
	assert.NotNil(t, l)
}
