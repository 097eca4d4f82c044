package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gmailsorter/internal/config"
)

func TestNew_Levels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"bogus": zapcore.InfoLevel,
	}
	for name, want := range cases {
		logger, err := New(name, "console", "")
		require.NoError(t, err, name)
		assert.True(t, logger.Core().Enabled(want), name)
		if want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(want-1), name)
		}
	}
}

func TestInitLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sorter.log")
	v := config.NewEmptyViper()
	v.Set("logging.format", "json")
	v.Set("logging.file", path)

	logger, err := InitLogger(config.NewFromViper(v))
	require.NoError(t, err)
	logger.Info("labeled message", zap.String("message_id", "m1"))
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"message_id":"m1"`)
	assert.Contains(t, string(b), "labeled message")
}
