package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"gmailsorter/internal/config"
)

// InitLogger builds a logger from logging.level, logging.format and
// logging.file.
func InitLogger(cfg *config.Config) (*zap.Logger, error) {
	return New(cfg.GetString("logging.level"), cfg.GetString("logging.format"), cfg.GetString("logging.file"))
}

// New builds a logger writing to file, or to stderr when file is empty.
// format is "json" or "console"; unknown levels fall back to info.
func New(levelName, format, file string) (*zap.Logger, error) {
	var level zapcore.Level
	switch levelName {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var logConfig zap.Config
	if format == "json" {
		logConfig = zap.NewProductionConfig()
	} else {
		logConfig = zap.NewDevelopmentConfig()
		if file == "" {
			logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		logConfig.DisableStacktrace = level > zapcore.DebugLevel
	}
	logConfig.Level = zap.NewAtomicLevelAt(level)
	logConfig.OutputPaths = []string{"stderr"}
	if file != "" {
		logConfig.OutputPaths = []string{file}
		logConfig.ErrorOutputPaths = []string{file}
	}

	logger, err := logConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}
