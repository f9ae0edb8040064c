package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"

	invalidLevelErrorFormat = "invalid logging level %q: %w"
	buildLoggerErrorFormat  = "build logger: %w"
)

// New builds a logger writing to stderr so command output on stdout stays
// clean. Format "json" selects the production encoder; anything else the
// console encoder.
func New(level string, format string) (*zap.Logger, error) {
	atomicLevel := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if trimmed := strings.TrimSpace(level); trimmed != "" {
		if err := atomicLevel.UnmarshalText([]byte(strings.ToLower(trimmed))); err != nil {
			return nil, fmt.Errorf(invalidLevelErrorFormat, level, err)
		}
	}

	var loggerConfiguration zap.Config
	if strings.EqualFold(strings.TrimSpace(format), FormatJSON) {
		loggerConfiguration = zap.NewProductionConfig()
	} else {
		loggerConfiguration = zap.NewDevelopmentConfig()
		loggerConfiguration.Development = false
		loggerConfiguration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		loggerConfiguration.DisableStacktrace = true
	}
	loggerConfiguration.Level = atomicLevel
	loggerConfiguration.OutputPaths = []string{"stderr"}
	loggerConfiguration.ErrorOutputPaths = []string{"stderr"}

	logger, err := loggerConfiguration.Build()
	if err != nil {
		return nil, fmt.Errorf(buildLoggerErrorFormat, err)
	}
	return logger, nil
}
