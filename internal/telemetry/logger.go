// Package telemetry wires up the structured logger shared by every
// role. Grounded on the teacher's pkg/logger: a zap.SugaredLogger
// configured from an environment-provided level rather than CLI flags.
package telemetry

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a component-scoped SugaredLogger writing to stderr. The
// component name is attached to every line (e.g. "tracker", "seeder",
// "leecher") so multi-role log output can be filtered.
//
// Level is read from LOG_LEVEL (falling back to "info"); an
// unrecognised value is treated as info rather than failing startup,
// since log verbosity is not itself part of the configuration
// validated by internal/config.
func New(component string) *zap.SugaredLogger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	level := zapcore.InfoLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		_ = level.UnmarshalText([]byte(strings.ToLower(raw)))
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stderr),
		level,
	)

	logger := zap.New(core).Named(component)
	return logger.Sugar()
}
