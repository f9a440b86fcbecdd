// Package logging builds the pipeline's structured logger (component
// K): a single zap.Logger, scoped per subsystem with
// .With(zap.String("component", ...)), emitting one JSON stream to
// stdout — the shape a GitHub Actions log viewer wants, rather than
// the category-scoped file-per-subsystem scheme a long-running agent
// process needs.
package logging

import (
	"fmt"
	"os"

	"github.com/terrencegiggy/content-pipeline/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Component names used with Scope(log, ...), kept as named
// constants so call sites can't typo a scope string.
const (
	ComponentScheduler  = "scheduler"
	ComponentMonitor    = "monitor"
	ComponentCrawler    = "crawler"
	ComponentExtraction = "extraction"
	ComponentRegistry   = "registry"
	ComponentStore      = "store"
	ComponentPipeline   = "pipeline"
)

// New builds a zap.Logger from cfg: JSON encoding to stdout by
// default, console encoding (colorized level, human timestamp) when
// cfg.Format is "console" — useful for a developer running the CLI
// locally rather than under GitHub Actions.
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	var encoderCfg zapcore.EncoderConfig
	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
		encoderCfg.TimeKey = "timestamp"
		encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(os.Stdout)), level)
	return zap.New(core), nil
}

func parseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// Scope returns a child logger tagged with the given component name,
// the idiom every subsystem uses instead of importing zap directly.
func Scope(log *zap.Logger, component string) *zap.Logger {
	return log.With(zap.String("component", component))
}
