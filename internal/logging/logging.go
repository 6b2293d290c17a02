package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the component-tagged logger every package in the daemon writes to.
type Logger interface {
	Infof(component string, format string, args ...interface{})
	Errorf(component string, format string, args ...interface{})
}

type Noop struct{}

func (Noop) Infof(component, format string, args ...interface{})  {}
func (Noop) Errorf(component, format string, args ...interface{}) {}

// Zap adapts a zap logger to Logger. The component becomes a structured field.
type Zap struct{ l *zap.Logger }

func NewZap(l *zap.Logger) Zap {
	if l == nil {
		l = zap.NewNop()
	}
	return Zap{l: l}
}

func (z Zap) Infof(component string, format string, args ...interface{}) {
	z.l.Info(fmt.Sprintf(format, args...), zap.String("component", component))
}

func (z Zap) Errorf(component string, format string, args ...interface{}) {
	z.l.Error(fmt.Sprintf(format, args...), zap.String("component", component))
}

// Options control how New builds the process logger.
type Options struct {
	Level string
	// Debug switches to the development encoder and debug level.
	Debug bool
	// DebugFile, when set, receives a copy of every entry.
	DebugFile string
}

// New builds the zap logger used by the daemon binaries.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Debug {
		cfg = zap.NewDevelopmentConfig()
	}
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Debug {
		level = zapcore.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	if opts.DebugFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, opts.DebugFile)
		cfg.ErrorOutputPaths = append(cfg.ErrorOutputPaths, opts.DebugFile)
	}
	return cfg.Build()
}

// ParseLevel maps a level name to a zap level. Empty means info.
func ParseLevel(name string) (zapcore.Level, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", name, err)
	}
	return level, nil
}
