// Package logger builds the zap logger the pipeline and commands share.
package logger

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options control where and how verbosely log output is written.
type Options struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// FilePath, when set, mirrors output as JSON lines to this file in
	// addition to the console.
	FilePath string
	// JSON switches the console stream from human-readable to JSON.
	JSON bool
}

// New builds a sugared logger per opts. The returned closer flushes buffered
// entries and should run before process exit.
func New(opts Options) (*zap.SugaredLogger, func(), error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}

	cores := []zapcore.Core{consoleCore(level, opts.JSON)}

	if opts.FilePath != "" {
		fileCore, err := newFileCore(opts.FilePath, level)
		if err != nil {
			return nil, nil, err
		}
		cores = append(cores, fileCore)
	}

	base := zap.New(zapcore.NewTee(cores...))
	closer := func() { _ = base.Sync() }
	return base.Sugar(), closer, nil
}

func consoleCore(level zapcore.Level, json bool) zapcore.Core {
	if json {
		cfg := zap.NewProductionEncoderConfig()
		return zapcore.NewCore(
			zapcore.NewJSONEncoder(cfg),
			zapcore.AddSync(os.Stderr),
			level,
		)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(cfg),
		zapcore.AddSync(os.Stderr),
		level,
	)
}

func newFileCore(path string, level zapcore.Level) (zapcore.Core, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating log directory for %s", path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "opening log file %s", path)
	}
	cfg := zap.NewProductionEncoderConfig()
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.AddSync(f),
		level,
	), nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.Newf("unknown log level %q", s)
	}
}
