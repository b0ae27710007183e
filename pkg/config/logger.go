package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger contains node logger configuration.
type Logger struct {
	LogEncoding  string `yaml:"LogEncoding"`
	LogLevel     string `yaml:"LogLevel"`
	LogPath      string `yaml:"LogPath"`
	LogTimestamp *bool  `yaml:"LogTimestamp,omitempty"`
}

// Validate returns an error if Logger configuration is not valid.
func (l Logger) Validate() error {
	if len(l.LogEncoding) > 0 && l.LogEncoding != "console" && l.LogEncoding != "json" {
		return fmt.Errorf("invalid LogEncoding: %s", l.LogEncoding)
	}
	return nil
}

// Build constructs a zap.Logger from this configuration, grounded on the
// teacher's historical `cli/options.HandleLoggingParams`: a console/json
// production config with caller/stacktrace disabled, a string-rendered
// duration encoder, and timestamps enabled by LogTimestamp or disabled by
// default to keep log lines comparable across test runs. Unlike the
// teacher, this module does not register a Windows-specific "winfile"
// sink (a narrow workaround for a long-standing zap issue with Windows
// paths, orthogonal to p2p networking; see DESIGN.md) — LogPath is passed
// to zap as an ordinary output path on every OS.
//
// The returned zap.AtomicLevel mirrors the teacher's own three-value
// return (log, level, closer/err): it lets a SIGHUP handler raise or
// lower verbosity on a running logger without rebuilding it.
func (l Logger) Build() (*zap.Logger, zap.AtomicLevel, error) {
	level := zapcore.InfoLevel
	if l.LogLevel != "" {
		var err error
		level, err = zapcore.ParseLevel(l.LogLevel)
		if err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("log setting: %w", err)
		}
	}
	encoding := "console"
	if l.LogEncoding != "" {
		encoding = l.LogEncoding
	}

	atomicLevel := zap.NewAtomicLevelAt(level)
	cc := zap.NewProductionConfig()
	cc.DisableCaller = true
	cc.DisableStacktrace = true
	cc.Encoding = encoding
	cc.Level = atomicLevel
	cc.Sampling = nil
	cc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	cc.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if l.LogTimestamp != nil && *l.LogTimestamp {
		cc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cc.EncoderConfig.EncodeTime = func(time.Time, zapcore.PrimitiveArrayEncoder) {}
	}

	if l.LogPath != "" {
		if err := os.MkdirAll(filepath.Dir(l.LogPath), 0o755); err != nil {
			return nil, zap.AtomicLevel{}, fmt.Errorf("log setting: %w", err)
		}
		cc.OutputPaths = []string{l.LogPath}
		cc.ErrorOutputPaths = []string{l.LogPath}
	}

	logger, err := cc.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	return logger, atomicLevel, nil
}
