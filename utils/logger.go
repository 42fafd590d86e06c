package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cppla/blogstreak/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "blogstreak"

var (
	// Logger is the global structured logger
	Logger *zap.Logger
	// Sugar is a sugared logger for convenience
	Sugar *zap.SugaredLogger
)

// rotation holds the lumberjack knobs shared by the app and access logs.
type rotation struct {
	maxSizeMB  int
	maxBackups int
	maxAgeDays int
	compress   bool
}

func rotationFrom(cfg config.AppConfig) rotation {
	return rotation{
		maxSizeMB:  cfg.LogMaxSizeMB,
		maxBackups: cfg.LogMaxBackups,
		maxAgeDays: cfg.LogMaxAgeDays,
		compress:   cfg.LogCompress,
	}
}

// rollingWriter opens a lumberjack sink at path, creating its directory.
func rollingWriter(path string, r rotation) (zapcore.WriteSyncer, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    nz(r.maxSizeMB, 100), // megabytes
		MaxBackups: nz(r.maxBackups, 3),
		MaxAge:     nz(r.maxAgeDays, 7), // days
		Compress:   r.compress,
	}), nil
}

func encoderConfig() zapcore.EncoderConfig {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = timeEncoder
	encCfg.EncodeDuration = zapcore.MillisDurationEncoder
	return encCfg
}

// InitLogger builds the global logger: JSON to stdout, plus a rolling file
// when LogPath is set. Every entry carries the service name.
func InitLogger(cfg config.AppConfig) error {
	level := parseLevel(cfg.LogLevel)
	enc := zapcore.NewJSONEncoder(encoderConfig())

	cores := []zapcore.Core{zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level)}
	if cfg.LogPath != "" {
		ws, err := rollingWriter(cfg.LogPath, rotationFrom(cfg))
		if err != nil {
			return err
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), ws, level))
	}

	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service", serviceName)),
	}
	if level == zapcore.DebugLevel {
		opts = append(opts, zap.Development())
	}
	Logger = zap.New(zapcore.NewTee(cores...), opts...)
	Sugar = Logger.Sugar()
	return nil
}

// Named returns a child of the global logger for component, or a no-op
// logger before InitLogger has run.
func Named(component string) *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger.Named(component)
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// parseLevel falls back to info for empty or unknown names.
func parseLevel(s string) zapcore.Level {
	level, err := zapcore.ParseLevel(s)
	if err != nil || s == "" {
		return zapcore.InfoLevel
	}
	return level
}

func nz(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
