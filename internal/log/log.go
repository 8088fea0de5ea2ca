// Copyright 2021-present ZenBPM Contributors
// (based on git commit history).
//
// ZenBPM project is available under two licenses:
//  - SPDX-License-Identifier: AGPL-3.0-or-later (See LICENSE-AGPL.md)
//  - Enterprise License (See LICENSE-ENTERPRISE.md)

package log

import (
	"context"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pbinitiative/zencmmn/internal/profile"
)

var (
	logger = zap.NewNop().Sugar()
	once   sync.Once
)

// Init sets up the application logger. Calling it more than once has no effect.
func Init() {
	once.Do(func() {
		logger = newLogger(profile.Current, os.Getenv("LOG_LEVEL")).Sugar()
	})
}

func newLogger(p profile.ProfileType, level string) *zap.Logger {
	var cfg zap.Config
	if p == profile.DEV {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if level != "" {
		if lvl, err := zap.ParseAtomicLevel(level); err == nil {
			cfg.Level = lvl
		}
	}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewExample()
	}
	return l
}

// SetLogger replaces the application logger, tests use it with an observer core.
func SetLogger(l *zap.Logger) {
	logger = l.WithOptions(zap.AddCallerSkip(1)).Sugar()
}

func Sync() {
	_ = logger.Sync()
}

func withContext(ctx context.Context) *zap.SugaredLogger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return logger
	}
	return logger.With("traceId", sc.TraceID().String(), "spanId", sc.SpanID().String())
}

func Info(template string, args ...any) {
	logger.Infof(template, args...)
}

func Error(template string, args ...any) {
	logger.Errorf(template, args...)
}

func Fatal(template string, args ...any) {
	logger.Fatalf(template, args...)
}

func Infof(ctx context.Context, template string, args ...any) {
	withContext(ctx).Infof(template, args...)
}

func Debugf(ctx context.Context, template string, args ...any) {
	withContext(ctx).Debugf(template, args...)
}

func Warnf(ctx context.Context, template string, args ...any) {
	withContext(ctx).Warnf(template, args...)
}

func Errorf(ctx context.Context, template string, args ...any) {
	withContext(ctx).Errorf(template, args...)
}
