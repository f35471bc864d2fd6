/*
Copyright 2026 The Wasmbed Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package log builds the logr.Logger every other package depends on,
// backed by zap. Controllers and the gateway session machinery log
// through logr so the same sink serves controller-runtime's own
// diagnostics and this repo's structured events.
package log

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
)

// Format selects the zap encoder.
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Options configures the root logger.
type Options struct {
	Level  string // debug, info, warn, error
	Format Format
}

// New builds a logr.Logger backed by a zap core configured per opts.
func New(opts Options) (logr.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return logr.Discard(), err
		}
	}

	cfg := zap.NewProductionConfig()
	if opts.Format == FormatConsole {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), err
	}
	return zapr.NewLogger(zl), nil
}

// Component returns l annotated with a "component" key, the same
// convention the record-store client and session machinery use to tag
// every log line with its subsystem.
func Component(l logr.Logger, name string) logr.Logger {
	return l.WithValues("component", name)
}
