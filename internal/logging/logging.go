/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logging builds the zap loggers used across sysvshm.
//
// The level is read from SYSVSHM_LOG_LEVEL, either numerically
// (0 trace, 1 debug, 2 info, 3 warn, 4 error, 5 none) or by name.
// SYSVSHM_DEBUG_MODE switches to the colored development encoder.
package logging

import (
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLevel     = "SYSVSHM_LOG_LEVEL"
	EnvDebugMode = "SYSVSHM_DEBUG_MODE"
)

const (
	levelTrace = iota
	levelDebug
	levelInfo
	levelWarn
	levelError
	levelNoPrint
)

var levelNames = map[string]int{
	"trace": levelTrace,
	"debug": levelDebug,
	"info":  levelInfo,
	"warn":  levelWarn,
	"error": levelError,
	"none":  levelNoPrint,
}

// Options configures New. Zero values fall back to the environment.
type Options struct {
	Level     string
	DebugMode bool
}

// FromEnv reads Options from the process environment.
func FromEnv() Options {
	return Options{
		Level:     os.Getenv(EnvLevel),
		DebugMode: os.Getenv(EnvDebugMode) != "",
	}
}

// ParseLevel maps a numeric or named level onto zap. ok is false for levelNoPrint.
// Unknown input yields warn, which is the default.
func ParseLevel(s string) (lvl zapcore.Level, ok bool) {
	n := levelWarn
	s = strings.ToLower(strings.TrimSpace(s))
	if v, err := strconv.Atoi(s); err == nil {
		if v >= levelTrace && v <= levelNoPrint {
			n = v
		}
	} else if v, found := levelNames[s]; found {
		n = v
	}
	switch n {
	case levelTrace, levelDebug:
		// zap has no trace level
		return zapcore.DebugLevel, true
	case levelInfo:
		return zapcore.InfoLevel, true
	case levelError:
		return zapcore.ErrorLevel, true
	case levelNoPrint:
		return zapcore.FatalLevel, false
	default:
		return zapcore.WarnLevel, true
	}
}

// New builds a named logger. It never fails: a broken configuration yields a no-op logger.
func New(name string, opts Options) *zap.Logger {
	lvl, ok := ParseLevel(opts.Level)
	if !ok {
		return zap.NewNop()
	}
	var cfg zap.Config
	if opts.DebugMode {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "time"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	if name != "" {
		logger = logger.Named(name)
	}
	return logger
}
