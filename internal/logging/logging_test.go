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

package logging

import (
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zapcore"
)

type LoggingTestSuite struct {
	suite.Suite
}

func (s *LoggingTestSuite) TestParseLevel() {
	cases := map[string]zapcore.Level{
		"0":     zapcore.DebugLevel,
		"1":     zapcore.DebugLevel,
		"2":     zapcore.InfoLevel,
		"3":     zapcore.WarnLevel,
		"4":     zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"ERROR": zapcore.ErrorLevel,
		"":      zapcore.WarnLevel,
		"42":    zapcore.WarnLevel,
		"bogus": zapcore.WarnLevel,
	}
	for in, want := range cases {
		lvl, ok := ParseLevel(in)
		s.Require().True(ok, in)
		s.Equal(want, lvl, in)
	}
	_, ok := ParseLevel("5")
	s.False(ok)
	_, ok = ParseLevel("none")
	s.False(ok)
}

func (s *LoggingTestSuite) TestFromEnv() {
	s.T().Setenv(EnvLevel, "debug")
	s.T().Setenv(EnvDebugMode, "1")
	opts := FromEnv()
	s.Equal("debug", opts.Level)
	s.True(opts.DebugMode)
}

func (s *LoggingTestSuite) TestNew() {
	l := New("test", Options{Level: "info"})
	s.True(l.Core().Enabled(zapcore.InfoLevel))
	s.False(l.Core().Enabled(zapcore.DebugLevel))

	nop := New("test", Options{Level: "none"})
	s.False(nop.Core().Enabled(zapcore.ErrorLevel))

	dev := New("", Options{Level: "trace", DebugMode: true})
	s.True(dev.Core().Enabled(zapcore.DebugLevel))
}

func TestLoggingTestSuite(t *testing.T) {
	suite.Run(t, new(LoggingTestSuite))
}
