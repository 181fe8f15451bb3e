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

// Package cmdutil holds helpers shared by the shmctl commands.
package cmdutil

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/srediag/sysvshm/internal/logging"
	"github.com/srediag/sysvshm/pkg/shm"
)

// Flags are the global shmctl flags.
var Flags = []cli.Flag{
	&cli.StringFlag{
		Name:    "loglvl",
		Usage:   "set logging `level` to trace, debug, info, warn, error or none (or 0-5)",
		Value:   "info",
		EnvVars: []string{logging.EnvLevel},
	},
	&cli.BoolFlag{
		Name:    "debug",
		Usage:   "human readable development logs",
		EnvVars: []string{logging.EnvDebugMode},
	},
	&cli.BoolFlag{
		Name:  "tune",
		Usage: "cap SHMALL to half of the host's physical memory",
	},
}

// Logger builds the logger selected by the global flags.
func Logger(c *cli.Context, name string) *zap.Logger {
	return logging.New(name, logging.Options{
		Level:     c.String("loglvl"),
		DebugMode: c.Bool("debug"),
	})
}

// Limits loads SYSVSHM_* limits and applies --tune.
func Limits(c *cli.Context) (shm.Limits, error) {
	l, err := shm.LoadLimits()
	if err != nil {
		return shm.Limits{}, err
	}
	if c.Bool("tune") {
		if l, err = l.TuneToHost(); err != nil {
			return shm.Limits{}, fmt.Errorf("tune: %w", err)
		}
	}
	return l, nil
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return strconv.FormatUint(n, 10) + "B"
	}
	div, exp := uint64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
