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

package shm

import (
	"errors"
	"fmt"

	"github.com/kelseyhightower/envconfig"
	"github.com/shirou/gopsutil/v3/mem"
)

// EnvPrefix is the prefix of the environment variables read by LoadLimits.
const EnvPrefix = "SYSVSHM"

// Limits are the tunables of a Manager (shminfo).
type Limits struct {
	// MaxSegmentSize is the largest segment, in bytes (shmmax).
	MaxSegmentSize uint64 `envconfig:"SHMMAX" default:"8388608"`
	// MinSegmentSize is the smallest segment, in bytes (shmmin).
	MinSegmentSize uint64 `envconfig:"SHMMIN" default:"1"`
	// MaxSegments is the size of the segment table (shmmni).
	MaxSegments int `envconfig:"SHMMNI" default:"128"`
	// MaxTotalBytes caps the committed size of all live segments (shmall, in bytes).
	MaxTotalBytes uint64 `envconfig:"SHMALL" default:"33554432"`
	// MaxAttachments is the per-consumer mapping table size (shmseg).
	MaxAttachments int `envconfig:"SHMSEG" default:"128"`
}

// DefaultLimits returns the built-in tunables.
func DefaultLimits() Limits {
	return Limits{
		MaxSegmentSize: 8 << 20,
		MinSegmentSize: 1,
		MaxSegments:    128,
		MaxTotalBytes:  32 << 20,
		MaxAttachments: 128,
	}
}

// LoadLimits reads Limits from SYSVSHM_* environment variables.
func LoadLimits() (Limits, error) {
	var l Limits
	if err := envconfig.Process(EnvPrefix, &l); err != nil {
		return Limits{}, fmt.Errorf("failed to load limits: %w", err)
	}
	if err := l.Validate(); err != nil {
		return Limits{}, err
	}
	return l, nil
}

// Validate checks that the limits are usable.
func (l Limits) Validate() error {
	var errs []error
	if l.MinSegmentSize == 0 {
		errs = append(errs, errors.New("shmmin must be at least 1"))
	}
	if l.MaxSegmentSize < l.MinSegmentSize {
		errs = append(errs, fmt.Errorf("shmmax %d below shmmin %d", l.MaxSegmentSize, l.MinSegmentSize))
	}
	if l.MaxSegments < 1 || l.MaxSegments > MaxTableSize {
		errs = append(errs, fmt.Errorf("shmmni %d out of range [1,%d]", l.MaxSegments, MaxTableSize))
	}
	if l.MaxTotalBytes == 0 {
		errs = append(errs, errors.New("shmall must be positive"))
	}
	if l.MaxAttachments < 1 {
		errs = append(errs, errors.New("shmseg must be at least 1"))
	}
	return errors.Join(errs...)
}

// TuneToHost caps MaxTotalBytes (and MaxSegmentSize with it) to half of the
// host's physical memory.
func (l Limits) TuneToHost() (Limits, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return l, fmt.Errorf("read host memory: %w", err)
	}
	return l.capTotal(vm.Total / 2), nil
}

func (l Limits) capTotal(ceiling uint64) Limits {
	if ceiling == 0 {
		return l
	}
	if l.MaxTotalBytes > ceiling {
		l.MaxTotalBytes = ceiling
	}
	if l.MaxSegmentSize > l.MaxTotalBytes {
		l.MaxSegmentSize = l.MaxTotalBytes
	}
	return l
}

// Layout is the simulated address range in which a consumer attaches segments:
// between the end of its data segment and the base of its stack.
type Layout struct {
	Low  uintptr
	High uintptr
}

// DefaultLayout returns the layout used when none is configured.
func DefaultLayout() Layout {
	return Layout{Low: 0x1000_0000, High: 0x7000_0000}
}
