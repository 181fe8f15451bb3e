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

// Package shm contains the platform-specific backing store for shared memory segments.
package shm

import "errors"

// ErrInvalidSize is returned when a region of zero or negative length is requested.
var ErrInvalidSize = errors.New("shm: invalid region size")

// MappedRegion is one anonymous shared memory region.
type MappedRegion struct {
	Addr []byte
}

// Len returns the mapped length in bytes.
func (r *MappedRegion) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Addr)
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Size int
	// Retries bounds how often a transient mmap failure is retried.
	Retries uint64
}

// Function implementations are provided in platform-specific files (platform_linux.go, platform_other.go).
