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
	"context"
	"fmt"
	"sync"

	internalshm "github.com/srediag/sysvshm/internal/shm"
)

// Allocator reserves and releases the backing memory of segments.
// Regions returned by Map must never alias each other.
type Allocator interface {
	PageSize() int
	Map(ctx context.Context, size int) ([]byte, error)
	Unmap(ctx context.Context, mem []byte) error
}

// MmapAllocator backs segments with anonymous shared mappings.
type MmapAllocator struct {
	// Retries bounds retries of transient mmap failures.
	Retries uint64

	mu      sync.Mutex
	regions map[*byte]*internalshm.MappedRegion
}

// NewMmapAllocator returns an allocator over the platform's shared mappings.
func NewMmapAllocator() *MmapAllocator {
	return &MmapAllocator{
		Retries: 3,
		regions: make(map[*byte]*internalshm.MappedRegion),
	}
}

func (a *MmapAllocator) PageSize() int { return internalshm.PageSize() }

func (a *MmapAllocator) Map(ctx context.Context, size int) ([]byte, error) {
	region, err := internalshm.MapRegion(ctx, internalshm.MapOptions{Size: size, Retries: a.Retries})
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.regions[&region.Addr[0]] = region
	a.mu.Unlock()
	return region.Addr, nil
}

func (a *MmapAllocator) Unmap(ctx context.Context, mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	a.mu.Lock()
	region, ok := a.regions[&mem[0]]
	delete(a.regions, &mem[0])
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("unmap: region %p not owned by allocator", &mem[0])
	}
	return internalshm.UnmapRegion(ctx, region)
}

// Live returns the number of regions currently mapped.
func (a *MmapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.regions)
}

func roundPage(size uint64, page int) uint64 {
	p := uint64(page)
	return (size + p - 1) &^ (p - 1)
}
