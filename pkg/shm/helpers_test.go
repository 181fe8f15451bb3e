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
	"errors"
	"sync"
	"time"
)

const testPage = 4096

var (
	ownerCred = Credential{UID: 1000, GID: 100, PID: 10}
	groupCred = Credential{UID: 1001, GID: 100, PID: 11}
	otherCred = Credential{UID: 2000, GID: 200, PID: 20}
	rootCred  = Credential{UID: 0, GID: 0, PID: 1}

	testEpoch = time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
)

func fixedClock() time.Time { return testEpoch }

func testLimits() Limits {
	return Limits{
		MaxSegmentSize: 1 << 20,
		MinSegmentSize: 1,
		MaxSegments:    8,
		MaxTotalBytes:  4 << 20,
		MaxAttachments: 4,
	}
}

// heapAllocator hands out heap memory and tracks what is live.
type heapAllocator struct {
	mu        sync.Mutex
	live      map[*byte]int
	failMap   error
	failUnmap error
}

func newHeapAllocator() *heapAllocator {
	return &heapAllocator{live: make(map[*byte]int)}
}

func (a *heapAllocator) PageSize() int { return testPage }

func (a *heapAllocator) Map(_ context.Context, size int) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failMap != nil {
		return nil, a.failMap
	}
	b := make([]byte, size)
	a.live[&b[0]] = size
	return b, nil
}

func (a *heapAllocator) Unmap(_ context.Context, mem []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(mem) == 0 {
		return errors.New("empty region")
	}
	if _, ok := a.live[&mem[0]]; !ok {
		return errors.New("double unmap")
	}
	delete(a.live, &mem[0])
	return a.failUnmap
}

func (a *heapAllocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Record(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSink) kinds(id ID) []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventKind
	for _, e := range r.events {
		if e.ID == id {
			out = append(out, e.Kind)
		}
	}
	return out
}
