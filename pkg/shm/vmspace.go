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
	"sort"

	"github.com/Workiva/go-datastructures/augmentedtree"
)

var (
	errNoRoom  = errors.New("no free address range")
	errOverlap = errors.New("address range in use")
	errRange   = errors.New("address range outside consumer layout")
)

// span is a half-open address range [start, end).
type span struct {
	start, end uintptr
}

func (s span) LowAtDimension(uint64) int64  { return int64(s.start) }
func (s span) HighAtDimension(uint64) int64 { return int64(s.end) }
func (s span) ID() uint64                   { return uint64(s.start) }

func (s span) OverlapsAtDimension(iv augmentedtree.Interval, d uint64) bool {
	return s.HighAtDimension(d) > iv.LowAtDimension(d) && s.LowAtDimension(d) < iv.HighAtDimension(d)
}

// addressSpace tracks the attachments of one consumer inside its layout.
type addressSpace struct {
	layout Layout
	page   uintptr
	tree   augmentedtree.Tree
}

func newAddressSpace(layout Layout, page int) *addressSpace {
	return &addressSpace{
		layout: layout,
		page:   uintptr(page),
		tree:   augmentedtree.New(1),
	}
}

// inUse returns the spans overlapping q, sorted by start address.
func (a *addressSpace) inUse(q span) []span {
	ivs := a.tree.Query(q)
	defer ivs.Dispose()
	out := make([]span, 0, len(ivs))
	for _, iv := range ivs {
		s := iv.(span)
		// the tree may report touching intervals
		if s.OverlapsAtDimension(q, 1) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

// reserve places size bytes exactly at addr when fixed, anywhere otherwise.
// size and addr must be page aligned.
func (a *addressSpace) reserve(addr, size uintptr, fixed bool) (uintptr, error) {
	if fixed {
		s := span{start: addr, end: addr + size}
		if s.end < s.start || s.start < a.layout.Low || s.end > a.layout.High {
			return 0, errRange
		}
		if len(a.inUse(s)) > 0 {
			return 0, errOverlap
		}
		a.tree.Add(s)
		return addr, nil
	}
	if size > a.layout.High-a.layout.Low {
		return 0, errNoRoom
	}
	// Top-down first fit: prefer the region right below the stack.
	used := a.inUse(span{start: a.layout.Low, end: a.layout.High})
	cursor := a.layout.High
	for i := len(used) - 1; i >= 0; i-- {
		if cursor >= used[i].end && cursor-used[i].end >= size {
			break
		}
		if used[i].start < cursor {
			cursor = used[i].start
		}
	}
	if cursor < a.layout.Low || cursor-a.layout.Low < size {
		return 0, errNoRoom
	}
	start := (cursor - size) &^ (a.page - 1)
	a.tree.Add(span{start: start, end: start + size})
	return start, nil
}

func (a *addressSpace) release(addr, size uintptr) {
	a.tree.Delete(span{start: addr, end: addr + size})
}

func (a *addressSpace) clone() *addressSpace {
	c := newAddressSpace(a.layout, int(a.page))
	for _, s := range a.inUse(span{start: a.layout.Low, end: a.layout.High}) {
		c.tree.Add(s)
	}
	return c
}

func (a *addressSpace) len() int { return int(a.tree.Len()) }
