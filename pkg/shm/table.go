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

import "time"

type segState uint8

const (
	stateFree segState = iota
	stateAllocated
	// stateRemoved is allocated and pending removal.
	stateRemoved
)

type segment struct {
	perm     Perm
	size     uint64
	nattch   int
	cpid     int32
	lpid     int32
	created  time.Time
	attached time.Time
	detached time.Time
	changed  time.Time
	state    segState
	mem      []byte
}

func (s *segment) live() bool { return s.state != stateFree }

func (s *segment) info(ix int) SegmentInfo {
	perm := s.perm
	if s.state == stateRemoved {
		perm.Mode |= ModeDest
	}
	return SegmentInfo{
		ID:          MakeID(ix, s.perm.Seq),
		Perm:        perm,
		Size:        s.size,
		Attachments: s.nattch,
		CreatorPID:  s.cpid,
		LastPID:     s.lpid,
		Created:     s.created,
		Attached:    s.attached,
		Detached:    s.detached,
		Changed:     s.changed,
		Removed:     s.state == stateRemoved,
	}
}

// SegmentInfo is an immutable snapshot of a segment (shmid_ds).
type SegmentInfo struct {
	ID          ID
	Perm        Perm
	Size        uint64
	Attachments int
	CreatorPID  int32
	LastPID     int32
	Created     time.Time
	Attached    time.Time
	Detached    time.Time
	Changed     time.Time
	Removed     bool
}

// table is the fixed array of segment slots. Callers hold Manager.mu.
type table struct {
	slots    []segment
	used     int
	lastFree int
}

func newTable(n int) *table {
	return &table{slots: make([]segment, n), lastFree: -1}
}

func (t *table) findByKey(key Key) int {
	for i := range t.slots {
		s := &t.slots[i]
		if s.state == stateAllocated && s.perm.Key == key {
			return i
		}
	}
	return -1
}

func (t *table) findByID(id ID) int {
	if id < 0 {
		return -1
	}
	ix := id.Index()
	if ix >= len(t.slots) {
		return -1
	}
	s := &t.slots[ix]
	if !s.live() || s.perm.Seq != id.Seq() {
		return -1
	}
	return ix
}

// allocSlot returns a free slot index, or -1 when the table is full.
// stale reports that the last-free cache pointed at a slot in use.
func (t *table) allocSlot() (ix int, stale bool) {
	if t.used >= len(t.slots) {
		return -1, false
	}
	if c := t.lastFree; c >= 0 {
		t.lastFree = -1
		if c < len(t.slots) && !t.slots[c].live() {
			return c, false
		}
		stale = true
	}
	for i := range t.slots {
		if !t.slots[i].live() {
			return i, stale
		}
	}
	return -1, stale
}

// occupy marks a free slot allocated and bumps its sequence number.
func (t *table) occupy(ix int) *segment {
	s := &t.slots[ix]
	seq := (s.perm.Seq + 1) & seqMask
	*s = segment{state: stateAllocated}
	s.perm.Seq = seq
	t.used++
	return s
}

// release returns a slot to the free state, keeping its sequence number.
func (t *table) release(ix int) {
	s := &t.slots[ix]
	seq := s.perm.Seq
	*s = segment{}
	s.perm.Seq = seq
	t.used--
	t.lastFree = ix
}
