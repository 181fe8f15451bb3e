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

import "fmt"

// Key is the application-chosen rendezvous value of a segment.
type Key int32

// IPCPrivate is the key that never matches a lookup: the segment id has to be
// handed to other consumers out of band.
const IPCPrivate Key = 0

// ID is the external identifier of a segment: a slot index in the low 16 bits
// and the slot's sequence number above it.
type ID int32

const (
	indexBits = 16
	indexMask = 1<<indexBits - 1
	seqMask   = 0x7fff

	// MaxTableSize is the largest segment table an ID can address.
	MaxTableSize = 1 << indexBits
)

// MakeID packs a slot index and sequence number into an ID.
func MakeID(index int, seq uint16) ID {
	return ID(int32(seq&seqMask)<<indexBits | int32(index&indexMask))
}

// Index returns the slot index encoded in id.
func (id ID) Index() int { return int(id) & indexMask }

// Seq returns the sequence number encoded in id.
func (id ID) Seq() uint16 { return uint16(int32(id)>>indexBits) & seqMask }

func (id ID) String() string {
	return fmt.Sprintf("%d(ix=%d,seq=%d)", int32(id), id.Index(), id.Seq())
}

// Mode holds permission bits. Only ModePerm is settable.
type Mode uint32

const (
	ModePerm Mode = 0o777
	// ModeDest is reported for segments that are removed but still attached.
	ModeDest Mode = 0o1000
)

// Flags is the shmget flag word: the low nine bits carry the permission mode.
type Flags uint32

const (
	Create    Flags = 0o1000
	Exclusive Flags = 0o2000
)

// Mode returns the permission bits of f.
func (f Flags) Mode() Mode { return Mode(f) & ModePerm }

// AttachFlags is the shmat flag word.
type AttachFlags uint32

const (
	ReadOnly AttachFlags = 0o10000
	// Round rounds an address hint down to a page boundary instead of rejecting it.
	Round AttachFlags = 0o20000
)
