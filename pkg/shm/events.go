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

// EventKind classifies lifecycle events.
type EventKind uint8

const (
	EventCreate EventKind = iota + 1
	EventAttach
	EventDetach
	EventSet
	EventRemove
	EventDestroy
)

func (k EventKind) String() string {
	switch k {
	case EventCreate:
		return "create"
	case EventAttach:
		return "attach"
	case EventDetach:
		return "detach"
	case EventSet:
		return "set"
	case EventRemove:
		return "remove"
	case EventDestroy:
		return "destroy"
	}
	return "unknown"
}

// Event is a segment lifecycle notification.
type Event struct {
	Kind EventKind
	ID   ID
	Key  Key
	PID  int32
	UID  uint32
	Size uint64
	Time time.Time
}

// EventSink receives events while the segment table lock is held, so events of
// one segment arrive in order. Record must not block or call back into the Manager.
type EventSink interface {
	Record(Event)
}

type nopSink struct{}

func (nopSink) Record(Event) {}

// MultiSink fans events out to every sink in order.
type MultiSink []EventSink

func (ms MultiSink) Record(e Event) {
	for _, s := range ms {
		s.Record(e)
	}
}
