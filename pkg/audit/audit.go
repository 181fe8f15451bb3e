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

// Package audit keeps a bounded trail of segment lifecycle events.
//
// A Recorder is installed as the shm.EventSink of a Manager. Events are queued
// without blocking the segment table and consumed later with Drain or Forward.
package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"go.uber.org/zap"

	"github.com/srediag/sysvshm/pkg/shm"
)

// ErrClosed is returned once the recorder has been closed.
var ErrClosed = errors.New("audit: recorder closed")

// DefaultCapacity bounds the number of undrained events.
const DefaultCapacity = 4096

// Recorder queues shm events. It is safe for concurrent use.
type Recorder struct {
	q        *queue.Queue
	capacity int64
	dropped  atomic.Uint64
}

// NewRecorder returns a recorder keeping at most capacity undrained events.
// A non-positive capacity uses DefaultCapacity.
func NewRecorder(capacity int64) *Recorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Recorder{q: queue.New(capacity), capacity: capacity}
}

// Record implements shm.EventSink. Events beyond the capacity are counted and dropped.
func (r *Recorder) Record(e shm.Event) {
	if r.q.Len() >= r.capacity {
		r.dropped.Add(1)
		return
	}
	if err := r.q.Put(e); err != nil {
		r.dropped.Add(1)
	}
}

// Len returns the number of queued events.
func (r *Recorder) Len() int64 { return r.q.Len() }

// Dropped returns the number of events lost to a full or closed queue.
func (r *Recorder) Dropped() uint64 { return r.dropped.Load() }

// Drain returns up to max queued events, waiting at most wait for the first one.
// It returns no events and no error when nothing arrived in time.
func (r *Recorder) Drain(max int64, wait time.Duration) ([]shm.Event, error) {
	if r.q.Disposed() {
		return nil, ErrClosed
	}
	if wait <= 0 && r.q.Empty() {
		return nil, nil
	}
	var (
		items []interface{}
		err   error
	)
	if wait > 0 {
		items, err = r.q.Poll(max, wait)
	} else {
		items, err = r.q.Get(max)
	}
	switch {
	case errors.Is(err, queue.ErrTimeout):
		return nil, nil
	case errors.Is(err, queue.ErrDisposed):
		return nil, ErrClosed
	case err != nil:
		return nil, err
	}
	return toEvents(items), nil
}

// Forward logs drained events until ctx is done or the recorder is closed.
func (r *Recorder) Forward(ctx context.Context, log *zap.Logger, batch int64, every time.Duration) error {
	var reported uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		events, err := r.Drain(batch, every)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		for _, e := range events {
			log.Info("segment "+e.Kind.String(),
				zap.Stringer("id", e.ID),
				zap.Int32("key", int32(e.Key)),
				zap.Int32("pid", e.PID),
				zap.Uint32("uid", e.UID),
				zap.Uint64("size", e.Size),
				zap.Time("time", e.Time),
			)
		}
		if n := r.Dropped(); n > reported {
			log.Warn("audit events dropped", zap.Uint64("dropped", n-reported))
			reported = n
		}
	}
}

// Close stops the recorder and returns the events that were never drained.
func (r *Recorder) Close() []shm.Event {
	return toEvents(r.q.Dispose())
}

func toEvents(items []interface{}) []shm.Event {
	out := make([]shm.Event, 0, len(items))
	for _, it := range items {
		if e, ok := it.(shm.Event); ok {
			out = append(out, e)
		}
	}
	return out
}
