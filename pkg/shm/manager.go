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
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// Manager owns a segment table and the consumers attached to it.
// All methods are safe for concurrent use.
type Manager struct {
	// mu guards tab, committed and closed. Consumer locks are taken before mu,
	// two consumers in serial order.
	mu        sync.RWMutex
	tab       *table
	committed uint64
	closed    bool

	// serials orders consumer locks taken together.
	serials atomic.Uint64

	limits Limits
	layout Layout
	page   int

	alloc Allocator
	auth  Authorizer
	sink  EventSink
	log   *zap.Logger
	now   func() time.Time
	meter metric.Meter
	trc   trace.Tracer
	tel   *telemetry
}

// Option configures a Manager.
type Option func(*Manager)

// WithAllocator sets the backing allocator. The default maps anonymous shared memory.
func WithAllocator(a Allocator) Option { return func(m *Manager) { m.alloc = a } }

// WithAuthorizer replaces the UnixAuthorizer.
func WithAuthorizer(a Authorizer) Option { return func(m *Manager) { m.auth = a } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// WithEventSink receives lifecycle events. See EventSink.
func WithEventSink(s EventSink) Option { return func(m *Manager) { m.sink = s } }

// WithClock replaces time.Now for segment timestamps.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithLayout sets the address range consumers attach into.
func WithLayout(l Layout) Option { return func(m *Manager) { m.layout = l } }

// WithMeter sets the meter for the operations counter. The default is a no-op meter.
func WithMeter(meter metric.Meter) Option { return func(m *Manager) { m.meter = meter } }

// WithTracer sets the tracer for per-operation spans. The default is a no-op tracer.
func WithTracer(tracer trace.Tracer) Option { return func(m *Manager) { m.trc = tracer } }

// New builds a Manager with an empty segment table sized by limits.MaxSegments.
func New(limits Limits, opts ...Option) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		limits: limits,
		layout: DefaultLayout(),
		auth:   UnixAuthorizer{},
		sink:   nopSink{},
		log:    zap.NewNop(),
		now:    time.Now,
		meter:  metricnoop.NewMeterProvider().Meter(instrumentationName),
		trc:    tracenoop.NewTracerProvider().Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.alloc == nil {
		m.alloc = NewMmapAllocator()
	}
	m.page = m.alloc.PageSize()
	if m.page <= 0 || m.page&(m.page-1) != 0 {
		return nil, fmt.Errorf("allocator page size %d is not a power of two", m.page)
	}
	pg := uintptr(m.page)
	m.layout.Low = (m.layout.Low + pg - 1) &^ (pg - 1)
	m.layout.High &^= pg - 1
	if m.layout.Low == 0 || m.layout.High <= m.layout.Low {
		return nil, fmt.Errorf("invalid consumer layout [%#x, %#x)", m.layout.Low, m.layout.High)
	}
	tel, err := newTelemetry(m.meter, m.trc)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	m.tel = tel
	m.tab = newTable(limits.MaxSegments)
	return m, nil
}

// Limits returns the tunables the manager was built with.
func (m *Manager) Limits() Limits { return m.limits }

// PageSize returns the allocation granularity.
func (m *Manager) PageSize() int { return m.page }

// NewConsumer returns an empty consumer bound to m.
func (m *Manager) NewConsumer(pid int32) *Consumer {
	return &Consumer{
		owner:  m,
		pid:    pid,
		serial: m.serials.Add(1),
		space:  newAddressSpace(m.layout, m.page),
	}
}

// Get returns the segment registered under key, creating it when flags carry
// Create and no such segment exists. IPCPrivate always creates a new segment.
func (m *Manager) Get(ctx context.Context, key Key, size uint64, flags Flags, cred Credential) (id ID, err error) {
	const op = "shmget"
	ctx, done := m.tel.start(ctx, op, attribute.Int64("key", int64(key)), attribute.Int64("size", int64(size)))
	defer done(&err)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return -1, newError(op, KindInvalid, errClosed)
	}
	if key != IPCPrivate {
		if ix := m.tab.findByKey(key); ix >= 0 {
			return m.getExisting(op, ix, size, flags, cred)
		}
		if flags&Create == 0 {
			return -1, newError(op, KindNotFound, nil)
		}
	}
	return m.create(ctx, op, key, size, flags, cred)
}

func (m *Manager) getExisting(op string, ix int, size uint64, flags Flags, cred Credential) (ID, error) {
	s := &m.tab.slots[ix]
	if want := accessFromMode(flags.Mode()); want != 0 && !m.auth.Authorize(cred, s.perm, want) {
		return -1, newError(op, KindAccess, nil)
	}
	if flags&(Create|Exclusive) == Create|Exclusive {
		return -1, newError(op, KindExists, nil)
	}
	if size > s.size {
		return -1, newError(op, KindInvalid, fmt.Errorf("segment is %d bytes, %d requested", s.size, size))
	}
	return MakeID(ix, s.perm.Seq), nil
}

func (m *Manager) create(ctx context.Context, op string, key Key, size uint64, flags Flags, cred Credential) (ID, error) {
	if size < m.limits.MinSegmentSize || size > m.limits.MaxSegmentSize {
		return -1, newError(op, KindInvalid, fmt.Errorf("size %d outside [%d, %d]", size, m.limits.MinSegmentSize, m.limits.MaxSegmentSize))
	}
	if m.tab.used >= len(m.tab.slots) {
		return -1, newError(op, KindNoSpace, nil)
	}
	rounded := roundPage(size, m.page)
	if m.committed+rounded > m.limits.MaxTotalBytes {
		return -1, newError(op, KindNoMemory, fmt.Errorf("committed %d + %d exceeds %d", m.committed, rounded, m.limits.MaxTotalBytes))
	}
	ix, stale := m.tab.allocSlot()
	if stale {
		m.log.Warn("free slot cache was stale, fell back to scan")
	}
	if ix < 0 {
		return -1, newError(op, KindNoSpace, nil)
	}
	s := m.tab.occupy(ix)
	mem, err := m.alloc.Map(ctx, int(rounded))
	if err != nil {
		m.tab.release(ix)
		return -1, newError(op, KindNoMemory, err)
	}
	now := m.now()
	s.perm.Key = key
	s.perm.UID, s.perm.CUID = cred.UID, cred.UID
	s.perm.GID, s.perm.CGID = cred.GID, cred.GID
	s.perm.Mode = flags.Mode()
	s.size = rounded
	s.cpid = cred.PID
	s.created = now
	s.changed = now
	s.mem = mem
	m.committed += rounded

	id := MakeID(ix, s.perm.Seq)
	m.log.Debug("segment created", zap.Stringer("id", id), zap.Int32("key", int32(key)), zap.Uint64("size", rounded))
	m.sink.Record(Event{Kind: EventCreate, ID: id, Key: key, PID: cred.PID, UID: cred.UID, Size: rounded, Time: now})
	return id, nil
}

// Stat returns a snapshot of the segment. Read permission is required.
func (m *Manager) Stat(ctx context.Context, id ID, cred Credential) (info SegmentInfo, err error) {
	const op = "shmctl(IPC_STAT)"
	_, done := m.tel.start(ctx, op, attribute.Int64("id", int64(id)))
	defer done(&err)

	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, err := m.resolve(op, id)
	if err != nil {
		return SegmentInfo{}, err
	}
	s := &m.tab.slots[ix]
	if !m.auth.Authorize(cred, s.perm, AccessRead) {
		return SegmentInfo{}, newError(op, KindAccess, nil)
	}
	return s.info(ix), nil
}

// SetAttr carries the IPC_SET fields. Only the permission bits of Mode are used.
type SetAttr struct {
	UID  uint32
	GID  uint32
	Mode Mode
}

// Set changes ownership and permission bits. The caller must be privileged,
// the creator or the owner.
func (m *Manager) Set(ctx context.Context, id ID, attr SetAttr, cred Credential) (err error) {
	const op = "shmctl(IPC_SET)"
	_, done := m.tel.start(ctx, op, attribute.Int64("id", int64(id)))
	defer done(&err)

	m.mu.Lock()
	defer m.mu.Unlock()
	ix, err := m.resolve(op, id)
	if err != nil {
		return err
	}
	s := &m.tab.slots[ix]
	if !canAdminister(cred, s.perm) {
		return newError(op, KindPermission, nil)
	}
	s.perm.UID = attr.UID
	s.perm.GID = attr.GID
	s.perm.Mode = (s.perm.Mode &^ ModePerm) | (attr.Mode & ModePerm)
	s.changed = m.now()
	m.sink.Record(Event{Kind: EventSet, ID: id, Key: s.perm.Key, PID: cred.PID, UID: cred.UID, Size: s.size, Time: s.changed})
	return nil
}

// Remove cuts the segment off from key lookup and destroys it once the last
// attachment is gone, immediately if there is none.
func (m *Manager) Remove(ctx context.Context, id ID, cred Credential) (err error) {
	const op = "shmctl(IPC_RMID)"
	ctx, done := m.tel.start(ctx, op, attribute.Int64("id", int64(id)))
	defer done(&err)

	m.mu.Lock()
	defer m.mu.Unlock()
	ix, err := m.resolve(op, id)
	if err != nil {
		return err
	}
	s := &m.tab.slots[ix]
	if !canAdminister(cred, s.perm) {
		return newError(op, KindPermission, nil)
	}
	key := s.perm.Key
	s.perm.Key = IPCPrivate
	s.state = stateRemoved
	s.changed = m.now()
	m.sink.Record(Event{Kind: EventRemove, ID: id, Key: key, PID: cred.PID, UID: cred.UID, Size: s.size, Time: s.changed})
	if s.nattch <= 0 {
		m.destroy(ctx, ix)
	}
	return nil
}

// resolve maps id to a live slot. Callers hold mu.
func (m *Manager) resolve(op string, id ID) (int, error) {
	if m.closed {
		return -1, newError(op, KindInvalid, errClosed)
	}
	ix := m.tab.findByID(id)
	if ix < 0 {
		return -1, newError(op, KindInvalid, errStale)
	}
	return ix, nil
}

// destroy releases the backing memory and frees the slot. Callers hold mu.
func (m *Manager) destroy(ctx context.Context, ix int) {
	s := &m.tab.slots[ix]
	id := MakeID(ix, s.perm.Seq)
	if err := m.alloc.Unmap(ctx, s.mem); err != nil {
		m.log.Error("release backing memory", zap.Stringer("id", id), zap.Error(err))
	}
	m.committed -= s.size
	m.sink.Record(Event{Kind: EventDestroy, ID: id, PID: s.lpid, UID: s.perm.UID, Size: s.size, Time: m.now()})
	m.log.Debug("segment destroyed", zap.Stringer("id", id), zap.Uint64("size", s.size))
	m.tab.release(ix)
}

// Segments lists every allocated segment, pending removals included.
func (m *Manager) Segments() []SegmentInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SegmentInfo, 0, m.tab.used)
	for i := range m.tab.slots {
		if m.tab.slots[i].live() {
			out = append(out, m.tab.slots[i].info(i))
		}
	}
	return out
}

// Usage summarizes table occupancy (SHM_INFO).
type Usage struct {
	Segments    int
	Removed     int
	Attachments int
	Committed   uint64
	Limits      Limits
}

// FreeSlots returns the number of segments that can still be created.
func (u Usage) FreeSlots() int { return u.Limits.MaxSegments - u.Segments }

// Usage returns the current occupancy.
func (m *Manager) Usage() Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := Usage{Segments: m.tab.used, Committed: m.committed, Limits: m.limits}
	for i := range m.tab.slots {
		s := &m.tab.slots[i]
		if s.state == stateRemoved {
			u.Removed++
		}
		u.Attachments += s.nattch
	}
	return u
}

// Verify checks the table invariants and returns every violation found.
func (m *Manager) Verify() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var (
		errs  []error
		sum   uint64
		used  int
		keys  = make(map[Key]int)
		owner = make(map[*byte]int)
	)
	for i := range m.tab.slots {
		s := &m.tab.slots[i]
		if !s.live() {
			if s.mem != nil || s.nattch != 0 {
				errs = append(errs, fmt.Errorf("slot %d: free but holds memory or attachments", i))
			}
			continue
		}
		used++
		sum += s.size
		if s.nattch < 0 {
			errs = append(errs, fmt.Errorf("slot %d: negative attach count %d", i, s.nattch))
		}
		if len(s.mem) == 0 || uint64(len(s.mem)) != s.size {
			errs = append(errs, fmt.Errorf("slot %d: backing of %d bytes for size %d", i, len(s.mem), s.size))
		} else if j, dup := owner[&s.mem[0]]; dup {
			errs = append(errs, fmt.Errorf("slot %d: backing shared with slot %d", i, j))
		} else {
			owner[&s.mem[0]] = i
		}
		switch s.state {
		case stateRemoved:
			if s.perm.Key != IPCPrivate {
				errs = append(errs, fmt.Errorf("slot %d: removed but key %d still set", i, s.perm.Key))
			}
			if s.nattch == 0 {
				errs = append(errs, fmt.Errorf("slot %d: removed with no attachments but not destroyed", i))
			}
		case stateAllocated:
			if s.perm.Key == IPCPrivate {
				break
			}
			if j, dup := keys[s.perm.Key]; dup {
				errs = append(errs, fmt.Errorf("slot %d: key %d also held by slot %d", i, s.perm.Key, j))
			}
			keys[s.perm.Key] = i
		}
	}
	if used != m.tab.used {
		errs = append(errs, fmt.Errorf("used count %d, %d live slots", m.tab.used, used))
	}
	if sum != m.committed {
		errs = append(errs, fmt.Errorf("committed %d, live sizes sum to %d", m.committed, sum))
	}
	return errors.Join(errs...)
}

// Close releases every segment, attached or not. Memory obtained through
// Consumer.Bytes must not be used afterwards. Later operations fail with KindInvalid.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for i := range m.tab.slots {
		s := &m.tab.slots[i]
		if !s.live() {
			continue
		}
		if err := m.alloc.Unmap(ctx, s.mem); err != nil {
			errs = append(errs, fmt.Errorf("segment %v: %w", MakeID(i, s.perm.Seq), err))
		}
		m.tab.release(i)
	}
	m.committed = 0
	return errors.Join(errs...)
}
