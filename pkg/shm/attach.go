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

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Attach maps segment id into c's address space and returns the chosen address.
// A zero addr lets the manager pick the highest free range. With Round a hint is
// rounded down to the page size, otherwise it must be page aligned.
func (m *Manager) Attach(ctx context.Context, c *Consumer, id ID, addr uintptr, flags AttachFlags, cred Credential) (va uintptr, err error) {
	const op = "shmat"
	_, done := m.tel.start(ctx, op, attribute.Int64("id", int64(id)), attribute.Int("pid", int(c.pidOrZero())))
	defer done(&err)

	if err := m.own(op, c); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exited {
		return 0, newError(op, KindInvalid, errConsumerGone)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	ix, err := m.resolve(op, id)
	if err != nil {
		return 0, err
	}
	s := &m.tab.slots[ix]
	want := AccessReadWrite
	if flags&ReadOnly != 0 {
		want = AccessRead
	}
	if !m.auth.Authorize(cred, s.perm, want) {
		return 0, newError(op, KindAccess, nil)
	}
	slot := c.freeEntry(m.limits.MaxAttachments)
	if slot < 0 {
		return 0, newError(op, KindTooMany, nil)
	}
	fixed := addr != 0
	if fixed {
		mask := uintptr(m.page) - 1
		switch {
		case flags&Round != 0:
			addr &^= mask
		case addr&mask != 0:
			return 0, newError(op, KindInvalid, errUnaligned)
		}
	}
	va, err = c.space.reserve(addr, uintptr(s.size), fixed)
	if err != nil {
		return 0, newError(op, KindNoMemory, err)
	}

	c.maps[slot] = mapping{
		addr:     va,
		size:     s.size,
		id:       MakeID(ix, s.perm.Seq),
		readOnly: flags&ReadOnly != 0,
		mem:      s.mem,
	}
	s.nattch++
	s.lpid = c.pid
	s.attached = m.now()
	m.sink.Record(Event{Kind: EventAttach, ID: id, Key: s.perm.Key, PID: c.pid, UID: cred.UID, Size: s.size, Time: s.attached})
	return va, nil
}

// Detach removes the attachment of c at addr.
func (m *Manager) Detach(ctx context.Context, c *Consumer, addr uintptr) (err error) {
	const op = "shmdt"
	ctx, done := m.tel.start(ctx, op, attribute.Int("pid", int(c.pidOrZero())))
	defer done(&err)

	if err := m.own(op, c); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(op, KindInvalid, errClosed)
	}
	i := c.lookup(addr)
	if i < 0 {
		return newError(op, KindInvalid, fmt.Errorf("%w: %#x", errNotAttached, addr))
	}
	m.detachLocked(ctx, c, i)
	return nil
}

// detachLocked drops mapping i of c. Callers hold c.mu and m.mu.
func (m *Manager) detachLocked(ctx context.Context, c *Consumer, i int) {
	e := &c.maps[i]
	ix := m.tab.findByID(e.id)
	if ix < 0 {
		panic(fmt.Sprintf("shm: consumer %d maps %v at %#x but the segment is gone", c.pid, e.id, e.addr))
	}
	c.space.release(e.addr, uintptr(e.size))
	*e = mapping{id: unusedID}

	s := &m.tab.slots[ix]
	s.nattch--
	s.lpid = c.pid
	s.detached = m.now()
	m.sink.Record(Event{Kind: EventDetach, ID: MakeID(ix, s.perm.Seq), Key: s.perm.Key, PID: c.pid, UID: s.perm.UID, Size: s.size, Time: s.detached})
	if s.nattch <= 0 && s.state == stateRemoved {
		m.destroy(ctx, ix)
	}
}

// Fork gives child a copy of every attachment of parent, at the same addresses.
// child must have no attachments of its own.
func (m *Manager) Fork(ctx context.Context, parent, child *Consumer) (err error) {
	const op = "fork"
	_, done := m.tel.start(ctx, op, attribute.Int("pid", int(parent.pidOrZero())), attribute.Int("child", int(child.pidOrZero())))
	defer done(&err)

	if err := m.own(op, parent); err != nil {
		return err
	}
	if err := m.own(op, child); err != nil {
		return err
	}
	if parent == child {
		return newError(op, KindInvalid, errChildInUse)
	}
	unlock := lockPair(parent, child)
	defer unlock()
	if parent.exited || child.exited {
		return newError(op, KindInvalid, errConsumerGone)
	}
	if child.space.len() > 0 {
		return newError(op, KindInvalid, errChildInUse)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return newError(op, KindInvalid, errClosed)
	}
	if parent.maps == nil {
		return nil
	}
	child.maps = make([]mapping, len(parent.maps))
	copy(child.maps, parent.maps)
	child.space = parent.space.clone()
	for _, e := range child.maps {
		if e.id == unusedID {
			continue
		}
		ix := m.tab.findByID(e.id)
		if ix < 0 {
			panic(fmt.Sprintf("shm: consumer %d maps %v at %#x but the segment is gone", parent.pid, e.id, e.addr))
		}
		m.tab.slots[ix].nattch++
	}
	return nil
}

// Exit detaches everything c has attached and retires it. Calling Exit again is a no-op.
func (m *Manager) Exit(ctx context.Context, c *Consumer) (err error) {
	const op = "exit"
	ctx, done := m.tel.start(ctx, op, attribute.Int("pid", int(c.pidOrZero())))
	defer done(&err)

	if err := m.own(op, c); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exited {
		return nil
	}
	c.exited = true

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		n := 0
		for i := range c.maps {
			if c.maps[i].id != unusedID {
				m.detachLocked(ctx, c, i)
				n++
			}
		}
		if n > 0 {
			m.log.Debug("consumer exited", zap.Int32("pid", c.pid), zap.Int("detached", n))
		}
	}
	c.maps = nil
	c.space = newAddressSpace(m.layout, m.page)
	return nil
}

// lockPair locks two consumers in serial order so concurrent forks between
// the same consumers cannot deadlock.
func lockPair(a, b *Consumer) (unlock func()) {
	first, second := a, b
	if second.serial < first.serial {
		first, second = second, first
	}
	first.mu.Lock()
	second.mu.Lock()
	return func() {
		second.mu.Unlock()
		first.mu.Unlock()
	}
}

func (m *Manager) own(op string, c *Consumer) error {
	if c == nil || c.owner != m {
		return newError(op, KindInvalid, errForeign)
	}
	return nil
}

func (c *Consumer) pidOrZero() int32 {
	if c == nil {
		return 0
	}
	return c.pid
}
