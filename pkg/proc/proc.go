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

// Package proc tracks the consumers of a segment manager by process id and
// drives their fork and exit hooks.
package proc

import (
	"context"
	"errors"
	"fmt"
	"slices"

	cmap "github.com/orcaman/concurrent-map/v2"

	"github.com/srediag/sysvshm/api"
	"github.com/srediag/sysvshm/pkg/shm"
)

var (
	ErrNoProcess = errors.New("no such process")
	ErrExists    = errors.New("process already exists")
)

// Table maps pids to consumers. It is safe for concurrent use.
type Table struct {
	mgr   api.ProcessManager
	procs cmap.ConcurrentMap[int32, *shm.Consumer]
}

// NewTable returns an empty process table over mgr.
func NewTable(mgr api.ProcessManager) *Table {
	return &Table{
		mgr:   mgr,
		procs: cmap.NewWithCustomShardingFunction[int32, *shm.Consumer](shardPID),
	}
}

func shardPID(pid int32) uint32 {
	// fnv-1a over the four bytes of the pid
	h := uint32(2166136261)
	for i := 0; i < 4; i++ {
		h ^= uint32(byte(pid >> (8 * i)))
		h *= 16777619
	}
	return h
}

// Spawn registers a new process without attachments.
func (t *Table) Spawn(pid int32) (*shm.Consumer, error) {
	c := t.mgr.NewConsumer(pid)
	if !t.procs.SetIfAbsent(pid, c) {
		return nil, fmt.Errorf("spawn %d: %w", pid, ErrExists)
	}
	return c, nil
}

// Lookup returns the consumer of pid.
func (t *Table) Lookup(pid int32) (*shm.Consumer, bool) {
	return t.procs.Get(pid)
}

// Fork registers child as a copy of parent, attachments included.
func (t *Table) Fork(ctx context.Context, parent, child int32) (*shm.Consumer, error) {
	p, ok := t.procs.Get(parent)
	if !ok {
		return nil, fmt.Errorf("fork %d: %w", parent, ErrNoProcess)
	}
	if t.procs.Has(child) {
		return nil, fmt.Errorf("fork %d: child %d: %w", parent, child, ErrExists)
	}
	// The child is published only once its attachments are in place.
	c := t.mgr.NewConsumer(child)
	if err := t.mgr.Fork(ctx, p, c); err != nil {
		return nil, err
	}
	if !t.procs.SetIfAbsent(child, c) {
		if err := t.mgr.Exit(ctx, c); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("fork %d: child %d: %w", parent, child, ErrExists)
	}
	return c, nil
}

// Exit detaches everything pid has attached and forgets it.
func (t *Table) Exit(ctx context.Context, pid int32) error {
	c, ok := t.procs.Pop(pid)
	if !ok {
		return fmt.Errorf("exit %d: %w", pid, ErrNoProcess)
	}
	return t.mgr.Exit(ctx, c)
}

// ExitAll tears down every registered process.
func (t *Table) ExitAll(ctx context.Context) error {
	var errs []error
	for _, pid := range t.procs.Keys() {
		if c, ok := t.procs.Pop(pid); ok {
			errs = append(errs, t.mgr.Exit(ctx, c))
		}
	}
	return errors.Join(errs...)
}

// Count returns the number of registered processes.
func (t *Table) Count() int { return t.procs.Count() }

// PIDs returns the registered pids in ascending order.
func (t *Table) PIDs() []int32 {
	pids := t.procs.Keys()
	slices.Sort(pids)
	return pids
}
