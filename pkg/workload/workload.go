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

// Package workload drives a segment manager with many concurrent simulated
// processes. shmctl bench and the stress tests use it.
package workload

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/srediag/sysvshm/api"
	"github.com/srediag/sysvshm/pkg/proc"
	"github.com/srediag/sysvshm/pkg/shm"
)

// Options sizes a run.
type Options struct {
	// Workers is the ants pool size.
	Workers int
	// Procs is the number of simulated processes.
	Procs int
	// Rounds is the number of get/attach/detach cycles per process.
	Rounds int
	// Keys is the size of the shared key space.
	Keys int
	// Size is the requested segment size.
	Size uint64
	// ForkEvery forks a short-lived child every n rounds. Zero disables forks.
	ForkEvery int
	// RemoveEvery removes the segment every n rounds. Zero disables removals.
	RemoveEvery int
	Seed        uint64
	Logger      *zap.Logger
}

// DefaultOptions returns a small mixed workload.
func DefaultOptions() Options {
	return Options{
		Workers:     8,
		Procs:       32,
		Rounds:      100,
		Keys:        16,
		Size:        4096,
		ForkEvery:   10,
		RemoveEvery: 7,
		Seed:        1,
	}
}

// Report summarizes a run.
type Report struct {
	Ops      int64
	Failures map[shm.Kind]int64
	Panics   int64
	Duration time.Duration
	Usage    shm.Usage
}

// Failed returns the total number of failed operations.
func (r Report) Failed() int64 {
	var n int64
	for _, v := range r.Failures {
		n += v
	}
	return n
}

type run struct {
	mgr   api.SegmentManager
	procs *proc.Table
	opts  Options
	log   *zap.Logger

	ops    atomic.Int64
	panics atomic.Int64
	mu     sync.Mutex
	fails  map[shm.Kind]int64
}

// Run executes the workload and verifies the table afterwards. Expected
// failures such as a full table are counted in the report, not returned.
func Run(ctx context.Context, mgr api.SegmentManager, opts Options) (Report, error) {
	if opts.Workers <= 0 || opts.Procs <= 0 || opts.Keys <= 0 {
		return Report{}, errors.New("workload: workers, procs and keys must be positive")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &run{
		mgr:   mgr,
		procs: proc.NewTable(mgr),
		opts:  opts,
		log:   opts.Logger,
		fails: make(map[shm.Kind]int64),
	}

	pool, err := ants.NewPool(opts.Workers,
		ants.WithPanicHandler(func(v interface{}) {
			r.panics.Add(1)
			r.log.Error("worker panicked", zap.Any("panic", v))
		}),
	)
	if err != nil {
		return Report{}, fmt.Errorf("workload: %w", err)
	}
	defer pool.Release()

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < opts.Procs; i++ {
		pid := int32(1000 + i)
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			r.process(ctx, pid)
		}); err != nil {
			wg.Done()
			return Report{}, fmt.Errorf("workload: submit: %w", err)
		}
	}
	wg.Wait()
	exitErr := r.procs.ExitAll(ctx)

	rep := Report{
		Ops:      r.ops.Load(),
		Failures: r.fails,
		Panics:   r.panics.Load(),
		Duration: time.Since(start),
		Usage:    mgr.Usage(),
	}
	r.log.Info("workload finished",
		zap.Int64("ops", rep.Ops),
		zap.Int64("failed", rep.Failed()),
		zap.Duration("duration", rep.Duration),
	)
	return rep, errors.Join(exitErr, mgr.Verify())
}

func (r *run) process(ctx context.Context, pid int32) {
	c, err := r.procs.Spawn(pid)
	if err != nil {
		r.log.Warn("spawn", zap.Int32("pid", pid), zap.Error(err))
		return
	}
	defer func() { _ = r.procs.Exit(ctx, pid) }()

	rng := rand.New(rand.NewPCG(r.opts.Seed, uint64(pid)))
	cred := shm.Credential{UID: 1000, GID: 100, PID: pid}
	for round := 1; round <= r.opts.Rounds; round++ {
		if ctx.Err() != nil {
			return
		}
		key := shm.Key(1 + rng.IntN(r.opts.Keys))
		id, err := r.mgr.Get(ctx, key, r.opts.Size, shm.Create|0o660, cred)
		if !r.track(err) {
			continue
		}
		addr, err := r.mgr.Attach(ctx, c, id, 0, 0, cred)
		if !r.track(err) {
			continue
		}
		if b, ok := c.Bytes(addr); ok && len(b) >= 4 {
			binary.LittleEndian.PutUint32(b, uint32(pid))
		}
		if r.opts.ForkEvery > 0 && round%r.opts.ForkEvery == 0 {
			child := pid + 1<<20
			if _, err := r.procs.Fork(ctx, pid, child); r.track(err) {
				r.track(r.procs.Exit(ctx, child))
			}
		}
		if r.opts.RemoveEvery > 0 && round%r.opts.RemoveEvery == 0 {
			r.track(r.mgr.Remove(ctx, id, cred))
		}
		r.track(r.mgr.Detach(ctx, c, addr))
	}
}

// track counts one operation and reports whether it succeeded.
func (r *run) track(err error) bool {
	r.ops.Add(1)
	if err == nil {
		return true
	}
	kind := shm.KindOf(err)
	r.mu.Lock()
	r.fails[kind]++
	r.mu.Unlock()
	if kind == 0 {
		r.log.Debug("operation failed", zap.Error(err))
	}
	return false
}
