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

// Package api defines the contract a syscall layer programs against.
package api

import (
	"context"

	"github.com/srediag/sysvshm/pkg/shm"
)

// SegmentManager is the shmget/shmat/shmdt/shmctl surface plus process lifecycle hooks.
// Errors carry a shm.Kind; use shm.KindOf(err).Errno() to produce an errno.
type SegmentManager interface {
	Get(ctx context.Context, key shm.Key, size uint64, flags shm.Flags, cred shm.Credential) (shm.ID, error)
	Attach(ctx context.Context, c *shm.Consumer, id shm.ID, addr uintptr, flags shm.AttachFlags, cred shm.Credential) (uintptr, error)
	Detach(ctx context.Context, c *shm.Consumer, addr uintptr) error
	Stat(ctx context.Context, id shm.ID, cred shm.Credential) (shm.SegmentInfo, error)
	Set(ctx context.Context, id shm.ID, attr shm.SetAttr, cred shm.Credential) error
	Remove(ctx context.Context, id shm.ID, cred shm.Credential) error

	ProcessManager
	Inspector
}

// ProcessManager creates, duplicates and tears down consumers.
type ProcessManager interface {
	NewConsumer(pid int32) *shm.Consumer
	Fork(ctx context.Context, parent, child *shm.Consumer) error
	Exit(ctx context.Context, c *shm.Consumer) error
}

// Inspector exposes read-only views for tooling and probes.
type Inspector interface {
	Segments() []shm.SegmentInfo
	Usage() shm.Usage
	Verify() error
}

var _ SegmentManager = (*shm.Manager)(nil)
