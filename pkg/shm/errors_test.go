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
	"fmt"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatching(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError("shmget", KindExists, nil))
	assert.ErrorIs(t, err, KindExists)
	assert.NotErrorIs(t, err, KindNotFound)
	assert.Equal(t, KindExists, KindOf(err))
	assert.ErrorIs(t, err, syscall.EEXIST, "kinds match their errno")
	assert.Equal(t, "wrapped: shmget: file exists", err.Error())

	cause := errors.New("mmap: cannot allocate memory")
	err = newError("shmget", KindNoMemory, cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, KindNoMemory)
	assert.Equal(t, "shmget: cannot allocate memory: mmap: cannot allocate memory", err.Error())

	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.Equal(t, KindAccess, KindOf(KindAccess))
}

func TestKindErrno(t *testing.T) {
	for k, want := range map[Kind]syscall.Errno{
		KindInvalid:    syscall.EINVAL,
		KindNotFound:   syscall.ENOENT,
		KindExists:     syscall.EEXIST,
		KindNoMemory:   syscall.ENOMEM,
		KindNoSpace:    syscall.ENOSPC,
		KindAccess:     syscall.EACCES,
		KindPermission: syscall.EPERM,
		KindTooMany:    syscall.EMFILE,
		Kind(99):       syscall.EINVAL,
	} {
		assert.Equal(t, want, k.Errno(), k.String())
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Invalid", KindInvalid.String())
	assert.Equal(t, "TooMany", KindTooMany.String())
	assert.Equal(t, "Permission", KindPermission.String())
	assert.Equal(t, "Kind(0)", Kind(0).String())
}
