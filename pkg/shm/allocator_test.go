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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmapAllocator(t *testing.T) {
	ctx := context.Background()
	a := NewMmapAllocator()
	page := a.PageSize()
	require.Positive(t, page)

	mem, err := a.Map(ctx, 2*page)
	require.NoError(t, err)
	assert.Len(t, mem, 2*page)
	assert.Equal(t, 1, a.Live())

	mem[0], mem[len(mem)-1] = 1, 2
	require.NoError(t, a.Unmap(ctx, mem))
	assert.Equal(t, 0, a.Live())
	assert.Error(t, a.Unmap(ctx, mem), "not owned anymore")
	assert.NoError(t, a.Unmap(ctx, nil))
}

func TestManagerOverMmap(t *testing.T) {
	ctx := context.Background()
	alloc := NewMmapAllocator()
	m, err := New(testLimits(), WithAllocator(alloc))
	require.NoError(t, err)

	id, err := m.Get(ctx, 42, 100, Create|0o600, ownerCred)
	require.NoError(t, err)
	info, err := m.Stat(ctx, id, ownerCred)
	require.NoError(t, err)
	assert.Equal(t, roundPage(100, alloc.PageSize()), info.Size)

	require.NoError(t, m.Remove(ctx, id, ownerCred))
	assert.Equal(t, 0, alloc.Live())
	require.NoError(t, m.Close(ctx))
}

func TestRoundPage(t *testing.T) {
	assert.Equal(t, uint64(4096), roundPage(1, 4096))
	assert.Equal(t, uint64(4096), roundPage(4096, 4096))
	assert.Equal(t, uint64(8192), roundPage(4097, 4096))
	assert.Equal(t, uint64(0), roundPage(0, 4096))
}
