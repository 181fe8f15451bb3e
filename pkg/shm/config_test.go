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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLimitsDefaults(t *testing.T) {
	l, err := LoadLimits()
	require.NoError(t, err)
	assert.Equal(t, DefaultLimits(), l)
}

func TestLoadLimitsFromEnv(t *testing.T) {
	t.Setenv("SYSVSHM_SHMMAX", "65536")
	t.Setenv("SYSVSHM_SHMMNI", "4")
	t.Setenv("SYSVSHM_SHMALL", "262144")
	t.Setenv("SYSVSHM_SHMSEG", "2")

	l, err := LoadLimits()
	require.NoError(t, err)
	assert.Equal(t, uint64(65536), l.MaxSegmentSize)
	assert.Equal(t, uint64(1), l.MinSegmentSize)
	assert.Equal(t, 4, l.MaxSegments)
	assert.Equal(t, uint64(262144), l.MaxTotalBytes)
	assert.Equal(t, 2, l.MaxAttachments)
}

func TestLoadLimitsRejectsInvalid(t *testing.T) {
	t.Setenv("SYSVSHM_SHMMNI", "70000")
	_, err := LoadLimits()
	assert.ErrorContains(t, err, "shmmni")

	t.Setenv("SYSVSHM_SHMMNI", "lots")
	_, err = LoadLimits()
	assert.ErrorContains(t, err, "failed to load limits")
}

func TestLimitsValidate(t *testing.T) {
	assert.NoError(t, DefaultLimits().Validate())

	err := Limits{MaxSegmentSize: 1, MinSegmentSize: 2}.Validate()
	require.Error(t, err)
	for _, want := range []string{"shmmax 1 below shmmin 2", "shmmni", "shmall", "shmseg"} {
		assert.ErrorContains(t, err, want)
	}
}

func TestCapTotal(t *testing.T) {
	l := DefaultLimits().capTotal(16 << 20)
	assert.Equal(t, uint64(16<<20), l.MaxTotalBytes)
	assert.Equal(t, uint64(8<<20), l.MaxSegmentSize)

	l = DefaultLimits().capTotal(4 << 20)
	assert.Equal(t, uint64(4<<20), l.MaxSegmentSize)

	assert.Equal(t, DefaultLimits(), DefaultLimits().capTotal(0))
}

func TestTuneToHost(t *testing.T) {
	l, err := DefaultLimits().TuneToHost()
	if err != nil {
		t.Skipf("host memory unavailable: %v", err)
	}
	assert.NoError(t, l.Validate())
	assert.LessOrEqual(t, l.MaxTotalBytes, DefaultLimits().MaxTotalBytes)
}
