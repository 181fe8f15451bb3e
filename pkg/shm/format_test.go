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
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatSegments(t *testing.T) {
	infos := []SegmentInfo{
		{
			ID:          MakeID(0, 1),
			Perm:        Perm{Key: 0x1234, UID: 1000, GID: 100, Mode: 0o640},
			Size:        4096,
			Attachments: 2,
			CreatorPID:  10,
			LastPID:     11,
			Changed:     testEpoch,
		},
		{
			ID:      MakeID(1, 3),
			Perm:    Perm{Mode: ModeDest | 0o600},
			Size:    8192,
			Removed: true,
		},
	}
	var out bytes.Buffer
	require.NoError(t, FormatSegments(&out, infos))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "shmid"))
	assert.Contains(t, lines[1], "0x1234")
	assert.Contains(t, lines[1], "-rw-r-----")
	assert.Contains(t, lines[1], "2025-01-02 03:04:05")
	assert.Contains(t, lines[2], "Drw-------")
	assert.True(t, strings.HasSuffix(lines[2], "dest"))
}

func TestFormatMode(t *testing.T) {
	assert.Equal(t, "-rwxrwxrwx", formatMode(0o777))
	assert.Equal(t, "----------", formatMode(0))
	assert.Equal(t, "Dr--r--r--", formatMode(ModeDest|0o444))
}
