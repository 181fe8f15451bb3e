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
	"fmt"
	"io"
	"time"

	"github.com/valyala/bytebufferpool"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatSegments writes infos as an ipcs -m style table.
func FormatSegments(w io.Writer, infos []SegmentInfo) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "%-10s %-12s %-10s %-6s %-6s %-10s %-7s %-8s %-8s %-19s %s\n",
		"shmid", "key", "mode", "owner", "group", "bytes", "nattch", "cpid", "lpid", "changed", "status")
	for _, s := range infos {
		status := ""
		if s.Removed {
			status = "dest"
		}
		fmt.Fprintf(buf, "%-10d %#-12x %-10s %-6d %-6d %-10d %-7d %-8d %-8d %-19s %s\n",
			int32(s.ID), uint32(s.Perm.Key), formatMode(s.Perm.Mode), s.Perm.UID, s.Perm.GID,
			s.Size, s.Attachments, s.CreatorPID, s.LastPID, formatTime(s.Changed), status)
	}
	_, err := buf.WriteTo(w)
	return err
}

// formatMode renders permission bits like ls, with a leading D for ModeDest.
func formatMode(m Mode) string {
	const rwx = "rwxrwxrwx"
	b := []byte("-" + rwx)
	if m&ModeDest != 0 {
		b[0] = 'D'
	}
	for i := 0; i < 9; i++ {
		if m&(1<<(8-i)) == 0 {
			b[i+1] = '-'
		}
	}
	return string(b)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(timeLayout)
}
