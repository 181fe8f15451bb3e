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

import "sync"

const unusedID ID = -1

// mapping is one entry of a consumer's mapping table.
type mapping struct {
	addr     uintptr
	size     uint64
	id       ID
	readOnly bool
	mem      []byte
}

// Consumer is an entity that attaches segments into its own address space,
// a process in the classic model. Create consumers with Manager.NewConsumer.
type Consumer struct {
	mu     sync.Mutex
	owner  *Manager
	pid    int32
	serial uint64
	maps   []mapping
	space  *addressSpace
	exited bool
}

// PID returns the consumer's process id.
func (c *Consumer) PID() int32 { return c.pid }

// Attachment describes one live attachment of a consumer.
type Attachment struct {
	Addr     uintptr
	Size     uint64
	ID       ID
	ReadOnly bool
}

// Attachments returns the consumer's live attachments in mapping-table order.
func (c *Consumer) Attachments() []Attachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Attachment
	for _, m := range c.maps {
		if m.id != unusedID {
			out = append(out, Attachment{Addr: m.addr, Size: m.size, ID: m.id, ReadOnly: m.readOnly})
		}
	}
	return out
}

// Bytes returns the shared memory attached at addr. The slice aliases the segment
// and is invalid once the attachment is detached. ReadOnly attachments are not
// write protected through this view.
func (c *Consumer) Bytes(addr uintptr) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.lookup(addr); i >= 0 {
		return c.maps[i].mem, true
	}
	return nil, false
}

// lookup returns the mapping index bound at addr. Callers hold c.mu.
func (c *Consumer) lookup(addr uintptr) int {
	for i := range c.maps {
		if c.maps[i].id != unusedID && c.maps[i].addr == addr {
			return i
		}
	}
	return -1
}

// freeEntry returns an unused mapping index, allocating the table on first use.
// Callers hold c.mu.
func (c *Consumer) freeEntry(n int) int {
	if c.maps == nil {
		c.maps = newMappingTable(n)
	}
	for i := range c.maps {
		if c.maps[i].id == unusedID {
			return i
		}
	}
	return -1
}

func newMappingTable(n int) []mapping {
	maps := make([]mapping, n)
	for i := range maps {
		maps[i].id = unusedID
	}
	return maps
}
