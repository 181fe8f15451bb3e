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

package api

import (
	"time"

	"github.com/srediag/sysvshm/pkg/audit"
	"github.com/srediag/sysvshm/pkg/shm"
)

// Auditor is an event sink whose trail is consumed later.
type Auditor interface {
	shm.EventSink
	Drain(max int64, wait time.Duration) ([]shm.Event, error)
	Dropped() uint64
}

var _ Auditor = (*audit.Recorder)(nil)
