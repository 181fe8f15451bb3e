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

package serve

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/srediag/sysvshm/pkg/shm"
)

func get(t *testing.T, base, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(base + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerEndpoints(t *testing.T) {
	ctx := context.Background()
	srv, err := New(shm.DefaultLimits(), zap.NewNop(), 16)
	require.NoError(t, err)
	defer srv.Manager.Close(ctx)

	cred := shm.Credential{UID: 1000, GID: 100, PID: 9}
	_, err = srv.Manager.Get(ctx, 0xbeef, 100, shm.Create|0o640, cred)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	code, body := get(t, ts.URL, "/ipcs")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "0xbeef")
	assert.Contains(t, body, "-rw-r-----")

	code, body = get(t, ts.URL, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "sysvshm_segments 1")
	assert.Contains(t, body, `sysvshm_events_total{kind="create"} 1`)
	assert.Contains(t, body, "sysvshm_healthcheck_status")

	code, _ = get(t, ts.URL, "/live")
	assert.Equal(t, http.StatusOK, code)
	code, _ = get(t, ts.URL, "/ready")
	assert.Equal(t, http.StatusOK, code)

	events, err := srv.Audit.Drain(8, time.Second)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, shm.EventCreate, events[0].Kind)
}
