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

package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/sysvshm/pkg/shm"
)

type fakeInspector struct {
	usage     shm.Usage
	verifyErr error
}

func (f *fakeInspector) Segments() []shm.SegmentInfo { return nil }
func (f *fakeInspector) Usage() shm.Usage            { return f.usage }
func (f *fakeInspector) Verify() error               { return f.verifyErr }

func statusOf(t *testing.T, h http.Handler, path string) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec.Code
}

func TestProbes(t *testing.T) {
	f := &fakeInspector{usage: shm.Usage{
		Segments:  1,
		Committed: 10,
		Limits:    shm.Limits{MaxSegments: 4, MaxTotalBytes: 100},
	}}
	h := NewHandler(f, DefaultOptions())

	assert.Equal(t, http.StatusOK, statusOf(t, h, "/live"))
	assert.Equal(t, http.StatusOK, statusOf(t, h, "/ready"))

	f.usage.Segments = 4
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, h, "/ready"), "table full")
	assert.Equal(t, http.StatusOK, statusOf(t, h, "/live"))

	f.usage.Segments = 1
	f.usage.Committed = 99
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, h, "/ready"), "no headroom")

	f.verifyErr = errors.New("committed drift")
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, h, "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, statusOf(t, h, "/ready"), "readiness includes liveness")
}

func TestChecks(t *testing.T) {
	f := &fakeInspector{usage: shm.Usage{Segments: 3, Committed: 50, Limits: shm.Limits{MaxSegments: 4, MaxTotalBytes: 100}}}
	assert.NoError(t, FreeSlotsCheck(f, 1)())
	assert.ErrorContains(t, FreeSlotsCheck(f, 2)(), "1 free segment slots")
	assert.NoError(t, CommittedCheck(f, 0.5)())
	assert.ErrorContains(t, CommittedCheck(f, 0.4)(), "committed 50 of 100")

	f.usage.Limits.MaxTotalBytes = 0
	assert.NoError(t, CommittedCheck(f, 0.1)())
}

func TestMetricsHandlerAgainstManager(t *testing.T) {
	ctx := context.Background()
	mgr, err := shm.New(shm.DefaultLimits())
	require.NoError(t, err)
	defer mgr.Close(ctx)

	reg := prometheus.NewRegistry()
	opts := DefaultOptions()
	opts.Registerer = reg
	h := NewHandler(mgr, opts)
	assert.Equal(t, http.StatusOK, statusOf(t, h, "/ready"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "sysvshm_healthcheck_status" {
			found = true
			for _, m := range mf.GetMetric() {
				assert.Equal(t, float64(0), m.GetGauge().GetValue(), "0 means healthy")
			}
		}
	}
	assert.True(t, found)
}
