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

// Package health exposes liveness and readiness probes for a segment manager.
package health

import (
	"fmt"
	"time"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/sysvshm/api"
)

// Options tunes the probes. Zero values disable the matching check.
type Options struct {
	// MinFreeSlots is the number of table slots that must stay free to be ready.
	MinFreeSlots int
	// MaxCommittedRatio is the committed/SHMALL fraction above which the manager is not ready.
	MaxCommittedRatio float64
	// MaxGoroutines fails liveness when the process runs more goroutines.
	MaxGoroutines int
	// Timeout bounds each check.
	Timeout time.Duration
	// Registerer, when set, also exports check results as Prometheus gauges.
	Registerer prometheus.Registerer
	Namespace  string
}

// DefaultOptions returns the probe settings used by shmctl serve.
func DefaultOptions() Options {
	return Options{
		MinFreeSlots:      1,
		MaxCommittedRatio: 0.95,
		MaxGoroutines:     10000,
		Timeout:           time.Second,
		Namespace:         "sysvshm",
	}
}

// NewHandler returns an http.Handler serving /live and /ready for mgr.
func NewHandler(mgr api.Inspector, opts Options) healthcheck.Handler {
	var h healthcheck.Handler
	if opts.Registerer != nil {
		h = healthcheck.NewMetricsHandler(opts.Registerer, opts.Namespace)
	} else {
		h = healthcheck.NewHandler()
	}
	wrap := func(c healthcheck.Check) healthcheck.Check {
		if opts.Timeout > 0 {
			return healthcheck.Timeout(c, opts.Timeout)
		}
		return c
	}

	h.AddLivenessCheck("segment-table", wrap(mgr.Verify))
	if opts.MaxGoroutines > 0 {
		h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(opts.MaxGoroutines))
	}
	if opts.MinFreeSlots > 0 {
		h.AddReadinessCheck("free-slots", wrap(FreeSlotsCheck(mgr, opts.MinFreeSlots)))
	}
	if opts.MaxCommittedRatio > 0 {
		h.AddReadinessCheck("committed-headroom", wrap(CommittedCheck(mgr, opts.MaxCommittedRatio)))
	}
	return h
}

// FreeSlotsCheck fails when fewer than min segment slots are free.
func FreeSlotsCheck(mgr api.Inspector, min int) healthcheck.Check {
	return func() error {
		u := mgr.Usage()
		if free := u.FreeSlots(); free < min {
			return fmt.Errorf("%d free segment slots, want %d", free, min)
		}
		return nil
	}
}

// CommittedCheck fails when committed bytes exceed ratio of the SHMALL ceiling.
func CommittedCheck(mgr api.Inspector, ratio float64) healthcheck.Check {
	return func() error {
		u := mgr.Usage()
		limit := float64(u.Limits.MaxTotalBytes)
		if limit == 0 {
			return nil
		}
		if used := float64(u.Committed) / limit; used > ratio {
			return fmt.Errorf("committed %d of %d bytes (%.0f%%)", u.Committed, u.Limits.MaxTotalBytes, used*100)
		}
		return nil
	}
}
