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

// Package metrics exports segment table state to Prometheus.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/srediag/sysvshm/api"
	"github.com/srediag/sysvshm/pkg/shm"
)

// Collector reads the table on every scrape, like ipcs -m.
type Collector struct {
	src api.Inspector

	segments    *prometheus.Desc
	removed     *prometheus.Desc
	attachments *prometheus.Desc
	committed   *prometheus.Desc
	limitBytes  *prometheus.Desc
	limitSlots  *prometheus.Desc
	segSize     *prometheus.Desc
	segAttach   *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector returns a collector over src with metric names under namespace.
func NewCollector(src api.Inspector, namespace string) *Collector {
	segLabels := []string{"id", "key", "owner", "state"}
	return &Collector{
		src:         src,
		segments:    prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "segments"), "Allocated segments, pending removals included.", nil, nil),
		removed:     prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "segments_removed"), "Segments removed but still attached.", nil, nil),
		attachments: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "attachments"), "Live attachments across all segments.", nil, nil),
		committed:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "committed_bytes"), "Page-rounded bytes held by live segments.", nil, nil),
		limitBytes:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "limit", "committed_bytes"), "SHMALL ceiling in bytes.", nil, nil),
		limitSlots:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "limit", "segments"), "SHMMNI table size.", nil, nil),
		segSize:     prometheus.NewDesc(prometheus.BuildFQName(namespace, "segment", "size_bytes"), "Size of one segment.", segLabels, nil),
		segAttach:   prometheus.NewDesc(prometheus.BuildFQName(namespace, "segment", "attachments"), "Attachments of one segment.", segLabels, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.segments
	ch <- c.removed
	ch <- c.attachments
	ch <- c.committed
	ch <- c.limitBytes
	ch <- c.limitSlots
	ch <- c.segSize
	ch <- c.segAttach
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	u := c.src.Usage()
	ch <- prometheus.MustNewConstMetric(c.segments, prometheus.GaugeValue, float64(u.Segments))
	ch <- prometheus.MustNewConstMetric(c.removed, prometheus.GaugeValue, float64(u.Removed))
	ch <- prometheus.MustNewConstMetric(c.attachments, prometheus.GaugeValue, float64(u.Attachments))
	ch <- prometheus.MustNewConstMetric(c.committed, prometheus.GaugeValue, float64(u.Committed))
	ch <- prometheus.MustNewConstMetric(c.limitBytes, prometheus.GaugeValue, float64(u.Limits.MaxTotalBytes))
	ch <- prometheus.MustNewConstMetric(c.limitSlots, prometheus.GaugeValue, float64(u.Limits.MaxSegments))

	for _, s := range c.src.Segments() {
		labels := []string{
			strconv.FormatInt(int64(s.ID), 10),
			"0x" + strconv.FormatUint(uint64(uint32(s.Perm.Key)), 16),
			strconv.FormatUint(uint64(s.Perm.UID), 10),
			state(s),
		}
		ch <- prometheus.MustNewConstMetric(c.segSize, prometheus.GaugeValue, float64(s.Size), labels...)
		ch <- prometheus.MustNewConstMetric(c.segAttach, prometheus.GaugeValue, float64(s.Attachments), labels...)
	}
}

func state(s shm.SegmentInfo) string {
	if s.Removed {
		return "removed"
	}
	return "allocated"
}

// EventCounter counts lifecycle events by kind. It implements shm.EventSink.
type EventCounter struct {
	events *prometheus.CounterVec
	bytes  *prometheus.CounterVec
}

// NewEventCounter registers the event counters with reg.
func NewEventCounter(reg prometheus.Registerer, namespace string) (*EventCounter, error) {
	ec := &EventCounter{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Segment lifecycle events by kind.",
		}, []string{"kind"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_bytes_total",
			Help:      "Segment bytes created and destroyed.",
		}, []string{"kind"}),
	}
	for _, c := range []prometheus.Collector{ec.events, ec.bytes} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return ec, nil
}

func (ec *EventCounter) Record(e shm.Event) {
	kind := e.Kind.String()
	ec.events.WithLabelValues(kind).Inc()
	if e.Kind == shm.EventCreate || e.Kind == shm.EventDestroy {
		ec.bytes.WithLabelValues(kind).Add(float64(e.Size))
	}
}
