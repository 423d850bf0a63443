// Copyright (c) 2025 the udisks authors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package metrics exposes the daemon's Prometheus instrumentation (§4.10
// C12 daemon wiring): counters for processed uevents, gauges for currently
// published objects, and a histogram for housekeeping pass duration.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors groups the metrics the registry and scheduler update. It is
// constructed once at daemon startup and registered with a
// prometheus.Registerer.
type Collectors struct {
	UeventsProcessed    *prometheus.CounterVec
	BlocksPublished     prometheus.Gauge
	DrivesPublished     prometheus.Gauge
	MDRaidsPublished    prometheus.Gauge
	HousekeepingSeconds prometheus.Histogram
	HousekeepingErrors  prometheus.Counter
}

// New constructs and registers a fresh Collectors set.
func New(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		UeventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "udisks",
			Name:      "uevents_processed_total",
			Help:      "Number of kernel uevents processed, by action.",
		}, []string{"action"}),
		BlocksPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "udisks",
			Name:      "block_objects",
			Help:      "Number of currently published Block objects.",
		}),
		DrivesPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "udisks",
			Name:      "drive_objects",
			Help:      "Number of currently published Drive objects.",
		}),
		MDRaidsPublished: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "udisks",
			Name:      "mdraid_objects",
			Help:      "Number of currently published MD-RAID objects.",
		}),
		HousekeepingSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "udisks",
			Name:      "housekeeping_pass_seconds",
			Help:      "Duration of a full housekeeping pass over all drives.",
			Buckets:   prometheus.DefBuckets,
		}),
		HousekeepingErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "udisks",
			Name:      "housekeeping_errors_total",
			Help:      "Number of per-drive housekeeping errors observed.",
		}),
	}
	reg.MustRegister(
		c.UeventsProcessed,
		c.BlocksPublished,
		c.DrivesPublished,
		c.MDRaidsPublished,
		c.HousekeepingSeconds,
		c.HousekeepingErrors,
	)
	return c
}
