// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package v2

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Hash build metrics
var (
	JoinBuildRowsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "join",
			Name:      "build_rows_total",
			Help:      "Total number of rows inserted into join hash tables.",
		})

	// JoinBuildBytesGauge is the memory currently reserved by sealed and building hash tables.
	JoinBuildBytesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mo",
			Subsystem: "join",
			Name:      "build_bytes",
			Help:      "Bytes currently held by join hash tables.",
		})
)

// Hash probe metrics
var (
	JoinProbeRowsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "join",
			Name:      "probe_rows_total",
			Help:      "Total number of probe rows looked up in join hash tables.",
		})

	joinOutputRowsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "join",
			Name:      "output_rows_total",
			Help:      "Total number of rows emitted by hash joins.",
		}, []string{"phase"})
	JoinProbeOutputRowsCounter    = joinOutputRowsCounter.WithLabelValues("probe")
	JoinFinalizeOutputRowsCounter = joinOutputRowsCounter.WithLabelValues("finalize")

	JoinProbeDurationHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mo",
			Subsystem: "join",
			Name:      "probe_duration_seconds",
			Help:      "Bucketed histogram of the duration of a single probe call.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 20),
		})

	JoinSingleViolationCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "join",
			Name:      "single_violation_total",
			Help:      "Total number of single joins aborted because a probe row matched more than one build row.",
		})
)

func initJoinMetrics() {
	registry.MustRegister(JoinBuildRowsCounter)
	registry.MustRegister(JoinBuildBytesGauge)
	registry.MustRegister(JoinProbeRowsCounter)
	registry.MustRegister(joinOutputRowsCounter)
	registry.MustRegister(JoinProbeDurationHistogram)
	registry.MustRegister(JoinSingleViolationCounter)
}
