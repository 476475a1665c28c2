// Copyright 2021 Matrix Origin
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

import "github.com/prometheus/client_golang/prometheus"

var (
	// MemMPoolReservedBytesGauge is the sum of bytes currently reserved across every mpool.
	MemMPoolReservedBytesGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mo",
			Subsystem: "mem",
			Name:      "mpool_reserved_bytes",
			Help:      "Bytes currently reserved from memory pools.",
		})

	MemMPoolLimitExceededCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mo",
			Subsystem: "mem",
			Name:      "mpool_limit_exceeded_total",
			Help:      "Total number of reservations refused by a memory pool cap.",
		})
)

func initMemMetrics() {
	registry.MustRegister(MemMPoolReservedBytesGauge)
	registry.MustRegister(MemMPoolLimitExceededCounter)
}
