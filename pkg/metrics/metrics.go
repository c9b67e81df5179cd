/*
 * Copyright (c) 2026, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package metrics

import (
	"runtime"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "winpkg_core"

var (
	once     sync.Once
	registry *prometheus.Registry

	IndexOperationsTotal              CounterVec
	IndexOperationDurationSeconds     HistogramVec
	SourceSearchDurationSeconds       HistogramVec
	SourceSearchResultsTotal          CounterVec
	ComparatorSelectionsTotal         CounterVec
	ComparatorInapplicableTotal       CounterVec
	SettingsStreamWriteConflictsTotal CounterVec
	PolicyEvaluationsTotal            CounterVec

	Up         Gauge
	Goroutines GaugeFunc
	MemoryBytes GaugeVec
)

// initMetrics initializes all metric variables. Must run after
// SetEnabled so the noop/real variant is chosen consistently.
func initMetrics() {
	IndexOperationsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_operations_total",
			Help:      "Total number of index store operations",
		},
		[]string{"operation", "status"},
	)

	IndexOperationDurationSeconds = newHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_operation_duration_seconds",
			Help:      "Duration of index store operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.5},
		},
		[]string{"operation"},
	)

	SourceSearchDurationSeconds = newHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_search_duration_seconds",
			Help:      "Duration of a single source's Search call in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"source"},
	)

	SourceSearchResultsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_search_results_total",
			Help:      "Total number of matches returned by a source's Search call",
		},
		[]string{"source"},
	)

	ComparatorSelectionsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparator_selections_total",
			Help:      "Total number of installers selected by the comparator",
		},
		[]string{"installer_type"},
	)

	ComparatorInapplicableTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparator_inapplicable_total",
			Help:      "Total number of installers rejected by the comparator as inapplicable",
		},
		[]string{"reason"},
	)

	SettingsStreamWriteConflictsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_stream_write_conflicts_total",
			Help:      "Total number of optimistic-concurrency conflicts on a settings stream Set",
		},
		[]string{"class", "name"},
	)

	PolicyEvaluationsTotal = newCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_evaluations_total",
			Help:      "Total number of administrator policy evaluations",
		},
		[]string{"policy", "result"},
	)

	Up = newGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "up",
			Help:      "winpkg-core process liveness indicator (1=up, 0=down)",
		},
	)

	Goroutines = newGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
		func() float64 {
			return float64(runtime.NumGoroutine())
		},
	)

	MemoryBytes = newGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_bytes",
			Help:      "Memory usage in bytes",
		},
		[]string{"type"},
	)
}

func registerCounterVec(v CounterVec) {
	if !Enabled {
		return
	}
	if wrapper, ok := v.(*counterVecWrapper); ok {
		_ = registry.Register(wrapper.CounterVec)
	}
}

func registerHistogramVec(v HistogramVec) {
	if !Enabled {
		return
	}
	if wrapper, ok := v.(*histogramVecWrapper); ok {
		_ = registry.Register(wrapper.HistogramVec)
	}
}

func registerGaugeVec(v GaugeVec) {
	if !Enabled {
		return
	}
	if wrapper, ok := v.(*gaugeVecWrapper); ok {
		_ = registry.Register(wrapper.GaugeVec)
	}
}

func registerGauge(v Gauge) {
	if !Enabled {
		return
	}
	if g, ok := v.(prometheus.Gauge); ok {
		_ = registry.Register(g)
	}
}

func registerGaugeFunc(v GaugeFunc) {
	if !Enabled || v == nil {
		return
	}
	_ = registry.Register(v)
}

func initRegistry() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registerCounterVec(IndexOperationsTotal)
	registerHistogramVec(IndexOperationDurationSeconds)
	registerHistogramVec(SourceSearchDurationSeconds)
	registerCounterVec(SourceSearchResultsTotal)
	registerCounterVec(ComparatorSelectionsTotal)
	registerCounterVec(ComparatorInapplicableTotal)
	registerCounterVec(SettingsStreamWriteConflictsTotal)
	registerCounterVec(PolicyEvaluationsTotal)

	registerGauge(Up)
	registerGaugeFunc(Goroutines)
	registerGaugeVec(MemoryBytes)

	Up.Set(1)
}

// Init initializes the metrics registry with all collectors. Must be
// called after SetEnabled() has been called.
func Init() *prometheus.Registry {
	once.Do(func() {
		initMetrics()

		if !Enabled {
			registry = prometheus.NewRegistry()
			return
		}
		initRegistry()
	})

	return registry
}

// GetRegistry returns the prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return Init()
	}
	return registry
}

// UpdateMemoryMetrics updates memory-related metrics.
func UpdateMemoryMetrics() {
	if !Enabled {
		return
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	MemoryBytes.WithLabelValues("heap_alloc").Set(float64(m.HeapAlloc))
	MemoryBytes.WithLabelValues("heap_sys").Set(float64(m.HeapSys))
	MemoryBytes.WithLabelValues("stack_inuse").Set(float64(m.StackInuse))
}
