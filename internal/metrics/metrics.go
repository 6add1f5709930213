// Package metrics exposes pipeline and device probe metrics for Prometheus.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/oszuidwest/zwfm-webmlive/internal/types"
)

var (
	// PipelineState is 1 for the state the pipeline is in and 0 for states
	// it has left.
	PipelineState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "webmlive_pipeline_state",
		Help: "Current pipeline state (1 = active)",
	}, []string{"state"})

	// PipelineTransitionsTotal counts state changes by the state entered.
	PipelineTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webmlive_pipeline_transitions_total",
		Help: "Total number of pipeline state transitions by target state",
	}, []string{"to"})

	// PipelineFailuresTotal counts failures by the error kind that caused them.
	PipelineFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webmlive_pipeline_failures_total",
		Help: "Total number of pipeline failures by error kind",
	}, []string{"kind"})

	// DeviceEnumerationsTotal counts device listings by category and result.
	DeviceEnumerationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webmlive_device_enumerations_total",
		Help: "Total number of capture device enumerations by category and result",
	}, []string{"category", "result"})

	// DeviceEnumerationDuration tracks how long a device listing takes. On
	// the FFmpeg backend this includes running the probe command.
	DeviceEnumerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "webmlive_device_enumeration_duration_seconds",
		Help:    "Time taken to enumerate capture devices",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"category"})
)

// Enumeration results.
const (
	ResultOK    = "ok"
	ResultEmpty = "empty"
	ResultError = "error"
)

// ObserveTransition records a pipeline state change.
func ObserveTransition(from, to types.PipelineState, cause error) {
	if from != to {
		PipelineState.WithLabelValues(string(from)).Set(0)
	}
	PipelineState.WithLabelValues(string(to)).Set(1)
	PipelineTransitionsTotal.WithLabelValues(string(to)).Inc()

	if to == types.StateFailed {
		kind := types.KindOf(cause)
		if kind == "" {
			kind = "unknown"
		}
		PipelineFailuresTotal.WithLabelValues(string(kind)).Inc()
	}
}

// ObserveEnumeration records one device listing and its outcome.
func ObserveEnumeration(category types.Category, duration time.Duration, err error) {
	result := ResultOK
	switch {
	case errors.Is(err, types.ErrNoDeviceFound):
		result = ResultEmpty
	case err != nil:
		result = ResultError
	}
	DeviceEnumerationsTotal.WithLabelValues(string(category), result).Inc()
	DeviceEnumerationDuration.WithLabelValues(string(category)).Observe(duration.Seconds())
}
