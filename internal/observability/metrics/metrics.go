// Package metrics exposes Prometheus counters and histograms describing
// decoding activity and the RPC surface.
package metrics

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
)

const namespace = "scrdec"

var (
	registerOnce sync.Once
	registry     = prometheus.NewRegistry()

	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "Total number of RPC requests handled.",
		},
		[]string{"method"},
	)
	rpcErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "errors_total",
			Help:      "Total number of RPC requests that returned an error.",
		},
		[]string{"method", "code"},
	)
	rpcLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rpc",
			Name:      "duration_seconds",
			Help:      "Latency of RPC handlers broken down by method and status code.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "code"},
	)
	envelopes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "envelopes_total",
			Help:      "Encoded script envelopes located in scanned input.",
		},
		[]string{"source"},
	)
	decoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoded_scripts_total",
			Help:      "Scripts recovered from envelopes, by source language hint.",
		},
		[]string{"language"},
	)
	decodedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoded_bytes_total",
			Help:      "Bytes of decoded script output.",
		},
	)
	rejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_inputs_total",
			Help:      "Inputs that could not be read or scanned.",
		},
		[]string{"reason"},
	)
	scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Time spent scanning a single input.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"source"},
	)
	jobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Scan jobs currently executing in the worker pool.",
		},
	)

	totalRequests uint64
)

// Register adds every collector to the package registry. It is safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			rpcRequests, rpcErrors, rpcLatency,
			envelopes, decoded, decodedBytes, rejected, scanDuration, jobsInFlight,
		)
	})
}

// Handler exposes the registry in the Prometheus exposition format.
func Handler() http.Handler {
	Register()
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// RecordRPCRequest increments the request counter for a method.
func RecordRPCRequest(method string) {
	Register()
	rpcRequests.WithLabelValues(method).Inc()
	atomic.AddUint64(&totalRequests, 1)
}

// RecordRPCError increments the error counter for a method and status code.
func RecordRPCError(method, code string) {
	Register()
	rpcErrors.WithLabelValues(method, code).Inc()
}

// ObserveRPCLatency records the duration spent serving an RPC method. The
// active trace id, if any, is attached as an exemplar.
func ObserveRPCLatency(ctx context.Context, method, code string, dur time.Duration) {
	Register()
	observe(ctx, rpcLatency.WithLabelValues(method, code), dur.Seconds())
}

// RecordEnvelopes counts envelopes found in input from source.
func RecordEnvelopes(source string, count int) {
	if count <= 0 {
		return
	}
	Register()
	envelopes.WithLabelValues(label(source)).Add(float64(count))
}

// RecordDecoded counts one recovered script of size bytes.
func RecordDecoded(language string, size int) {
	Register()
	decoded.WithLabelValues(label(strings.ToLower(language))).Inc()
	decodedBytes.Add(float64(size))
}

// RecordRejectedInput counts an input that never reached the decoder.
func RecordRejectedInput(reason string) {
	Register()
	rejected.WithLabelValues(label(reason)).Inc()
}

// ObserveScanDuration records how long a single scan took.
func ObserveScanDuration(ctx context.Context, source string, dur time.Duration) {
	Register()
	observe(ctx, scanDuration.WithLabelValues(label(source)), dur.Seconds())
}

// JobStarted and JobFinished track worker pool occupancy.
func JobStarted() {
	Register()
	jobsInFlight.Inc()
}

func JobFinished() {
	Register()
	jobsInFlight.Dec()
}

// TotalRequests returns the total number of RPC requests served since process start.
func TotalRequests() uint64 {
	return atomic.LoadUint64(&totalRequests)
}

func observe(ctx context.Context, o prometheus.Observer, sample float64) {
	if ctx != nil {
		if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
			if eo, ok := o.(prometheus.ExemplarObserver); ok {
				eo.ObserveWithExemplar(sample, prometheus.Labels{"trace_id": sc.TraceID().String()})
				return
			}
		}
	}
	o.Observe(sample)
}

func label(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unspecified"
	}
	return value
}
