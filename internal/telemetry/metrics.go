package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/timberpack"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Build metrics
	BuildsTotal      metric.Int64Counter
	BuildErrorsTotal metric.Int64Counter
	BuildDuration    metric.Float64Histogram

	// Preload metrics, attributed by the stage a run ended in
	PreloadRunsTotal metric.Int64Counter
	PreloadDuration  metric.Float64Histogram

	// Manifest metrics
	ManifestWritesTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.BuildsTotal, _ = meter.Int64Counter(
		"timberpack.builds.total",
		metric.WithDescription("Total number of completed compilations"),
		metric.WithUnit("{build}"),
	)

	m.BuildErrorsTotal, _ = meter.Int64Counter(
		"timberpack.builds.errors.total",
		metric.WithDescription("Total number of compilations that finished with errors"),
		metric.WithUnit("{build}"),
	)

	m.BuildDuration, _ = meter.Float64Histogram(
		"timberpack.builds.duration",
		metric.WithDescription("Duration of compilations"),
		metric.WithUnit("ms"),
	)

	m.PreloadRunsTotal, _ = meter.Int64Counter(
		"timberpack.preload.runs.total",
		metric.WithDescription("Total number of preload runs by final stage and outcome"),
		metric.WithUnit("{run}"),
	)

	m.PreloadDuration, _ = meter.Float64Histogram(
		"timberpack.preload.duration",
		metric.WithDescription("Duration of preload runs"),
		metric.WithUnit("ms"),
	)

	m.ManifestWritesTotal, _ = meter.Int64Counter(
		"timberpack.manifest.writes.total",
		metric.WithDescription("Total number of asset manifest writes"),
		metric.WithUnit("{write}"),
	)

	return m
}
