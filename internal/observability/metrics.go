// Package observability wires OpenTelemetry metrics to a Prometheus
// scrape endpoint.
package observability

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// InitMetrics installs a global MeterProvider exporting to a fresh
// Prometheus registry. It returns the handler for /metrics and a shutdown
// function to call on exit.
func InitMetrics() (http.Handler, func(context.Context) error, error) {
	reg := promclient.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	exporter, err := prometheus.New(
		prometheus.WithRegisterer(reg),
		prometheus.WithoutScopeInfo(),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := metric.NewMeterProvider(
		metric.WithReader(exporter),
	)

	otel.SetMeterProvider(provider)

	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), provider.Shutdown, nil
}

// RegisterInFlightGauge reports the number of in-flight jobs on every
// scrape. A failing count is skipped rather than failing the scrape.
func RegisterInFlightGauge(count func(ctx context.Context) (int, error)) error {
	_, err := otel.Meter("github.com/makeasinger/studio").Int64ObservableGauge("studio_jobs_in_flight",
		otelmetric.WithDescription("Jobs accepted by the dispatcher and not finished"),
		otelmetric.WithInt64Callback(func(ctx context.Context, obs otelmetric.Int64Observer) error {
			n, err := count(ctx)
			if err != nil {
				return nil
			}
			obs.Observe(int64(n))
			return nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to register in-flight gauge: %w", err)
	}
	return nil
}
