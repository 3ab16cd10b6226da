/*
Package observability sets up the OpenTelemetry meter and tracer providers and
carries them, together with the logger, to the components of the system.
*/
package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	promexp "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tnop "go.opentelemetry.io/otel/trace/noop"

	"github.com/iort-labs/qtrust/logger"
)

const (
	serviceName    = "qtrust"
	serviceVersion = "0.1.0"

	shutdownTimeout = 5 * time.Second
)

type Observability struct {
	log  *slog.Logger
	mp   metric.MeterProvider
	tp   trace.TracerProvider
	prom *prometheus.Registry

	shutdownFuncs []func(context.Context) error
}

var (
	metricReaders = map[string]func(o *Observability) (sdkmetric.Reader, error){
		"stdout": func(*Observability) (sdkmetric.Reader, error) {
			exp, err := stdoutmetric.New()
			if err != nil {
				return nil, fmt.Errorf("creating stdout exporter: %w", err)
			}
			return sdkmetric.NewPeriodicReader(exp), nil
		},
		"prometheus": func(o *Observability) (sdkmetric.Reader, error) {
			o.prom = prometheus.NewRegistry()
			r, err := promexp.New(promexp.WithRegisterer(o.prom), promexp.WithNamespace(serviceName))
			if err != nil {
				return nil, fmt.Errorf("creating Prometheus exporter: %w", err)
			}
			return r, nil
		},
	}

	spanExporters = map[string]func() (sdktrace.SpanExporter, error){
		"stdout": func() (sdktrace.SpanExporter, error) {
			return stdouttrace.New()
		},
	}

	μs = time.Microsecond.Seconds()

	// histogram bucket boundaries of the orchestrator instruments
	histogramBounds = map[string][]float64{
		"propagation.duration": {100 * μs, 500 * μs, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		"round.quality":        {0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9},
	}
)

/*
New creates Observability with the given metrics and traces exporters, empty
name disables the signal.

Supported metrics exporters are "stdout" and "prometheus", supported traces
exporter is "stdout".
*/
func New(metrics, traces string, log *slog.Logger) (*Observability, error) {
	o := NOP()
	if log != nil {
		o.log = log
	}
	if metrics == "" && traces == "" {
		return o, nil
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	)
	if metrics != "" {
		if err := o.initMeterProvider(metrics, res); err != nil {
			return nil, fmt.Errorf("initialize meter provider: %w", err)
		}
	}
	if traces != "" {
		if err := o.initTracerProvider(traces, res); err != nil {
			return nil, errors.Join(fmt.Errorf("initialize tracer provider: %w", err), o.Shutdown())
		}
	}
	return o, nil
}

// NOP creates Observability where everything is no-op.
func NOP() *Observability {
	return &Observability{
		log: logger.NOP(),
		mp:  noop.NewMeterProvider(),
		tp:  tnop.NewTracerProvider(),
	}
}

func (o *Observability) Logger() *slog.Logger { return o.log }

func (o *Observability) Meter(name string, opts ...metric.MeterOption) metric.Meter {
	return o.mp.Meter(name, opts...)
}

func (o *Observability) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	return o.tp.Tracer(name, opts...)
}

// PrometheusRegisterer is nil unless the Prometheus exporter is used.
func (o *Observability) PrometheusRegisterer() prometheus.Registerer {
	if o.prom == nil {
		return nil
	}
	return o.prom
}

// MetricsHandler serves Prometheus scrapes, nil unless the Prometheus exporter is used.
func (o *Observability) MetricsHandler() http.Handler {
	if o.prom == nil {
		return nil
	}
	return promhttp.HandlerFor(o.prom, promhttp.HandlerOpts{MaxRequestsInFlight: 1})
}

/*
ServeMetrics starts HTTP server exposing MetricsHandler under /metrics on
addr. The server runs until ctx is cancelled or Shutdown is called, error of
the server (ie address already in use) is reported by Shutdown.
*/
func (o *Observability) ServeMetrics(ctx context.Context, addr string) error {
	h := o.MetricsHandler()
	if h == nil {
		return errors.New("metrics endpoint requires the prometheus exporter")
	}
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(http.NotFound)
	r.Handle("/metrics", h).Methods(http.MethodGet, http.MethodOptions)
	r.Use(handlers.CORS(handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions})))

	server := http.Server{
		Addr:              addr,
		Handler:           r,
		ReadTimeout:       3 * time.Second,
		ReadHeaderTimeout: time.Second,
		WriteTimeout:      5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- httpsrv.Run(ctx, server, httpsrv.ShutdownTimeout(shutdownTimeout))
	}()
	o.shutdownFuncs = append(o.shutdownFuncs, func(context.Context) error {
		cancel()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("metrics endpoint: %w", err)
		}
		return nil
	})
	o.log.Info(fmt.Sprintf("serving metrics on http://%s/metrics", addr))
	return nil
}

// Shutdown flushes and stops the exporters, it is safe to call more than once.
func (o *Observability) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	// in reverse order of setting up, ie metrics endpoint goes before the meter provider
	for i := len(o.shutdownFuncs) - 1; i >= 0; i-- {
		errs = append(errs, o.shutdownFuncs[i](ctx))
	}
	o.shutdownFuncs = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("observability shutdown: %w", err)
	}
	return nil
}

func (o *Observability) initMeterProvider(exporter string, res *resource.Resource) error {
	newReader, ok := metricReaders[exporter]
	if !ok {
		return fmt.Errorf("unsupported metrics exporter %q", exporter)
	}
	reader, err := newReader(o)
	if err != nil {
		return err
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res), sdkmetric.WithReader(reader)}
	for name, bounds := range histogramBounds {
		opts = append(opts, sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: name, Scope: instrumentation.Scope{Name: "orchestrator"}},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: bounds}},
		)))
	}
	mp := sdkmetric.NewMeterProvider(opts...)
	o.mp = mp
	o.shutdownFuncs = append(o.shutdownFuncs, mp.Shutdown)
	return nil
}

func (o *Observability) initTracerProvider(exporter string, res *resource.Resource) error {
	newExporter, ok := spanExporters[exporter]
	if !ok {
		return fmt.Errorf("unsupported trace exporter %q", exporter)
	}
	exp, err := newExporter()
	if err != nil {
		return fmt.Errorf("creating %s exporter: %w", exporter, err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithResource(res), sdktrace.WithBatcher(exp))
	o.tp = tp
	o.shutdownFuncs = append(o.shutdownFuncs, tp.Shutdown)
	return nil
}
