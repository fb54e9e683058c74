// Package telemetry sets up OpenTelemetry tracing and metrics for the portal
// and provides the echo middleware that records one server span and the
// request metrics per HTTP request.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Span exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

const instrumentationName = "github.com/carepoint/portal"

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// Exporter selects where spans go. With ExporterNone spans are not
	// recorded; metrics are always collected.
	Exporter     string
	OTLPEndpoint string
	OTLPInsecure bool
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "carepoint-portal"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Exporter == "" {
		c.Exporter = ExporterNone
	}
}

// Provider owns the tracer and the HTTP server instruments.
type Provider struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
	reader     sdkmetric.Reader

	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter

	shutdown func(context.Context) error
}

// Init builds the SDK providers for cfg and installs them as the process-wide
// otel providers. Call Shutdown on exit to flush pending spans.
func Init(ctx context.Context, cfg Config, logger zerolog.Logger) (*Provider, error) {
	cfg.applyDefaults()

	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("service.version", cfg.ServiceVersion),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	var (
		tp       trace.TracerProvider = tracenoop.NewTracerProvider()
		sdkTrace *sdktrace.TracerProvider
	)
	if cfg.Exporter != ExporterNone {
		exp, err := newSpanExporter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		sdkTrace = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(exp),
		)
		tp = sdkTrace
	}

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)

	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagator)

	p, err := newProvider(tp, mp, reader, propagator)
	if err != nil {
		return nil, err
	}
	p.shutdown = func(ctx context.Context) error {
		var errs error
		if sdkTrace != nil {
			errs = errors.Join(errs, sdkTrace.Shutdown(ctx))
		}
		return errors.Join(errs, mp.Shutdown(ctx))
	}

	logger.Info().
		Str("exporter", cfg.Exporter).
		Str("service", cfg.ServiceName).
		Msg("telemetry initialized")
	return p, nil
}

// New returns a Provider using the given providers without touching the
// process-wide otel state. reader may be nil, in which case Snapshot returns
// nothing.
func New(tp trace.TracerProvider, mp metric.MeterProvider, reader sdkmetric.Reader) (*Provider, error) {
	return newProvider(tp, mp, reader, propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
}

func newProvider(tp trace.TracerProvider, mp metric.MeterProvider, reader sdkmetric.Reader, propagator propagation.TextMapPropagator) (*Provider, error) {
	meter := mp.Meter(instrumentationName)
	requests, err := meter.Int64Counter("http.server.requests",
		metric.WithDescription("Completed HTTP requests."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of HTTP server requests."))
	if err != nil {
		return nil, err
	}
	active, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("In-flight HTTP requests."))
	if err != nil {
		return nil, err
	}
	return &Provider{
		tracer:     tp.Tracer(instrumentationName),
		propagator: propagator,
		reader:     reader,
		requests:   requests,
		duration:   duration,
		active:     active,
		shutdown:   func(context.Context) error { return nil },
	}, nil
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case ExporterStdout:
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case ExporterOTLP:
		var opts []otlptracehttp.Option
		if cfg.OTLPEndpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(cfg.OTLPEndpoint))
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exp, err := otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unknown span exporter %q", cfg.Exporter)
	}
}

func (p *Provider) Shutdown(ctx context.Context) error {
	return p.shutdown(ctx)
}

// Middleware starts a server span for each request, continuing any trace
// passed in the traceparent header, and records the request metrics.
func (p *Provider) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			route := c.Path()
			if route == "" {
				route = req.URL.Path
			}

			ctx := p.propagator.Extract(req.Context(), propagation.HeaderCarrier(req.Header))
			ctx, span := p.tracer.Start(ctx, req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
					attribute.String("url.path", req.URL.Path),
				),
			)
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			p.active.Add(ctx, 1)
			start := time.Now()
			err := next(c)
			elapsed := time.Since(start).Seconds()
			p.active.Add(ctx, -1)

			status := responseStatus(c, err)
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				span.SetAttributes(attribute.String("portal.request_id", id))
			}
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if err != nil {
				span.RecordError(err)
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}

			attrs := metric.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("http.route", route),
				attribute.String("http.response.status_code", strconv.Itoa(status)),
			)
			p.requests.Add(ctx, 1, attrs)
			p.duration.Record(ctx, elapsed, attrs)
			return err
		}
	}
}

// responseStatus is the status the client will see. A handler error has not
// been written yet when the middleware regains control.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}

// Point is one data point of a collected metric.
type Point struct {
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      float64           `json:"value"`
	Count      uint64            `json:"count,omitempty"`
}

// Metric is a collected instrument and its points.
type Metric struct {
	Name   string  `json:"name"`
	Unit   string  `json:"unit,omitempty"`
	Points []Point `json:"points"`
}

// Snapshot collects the current metric values. Histogram points carry the
// sum of observations in Value.
func (p *Provider) Snapshot(ctx context.Context) ([]Metric, error) {
	if p.reader == nil {
		return nil, nil
	}
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	var out []Metric
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			mm := Metric{Name: m.Name, Unit: m.Unit}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					mm.Points = append(mm.Points, Point{Attributes: attrMap(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					mm.Points = append(mm.Points, Point{Attributes: attrMap(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					mm.Points = append(mm.Points, Point{Attributes: attrMap(dp.Attributes), Value: dp.Sum, Count: dp.Count})
				}
			default:
				continue
			}
			out = append(out, mm)
		}
	}
	return out, nil
}

func attrMap(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	m := make(map[string]string, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

// MetricsHandler serves the metric snapshot as JSON.
func (p *Provider) MetricsHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		metrics, err := p.Snapshot(c.Request().Context())
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
		if metrics == nil {
			metrics = []Metric{}
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"metrics": metrics})
	}
}
