// Package tracing provides the OTel tracer for terminal sessions.
//
// Spans are no-ops until Init installs an OTLP/HTTP exporter. The endpoint
// comes from the tracing section of the configuration, which also honors
// OTEL_EXPORTER_OTLP_ENDPOINT.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/minied/minied/internal/common/config"
	"github.com/minied/minied/internal/common/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

const defaultServiceName = "minied-terminal"

// ErrInvalidEndpoint is returned by Init for an unusable collector URL.
var ErrInvalidEndpoint = errors.New("invalid OTLP endpoint")

var (
	mu          sync.RWMutex
	provider    trace.TracerProvider = noop.NewTracerProvider()
	sdkProvider *sdktrace.TracerProvider
)

// collector is a parsed OTLP/HTTP endpoint.
type collector struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint accepts http(s)://host[:port][/base] or a bare host:port,
// which is treated as plain http. A base path gets the signal path
// /v1/traces appended.
func parseEndpoint(raw string) (collector, error) {
	raw = strings.TrimSpace(raw)
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return collector{}, fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}

	var c collector
	switch u.Scheme {
	case "http":
		c.insecure = true
	case "https":
	default:
		return collector{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidEndpoint, u.Scheme)
	}
	if u.Host == "" || u.Hostname() == "" {
		return collector{}, fmt.Errorf("%w: missing host in %q", ErrInvalidEndpoint, raw)
	}
	c.host = u.Host
	if base := strings.TrimSuffix(u.Path, "/"); base != "" {
		c.path = base + "/v1/traces"
	}
	return c, nil
}

// Init installs the OTLP exporter described by cfg as the global tracer
// provider. An empty endpoint leaves tracing disabled. On error the no-op
// tracer stays in place; the caller decides how to report it.
func Init(ctx context.Context, cfg config.TracingConfig, log *logger.Logger) error {
	if log == nil {
		log = logger.Default()
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		log.Debug("tracing disabled, no OTLP endpoint configured")
		return nil
	}

	c, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return err
	}

	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.host)}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if c.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(c.path))
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return fmt.Errorf("create OTLP exporter: %w", err)
	}

	name := cfg.ServiceName
	if name == "" {
		name = defaultServiceName
	}
	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(name)))
	if err != nil {
		log.Debug("tracing resource detection failed, using defaults", zap.Error(err))
		res = resource.Default()
	}

	sp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	mu.Lock()
	prev := sdkProvider
	sdkProvider, provider = sp, sp
	mu.Unlock()
	otel.SetTracerProvider(sp)

	if prev != nil {
		_ = prev.Shutdown(ctx)
	}

	log.Info("tracing enabled",
		zap.String("endpoint", c.host),
		zap.Bool("insecure", c.insecure),
		zap.String("service", name))
	return nil
}

// Tracer returns a named tracer. No-op when tracing is disabled.
func Tracer(name string) trace.Tracer {
	mu.RLock()
	defer mu.RUnlock()
	return provider.Tracer(name)
}

// Shutdown flushes pending spans and restores the no-op provider.
func Shutdown(ctx context.Context) error {
	mu.Lock()
	sp := sdkProvider
	sdkProvider = nil
	provider = noop.NewTracerProvider()
	mu.Unlock()

	if sp == nil {
		return nil
	}
	return sp.Shutdown(ctx)
}
