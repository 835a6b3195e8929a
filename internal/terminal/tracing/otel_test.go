package tracing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/minied/minied/internal/common/config"
	"github.com/minied/minied/internal/common/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileLogger(t *testing.T) (*logger.Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracing.log")
	log, err := logger.NewLogger(logger.LoggingConfig{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)
	return log, path
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  collector
	}{
		{"http is insecure", "http://localhost:4318", collector{host: "localhost:4318", insecure: true}},
		{"https with trailing slash", "https://otel.example.com:4318/", collector{host: "otel.example.com:4318"}},
		{"bare host is plain http", "localhost:4318", collector{host: "localhost:4318", insecure: true}},
		{"base path gets signal path", "https://otel.example.com/otlp", collector{host: "otel.example.com", path: "/otlp/v1/traces"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEndpoint(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseEndpointRejectsBadValues(t *testing.T) {
	for _, raw := range []string{"ftp://collector:4318", "http://", "http://:4318", "http://%zz"} {
		t.Run(raw, func(t *testing.T) {
			_, err := parseEndpoint(raw)
			assert.ErrorIs(t, err, ErrInvalidEndpoint)
		})
	}
}

func TestInitWithoutEndpointKeepsNoop(t *testing.T) {
	log, _ := newFileLogger(t)
	require.NoError(t, Init(context.Background(), config.TracingConfig{}, log))

	_, span := TraceSession(context.Background(), "s-1", "pipe")
	assert.False(t, span.IsRecording())
	Finish(span, nil)
}

func TestInitRejectsInvalidEndpoint(t *testing.T) {
	log, _ := newFileLogger(t)
	err := Init(context.Background(), config.TracingConfig{Endpoint: "ftp://collector:4318"}, log)
	require.ErrorIs(t, err, ErrInvalidEndpoint)

	_, span := TraceSession(context.Background(), "s-1", "pipe")
	assert.False(t, span.IsRecording(), "a bad endpoint must leave the no-op tracer in place")
	Finish(span, nil)
}

func TestInitInstallsExporter(t *testing.T) {
	log, path := newFileLogger(t)
	err := Init(context.Background(), config.TracingConfig{Endpoint: "http://127.0.0.1:1", ServiceName: "minied-test"}, log)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		_ = Shutdown(ctx)
	})

	// Left open so Shutdown has nothing to export.
	_, span := TraceSession(context.Background(), "s-1", "pty")
	assert.True(t, span.IsRecording())

	require.NoError(t, log.Sync())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"tracing enabled"`)
	assert.Contains(t, string(data), `"service":"minied-test"`)
}

func TestShutdownRestoresNoop(t *testing.T) {
	log, _ := newFileLogger(t)
	require.NoError(t, Init(context.Background(), config.TracingConfig{Endpoint: "127.0.0.1:1"}, log))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = Shutdown(ctx)

	_, span := TraceSession(context.Background(), "s-1", "pipe")
	assert.False(t, span.IsRecording())
	assert.NoError(t, Shutdown(context.Background()))
}

func TestSpansWithoutExporter(t *testing.T) {
	ctx, session := TraceSession(context.Background(), "s-1", "pipe")
	require.NotNil(t, session)

	_, create := TraceTransportCreate(ctx, "pipe", 80, 24)
	Finish(create, nil)

	_, spawn := TraceSpawn(ctx, "/bin/sh", "/tmp")
	Finish(spawn, errors.New("boom"))

	Finish(session, nil)
	assert.NoError(t, Shutdown(context.Background()))
}
