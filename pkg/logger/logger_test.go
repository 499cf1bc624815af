package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/cwrk-planet/chat-service/pkg/logger"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestDetectEnv(t *testing.T) {
	req := require.New(t)

	t.Setenv("APP_ENV", "")
	req.Equal(logger.EnvDev, logger.DetectEnv())

	t.Setenv("APP_ENV", "staging")
	req.Equal(logger.EnvStage, logger.DetectEnv())

	t.Setenv("APP_ENV", "production")
	req.Equal(logger.EnvProd, logger.DetectEnv())
}

func TestParseLevel(t *testing.T) {
	req := require.New(t)
	req.Equal(slog.LevelDebug, logger.ParseLevel("DEBUG"))
	req.Equal(slog.LevelWarn, logger.ParseLevel("warning"))
	req.Equal(slog.LevelError, logger.ParseLevel("error"))
	req.Equal(slog.LevelInfo, logger.ParseLevel("whatever"))
}

func TestInit_DevStd_TextOutput(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	l := logger.Init(logger.Config{
		Service: "demo",
		Version: "v0.0.1",
		Env:     logger.EnvDev,
		Backend: logger.BackendStd,
		Level:   slog.LevelDebug,
		Output:  &buf,
	})
	l.Info("Hello world")

	out := buf.String()
	req.False(strings.HasPrefix(strings.TrimSpace(out), "{"), "expected text output, got %s", out)
	req.Contains(out, "Hello world")
	req.Contains(out, "service=demo")
	req.Contains(out, "env=dev")
}

func TestInit_ProdZap_JSONOutput(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	l := logger.Init(logger.Config{
		Service:          "demo",
		Version:          "1.2.3",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		Level:            slog.LevelInfo,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})
	l.Info("booted", slog.String("k", "v"))

	var m map[string]any
	req.NoError(json.Unmarshal(buf.Bytes(), &m), "expected JSON line, got %s", buf.String())
	req.Equal("booted", m["msg"])
	req.Equal("demo", m["service"])
	req.Equal("prod", m["env"])
	req.Equal("1.2.3", m["version"])
	req.Equal("INFO", m["level"])
	req.Equal("v", m["k"])
}

func TestFromCtx_PropagatesTraceIDs(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	logger.Init(logger.Config{
		Service:          "demo",
		Env:              logger.EnvProd,
		Backend:          logger.BackendZap,
		SampleInitial:    100000,
		SampleThereafter: 100000,
		Output:           &buf,
	})

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.FromCtx(ctx).Info("with trace")
	span.End()

	var m map[string]any
	req.NoError(json.Unmarshal(buf.Bytes(), &m), "expected JSON, got %s", buf.String())
	req.NotNil(m["trace_id"])
	req.NotNil(m["span_id"])
	req.Equal("with trace", m["msg"])
}

func TestFromCtx_UsesContextLogger(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	base := logger.Init(logger.Config{Env: logger.EnvDev, Backend: logger.BackendStd, Output: &buf})
	ctx := logger.WithLogger(context.Background(), base.With("conn_id", "c-1"))

	logger.FromCtx(ctx).Info("scoped")

	req.Contains(buf.String(), "conn_id=c-1")
}

func TestWith_AppendsToContextLogger(t *testing.T) {
	req := require.New(t)
	var buf bytes.Buffer

	logger.Init(logger.Config{Env: logger.EnvDev, Backend: logger.BackendStd, Output: &buf})
	ctx := logger.With(context.Background(), "chat_id", 7)
	ctx = logger.With(ctx, "user_id", 3)

	logger.FromCtx(ctx).Info("nested")

	out := buf.String()
	req.Contains(out, "chat_id=7")
	req.Contains(out, "user_id=3")
}
