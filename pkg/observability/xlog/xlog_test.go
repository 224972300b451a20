package xlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// newBufferLogger 创建输出到 buffer 的 JSON Logger
func newBufferLogger(t *testing.T, level string) (LoggerWithLevel, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, cleanup, err := New().SetOutput(&buf).SetFormat("json").SetLevelString(level).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cleanup() })
	return logger, &buf
}

// decodeLine 解析单行 JSON 日志
func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &m))
	return m
}

func TestLogger_BasicLogging(t *testing.T) {
	ctx := context.Background()
	logger, buf := newBufferLogger(t, "debug")

	tests := []struct {
		name  string
		log   func(ctx context.Context, msg string, attrs ...slog.Attr)
		level string
	}{
		{"debug", logger.Debug, "DEBUG"},
		{"info", logger.Info, "INFO"},
		{"warn", logger.Warn, "WARN"},
		{"error", logger.Error, "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.log(ctx, "hello", slog.String("k", "v"))
			m := decodeLine(t, buf)
			assert.Equal(t, tt.level, m["level"])
			assert.Equal(t, "hello", m["msg"])
			assert.Equal(t, "v", m["k"])
		})
	}
}

func TestLogger_DynamicLevel(t *testing.T) {
	ctx := context.Background()
	logger, buf := newBufferLogger(t, "info")

	logger.Debug(ctx, "hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, logger.Enabled(ctx, LevelDebug))

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())

	child := logger.With(slog.String("component", "child"))
	child.Debug(ctx, "visible")
	m := decodeLine(t, buf)
	assert.Equal(t, "visible", m["msg"])
	assert.Equal(t, "child", m["component"])
}

func TestLogger_WithEmptyAttrs(t *testing.T) {
	logger, _ := newBufferLogger(t, "info")
	assert.Same(t, logger, logger.With())
}

func TestLogger_NilContext(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")
	//nolint:staticcheck // 测试 nil context
	logger.Info(nil, "ok")
	assert.Contains(t, buf.String(), `"msg":"ok"`)
}

func TestLogger_TraceFields(t *testing.T) {
	logger, buf := newBufferLogger(t, "info")

	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	logger.Info(ctx, "traced")
	m := decodeLine(t, buf)
	assert.Equal(t, span.SpanContext().TraceID().String(), m[KeyTraceID])
	assert.Equal(t, span.SpanContext().SpanID().String(), m[KeySpanID])

	buf.Reset()
	logger.Info(context.Background(), "untraced")
	m = decodeLine(t, buf)
	assert.NotContains(t, m, KeyTraceID)
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("invalid level", func(t *testing.T) {
		_, _, err := New().SetLevelString("verbose").Build()
		assert.Error(t, err)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, _, err := New().SetFormat("xml").Build()
		assert.Error(t, err)
	})

	t.Run("first error wins", func(t *testing.T) {
		_, _, err := New().SetFormat("xml").SetLevelString("verbose").Build()
		assert.ErrorContains(t, err, "format")
	})

	t.Run("nil output", func(t *testing.T) {
		_, _, err := New().SetOutput(nil).Build()
		assert.Error(t, err)
	})

	t.Run("empty rotation filename", func(t *testing.T) {
		_, _, err := New().SetRotation(" ").Build()
		assert.ErrorIs(t, err, ErrEmptyFilename)
	})
}

func TestBuilder_SetFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New().SetOutput(&buf).SetFormat("").Build()
	require.NoError(t, err)
	logger.Info(context.Background(), "plain")
	assert.Contains(t, buf.String(), "msg=plain")
}

func TestBuilder_SetAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New().SetOutput(&buf).SetFormat("json").SetAttrs(slog.String("service", "xkeyctl")).Build()
	require.NoError(t, err)
	logger.Info(context.Background(), "x")
	assert.Equal(t, "xkeyctl", decodeLine(t, &buf)["service"])
}

func TestBuilder_SetRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, cleanup, err := New().
		SetRotation(path, WithMaxSize(1), WithMaxBackups(1), WithMaxAge(1), WithCompress(false)).
		Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"trace", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	var l Level
	require.NoError(t, l.UnmarshalText([]byte("warn")))
	assert.Equal(t, "WARN", l.String())
	assert.Error(t, l.UnmarshalText([]byte("loud")))
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Err(nil))
	assert.Equal(t, "boom", Err(errors.New("boom")).Value.String())
	assert.Equal(t, "1.5s", Duration(1500*time.Millisecond).Value.String())
	assert.Equal(t, int64(3), Count(3).Value.Int64())
	assert.Equal(t, KeyPool, Pool("p").Key)
	assert.Equal(t, KeyRunID, RunID("r").Key)
	assert.Equal(t, KeyComponent, Component("c").Key)
	assert.Equal(t, KeyOperation, Operation("o").Key)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	assert.False(t, l.Enabled(context.Background(), LevelError))
	l.Error(context.Background(), "dropped")
}

func TestGlobal(t *testing.T) {
	t.Cleanup(ResetDefault)

	ResetDefault()
	assert.NotNil(t, Default())
	assert.Same(t, Default(), Default())

	logger, buf := newBufferLogger(t, "debug")
	SetDefault(logger)
	SetDefault(nil)

	ctx := context.Background()
	Debug(ctx, "d")
	Info(ctx, "i")
	Warn(ctx, "w")
	Error(ctx, "e")
	assert.Equal(t, 4, bytes.Count(buf.Bytes(), []byte("\n")))
}
