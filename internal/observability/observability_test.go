package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-mart/internal/config"
)

func TestStartSpan_InheritsTrace(t *testing.T) {
	ctx, parent := StartSpan(context.Background(), "pipeline.run")
	_, child := StartSpan(ctx, "pipeline.dedupe_customers")

	assert.Equal(t, parent.TraceID, child.TraceID)
	assert.Equal(t, parent.SpanID, child.ParentID)
	assert.NotEqual(t, parent.SpanID, child.SpanID)
	assert.Same(t, parent, GetSpan(ctx))
}

func TestSpanEnd_LogsErrorSpans(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LoggerConfig{Level: "info", Format: "json"})

	_, ok := StartSpan(context.Background(), "stage.ok")
	ok.End(logger)
	assert.Empty(t, buf.String(), "successful spans log at debug")

	_, failed := StartSpan(context.Background(), "stage.failed")
	failed.SetTag("rows", "3")
	failed.SetError(errors.New("duplicate key"))
	failed.End(logger)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "stage.failed", entry["operation"])
	assert.Equal(t, "duplicate key", entry["error"])
	assert.Equal(t, "3", entry["rows"])
	assert.Equal(t, "order-mart", entry["service"])
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", GetRequestID(ctx))
	assert.Empty(t, GetRequestID(context.Background()))
}
