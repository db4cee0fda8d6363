package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer for testing.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()

	buf := new(bytes.Buffer)

	mu.Lock()
	origOutput, origColor := output, useColor
	mu.Unlock()
	origLevel := CurrentLevel()
	origFormat, _ := currentFormat.Load().(string)

	InitWithWriter(buf, "", "", false)

	t.Cleanup(func() {
		InitWithWriter(origOutput, origLevel.String(), origFormat, origColor)
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level   string
		present []string
		absent  []string
	}{
		{"DEBUG", []string{"debug message", "info message", "warn message", "error message"}, nil},
		{"INFO", []string{"info message", "warn message", "error message"}, []string{"debug message"}},
		{"WARN", []string{"warn message", "error message"}, []string{"debug message", "info message"}},
		{"ERROR", []string{"error message"}, []string{"debug message", "info message", "warn message"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tt.level)
			SetFormat("text")

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")

			out := buf.String()
			for _, s := range tt.present {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestSetLevel_IgnoresInvalid(t *testing.T) {
	_ = captureOutput(t)
	SetLevel("WARN")
	SetLevel("LOUD")
	assert.Equal(t, LevelWarn, CurrentLevel())
}

func TestParseLevel(t *testing.T) {
	l, ok := ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, l)

	_, ok = ParseLevel("nope")
	assert.False(t, ok)
}

func TestTextFormat_FieldsAndGroups(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("DEBUG")
	SetFormat("text")

	Info("chunk done", AssetID("IMG_0001"), Range(100, 150), InFlight(3))

	out := buf.String()
	assert.Contains(t, out, "[INFO] chunk done")
	assert.Contains(t, out, "asset_id=IMG_0001")
	assert.Contains(t, out, "range.start=100")
	assert.Contains(t, out, "range.end=150")
	assert.Contains(t, out, "in_flight=3")
}

func TestTextFormat_QuotesSpaces(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	Info("load", Path("/photos/summer trip/a.jpg"))
	assert.Contains(t, buf.String(), `path="/photos/summer trip/a.jpg"`)
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("json")

	Info("evicted", Tier("thumbnail"), Index(2200))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "evicted", rec["msg"])
	assert.Equal(t, "thumbnail", rec["tier"])
	assert.Equal(t, float64(2200), rec["index"])
}

func TestContextFields(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("DEBUG")
	SetFormat("text")

	lc := NewLogContext("sess-1").WithOperation("prefetch").WithTrace("abc", "def")
	ctx := WithContext(context.Background(), lc)

	DebugCtx(ctx, "range started")

	out := buf.String()
	assert.Contains(t, out, "session_id=sess-1")
	assert.Contains(t, out, "operation=prefetch")
	assert.Contains(t, out, "trace_id=abc")
	assert.Contains(t, out, "span_id=def")
}

func TestContextFields_NoContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	args := appendContextFields(context.Background(), []any{"k", "v"})
	assert.Equal(t, []any{"k", "v"}, args)
}

func TestLogContext_CloneIsIndependent(t *testing.T) {
	lc := NewLogContext("s")
	c := lc.WithOperation("render")
	assert.Equal(t, "", lc.Operation)
	assert.Equal(t, "render", c.Operation)

	var nilLC *LogContext
	assert.Nil(t, nilLC.Clone())
	assert.Equal(t, float64(0), nilLC.DurationMs())
}

func TestErr_NilDropped(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	Info("ok", Err(nil))
	assert.NotContains(t, buf.String(), "error=")
}

func TestWith_PreboundAttrs(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	l := With(slog.String("component", "pipeline")).WithGroup("chunk")
	l.Info("issued", "size", 50)

	out := buf.String()
	assert.Contains(t, out, "component=pipeline")
	assert.Contains(t, out, "chunk.size=50")
}

func TestConcurrentLogging(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			Info("line", Index(i))
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 20)
}
