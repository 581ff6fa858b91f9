package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/bookseek/internal/config"
)

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(NewDefaultConfig(), nil)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Underlying())
}

func TestNewLogger_InvalidConfig(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Format = "xml"

	_, err := NewLogger(cfg, nil)
	assert.Error(t, err)
}

func TestLogger_ContextAwareMethods(t *testing.T) {
	tl := NewTestLogger()
	ctx := WithSessionID(context.Background(), "sess-1")
	ctx = WithConversation(ctx, "What is RAG?")

	tests := []struct {
		name  string
		log   func()
		level zapcore.Level
		msg   string
	}{
		{"trace", func() { tl.Trace(ctx, "trace message") }, TraceLevel, "trace message"},
		{"debug", func() { tl.Debug(ctx, "debug message") }, zapcore.DebugLevel, "debug message"},
		{"info", func() { tl.Info(ctx, "info message") }, zapcore.InfoLevel, "info message"},
		{"warn", func() { tl.Warn(ctx, "warn message") }, zapcore.WarnLevel, "warn message"},
		{"error", func() { tl.Error(ctx, "error message") }, zapcore.ErrorLevel, "error message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl.Reset()
			tt.log()

			logs := tl.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.level, logs[0].Level)
			assert.Equal(t, tt.msg, logs[0].Message)

			fields := logs[0].ContextMap()
			assert.Equal(t, "sess-1", fields["session.id"])
			assert.Equal(t, "What is RAG?", fields["conversation"])
		})
	}
}

func TestLevelFromString(t *testing.T) {
	level, err := LevelFromString("trace")
	require.NoError(t, err)
	assert.Equal(t, TraceLevel, level)

	level, err = LevelFromString("warn")
	require.NoError(t, err)
	assert.Equal(t, zapcore.WarnLevel, level)

	_, err = LevelFromString("loud")
	assert.Error(t, err)
}

func TestFromAppConfig(t *testing.T) {
	cfg, err := FromAppConfig(config.LoggingConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.Equal(t, zapcore.DebugLevel, cfg.Level)
	assert.Equal(t, "console", cfg.Format)

	_, err = FromAppConfig(config.LoggingConfig{Level: "verbose"})
	assert.Error(t, err)
}

func TestFromContext_DefaultsToNop(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info(context.Background(), "dropped")

	tl := NewTestLogger()
	ctx := WithLogger(context.Background(), tl.Logger)
	FromContext(ctx).Info(ctx, "kept")
	tl.AssertLogged(t, zapcore.InfoLevel, "kept")
}

func newBufferedLogger(t *testing.T, buf *bytes.Buffer) *zap.Logger {
	t.Helper()
	enc, err := NewRedactingEncoder(newEncoder("json"), NewDefaultConfig().Redaction)
	require.NoError(t, err)
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(buf), TraceLevel))
}

func TestRedactingEncoder(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferedLogger(t, &buf)

	logger.Info("calling chat completions with Bearer sk-or-v1-abc123",
		zap.String("api_key", "sk-or-v1-abc123"),
		zap.String("header", "Authorization: Bearer sk-or-v1-abc123"),
		zap.Error(errors.New("upstream rejected key sk-or-v1-abc123")),
		zap.Int("status", 401),
	)
	logger.With(zap.String("token", "t0ps3cret")).Info("child")

	out := buf.String()
	assert.NotContains(t, out, "sk-or-v1-abc123")
	assert.NotContains(t, out, "t0ps3cret")
	assert.Contains(t, out, `"status":401`)
	assert.Contains(t, out, redactedValue)
}

func TestRedactingEncoder_TraceLevelName(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferedLogger(t, &buf)

	logger.Log(TraceLevel, "per-chunk detail")
	assert.Contains(t, buf.String(), `"level":"trace"`)
}

func TestRedactedString(t *testing.T) {
	tl := NewTestLogger()
	tl.Info(context.Background(), "key loaded",
		RedactedString("api_key", "sk-1234567890abcdef"),
		Secret("site_key", config.Secret("abc")))

	fields := tl.All()[0].ContextMap()
	assert.Equal(t, "[REDACTED:19]", fields["api_key"])
	assert.Equal(t, "[REDACTED:3]", fields["site_key"])
	tl.AssertNoSubstring(t, "sk-1234567890abcdef")
}

func TestSampling_ErrorsNeverDropped(t *testing.T) {
	tl := NewTestLogger()
	cfg := NewDefaultConfig().Sampling
	cfg.Initial = 1
	cfg.Thereafter = 0

	logger := zap.New(newSampledCore(tl.Underlying().Core(), cfg))
	for i := 0; i < 5; i++ {
		logger.Info("repeated")
		logger.Error("failure")
	}

	assert.Equal(t, 1, tl.FilterMessage("repeated").Len())
	assert.Equal(t, 5, tl.FilterMessage("failure").Len())
}
