package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
		"":        zapcore.InfoLevel,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestFromZap_WithFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).With(String("component", "dispatch"))

	logger.Debug("admitted", Int("in_flight", 2), Duration("waited_ms", 1500*time.Millisecond), Bool("ok", true))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "dispatch", fields["component"])
	assert.Equal(t, int64(2), fields["in_flight"])
	assert.Equal(t, int64(1500), fields["waited_ms"])
	assert.Equal(t, true, fields["ok"])
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("error")
	require.NoError(t, err)
	logger.Info("suppressed")
	NewNop().Error("discarded")
}
