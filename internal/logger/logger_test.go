package logger_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/emora-osint/emora/internal/logger"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		contains    string
	}{
		{name: "development", environment: logger.DevelopmentEnvironment, contains: "msg=hello"},
		{name: "production", environment: logger.ProductionEnvironment, contains: `"msg":"hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger.Setup(&buf, tt.environment, "info")

			logger.Info(context.Background(), "hello", logrus.Fields{"site": "GitHub"})
			require.Contains(t, buf.String(), tt.contains)
			require.Contains(t, buf.String(), "GitHub")
		})
	}
}

func TestSetup_InvalidLevelFallsBackToWarn(t *testing.T) {
	var buf bytes.Buffer
	logger.Setup(&buf, logger.DevelopmentEnvironment, "chatty")

	ctx := context.Background()
	logger.Info(ctx, "hidden", nil)
	logger.Warn(ctx, "shown", nil)

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
	require.False(t, logger.IsDebug(ctx))
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger.Setup(&buf, logger.DevelopmentEnvironment, "debug")

	ctx := logger.WithFields(context.Background(), logrus.Fields{"session": "abc"})
	logger.Debug(ctx, "probe failed", logrus.Fields{"site": "Reddit"})

	require.True(t, logger.IsDebug(ctx))
	require.Contains(t, buf.String(), "session=abc")
	require.Contains(t, buf.String(), "site=Reddit")
}

func TestGet_PrefersContextLogger(t *testing.T) {
	custom := logrus.NewEntry(logrus.New())
	ctx := logger.WithLogger(context.Background(), custom)

	require.Same(t, custom, logger.Get(ctx))
	require.NotSame(t, custom, logger.Get(context.Background()))
}
