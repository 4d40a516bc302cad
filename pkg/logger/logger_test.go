package logger_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deye-exporter/pkg/config"
	"github.com/deye-exporter/pkg/logger"
)

// mockFatalHook 捕获 fatal 日志（不退出进程）
type mockFatalHook struct {
	called bool
}

func (h *mockFatalHook) Hook(e zapcore.Entry) error {
	if e.Level == zapcore.FatalLevel {
		h.called = true
	}
	return nil
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, logger.ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, logger.ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, logger.ParseLevel(" err "))
	assert.Equal(t, zapcore.InfoLevel, logger.ParseLevel("whatever"))
}

func TestLoggerLevels(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.ZapLogConfig{
		Level:   "debug",
		Format:  "console",
		Path:    dir,
		MaxSize: 10,
		MaxAge:  1,
	}

	_, err := logger.InitLogger(cfg)
	require.NoError(t, err)

	logger.SetDefaultComponent("test")
	assert.Equal(t, "test", logger.GetDefaultComponent())

	// 普通日志
	logger.Debug("debug msg")
	logger.Info("info msg", logger.Component("scheduler"))
	logger.Warn("warn msg", zap.String("register", "BatterySOC"))
	logger.Error("error msg")

	// Panic 测试
	assert.Panics(t, func() { logger.Panic("panic msg") })

	// Fatal 测试（使用 zap.Hooks，不触发 os.Exit）
	hook := &mockFatalHook{}
	l := logger.GetGlobalLogger().WithOptions(zap.Hooks(hook.Hook), zap.WithFatalHook(zapcore.WriteThenPanic))
	assert.Panics(t, func() { l.Fatal("fatal msg") })
	assert.True(t, hook.called, "fatal hook was not triggered")

	_ = logger.Sync()

	files, err := filepath.Glob(filepath.Join(dir, "deye-exporter-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	content, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"warn msg"`)
	assert.Contains(t, string(content), `"component":"scheduler"`)
	assert.Contains(t, string(content), `"component":"test"`)
	assert.Contains(t, string(content), `"register":"BatterySOC"`)
}
