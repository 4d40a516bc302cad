package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/deye-exporter/pkg/config"
	"github.com/deye-exporter/pkg/goid"
)

type Logger = zap.Logger

const timeLayout = "2006-01-02 15:04:05.000 -07:00"

var (
	mu            sync.RWMutex
	baseLogger    = zap.NewNop()
	initialized   bool
	defaultFields = struct {
		Component string
	}{Component: "main"}
)

// ParseLevel 解析日志级别，兼容缩写，未知值按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dbg", "debug":
		return zapcore.DebugLevel
	case "war", "warn", "warning":
		return zapcore.WarnLevel
	case "err", "error":
		return zapcore.ErrorLevel
	case "pan", "panic":
		return zapcore.PanicLevel
	case "fat", "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger 初始化全局日志：控制台（stdout）+ 可选按天轮转的 JSON 文件
func InitLogger(cfg *config.ZapLogConfig) (*Logger, error) {
	level := ParseLevel(cfg.Level)

	cores := []zapcore.Core{
		zapcore.NewCore(stdoutEncoder(cfg.Format), zapcore.AddSync(os.Stdout), level),
	}

	if strings.TrimSpace(cfg.Path) != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", cfg.Path, err)
		}
		writer, err := rotatelogs.New(
			filepath.Join(cfg.Path, "deye-exporter-%Y%m%d.log"),
			rotatelogs.WithMaxAge(time.Duration(cfg.MaxAge)*24*time.Hour),
			rotatelogs.WithRotationTime(24*time.Hour),
			rotatelogs.WithRotationSize(int64(cfg.MaxSize)*1024*1024),
		)
		if err != nil {
			return nil, fmt.Errorf("open rotating log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(jsonEncoder(), zapcore.AddSync(writer), level))
	}

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(2), zap.AddStacktrace(zapcore.ErrorLevel))

	mu.Lock()
	baseLogger = l
	initialized = true
	mu.Unlock()
	return l, nil
}

func stdoutEncoder(format string) zapcore.Encoder {
	if format == "json" {
		return jsonEncoder()
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.ConsoleSeparator = " "
	// 控制台彩色时间
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(fmt.Sprintf("\033[34m%s\033[0m", t.Format(timeLayout)))
	}
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	// Caller 两级路径
	cfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		rel := filepath.Join(filepath.Base(filepath.Dir(c.File)), filepath.Base(c.File))
		enc.AppendString(fmt.Sprintf("%s:%d", rel, c.Line))
	}
	return zapcore.NewConsoleEncoder(cfg)
}

func jsonEncoder() zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format(timeLayout))
	}
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// SetDefaultComponent 设置默认 component 字段（未显式指定时使用）
func SetDefaultComponent(component string) {
	mu.Lock()
	defer mu.Unlock()
	defaultFields.Component = component
}

func GetDefaultComponent() string {
	mu.RLock()
	defer mu.RUnlock()
	return defaultFields.Component
}

func current() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return baseLogger
}

func log(level zapcore.Level, msg string, fields ...zap.Field) {
	l := current()
	if ce := l.Check(level, msg); ce != nil {
		merged := make([]zap.Field, 0, len(fields)+2)
		if !hasComponent(fields) {
			merged = append(merged, zap.String("component", GetDefaultComponent()))
		}
		merged = append(merged, zap.String("goid", strconv.FormatUint(goid.GetGID(), 10)))
		ce.Write(append(merged, fields...)...)
	}
}

func hasComponent(fields []zap.Field) bool {
	for _, f := range fields {
		if f.Key == "component" {
			return true
		}
	}
	return false
}

// Component 返回带 component 字段的字段，用于覆盖默认值
func Component(name string) zap.Field {
	return zap.String("component", name)
}

func Debug(msg string, fields ...zap.Field) { log(zapcore.DebugLevel, msg, fields...) }
func Info(msg string, fields ...zap.Field)  { log(zapcore.InfoLevel, msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { log(zapcore.WarnLevel, msg, fields...) }
func Error(msg string, fields ...zap.Field) { log(zapcore.ErrorLevel, msg, fields...) }
func Panic(msg string, fields ...zap.Field) { log(zapcore.PanicLevel, msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { log(zapcore.FatalLevel, msg, fields...) }

// Sync 刷盘，未初始化时为空操作
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		return nil
	}
	return baseLogger.Sync()
}

// GetGlobalLogger 返回全局 zap.Logger（未初始化时为 Nop）
func GetGlobalLogger() *Logger {
	return current()
}
