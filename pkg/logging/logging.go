// Package logging 提供基于 zerolog 的全局结构化日志。
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Ctx(ctx).Warn().Err(err).Msg("recall source failed")
//
// 未调用 Init 时默认 info 级别、JSON 输出到 stderr。
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config 是日志配置。
type Config struct {
	Level  string    `koanf:"level" yaml:"level"`   // trace/debug/info/warn/error/disabled
	Format string    `koanf:"format" yaml:"format"` // json/console
	Output io.Writer `koanf:"-" yaml:"-"`
}

var (
	mu  sync.RWMutex
	log zerolog.Logger
)

func init() {
	initLogger(Config{})
}

// Init 重新配置全局 logger，可重复调用。
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	out := cfg.Output
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}
	log = zerolog.New(out).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger 返回全局 logger。
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// SetLogger 替换全局 logger（测试用）。
func SetLogger(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	log = l
}

func Debug() *zerolog.Event { l := Logger(); return l.Debug() }
func Info() *zerolog.Event  { l := Logger(); return l.Info() }
func Warn() *zerolog.Event  { l := Logger(); return l.Warn() }
func Error() *zerolog.Event { l := Logger(); return l.Error() }
func Fatal() *zerolog.Event { l := Logger(); return l.Fatal() }

// ========== context ==========

type contextKey string

const requestIDKey contextKey = "request_id"

// NewRequestID 生成请求 ID。
func NewRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID 在 ctx 中写入请求 ID。
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext 读取请求 ID，不存在返回空串。
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx 返回带有 request_id 字段的 logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	l := Logger()
	if id := RequestIDFromContext(ctx); id != "" {
		l = l.With().Str("request_id", id).Logger()
	}
	return &l
}
