// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是全局的基础 logger，Init 之后所有包通过 Ctx 获取它的副本。
// 未 Init 时也可用（比如测试里），只是缺少 service 字段。
var Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 初始化全局 logger。service 会作为固定字段出现在每条日志里。
func Init(service string) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", service).
		Logger()
}

// Ctx 返回一个携带了当前 trace 上下文的 logger。
// 如果 ctx 中存在有效的 span，日志会自动带上 trace_id / span_id，
// 便于在 Jaeger 和日志系统之间互相跳转。
func Ctx(ctx context.Context) *zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return &Logger
	}
	l := Logger.With().
		Str("trace_id", sc.TraceID().String()).
		Str("span_id", sc.SpanID().String()).
		Logger()
	return &l
}
