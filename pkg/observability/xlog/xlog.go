package xlog

import (
	"context"
	"log/slog"
)

// Logger 引擎各组件共用的日志接口，属性只接受 slog.Attr（见 [Resource]、[Bucket] 等）
type Logger interface {
	Debug(ctx context.Context, msg string, attrs ...slog.Attr)
	Info(ctx context.Context, msg string, attrs ...slog.Attr)
	Warn(ctx context.Context, msg string, attrs ...slog.Attr)
	Error(ctx context.Context, msg string, attrs ...slog.Attr)

	// Stack 记录带当前 goroutine 调用栈的错误日志，用于 panic 恢复等诊断场景
	Stack(ctx context.Context, msg string, attrs ...slog.Attr)

	// With 返回带额外属性的派生 Logger，派生 logger 共享父级的 LevelVar
	With(attrs ...slog.Attr) Logger

	// WithGroup 返回带分组的派生 Logger
	WithGroup(name string) Logger
}

// Leveler 级别控制，配置热加载时通过 SetLevel 调整
type Leveler interface {
	SetLevel(level Level)
	GetLevel() Level
	Enabled(ctx context.Context, level Level) bool
}

// LoggerWithLevel 组合接口：Logger + Leveler
type LoggerWithLevel interface {
	Logger
	Leveler
}
