package xlog

import (
	"context"
	"io"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"
)

var (
	_ Logger          = (*xlogger)(nil)
	_ LoggerWithLevel = (*xlogger)(nil)
)

const (
	initialStackSize = 4096
	maxStackSize     = 64 * 1024
)

// xlogger Logger 接口的实现
type xlogger struct {
	handler    slog.Handler
	levelVar   *slog.LevelVar
	addSource  bool
	errorCount *atomic.Uint64 // Handler.Handle 失败次数，派生 logger 共享
}

//go:noinline
func (l *xlogger) log(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	if !l.handler.Enabled(ctx, level) {
		return
	}
	var pc uintptr
	if l.addSource {
		var pcs [1]uintptr
		// Callers → log → Debug/Info/… → 调用方
		runtime.Callers(3, pcs[:])
		pc = pcs[0]
	}
	r := slog.NewRecord(time.Now(), level, msg, pc)
	r.AddAttrs(attrs...)
	if err := l.handler.Handle(ctx, r); err != nil {
		l.errorCount.Add(1)
	}
}

func (l *xlogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelDebug, msg, attrs)
}

func (l *xlogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelInfo, msg, attrs)
}

func (l *xlogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelWarn, msg, attrs)
}

func (l *xlogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	l.log(ctx, slog.LevelError, msg, attrs)
}

// Stack 记录带完整堆栈的错误日志
//
//go:noinline
func (l *xlogger) Stack(ctx context.Context, msg string, attrs ...slog.Attr) {
	if !l.handler.Enabled(ctx, slog.LevelError) {
		return
	}
	buf := make([]byte, initialStackSize)
	n := runtime.Stack(buf, false)
	// 缓冲区写满说明可能被截断，翻倍重试直到上限
	for n == len(buf) && len(buf) < maxStackSize {
		buf = make([]byte, min(len(buf)*2, maxStackSize))
		n = runtime.Stack(buf, false)
	}
	withStack := make([]slog.Attr, 0, len(attrs)+1)
	withStack = append(withStack, attrs...)
	withStack = append(withStack, slog.String(KeyStack, string(buf[:n])))
	l.log(ctx, slog.LevelError, msg, withStack)
}

func (l *xlogger) With(attrs ...slog.Attr) Logger {
	if len(attrs) == 0 {
		return l
	}
	return &xlogger{
		handler:    l.handler.WithAttrs(attrs),
		levelVar:   l.levelVar,
		addSource:  l.addSource,
		errorCount: l.errorCount,
	}
}

func (l *xlogger) WithGroup(name string) Logger {
	if name == "" {
		return l
	}
	return &xlogger{
		handler:    l.handler.WithGroup(name),
		levelVar:   l.levelVar,
		addSource:  l.addSource,
		errorCount: l.errorCount,
	}
}

func (l *xlogger) SetLevel(level Level) {
	l.levelVar.Set(slog.Level(level))
}

func (l *xlogger) GetLevel() Level {
	return Level(l.levelVar.Level())
}

func (l *xlogger) Enabled(ctx context.Context, level Level) bool {
	return l.handler.Enabled(ctx, slog.Level(level))
}

// Discard 返回丢弃全部输出的 Logger
func Discard() LoggerWithLevel {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelError + 1)
	return &xlogger{
		handler:    slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: lv}),
		levelVar:   lv,
		errorCount: new(atomic.Uint64),
	}
}

// OrDiscard 在 l 为 nil 时返回 Discard()
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard()
	}
	return l
}
