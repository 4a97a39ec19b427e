package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	DefaultMaxSizeMB  = 500
	DefaultMaxBackups = 7
	DefaultMaxAgeDays = 30
)

// RotationConfig 文件轮转配置，零值字段使用默认值
type RotationConfig struct {
	MaxSizeMB  int  `koanf:"max_size_mb"`
	MaxBackups int  `koanf:"max_backups"`
	MaxAgeDays int  `koanf:"max_age_days"`
	Compress   bool `koanf:"compress"`
}

// Builder 日志配置构建器
type Builder struct {
	output    io.Writer
	levelVar  *slog.LevelVar
	format    string
	addSource bool
	attrs     []slog.Attr
	rotator   *lumberjack.Logger
	err       error
}

// New 创建配置构建器，默认 stderr、Info 级别、text 格式
func New() *Builder {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: lv,
		format:   "text",
	}
}

func (b *Builder) SetOutput(w io.Writer) *Builder {
	if b.err == nil && w != nil {
		b.output = w
	}
	return b
}

func (b *Builder) SetLevel(level Level) *Builder {
	if b.err == nil {
		b.levelVar.Set(slog.Level(level))
	}
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	if b.err != nil {
		return b
	}
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetFormat 设置输出格式：text 或 json，空值视为 text
func (b *Builder) SetFormat(format string) *Builder {
	if b.err != nil {
		return b
	}
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = f
	default:
		b.err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return b
}

func (b *Builder) SetAddSource(enable bool) *Builder {
	b.addSource = enable
	return b
}

// SetAttrs 设置固定属性（如节点名），Build 时一次性注入
func (b *Builder) SetAttrs(attrs ...slog.Attr) *Builder {
	b.attrs = append(b.attrs, attrs...)
	return b
}

// SetRotation 输出到 filename 并按 cfg 轮转
func (b *Builder) SetRotation(filename string, cfg RotationConfig) *Builder {
	if b.err != nil {
		return b
	}
	if strings.TrimSpace(filename) == "" {
		b.err = ErrEmptyFilename
		return b
	}
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = DefaultMaxSizeMB
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = DefaultMaxBackups
	}
	if cfg.MaxAgeDays <= 0 {
		cfg.MaxAgeDays = DefaultMaxAgeDays
	}
	b.rotator = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	b.output = b.rotator
	return b
}

// Build 构建 Logger 实例
//
// 返回值：
//   - LoggerWithLevel: 日志实例，同时支持动态级别控制
//   - func() error: 清理函数，用于关闭轮转文件，可重复调用
//   - error: 配置错误
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}
	opts := &slog.HandlerOptions{Level: b.levelVar, AddSource: b.addSource}

	var handler slog.Handler
	if b.format == "json" {
		handler = slog.NewJSONHandler(b.output, opts)
	} else {
		handler = slog.NewTextHandler(b.output, opts)
	}
	if len(b.attrs) > 0 {
		handler = handler.WithAttrs(b.attrs)
	}

	logger := &xlogger{
		handler:    handler,
		levelVar:   b.levelVar,
		addSource:  b.addSource,
		errorCount: new(atomic.Uint64),
	}

	var once sync.Once
	rotator := b.rotator
	cleanup := func() error {
		var err error
		once.Do(func() {
			if rotator != nil {
				err = rotator.Close()
			}
		})
		return err
	}
	return logger, cleanup, nil
}
