package xreport

import (
	"time"

	"github.com/omeyang/xflow/pkg/observability/xlog"
)

const (
	// DefaultSchedule 默认每 10 秒导出一次
	DefaultSchedule = "@every 10s"

	// DefaultWidthSec 默认子窗口宽度（秒）
	DefaultWidthSec = 1

	// DefaultAttempts 单个批次的默认投递次数
	DefaultAttempts = 3

	// DefaultRetryDelay 重试的初始退避
	DefaultRetryDelay = 200 * time.Millisecond

	// DefaultDelay 导出窗口相对当前时间的滞后。请求完成时结果记入准入时的时间桶，
	// 窗口需等在途请求基本完成后再导出。
	DefaultDelay = 10 * time.Second
)

// Config 导出配置，可由 xconf 直接反序列化
type Config struct {
	Schedule   string        `koanf:"schedule"`
	WidthSec   int64         `koanf:"width_sec"`
	Node       string        `koanf:"node"`
	Attempts   uint          `koanf:"attempts"`
	RetryDelay time.Duration `koanf:"retry_delay"`
	Delay      time.Duration `koanf:"delay"`
}

// Option 配置选项
type Option func(*options)

type options struct {
	schedule   string
	widthSec   int64
	node       string
	attempts   uint
	retryDelay time.Duration
	delay      time.Duration
	logger     xlog.Logger
	now        func() time.Time
}

func defaultOptions() *options {
	return &options{
		schedule:   DefaultSchedule,
		widthSec:   DefaultWidthSec,
		attempts:   DefaultAttempts,
		retryDelay: DefaultRetryDelay,
		delay:      DefaultDelay,
		logger:     xlog.Discard(),
		now:        time.Now,
	}
}

// WithConfig 应用配置文件中的非零字段
func WithConfig(c Config) Option {
	return func(o *options) {
		if c.Schedule != "" {
			o.schedule = c.Schedule
		}
		if c.WidthSec != 0 {
			o.widthSec = c.WidthSec
		}
		if c.Node != "" {
			o.node = c.Node
		}
		if c.Attempts != 0 {
			o.attempts = c.Attempts
		}
		if c.RetryDelay != 0 {
			o.retryDelay = c.RetryDelay
		}
		if c.Delay != 0 {
			o.delay = c.Delay
		}
	}
}

// WithSchedule 导出的 cron 表达式，支持秒字段
func WithSchedule(spec string) Option {
	return func(o *options) {
		o.schedule = spec
	}
}

// WithWidth 子窗口宽度（秒）
func WithWidth(sec int64) Option {
	return func(o *options) {
		o.widthSec = sec
	}
}

// WithDelay 导出窗口的滞后，窗口结束时间不晚于 now - d。
// 应小于引擎的时间桶保留时长，否则窗口在导出前已被清理。
func WithDelay(d time.Duration) Option {
	return func(o *options) {
		o.delay = d
	}
}

// WithNode 写入 Snapshot.Node 的节点名，默认取主机名
func WithNode(name string) Option {
	return func(o *options) {
		o.node = name
	}
}

// WithRetry 设置投递次数与初始退避，attempts 为 0 时保持默认
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *options) {
		if attempts > 0 {
			o.attempts = attempts
		}
		if delay > 0 {
			o.retryDelay = delay
		}
	}
}

func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		o.logger = xlog.OrDiscard(l)
	}
}

// WithClock 替换时钟，用于测试
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}
