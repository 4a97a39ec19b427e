package xflow

import (
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/omeyang/xflow/pkg/observability/xlog"
)

const (
	// DefaultRetention 时间桶默认保留时长
	DefaultRetention = 5 * time.Minute

	// DefaultEvictionSchedule 默认清理周期
	DefaultEvictionSchedule = "@every 10s"

	// DefaultSampleSchedule 每个整秒采样一次（秒级 cron 表达式）
	DefaultSampleSchedule = "* * * * * *"

	// reapAfterSweeps 资源连续空闲的清理轮数达到该值后回收
	reapAfterSweeps = 2
)

// Config 引擎配置，可由 xconf 直接反序列化
type Config struct {
	Retention        time.Duration `koanf:"retention"`
	EvictionSchedule string        `koanf:"eviction_schedule"`
	SampleSchedule   string        `koanf:"sample_schedule"`
	Shards           int           `koanf:"shards"`
}

// Option 配置选项
type Option func(*options)

type options struct {
	retention        time.Duration
	evictionSchedule string
	sampleSchedule   string
	shards           int
	breaker          CircuitBreaker
	logger           xlog.Logger
	meterProvider    metric.MeterProvider
	now              func() time.Time
}

func defaultOptions() *options {
	return &options{
		retention:        DefaultRetention,
		evictionSchedule: DefaultEvictionSchedule,
		sampleSchedule:   DefaultSampleSchedule,
		shards:           defaultShardCount,
		breaker:          noopBreaker{},
		logger:           xlog.Discard(),
		now:              time.Now,
	}
}

// WithConfig 应用配置文件中的非零字段
func WithConfig(c Config) Option {
	return func(o *options) {
		if c.Retention != 0 {
			o.retention = c.Retention
		}
		if c.EvictionSchedule != "" {
			o.evictionSchedule = c.EvictionSchedule
		}
		if c.SampleSchedule != "" {
			o.sampleSchedule = c.SampleSchedule
		}
		if c.Shards > 0 {
			o.shards = c.Shards
		}
	}
}

// WithRetention 设置时间桶保留时长，运行期可通过 SetRetention 修改
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		o.retention = d
	}
}

// WithEvictionSchedule 清理任务的 cron 表达式（支持秒字段与 @every）
func WithEvictionSchedule(spec string) Option {
	return func(o *options) {
		o.evictionSchedule = spec
	}
}

func WithSampleSchedule(spec string) Option {
	return func(o *options) {
		o.sampleSchedule = spec
	}
}

// WithShards 资源表分片数
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithCircuitBreaker 设置熔断器，nil 表示不熔断
func WithCircuitBreaker(cb CircuitBreaker) Option {
	return func(o *options) {
		if cb == nil {
			cb = noopBreaker{}
		}
		o.breaker = cb
	}
}

func WithLogger(l xlog.Logger) Option {
	return func(o *options) {
		o.logger = xlog.OrDiscard(l)
	}
}

// WithMeterProvider 设置 OpenTelemetry MeterProvider，nil 表示不采集指标
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
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
