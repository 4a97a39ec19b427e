package main

import (
	"fmt"
	"io"
	"time"

	"github.com/omeyang/xflow/pkg/config/xconf"
	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/resilience/xbreaker"
	"github.com/omeyang/xflow/pkg/resilience/xflow"
	"github.com/omeyang/xflow/pkg/resilience/xquota"
	"github.com/omeyang/xflow/pkg/stats/xreport"
)

// 配置文件各小节的路径
const (
	quotaRulesPath   = "quota.rules"
	breakerRulesPath = "breaker.rules"
)

// appConfig 配置文件的完整结构
type appConfig struct {
	Log      logConfig      `koanf:"log"`
	Flow     xflow.Config   `koanf:"flow"`
	Breaker  breakerConfig  `koanf:"breaker"`
	Quota    quotaConfig    `koanf:"quota"`
	Report   reportConfig   `koanf:"report"`
	Simulate simulateConfig `koanf:"simulate"`
}

type logConfig struct {
	Level    string              `koanf:"level"`
	Format   string              `koanf:"format"`
	File     string              `koanf:"file"`
	Rotation xlog.RotationConfig `koanf:"rotation"`
}

type breakerConfig struct {
	Capacity int             `koanf:"capacity"`
	Rules    []xbreaker.Rule `koanf:"rules"`
}

type quotaConfig struct {
	Rules []xquota.Rule `koanf:"rules"`
}

// reportConfig Sink 为空或 none 时不导出
type reportConfig struct {
	xreport.Config `koanf:",squash"`

	Sink  string `koanf:"sink"`
	Queue string `koanf:"queue"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
		DB       int    `koanf:"db"`
	} `koanf:"redis"`

	Kafka struct {
		Brokers string `koanf:"brokers"`
	} `koanf:"kafka"`

	Pulsar struct {
		URL string `koanf:"url"`
	} `koanf:"pulsar"`
}

// trafficProfile 一类合成请求
type trafficProfile struct {
	App       string        `koanf:"app"`
	IP        string        `koanf:"ip"`
	Service   string        `koanf:"service"`
	Path      string        `koanf:"path"`
	Weight    int           `koanf:"weight"`
	ErrorRate float64       `koanf:"error_rate"`
	Latency   time.Duration `koanf:"latency"`
}

type simulateConfig struct {
	Traffic []trafficProfile `koanf:"traffic"`
}

// defaultTraffic 配置未给出 simulate.traffic 时使用
var defaultTraffic = []trafficProfile{
	{App: "crm", IP: "10.0.0.1", Service: "order", Path: "/pay", Weight: 3, ErrorRate: 0.05, Latency: 20 * time.Millisecond},
	{App: "crm", IP: "10.0.0.2", Service: "order", Path: "/list", Weight: 5, Latency: 5 * time.Millisecond},
	{App: "erp", IP: "10.0.0.3", Service: "user", Path: "/info", Weight: 2, ErrorRate: 0.5, Latency: 10 * time.Millisecond},
}

func loadAppConfig(path string) (xconf.Config, appConfig, error) {
	cfg, err := xconf.New(path)
	if err != nil {
		return nil, appConfig{}, err
	}
	app, err := xconf.Load[appConfig](cfg, "")
	if err != nil {
		return nil, appConfig{}, err
	}
	return cfg, app, nil
}

func (c logConfig) build() (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New()
	if c.Level != "" {
		b.SetLevelString(c.Level)
	}
	if c.Format != "" {
		b.SetFormat(c.Format)
	}
	if c.File != "" {
		b.SetRotation(c.File, c.Rotation)
	}
	return b.Build()
}

// validate 构建各组件以校验配置，不启动任何后台任务
func (c appConfig) validate() error {
	_, cleanup, err := c.Log.build()
	if err != nil {
		return fmt.Errorf("log: %w", err)
	}
	_ = cleanup()
	fs, err := xflow.New(xflow.WithConfig(c.Flow))
	if err != nil {
		return fmt.Errorf("flow: %w", err)
	}
	rep, err := xreport.New(fs, newWriterSink(io.Discard), xreport.WithConfig(c.Report.Config))
	_ = fs.Close()
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if rep.Delay() >= fs.Retention() {
		return fmt.Errorf("report: delay %s must be shorter than flow retention %s", rep.Delay(), fs.Retention())
	}
	if _, err := xbreaker.New(c.Breaker.Rules); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if _, err := xquota.New(c.Quota.Rules); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	switch c.Report.Sink {
	case "", sinkNone, sinkStdout, sinkRedis, sinkKafka, sinkPulsar:
	default:
		return fmt.Errorf("report: unknown sink %q", c.Report.Sink)
	}
	for i, p := range c.Simulate.Traffic {
		if p.Weight < 0 || p.ErrorRate < 0 || p.ErrorRate > 1 || p.Latency < 0 {
			return fmt.Errorf("simulate: traffic %d: invalid weight, error_rate or latency", i)
		}
	}
	return nil
}
