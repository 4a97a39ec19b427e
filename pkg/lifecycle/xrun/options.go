package xrun

import (
	"os"

	"github.com/omeyang/xflow/pkg/observability/xlog"
)

// Option 配置 Group 的选项函数
type Option func(*groupOptions)

type groupOptions struct {
	logger          xlog.Logger
	name            string
	signals         []os.Signal
	noSignalHandler bool
}

func defaultOptions() *groupOptions {
	return &groupOptions{
		logger: xlog.Discard(),
		name:   "xrun",
	}
}

// WithLogger 设置日志，记录服务启动、退出与信号
func WithLogger(logger xlog.Logger) Option {
	return func(o *groupOptions) {
		o.logger = xlog.OrDiscard(logger)
	}
}

// WithName 设置 Group 名称，默认 "xrun"
func WithName(name string) Option {
	return func(o *groupOptions) {
		if name != "" {
			o.name = name
		}
	}
}

// WithSignals 设置 RunServices 监听的信号，默认 DefaultSignals()
func WithSignals(signals ...os.Signal) Option {
	copied := append([]os.Signal(nil), signals...)
	return func(o *groupOptions) {
		o.signals = copied
	}
}

// WithoutSignalHandler 禁用信号处理，由调用方通过 ctx 控制退出
func WithoutSignalHandler() Option {
	return func(o *groupOptions) {
		o.noSignalHandler = true
	}
}
