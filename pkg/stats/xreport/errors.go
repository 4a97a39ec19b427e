package xreport

import "errors"

var (
	// ErrNilSource 统计来源为空
	ErrNilSource = errors.New("xreport: nil source")

	// ErrNilSink 投递目标为空
	ErrNilSink = errors.New("xreport: nil sink")

	// ErrNilConfig Kafka 配置为空
	ErrNilConfig = errors.New("xreport: nil kafka config")

	// ErrInvalidWidth 窗口宽度必须为正的整秒
	ErrInvalidWidth = errors.New("xreport: window width must be at least one second")

	// ErrInvalidDelay 导出滞后不能为负
	ErrInvalidDelay = errors.New("xreport: negative delay")

	// ErrInvalidSchedule 定时表达式无法解析
	ErrInvalidSchedule = errors.New("xreport: invalid schedule")

	// ErrAlreadyRunning Run 只能同时运行一个实例
	ErrAlreadyRunning = errors.New("xreport: already running")
)
