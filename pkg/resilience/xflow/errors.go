package xflow

import "errors"

var (
	// ErrInvalidRetention 保留时长必须不小于一个时间桶
	ErrInvalidRetention = errors.New("xflow: retention must be at least one bucket")

	// ErrInvalidSchedule 定时表达式无法解析
	ErrInvalidSchedule = errors.New("xflow: invalid schedule")

	// ErrAlreadyRunning Run 只能同时运行一个实例
	ErrAlreadyRunning = errors.New("xflow: background jobs already running")
)
