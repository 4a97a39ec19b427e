package xrun

import (
	"errors"
	"fmt"
	"os"
)

// ErrSignal 因收到系统信号而终止，使用 errors.Is(err, ErrSignal) 判断
var ErrSignal = errors.New("received signal")

// ErrNilService 注册了 nil 服务
var ErrNilService = errors.New("xrun: service cannot be nil")

// SignalError 携带触发终止的信号，RunServices 收到信号时返回
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Is 支持 errors.Is(err, ErrSignal)
func (e *SignalError) Is(target error) bool {
	return target == ErrSignal
}

func (e *SignalError) Unwrap() error {
	return ErrSignal
}
