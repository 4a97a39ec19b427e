package xrun

import (
	"context"
	"os"
	"syscall"
)

// DefaultSignals 默认监听的退出信号
func DefaultSignals() []os.Signal {
	return []os.Signal{
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	}
}

// testSigChanKey 测试中通过 context 注入信号通道，避免发送真实信号
type testSigChanKey struct{}

func testSigChan(ctx context.Context) <-chan os.Signal {
	c, _ := ctx.Value(testSigChanKey{}).(<-chan os.Signal)
	return c
}

func withTestSigChan(ctx context.Context, c <-chan os.Signal) context.Context {
	return context.WithValue(ctx, testSigChanKey{}, c)
}
