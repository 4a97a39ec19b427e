// Package xrun 基于 errgroup 管理网关后台服务的运行与协调关闭。
//
// 引擎的清理与采样任务、配置监视与统计上报都实现了 [Service]，
// 由 [RunServices] 统一运行：任一服务出错或收到退出信号时，
// 其余服务的 ctx 被取消。
//
//	err := xrun.RunServices(ctx, []xrun.Option{xrun.WithLogger(logger)},
//	    xrun.Named("flow", fs),
//	    xrun.Named("reporter", reporter),
//	)
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常退出
//	}
package xrun
