// Package xflow 网关进程内的流量准入与统计引擎。
//
// 每个资源（节点、应用、服务、接口、来源 IP 及其组合）维护一组按秒划分的
// 时间桶，记录请求数、并发峰值、耗时、错误、拦截与状态码分布。
// 请求进入时，网关按由外到内的顺序构造资源链 [Chain]，
// 由 [FlowStat] 在一把引擎级互斥锁内完成"全部检查、全部提交"：
// 任一资源超过并发或 QPS 上限即拦截，且不修改任何计数。
// 请求完成后按由内到外的顺序释放并记录耗时与状态码。
//
// # 基本用法
//
//	fs, err := xflow.New(xflow.WithLogger(logger), xflow.WithCircuitBreaker(breakers))
//	go fs.Run(ctx) // 过期清理与每秒采样
//
//	token, res := fs.AcquireWithBreaker(chain)
//	if !res.Allowed {
//	    // res.BlockedResourceID / res.BlockType
//	    return
//	}
//	defer token.Release(rt, success, status)
//
// [Token.Release] 幂等，保证一次准入恰好对应一次释放。
// 也可以直接使用 [FlowStat.CheckAdmission] 与 [FlowStat.Release]
// （或 [FlowStat.CheckAdmissionWithBreaker] 与 [FlowStat.ReleaseWithBreaker]），
// 此时由调用方保证成对调用、且使用相同的资源链与时间桶。
//
// 请求耗时超过保留时长时，准入时间桶可能已被清理，此时释放只归还并发，结果不再计入统计。
//
// # 查询
//
// [FlowStat.WindowStat] 聚合 [start, end) 内的时间桶；
// [FlowStat.SeriesStat] 按固定宽度切分为连续子窗口；
// [FlowStat.ResourceSeries] 返回全部资源的子窗口序列，用于周期上报。
//
// # 后台任务
//
// [FlowStat.Run] 启动两个定时任务：每 10 秒清理超过保留时长（默认 5 分钟）的时间桶
// 并回收空闲资源；每个整秒为仍有在途请求的资源补齐当前时间桶，
// 并驱动熔断器的时间相关状态迁移。任务内 panic 会被恢复并记录，不会退出。
package xflow
