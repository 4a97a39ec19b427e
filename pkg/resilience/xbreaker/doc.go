// Package xbreaker 提供按资源维护的熔断器注册表。
//
// 每个熔断资源（只包含 service 与 path 的资源 ID）按规则创建一个
// [sony/gobreaker/v2] 两阶段熔断器。Registry 实现 xflow.CircuitBreaker：
//
//   - Permit：向熔断器申请许可，结果回调排队等待上报
//   - Observe：按先进先出上报一次结果
//   - CorrectState：每秒读取状态，驱动 open → half-open 的时间迁移
//
// # 熔断策略
//
// 规则的 Strategy 映射为 TripPolicy：
//   - total_errors：FailureCountPolicy
//   - errors_ratio：FailureRatioPolicy
//   - consecutive_errors：ConsecutiveFailuresPolicy
//
// 统计窗口为 MonitorDuration，按 1 秒分桶滚动。
//
// [sony/gobreaker/v2]: https://github.com/sony/gobreaker
package xbreaker
