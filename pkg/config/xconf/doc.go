// Package xconf 基于 koanf 加载 YAML/JSON 配置文件，支持热重载。
//
// 网关的引擎参数、熔断规则、限流规则与上报配置都是同一个文件的不同小节，
// 通过 [Load] 直接反序列化到各包的配置结构体（koanf 标签）。
//
// # 并发安全
//
// Reload 解析成功后原子替换 koanf 实例，解析失败时保留旧配置。
// Client 返回的实例在 Reload 后仍可用，但数据是旧的。
//
// # 配置监视
//
// [Watcher] 监视配置文件所在目录（兼容编辑器的原子写入），
// 防抖后重载并回调。Run 阻塞直到 ctx 取消，可直接作为 xrun 的服务运行。
package xconf
