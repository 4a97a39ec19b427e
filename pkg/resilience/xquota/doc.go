// Package xquota 管理限流规则，并为每个请求解析出 xflow 的准入链。
//
// 准入链由外到内依次为：
//
//  1. 节点资源（未配置时不限制）
//  2. 服务资源（未单独配置时使用 service_default 规则的阈值）
//  3. 服务×接口
//  4. 应用（未单独配置时使用 app_default 规则的阈值）、应用×服务、应用×服务×接口
//  5. IP、IP×服务、IP×服务×接口
//
// 除节点与服务外，只有配置了启用规则的资源才会出现在链中。
// 规则以快照整体替换，可随配置文件热更新。
package xquota
