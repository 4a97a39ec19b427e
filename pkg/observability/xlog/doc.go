// Package xlog 基于 log/slog 的结构化日志库。
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续 Set 操作被跳过）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetFormat("json").
//		SetRotation("/var/log/gateway/flow.log", xlog.RotationConfig{MaxSizeMB: 100}).
//		Build()
//	defer cleanup()
//
// Build 返回 [LoggerWithLevel]，支持运行时调整级别；cleanup 负责关闭轮转文件。
//
// # 便捷属性
//
// [Err]、[Component]、[Duration]、[Count]，以及流控场景常用的
// [Resource]、[Bucket]、[BlockType]。
//
// # 空 Logger
//
// [Discard] 返回丢弃全部输出的 Logger，作为库内默认值，避免 nil 检查。
package xlog
