// Package xreport 定时导出 xflow 的资源统计。
//
// Reporter 按 cron 表达式运行，每轮把上次导出之后完整的统计窗口打包成一个
// Snapshot，序列化为 JSON 后交给 Sink 投递。Sink 支持 Redis 列表、Kafka 与 Pulsar。
//
// 导出区间按窗口宽度对齐，不足一个宽度的尾部留到下一轮，相邻两轮的区间首尾相接。
// 投递失败按退避重试，最终失败只记录日志，不影响后续轮次。
//
//	rep, _ := xreport.New(fs, xreport.NewRedisSink(client, ""))
//	go rep.Run(ctx)
package xreport
