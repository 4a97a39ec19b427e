// Package util 提供通用工具相关的子包。
//
// 子包列表：
//   - xresid: 资源 ID 编解码，格式为 app^ip^node^service^path
package util
