// Package xresid 提供流控资源 ID 的编解码。
//
// 资源 ID 由五个可选字段按固定顺序以 '^' 拼接：
//
//	app^ip^node^service^path
//
// 空字段保留位置（相邻分隔符），因此任何资源 ID 都恰好包含四个分隔符。
// path 位于最后，允许包含 '^'；其余字段不得包含分隔符。
//
// 常用资源：
//   - [NodeResource]: 网关节点全局资源 "^^_global^^"
//   - [ServiceDefaultResource]: 服务默认限流规则 "^^^service_default^"
//   - [AppDefaultResource]: 应用默认限流规则 "app_default^^^^"
package xresid

import (
	"errors"
	"fmt"
	"strings"
)

// Delimiter 字段分隔符
const Delimiter = '^'

const fieldCount = 5

const (
	Node           = "_global"
	ServiceDefault = "service_default"
	AppDefault     = "app_default"
)

var (
	NodeResource           = Build("", "", Node, "", "")
	ServiceDefaultResource = Build("", "", "", ServiceDefault, "")
	AppDefaultResource     = Build(AppDefault, "", "", "", "")
)

var (
	// ErrMalformed 资源 ID 分隔符不足四个
	ErrMalformed = errors.New("xresid: malformed resource id")

	// ErrInvalidField app、ip、node、service 字段包含分隔符
	ErrInvalidField = errors.New("xresid: field contains delimiter")
)

// Key 资源 ID 的结构化形式，空字符串表示该字段缺省
type Key struct {
	App     string
	IP      string
	Node    string
	Service string
	Path    string
}

// String 等价于 BuildKey(k)
func (k Key) String() string {
	return BuildKey(k)
}

// Validate 检查除 path 外的字段不含分隔符，满足时 Parse(BuildKey(k)) == k
func (k Key) Validate() error {
	for _, f := range [...]struct{ name, value string }{
		{"app", k.App}, {"ip", k.IP}, {"node", k.Node}, {"service", k.Service},
	} {
		if strings.IndexByte(f.value, Delimiter) >= 0 {
			return fmt.Errorf("%w: %s %q", ErrInvalidField, f.name, f.value)
		}
	}
	return nil
}

// Encode 校验后拼接资源 ID，用于来自外部输入的字段
func Encode(k Key) (string, error) {
	if err := k.Validate(); err != nil {
		return "", err
	}
	return BuildKey(k), nil
}

// Build 按 app^ip^node^service^path 拼接资源 ID。
//
// 不做校验：调用方需保证 app、ip、node、service 不含分隔符，否则结果无法被 Parse 还原；
// 字段来自外部输入时使用 [Encode]。
func Build(app, ip, node, service, path string) string {
	var b strings.Builder
	b.Grow(len(app) + len(ip) + len(node) + len(service) + len(path) + fieldCount - 1)
	b.WriteString(app)
	b.WriteByte(Delimiter)
	b.WriteString(ip)
	b.WriteByte(Delimiter)
	b.WriteString(node)
	b.WriteByte(Delimiter)
	b.WriteString(service)
	b.WriteByte(Delimiter)
	b.WriteString(path)
	return b.String()
}

func BuildKey(k Key) string {
	return Build(k.App, k.IP, k.Node, k.Service, k.Path)
}

// Parse 解析资源 ID。分隔符少于四个时返回 ErrMalformed。
func Parse(id string) (Key, error) {
	parts := strings.SplitN(id, string(Delimiter), fieldCount)
	if len(parts) != fieldCount {
		return Key{}, ErrMalformed
	}
	return Key{
		App:     parts[0],
		IP:      parts[1],
		Node:    parts[2],
		Service: parts[3],
		Path:    parts[4],
	}, nil
}

// field 返回第 i 个字段，格式错误时返回空串
func field(id string, i int) string {
	k, err := Parse(id)
	if err != nil {
		return ""
	}
	switch i {
	case 0:
		return k.App
	case 1:
		return k.IP
	case 2:
		return k.Node
	case 3:
		return k.Service
	default:
		return k.Path
	}
}

func App(id string) string     { return field(id, 0) }
func IP(id string) string      { return field(id, 1) }
func NodeOf(id string) string  { return field(id, 2) }
func Service(id string) string { return field(id, 3) }
func Path(id string) string    { return field(id, 4) }

// ServicePath 只保留 service 与 path，用于熔断资源
func ServicePath(id string) string {
	k, err := Parse(id)
	if err != nil {
		return ""
	}
	return Build("", "", "", k.Service, k.Path)
}
