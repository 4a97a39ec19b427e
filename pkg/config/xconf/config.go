package xconf

import "github.com/knadh/koanf/v2"

// Format 配置文件格式
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Config 配置接口。基础读取请直接使用 Client() 返回的 koanf 实例。
type Config interface {
	// Client 返回当前的 koanf 实例
	Client() *koanf.Koanf

	// Unmarshal 将 path 小节反序列化到 target，path 为空表示整个配置。
	// 字段按 koanf 标签映射，时长字段支持 "10s" 写法。
	Unmarshal(path string, target any) error

	// Reload 重新读取配置文件，失败时保留旧配置
	Reload() error

	// Path 配置文件路径，从字节数据创建时为空
	Path() string

	Format() Format
}

// Load 读取 path 小节到新的 T 值
func Load[T any](cfg Config, path string) (T, error) {
	var v T
	err := cfg.Unmarshal(path, &v)
	return v, err
}
