package xflow

import "github.com/omeyang/xflow/pkg/util/xresid"

// ResourceConfig 单个资源在一次准入中的限制，小于等于 0 表示不限制
type ResourceConfig struct {
	ResourceID     string
	MaxConcurrency int64
	MaxQPS         int64
}

// Limited 是否配置了任一上限
func (c ResourceConfig) Limited() bool {
	return c.MaxConcurrency > 0 || c.MaxQPS > 0
}

// Chain 由外到内排列的资源链，例如 节点 → 服务 → 接口。
//
// 准入按由外到内检查，释放按由内到外进行。
// 熔断资源默认取最内层资源的 service 与 path 字段，可通过 WithBreakerResource 覆盖。
type Chain struct {
	resources       []ResourceConfig
	breakerResource string
	breakerSet      bool
}

// NewChain 按由外到内的顺序创建资源链，空 ResourceID 的条目被忽略
func NewChain(resources ...ResourceConfig) Chain {
	rs := make([]ResourceConfig, 0, len(resources))
	for _, r := range resources {
		if r.ResourceID != "" {
			rs = append(rs, r)
		}
	}
	return Chain{resources: rs}
}

// WithBreakerResource 返回指定熔断资源的副本，id 为空表示不经过熔断器
func (c Chain) WithBreakerResource(id string) Chain {
	c.breakerResource = id
	c.breakerSet = true
	return c
}

// Append 返回追加了更内层资源的副本
func (c Chain) Append(rs ...ResourceConfig) Chain {
	out := make([]ResourceConfig, 0, len(c.resources)+len(rs))
	out = append(out, c.resources...)
	for _, r := range rs {
		if r.ResourceID != "" {
			out = append(out, r)
		}
	}
	c.resources = out
	return c
}

func (c Chain) Len() int {
	return len(c.resources)
}

// At 返回第 i 个资源（0 为最外层）
func (c Chain) At(i int) ResourceConfig {
	return c.resources[i]
}

// Resources 返回资源列表副本
func (c Chain) Resources() []ResourceConfig {
	return append([]ResourceConfig(nil), c.resources...)
}

func (c Chain) Outermost() (ResourceConfig, bool) {
	if len(c.resources) == 0 {
		return ResourceConfig{}, false
	}
	return c.resources[0], true
}

func (c Chain) Innermost() (ResourceConfig, bool) {
	if len(c.resources) == 0 {
		return ResourceConfig{}, false
	}
	return c.resources[len(c.resources)-1], true
}

// Ancestors 返回第 i 个资源之前（更外层）的全部资源
func (c Chain) Ancestors(i int) []ResourceConfig {
	if i <= 0 {
		return nil
	}
	if i > len(c.resources) {
		i = len(c.resources)
	}
	return c.resources[:i]
}

// BreakerResourceID 熔断判定所用的资源 ID，只包含 service 与 path
func (c Chain) BreakerResourceID() string {
	if c.breakerSet {
		return c.breakerResource
	}
	inner, ok := c.Innermost()
	if !ok || xresid.Service(inner.ResourceID) == "" {
		return ""
	}
	return xresid.ServicePath(inner.ResourceID)
}
