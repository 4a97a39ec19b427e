package xquota

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/omeyang/xflow/pkg/config/xconf"
	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/resilience/xflow"
	"github.com/omeyang/xflow/pkg/util/xresid"
)

// 节点规则未配置响应时使用的默认值
const (
	DefaultResponseType    = "application/json; charset=UTF-8"
	DefaultResponseContent = `{"code":429,"msg":"too many requests"}`
)

// Option 配置选项
type Option func(*Registry)

func WithLogger(l xlog.Logger) Option {
	return func(r *Registry) {
		r.logger = xlog.OrDiscard(l)
	}
}

// WithTracked 未配置限流规则的服务×接口资源，tracked 返回 true 时仍加入准入链，
// 通常用于为配置了熔断规则的接口采集统计
func WithTracked(tracked func(resourceID string) bool) Option {
	return func(r *Registry) {
		r.tracked = tracked
	}
}

// Registry 限流规则表
type Registry struct {
	rules   atomic.Pointer[map[string]Rule]
	logger  xlog.Logger
	tracked func(string) bool
}

// New 创建规则表
func New(rules []Rule, opts ...Option) (*Registry, error) {
	r := &Registry{logger: xlog.Discard()}
	for _, opt := range opts {
		opt(r)
	}
	if err := r.Load(rules); err != nil {
		return nil, err
	}
	return r, nil
}

// Load 校验并整体替换规则，失败时保留旧规则
func (r *Registry) Load(rules []Rule) error {
	next := make(map[string]Rule, len(rules))
	for i, rule := range rules {
		if err := rule.Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		id := rule.ResourceID()
		if _, dup := next[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRule, id)
		}
		next[id] = rule
	}
	r.rules.Store(&next)
	r.logger.Info(context.Background(), "rate limit rules loaded", xlog.Count(int64(len(next))))
	return nil
}

// LoadConfig 从配置的 path 小节读取规则列表并替换
func (r *Registry) LoadConfig(cfg xconf.Config, path string) error {
	rules, err := xconf.Load[[]Rule](cfg, path)
	if err != nil {
		return err
	}
	return r.Load(rules)
}

// Get 按资源 ID 查询规则，包括已禁用的
func (r *Registry) Get(resourceID string) (Rule, bool) {
	rule, ok := (*r.rules.Load())[resourceID]
	return rule, ok
}

// Rules 按资源 ID 排序返回全部规则
func (r *Registry) Rules() []Rule {
	rules := *r.rules.Load()
	out := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		out = append(out, rule)
	}
	slices.SortFunc(out, func(a, b Rule) int {
		return strings.Compare(a.ResourceID(), b.ResourceID())
	})
	return out
}

// chainBuilder 在一份规则快照上构造准入链
type chainBuilder struct {
	rules map[string]Rule
	cfgs  []xflow.ResourceConfig
}

func (b *chainBuilder) enabled(id string) (Rule, bool) {
	rule, ok := b.rules[id]
	return rule, ok && !rule.Disabled
}

// add 资源配置了启用规则时加入链
func (b *chainBuilder) add(id string) bool {
	rule, ok := b.enabled(id)
	if ok {
		b.cfgs = append(b.cfgs, xflow.ResourceConfig{ResourceID: id, MaxConcurrency: rule.Concurrency, MaxQPS: rule.QPS})
	}
	return ok
}

// addWithDefault 资源未配置时按 defaultID 的阈值加入链；
// always 为 true 时即使两者都未配置也以不限制加入
func (b *chainBuilder) addWithDefault(id, defaultID string, always bool) {
	if b.add(id) {
		return
	}
	if d, ok := b.enabled(defaultID); ok {
		b.cfgs = append(b.cfgs, xflow.ResourceConfig{ResourceID: id, MaxConcurrency: d.Concurrency, MaxQPS: d.QPS})
		return
	}
	if always {
		b.cfgs = append(b.cfgs, xflow.ResourceConfig{ResourceID: id})
	}
}

// ChainFor 解析请求的准入链，空字符串表示请求不带该维度。
// 链的熔断资源为请求的 service 与 path，请求不带 service 时不经过熔断器。
func (r *Registry) ChainFor(app, ip, service, path string) xflow.Chain {
	b := chainBuilder{rules: *r.rules.Load(), cfgs: make([]xflow.ResourceConfig, 0, 9)}

	if !b.add(xresid.NodeResource) {
		b.cfgs = append(b.cfgs, xflow.ResourceConfig{ResourceID: xresid.NodeResource})
	}

	if service != "" {
		b.addWithDefault(xresid.Build("", "", "", service, ""), xresid.ServiceDefaultResource, true)
		if path != "" {
			api := xresid.Build("", "", "", service, path)
			if !b.add(api) && r.tracked != nil && r.tracked(api) {
				b.cfgs = append(b.cfgs, xflow.ResourceConfig{ResourceID: api})
			}
		}
	}

	if app != "" {
		b.addWithDefault(xresid.Build(app, "", "", "", ""), xresid.AppDefaultResource, false)
		if service != "" {
			b.add(xresid.Build(app, "", "", service, ""))
			if path != "" {
				b.add(xresid.Build(app, "", "", service, path))
			}
		}
	}

	if ip != "" {
		b.add(xresid.Build("", ip, "", "", ""))
		if service != "" {
			b.add(xresid.Build("", ip, "", service, ""))
			if path != "" {
				b.add(xresid.Build("", ip, "", service, path))
			}
		}
	}

	// 熔断资源总是请求的 service×path，与链的最内层是哪一维无关
	breaker := ""
	if service != "" {
		breaker = xresid.Build("", "", "", service, path)
	}
	return xflow.NewChain(b.cfgs...).WithBreakerResource(breaker)
}

// BlockResponse 被 resourceID 拦截时的响应类型与内容：
// 拦截资源规则的非空字段优先，其次节点规则，最后为默认值
func (r *Registry) BlockResponse(resourceID string) (contentType, content string) {
	contentType, content = DefaultResponseType, DefaultResponseContent
	rules := *r.rules.Load()
	for _, id := range []string{xresid.NodeResource, resourceID} {
		rule, ok := rules[id]
		if !ok {
			continue
		}
		if rule.ResponseType != "" {
			contentType = rule.ResponseType
		}
		if rule.ResponseContent != "" {
			content = rule.ResponseContent
		}
	}
	return contentType, content
}
