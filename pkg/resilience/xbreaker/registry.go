package xbreaker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/util/xresid"
)

// DefaultCapacity 熔断器表默认容量
const DefaultCapacity = 4096

// State 熔断器状态
type State = gobreaker.State

// 熔断器状态常量，String() 分别为 "closed"、"half-open"、"open"
const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

// Option 配置选项
type Option func(*Registry)

// WithCapacity 设置同时存活的熔断器数量上限，超出时淘汰最久未使用的
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// WithLogger 设置日志，状态变化以 Warn 级别输出
func WithLogger(l xlog.Logger) Option {
	return func(r *Registry) {
		r.logger = xlog.OrDiscard(l)
	}
}

// WithOnStateChange 设置状态变化回调
func WithOnStateChange(f func(resourceID string, from, to State)) Option {
	return func(r *Registry) {
		r.onStateChange = f
	}
}

// entry 一个资源的熔断器与待上报结果的回调队列
type entry struct {
	rule Rule
	cb   *gobreaker.TwoStepCircuitBreaker[any]

	mu      sync.Mutex
	pending []func(error)
}

func (e *entry) push(done func(error)) {
	e.mu.Lock()
	e.pending = append(e.pending, done)
	e.mu.Unlock()
}

func (e *entry) pop() func(error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return nil
	}
	done := e.pending[0]
	e.pending[0] = nil
	e.pending = e.pending[1:]
	return done
}

// Registry 按资源管理熔断器，实现 xflow.CircuitBreaker
//
// 规则以快照形式整体替换。熔断器在首次访问时按生效规则创建，
// 存放在容量有限的 LRU 表中。
type Registry struct {
	rules   atomic.Pointer[map[string]Rule]
	entries *lru.Cache[string, *entry]
	createM sync.Mutex // 串行化熔断器创建与规则替换

	capacity      int
	logger        xlog.Logger
	onStateChange func(resourceID string, from, to State)
}

// New 创建熔断器注册表
func New(rules []Rule, opts ...Option) (*Registry, error) {
	r := &Registry{
		capacity: DefaultCapacity,
		logger:   xlog.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}

	cache, err := lru.New[string, *entry](r.capacity)
	if err != nil {
		return nil, fmt.Errorf("xbreaker: create breaker table: %w", err)
	}
	r.entries = cache

	if err := r.Load(rules); err != nil {
		return nil, err
	}
	return r, nil
}

// Load 整体替换规则。规则未变化的资源保留现有熔断器状态，
// 其余熔断器被丢弃，下次访问时按新规则重建。
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
	r.createM.Lock()
	r.rules.Store(&next)
	for _, id := range r.entries.Keys() {
		e, ok := r.entries.Peek(id)
		if !ok {
			continue
		}
		if rule, ok := r.ruleFor(id); !ok || rule != e.rule {
			r.entries.Remove(id)
		}
	}
	r.createM.Unlock()

	r.logger.Info(context.Background(), "circuit breaker rules loaded", xlog.Count(int64(len(next))))
	return nil
}

// Rule 返回资源生效的规则：精确匹配，其次服务级规则，最后兜底规则。
// 只有仅含 service 与 path 的资源 ID 可能匹配。
func (r *Registry) Rule(resourceID string) (Rule, bool) {
	return r.ruleFor(resourceID)
}

// Tracks 资源是否有单独配置的规则（不含服务级与兜底规则）
func (r *Registry) Tracks(resourceID string) bool {
	_, ok := (*r.rules.Load())[resourceID]
	return ok
}

func (r *Registry) ruleFor(resourceID string) (Rule, bool) {
	rules := *r.rules.Load()
	if len(rules) == 0 {
		return Rule{}, false
	}
	key, err := xresid.Parse(resourceID)
	if err != nil || key.Service == "" || key.Service == xresid.ServiceDefault ||
		key.App != "" || key.IP != "" || key.Node != "" {
		return Rule{}, false
	}
	if rule, ok := rules[resourceID]; ok {
		return rule, true
	}
	if key.Path != "" {
		if rule, ok := rules[xresid.Build("", "", "", key.Service, "")]; ok {
			return rule, true
		}
	}
	rule, ok := rules[xresid.ServiceDefaultResource]
	return rule, ok
}

// entry 获取或创建资源的熔断器，资源无规则时返回 nil
func (r *Registry) entry(resourceID string) *entry {
	if e, ok := r.entries.Get(resourceID); ok {
		return e
	}
	if _, ok := r.ruleFor(resourceID); !ok {
		return nil
	}

	r.createM.Lock()
	defer r.createM.Unlock()
	if e, ok := r.entries.Get(resourceID); ok {
		return e
	}
	rule, ok := r.ruleFor(resourceID)
	if !ok {
		return nil
	}
	e := &entry{
		rule: rule,
		cb:   gobreaker.NewTwoStepCircuitBreaker[any](rule.settings(resourceID, r.stateChanged)),
	}
	r.entries.Add(resourceID, e)
	return e
}

func (r *Registry) stateChanged(resourceID string, from, to State) {
	r.logger.Warn(context.Background(), "circuit breaker state changed",
		xlog.Resource(resourceID),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	if r.onStateChange != nil {
		r.onStateChange(resourceID, from, to)
	}
}

// Allow 两阶段许可：放行时返回结果上报函数，拒绝时返回 gobreaker.ErrOpenState
// 或 gobreaker.ErrTooManyRequests。资源无规则时总是放行。
func (r *Registry) Allow(resourceID string) (func(success bool), error) {
	e := r.entry(resourceID)
	if e == nil {
		return func(bool) {}, nil
	}
	done, err := e.cb.Allow()
	if err != nil {
		return nil, err
	}
	return func(success bool) { done(outcome(success)) }, nil
}

// Permit 放行时把结果回调排入资源的队列，由随后的 Observe 按先进先出消费
func (r *Registry) Permit(resourceID string, _ int64) bool {
	e := r.entry(resourceID)
	if e == nil {
		return true
	}
	done, err := e.cb.Allow()
	if err != nil {
		r.logger.Debug(context.Background(), "circuit breaker rejected request",
			xlog.Resource(resourceID), xlog.Err(err))
		return false
	}
	e.push(done)
	return true
}

// Observe 上报一次已放行请求的结果，没有待上报的许可时忽略
func (r *Registry) Observe(resourceID string, _ int64, success bool) {
	e, ok := r.entries.Peek(resourceID)
	if !ok {
		return
	}
	if done := e.pop(); done != nil {
		done(outcome(success))
	}
}

// CorrectState 读取状态，同时驱动 open → half-open 与统计窗口滚动。
// 只作用于已经处理过请求的熔断器，不会为仅有服务级或兜底规则的资源创建熔断器。
func (r *Registry) CorrectState(resourceID string, _ int64) (string, bool) {
	e, ok := r.entries.Peek(resourceID)
	if !ok {
		return "", false
	}
	return e.cb.State().String(), true
}

// State 返回资源当前状态，资源无规则时返回 false
func (r *Registry) State(resourceID string) (State, bool) {
	e := r.entry(resourceID)
	if e == nil {
		return StateClosed, false
	}
	return e.cb.State(), true
}

// Counts 返回资源熔断器当前统计窗口的计数
func (r *Registry) Counts(resourceID string) (Counts, bool) {
	e, ok := r.entries.Peek(resourceID)
	if !ok {
		return Counts{}, false
	}
	return e.cb.Counts(), true
}

// Len 当前存活的熔断器数量
func (r *Registry) Len() int {
	return r.entries.Len()
}

func outcome(success bool) error {
	if success {
		return nil
	}
	return errRequestFailed
}
