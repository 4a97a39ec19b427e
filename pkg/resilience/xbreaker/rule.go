package xbreaker

import (
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/omeyang/xflow/pkg/util/xresid"
)

// Strategy 熔断判定方式
type Strategy string

const (
	// StrategyTotalErrors 监控窗口内错误总数达到阈值
	StrategyTotalErrors Strategy = "total_errors"
	// StrategyErrorsRatio 监控窗口内错误率达到阈值
	StrategyErrorsRatio Strategy = "errors_ratio"
	// StrategyConsecutiveErrors 连续错误数达到阈值
	StrategyConsecutiveErrors Strategy = "consecutive_errors"
)

// 规则缺省值
const (
	DefaultMonitorDuration  = 10 * time.Second
	DefaultBreakDuration    = 30 * time.Second
	DefaultHalfOpenRequests = 1
)

// Rule 一个熔断资源的规则
//
// Service 为空且 Default 为 true 时，作为所有未单独配置服务的兜底规则。
// Path 为空时规则作用于整个服务，服务下未单独配置的接口也会使用它。
type Rule struct {
	Service string `koanf:"service" json:"service"`
	Path    string `koanf:"path" json:"path,omitempty"`
	Default bool   `koanf:"default" json:"default,omitempty"`

	Strategy            Strategy `koanf:"strategy" json:"strategy"`
	ErrorRatioThreshold float64  `koanf:"error_ratio_threshold" json:"errorRatioThreshold,omitempty"`
	ErrorThreshold      uint32   `koanf:"error_threshold" json:"errorThreshold,omitempty"`
	MinRequests         uint32   `koanf:"min_requests" json:"minRequests,omitempty"`

	// MonitorDuration 统计窗口，按秒滚动
	MonitorDuration time.Duration `koanf:"monitor_duration" json:"monitorDuration,omitempty"`
	// BreakDuration open 状态持续时长，之后进入 half-open 放行探测请求
	BreakDuration    time.Duration `koanf:"break_duration" json:"breakDuration,omitempty"`
	HalfOpenRequests uint32        `koanf:"half_open_requests" json:"halfOpenRequests,omitempty"`

	ResponseType    string `koanf:"response_type" json:"responseType,omitempty"`
	ResponseContent string `koanf:"response_content" json:"responseContent,omitempty"`
}

// ResourceID 规则对应的熔断资源 ID，兜底规则返回 [xresid.ServiceDefaultResource]
func (r Rule) ResourceID() string {
	if r.Default {
		return xresid.ServiceDefaultResource
	}
	return xresid.Build("", "", "", r.Service, r.Path)
}

// Validate 校验规则
func (r Rule) Validate() error {
	if r.Default {
		if r.Service != "" || r.Path != "" {
			return fmt.Errorf("%w: default rule must not name service or path", ErrInvalidRule)
		}
	} else if r.Service == "" {
		return fmt.Errorf("%w: service is required", ErrInvalidRule)
	}
	if r.Service == xresid.ServiceDefault {
		return fmt.Errorf("%w: service name %q is reserved", ErrInvalidRule, r.Service)
	}
	if strings.ContainsRune(r.Service, xresid.Delimiter) {
		return fmt.Errorf("%w: service %q contains %q", ErrInvalidRule, r.Service, xresid.Delimiter)
	}

	switch r.Strategy {
	case StrategyErrorsRatio:
		if r.ErrorRatioThreshold <= 0 || r.ErrorRatioThreshold > 1 {
			return fmt.Errorf("%w: error_ratio_threshold %v out of (0, 1]", ErrInvalidRule, r.ErrorRatioThreshold)
		}
	case StrategyTotalErrors, StrategyConsecutiveErrors:
		if r.ErrorThreshold == 0 {
			return fmt.Errorf("%w: error_threshold is required", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStrategy, r.Strategy)
	}

	if r.MonitorDuration < 0 || r.BreakDuration < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidRule)
	}
	return nil
}

// TripPolicy 按策略构造熔断判定
func (r Rule) TripPolicy() TripPolicy {
	switch r.Strategy {
	case StrategyErrorsRatio:
		return NewFailureRatio(r.ErrorRatioThreshold, r.MinRequests)
	case StrategyConsecutiveErrors:
		return NewConsecutiveFailures(r.ErrorThreshold, r.MinRequests)
	default:
		return NewFailureCount(r.ErrorThreshold, r.MinRequests)
	}
}

func (r Rule) monitorDuration() time.Duration {
	if r.MonitorDuration <= 0 {
		return DefaultMonitorDuration
	}
	return r.MonitorDuration.Truncate(time.Second)
}

func (r Rule) breakDuration() time.Duration {
	if r.BreakDuration <= 0 {
		return DefaultBreakDuration
	}
	return r.BreakDuration
}

// settings 构造 gobreaker 配置。统计窗口按 1 秒分桶滚动，与时间桶宽度一致。
func (r Rule) settings(name string, onStateChange func(name string, from, to gobreaker.State)) gobreaker.Settings {
	policy := r.TripPolicy()
	return gobreaker.Settings{
		Name:          name,
		MaxRequests:   max(r.HalfOpenRequests, DefaultHalfOpenRequests),
		Interval:      max(r.monitorDuration(), time.Second),
		BucketPeriod:  time.Second,
		Timeout:       r.breakDuration(),
		ReadyToTrip:   policy.ReadyToTrip,
		OnStateChange: onStateChange,
	}
}
