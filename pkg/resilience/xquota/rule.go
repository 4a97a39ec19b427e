package xquota

import (
	"fmt"

	"github.com/omeyang/xflow/pkg/util/xresid"
)

// Type 限流规则的维度
type Type string

const (
	TypeNode           Type = "node"
	TypeServiceDefault Type = "service_default"
	TypeService        Type = "service"
	TypeAPI            Type = "api"
	TypeAppDefault     Type = "app_default"
	TypeApp            Type = "app"
	TypeIP             Type = "ip"
)

// Rule 一条限流规则。QPS 与 Concurrency 小于等于 0 表示不限制。
//
// App 规则可以只指定应用，也可以进一步指定 Service 与 Path；IP 规则同理。
type Rule struct {
	ID      int64  `koanf:"id" json:"id"`
	Type    Type   `koanf:"type" json:"type"`
	App     string `koanf:"app" json:"app,omitempty"`
	IP      string `koanf:"ip" json:"ip,omitempty"`
	Service string `koanf:"service" json:"service,omitempty"`
	Path    string `koanf:"path" json:"path,omitempty"`

	QPS         int64 `koanf:"qps" json:"qps"`
	Concurrency int64 `koanf:"concurrency" json:"concurrency"`
	Disabled    bool  `koanf:"disabled" json:"disabled,omitempty"`

	// ResponseType 与 ResponseContent 为被拦截时的响应，空值沿用节点规则
	ResponseType    string `koanf:"response_type" json:"responseType,omitempty"`
	ResponseContent string `koanf:"response_content" json:"responseContent,omitempty"`
}

// ResourceID 规则作用的资源 ID
func (r Rule) ResourceID() string {
	switch r.Type {
	case TypeNode:
		return xresid.NodeResource
	case TypeServiceDefault:
		return xresid.ServiceDefaultResource
	case TypeAppDefault:
		return xresid.AppDefaultResource
	case TypeService:
		return xresid.Build("", "", "", r.Service, "")
	case TypeAPI:
		return xresid.Build("", "", "", r.Service, r.Path)
	case TypeApp:
		return xresid.Build(r.App, "", "", r.Service, r.Path)
	case TypeIP:
		return xresid.Build("", r.IP, "", r.Service, r.Path)
	default:
		return ""
	}
}

// Validate 校验规则的维度字段
func (r Rule) Validate() error {
	if err := (xresid.Key{App: r.App, IP: r.IP, Service: r.Service}).Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	switch r.Type {
	case TypeNode, TypeServiceDefault, TypeAppDefault:
	case TypeService:
		if r.Service == "" {
			return fmt.Errorf("%w: service rule requires service", ErrInvalidRule)
		}
	case TypeAPI:
		if r.Service == "" || r.Path == "" {
			return fmt.Errorf("%w: api rule requires service and path", ErrInvalidRule)
		}
	case TypeApp:
		if r.App == "" {
			return fmt.Errorf("%w: app rule requires app", ErrInvalidRule)
		}
	case TypeIP:
		if r.IP == "" {
			return fmt.Errorf("%w: ip rule requires ip", ErrInvalidRule)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, r.Type)
	}

	if (r.Type == TypeApp || r.Type == TypeIP) && r.Path != "" && r.Service == "" {
		return fmt.Errorf("%w: path without service", ErrInvalidRule)
	}
	return nil
}
