package xbreaker

import (
	"testing"
)

// FuzzFailureRatio 失败率策略在任意输入下不越界、不除零
func FuzzFailureRatio(f *testing.F) {
	f.Add(0.5, uint32(10), uint32(10), uint32(5))
	f.Add(0.0, uint32(0), uint32(0), uint32(0))
	f.Add(-0.5, uint32(1), uint32(1), uint32(1))
	f.Add(1.5, uint32(3), uint32(2), uint32(2))

	f.Fuzz(func(t *testing.T, ratio float64, minRequests, requests, failures uint32) {
		policy := NewFailureRatio(ratio, minRequests)
		if policy.Ratio() < 0 || policy.Ratio() > 1 {
			t.Fatalf("ratio %v not clamped", policy.Ratio())
		}
		failures = min(failures, requests)
		got := policy.ReadyToTrip(Counts{Requests: requests, TotalFailures: failures})
		if requests == 0 || requests < minRequests {
			if got {
				t.Fatalf("tripped with %d requests, min %d", requests, minRequests)
			}
		}
	})
}

// FuzzRuleValidate 通过校验的规则总能构造出熔断配置
func FuzzRuleValidate(f *testing.F) {
	f.Add("order", "/v1", "total_errors", 0.0, uint32(5))
	f.Add("order", "", "errors_ratio", 0.5, uint32(0))
	f.Add("a^b", "", "total_errors", 0.0, uint32(1))
	f.Add("", "", "consecutive_errors", 0.0, uint32(3))

	f.Fuzz(func(t *testing.T, service, path, strategy string, ratio float64, threshold uint32) {
		rule := Rule{
			Service:             service,
			Path:                path,
			Strategy:            Strategy(strategy),
			ErrorRatioThreshold: ratio,
			ErrorThreshold:      threshold,
		}
		if rule.Validate() != nil {
			return
		}
		st := rule.settings(rule.ResourceID(), nil)
		if st.ReadyToTrip == nil || st.Interval < st.BucketPeriod || st.MaxRequests == 0 {
			t.Fatalf("bad settings for %+v: %+v", rule, st)
		}
	})
}
