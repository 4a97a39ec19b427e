package xflow

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricNameAdmissionTotal = "xflow.admission.total"
	metricNameBlockedTotal   = "xflow.admission.blocked"
	metricNameReleaseTotal   = "xflow.release.total"
	metricNameRequestRT      = "xflow.request.rt"
	metricNameResources      = "xflow.resources"
	metricNameEvictedBuckets = "xflow.evicted.buckets"
)

// Metrics 引擎指标。零值不可用，nil 接收者的方法均为空操作。
//
// 指标不带资源 ID 维度，避免高基数。
type Metrics struct {
	admissionTotal metric.Int64Counter
	blockedTotal   metric.Int64Counter
	releaseTotal   metric.Int64Counter
	requestRT      metric.Int64Histogram
	evicted        metric.Int64Counter
	resources      metric.Int64ObservableGauge
	registration   metric.Registration
}

// NewMetrics meterProvider 为 nil 时返回 nil（不采集指标）
func NewMetrics(meterProvider metric.MeterProvider, resourceCount func() int64) (*Metrics, error) {
	if meterProvider == nil {
		return nil, nil
	}
	meter := meterProvider.Meter("xflow", metric.WithInstrumentationVersion("1.0.0"))

	admissionTotal, err := meter.Int64Counter(metricNameAdmissionTotal,
		metric.WithDescription("准入检查次数"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	blockedTotal, err := meter.Int64Counter(metricNameBlockedTotal,
		metric.WithDescription("被拦截的请求数"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	releaseTotal, err := meter.Int64Counter(metricNameReleaseTotal,
		metric.WithDescription("完成的请求数"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, err
	}
	requestRT, err := meter.Int64Histogram(metricNameRequestRT,
		metric.WithDescription("请求耗时"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000))
	if err != nil {
		return nil, err
	}
	evicted, err := meter.Int64Counter(metricNameEvictedBuckets,
		metric.WithDescription("清理的时间桶数"),
		metric.WithUnit("{bucket}"))
	if err != nil {
		return nil, err
	}
	resources, err := meter.Int64ObservableGauge(metricNameResources,
		metric.WithDescription("当前跟踪的资源数"),
		metric.WithUnit("{resource}"))
	if err != nil {
		return nil, err
	}
	reg, err := meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		o.ObserveInt64(resources, resourceCount())
		return nil
	}, resources)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		admissionTotal: admissionTotal,
		blockedTotal:   blockedTotal,
		releaseTotal:   releaseTotal,
		requestRT:      requestRT,
		evicted:        evicted,
		resources:      resources,
		registration:   reg,
	}, nil
}

func (m *Metrics) recordAdmission(ctx context.Context, res IncrRequestResult) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	m.admissionTotal.Add(ctx, 1, metric.WithAttributes(attribute.Bool("allowed", res.Allowed)))
	if !res.Allowed {
		m.blockedTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("block_type", res.BlockType.String())))
	}
}

func (m *Metrics) recordRelease(ctx context.Context, rt int64, success bool) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	m.releaseTotal.Add(ctx, 1, attrs)
	m.requestRT.Record(ctx, rt, attrs)
}

func (m *Metrics) recordEvicted(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.evicted.Add(context.WithoutCancel(ctx), int64(n))
}

// Close 注销可观测指标回调
func (m *Metrics) Close() error {
	if m == nil || m.registration == nil {
		return nil
	}
	return m.registration.Unregister()
}
