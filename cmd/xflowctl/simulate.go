package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	"github.com/omeyang/xflow/pkg/config/xconf"
	"github.com/omeyang/xflow/pkg/observability/xlog"
	"github.com/omeyang/xflow/pkg/resilience/xbreaker"
	"github.com/omeyang/xflow/pkg/resilience/xflow"
	"github.com/omeyang/xflow/pkg/resilience/xquota"
)

// blockedBackoff 被拦截后的等待，避免空转
const blockedBackoff = time.Millisecond

// simulation 以合成流量驱动引擎
type simulation struct {
	fs       *xflow.FlowStat
	quota    *xquota.Registry
	breakers *xbreaker.Registry
	logger   xlog.LoggerWithLevel

	traffic     []trafficProfile
	totalWeight int
	workers     int
	interval    time.Duration
	out         io.Writer

	allowed atomic.Int64
	blocked [xflow.BlockCircuitBreak + 1]atomic.Int64
}

func newSimulation(fs *xflow.FlowStat, quota *xquota.Registry, breakers *xbreaker.Registry,
	logger xlog.LoggerWithLevel, traffic []trafficProfile, workers int, out io.Writer) *simulation {
	s := &simulation{
		fs:       fs,
		quota:    quota,
		breakers: breakers,
		logger:   logger,
		workers:  max(workers, 1),
		interval: time.Second,
		out:      out,
	}
	for _, p := range traffic {
		if p.Weight <= 0 {
			p.Weight = 1
		}
		s.traffic = append(s.traffic, p)
		s.totalWeight += p.Weight
	}
	return s
}

// Run 启动工作协程与逐秒打印，阻塞到 ctx 结束
func (s *simulation) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := range s.workers {
		seed := uint64(time.Now().UnixNano()) + uint64(i)
		wg.Go(func() {
			s.worker(ctx, rand.New(rand.NewPCG(seed, seed>>1)))
		})
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case now := <-ticker.C:
			s.printWindow(now)
		}
	}
}

func (s *simulation) worker(ctx context.Context, rng *rand.Rand) {
	for ctx.Err() == nil {
		s.request(ctx, rng, s.pick(rng))
	}
}

func (s *simulation) pick(rng *rand.Rand) trafficProfile {
	n := rng.IntN(s.totalWeight)
	for _, p := range s.traffic {
		if n < p.Weight {
			return p
		}
		n -= p.Weight
	}
	return s.traffic[len(s.traffic)-1]
}

func (s *simulation) request(ctx context.Context, rng *rand.Rand, p trafficProfile) {
	chain := s.quota.ChainFor(p.App, p.IP, p.Service, p.Path)
	tok, res := s.fs.AcquireWithBreaker(chain)
	if !res.Allowed {
		s.blocked[res.BlockType].Add(1)
		if s.logger.Enabled(ctx, xlog.LevelDebug) {
			contentType, content := s.quota.BlockResponse(res.BlockedResourceID)
			s.logger.Debug(ctx, "request blocked",
				xlog.Resource(res.BlockedResourceID), xlog.BlockType(res.BlockType.String()),
				slog.String("content_type", contentType), slog.String("content", content))
		}
		sleep(ctx, blockedBackoff)
		return
	}
	s.allowed.Add(1)

	sleep(ctx, p.Latency)
	status := 200
	if rng.Float64() < p.ErrorRate {
		status = 502
		if rng.IntN(4) == 0 {
			status = 504
		}
	}
	tok.Done(status < 500, status)
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// printWindow 打印 now 之前一秒内有流量的资源
func (s *simulation) printWindow(now time.Time) {
	ids := s.fs.Resources()
	slices.Sort(ids)

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", now.Format(time.TimeOnly))
	fmt.Fprintln(tw, "RESOURCE\tTOTAL\tERRORS\tBLOCK\tTOTAL_BLOCK\tPEAK_CONC\tAVG_RT\t5XX\t504\tBREAKER")
	for _, id := range ids {
		st := s.fs.PreviousSecondStat(id, now.UnixMilli())
		if st == nil || (st.Total == 0 && st.TotalBlockRequests == 0) {
			continue
		}
		avg := "-"
		if st.AvgRt != nil {
			avg = fmt.Sprintf("%dms", *st.AvgRt)
		}
		state := st.CircuitBreakState
		if state == "" {
			state = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\t%d\t%d\t%s\n",
			id, st.Total, st.Errors, st.BlockRequests, st.TotalBlockRequests,
			st.PeakConcurrentRequests, avg, st.Status5xx, st.Status504, state)
	}
	_ = tw.Flush()
}

func (s *simulation) summary(w io.Writer) {
	fmt.Fprintf(w, "allowed=%d concurrency_blocked=%d qps_blocked=%d circuit_broken=%d\n",
		s.allowed.Load(),
		s.blocked[xflow.BlockConcurrentRequest].Load(),
		s.blocked[xflow.BlockQPS].Load(),
		s.blocked[xflow.BlockCircuitBreak].Load())
}

// reload 把配置文件的最新内容应用到运行中的组件
func (s *simulation) reload(cfg xconf.Config) error {
	if err := s.quota.LoadConfig(cfg, quotaRulesPath); err != nil {
		return fmt.Errorf("quota: %w", err)
	}
	rules, err := xconf.Load[[]xbreaker.Rule](cfg, breakerRulesPath)
	if err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	if err := s.breakers.Load(rules); err != nil {
		return fmt.Errorf("breaker: %w", err)
	}
	flow, err := xconf.Load[xflow.Config](cfg, "flow")
	if err != nil {
		return fmt.Errorf("flow: %w", err)
	}
	if flow.Retention > 0 {
		if err := s.fs.SetRetention(flow.Retention); err != nil {
			return fmt.Errorf("flow: %w", err)
		}
	}
	if lv := cfg.Client().String("log.level"); lv != "" {
		level, err := xlog.ParseLevel(lv)
		if err != nil {
			return fmt.Errorf("log: %w", err)
		}
		s.logger.SetLevel(level)
	}
	return nil
}

// onConfigChange 作为 xconf.Watch 的回调
func (s *simulation) onConfigChange(cfg xconf.Config, err error) {
	ctx := context.Background()
	if err == nil {
		err = s.reload(cfg)
	}
	if err != nil {
		s.logger.Warn(ctx, "config reload failed, keeping previous rules", xlog.Err(err))
		return
	}
	s.logger.Info(ctx, "config reloaded", slog.String("path", cfg.Path()))
}
