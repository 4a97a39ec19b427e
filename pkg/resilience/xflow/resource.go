package xflow

import (
	"sync"
	"sync/atomic"
)

// ResourceStat 单个资源的在途并发数与时间桶集合
type ResourceStat struct {
	id         string
	concurrent atomic.Int64
	slots      sync.Map // int64 -> *TimeSlot

	// idleSweeps 连续几轮清理中既无时间桶也无在途请求，创建时间桶时清零
	idleSweeps atomic.Int32
}

func newResourceStat(id string) *ResourceStat {
	return &ResourceStat{id: id}
}

func (r *ResourceStat) ID() string {
	return r.id
}

// Concurrency 当前在途请求数
func (r *ResourceStat) Concurrency() int64 {
	return r.concurrent.Load()
}

// TimeSlot 获取或创建时间桶，新建的时间桶以当前并发数作为初始峰值
func (r *ResourceStat) TimeSlot(bucketID int64) *TimeSlot {
	if v, ok := r.slots.Load(bucketID); ok {
		return v.(*TimeSlot)
	}
	v, loaded := r.slots.LoadOrStore(bucketID, newTimeSlot(bucketID, r.concurrent.Load()))
	if !loaded {
		r.idleSweeps.Store(0)
	}
	return v.(*TimeSlot)
}

func (r *ResourceStat) peekSlot(bucketID int64) (*TimeSlot, bool) {
	v, ok := r.slots.Load(bucketID)
	if !ok {
		return nil, false
	}
	return v.(*TimeSlot), true
}

// sampleSlot 采样时记录熔断状态的时间桶：当前秒已有时间桶时直接使用；
// 否则只有上一秒有流量时才新建
func (r *ResourceStat) sampleSlot(bucketID int64) (*TimeSlot, bool) {
	if slot, ok := r.peekSlot(bucketID); ok {
		return slot, true
	}
	if prev, ok := r.peekSlot(bucketID - BucketWidthMillis); ok && prev.active() {
		return r.TimeSlot(bucketID), true
	}
	return nil, false
}

// TryAcquire 单资源准入：并发与 QPS 均未超限时占用一个并发并计数，返回 BlockNone。
//
// 并发与 QPS 各自通过 CAS 检查并递增；QPS 超限时回滚已占用的并发。
// 被拦截时在时间桶上记录一次拦截并返回拦截原因。
func (r *ResourceStat) TryAcquire(bucketID, maxConcurrency, maxQPS int64) BlockType {
	slot := r.TimeSlot(bucketID)

	var n int64
	for {
		n = r.concurrent.Load()
		if maxConcurrency > 0 && n >= maxConcurrency {
			slot.IncrBlockRequests()
			return BlockConcurrentRequest
		}
		if r.concurrent.CompareAndSwap(n, n+1) {
			n++
			break
		}
	}

	for {
		c := slot.counter.Load()
		if maxQPS > 0 && c >= maxQPS {
			r.concurrent.Add(-1)
			slot.IncrBlockRequests()
			return BlockQPS
		}
		if slot.counter.CompareAndSwap(c, c+1) {
			break
		}
	}
	slot.UpdatePeakConcurrentRequests(n)
	return BlockNone
}

// IncrConcurrency 占用一个并发并计入当前时间桶
func (r *ResourceStat) IncrConcurrency(bucketID int64) int64 {
	n := r.concurrent.Add(1)
	slot := r.TimeSlot(bucketID)
	slot.UpdatePeakConcurrentRequests(n)
	slot.Incr()
	return n
}

// DecrConcurrency 释放一次并发，返回释放后的并发数。
// 准入时的时间桶已被清理时只释放并发，不重建时间桶。
func (r *ResourceStat) DecrConcurrency(bucketID int64) int64 {
	n := r.concurrent.Add(-1)
	if slot, ok := r.peekSlot(bucketID); ok {
		slot.UpdatePeakConcurrentRequests(n)
	}
	return n
}

// RecordCompletion 记录耗时、成功与否以及状态码分类，时间桶已被清理时丢弃
func (r *ResourceStat) RecordCompletion(bucketID, rt int64, success bool, statusCode int) {
	slot, ok := r.peekSlot(bucketID)
	if !ok {
		return
	}
	slot.AddRequestRT(rt, success)
	slot.IncrStatus(statusCode)
}

func (r *ResourceStat) IncrBlockRequests(bucketID int64) {
	r.TimeSlot(bucketID).IncrBlockRequests()
}

func (r *ResourceStat) IncrTotalBlockRequests(bucketID int64) {
	r.TimeSlot(bucketID).IncrTotalBlockRequests()
}

func (r *ResourceStat) IncrCircuitBreakNum(bucketID int64) {
	r.TimeSlot(bucketID).IncrCircuitBreakNum()
}

// WindowStat 聚合 [startBucket, endBucket) 内的时间桶
func (r *ResourceStat) WindowStat(startBucket, endBucket int64) *TimeWindowStat {
	return aggregate(startBucket, endBucket, r.peekSlot)
}

// evict 删除 [from, to) 内的时间桶，返回删除数量
func (r *ResourceStat) evict(from, to int64) int {
	removed := 0
	for id := from; id < to; id += BucketWidthMillis {
		if _, ok := r.slots.LoadAndDelete(id); ok {
			removed++
		}
	}
	return removed
}

// evictBefore 删除所有早于 cutoff 的时间桶，用于保留时长缩短后的首次清理
func (r *ResourceStat) evictBefore(cutoff int64) int {
	removed := 0
	r.slots.Range(func(k, _ any) bool {
		if k.(int64) < cutoff {
			r.slots.Delete(k)
			removed++
		}
		return true
	})
	return removed
}

func (r *ResourceStat) slotCount() int {
	n := 0
	r.slots.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// markIdle 判断本轮是否空闲，返回连续空闲轮数
func (r *ResourceStat) markIdle() int32 {
	if r.concurrent.Load() != 0 || r.slotCount() != 0 {
		r.idleSweeps.Store(0)
		return 0
	}
	return r.idleSweeps.Add(1)
}
