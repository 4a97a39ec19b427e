package xflow

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShardCount = 32

// registry 按资源 ID 哈希分片的 ResourceStat 表
type registry struct {
	shards []registryShard
	mask   uint64
}

type registryShard struct {
	mu sync.RWMutex
	m  map[string]*ResourceStat
}

// newRegistry 分片数向上取整为 2 的幂
func newRegistry(shardCount int) *registry {
	n := 1
	for n < shardCount {
		n <<= 1
	}
	r := &registry{
		shards: make([]registryShard, n),
		mask:   uint64(n - 1),
	}
	for i := range r.shards {
		r.shards[i].m = make(map[string]*ResourceStat)
	}
	return r
}

func (r *registry) shard(id string) *registryShard {
	return &r.shards[xxhash.Sum64String(id)&r.mask]
}

func (r *registry) get(id string) (*ResourceStat, bool) {
	s := r.shard(id)
	s.mu.RLock()
	rs, ok := s.m[id]
	s.mu.RUnlock()
	return rs, ok
}

// getOrCreate 返回已有的 ResourceStat，不存在时创建；created 表示是否新建
func (r *registry) getOrCreate(id string) (rs *ResourceStat, created bool) {
	if rs, ok := r.get(id); ok {
		return rs, false
	}
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	if rs, ok := s.m[id]; ok {
		return rs, false
	}
	rs = newResourceStat(id)
	s.m[id] = rs
	return rs, true
}

// removeIf 在分片写锁内再次确认 cond 后删除
func (r *registry) removeIf(id string, cond func(*ResourceStat) bool) bool {
	s := r.shard(id)
	s.mu.Lock()
	defer s.mu.Unlock()
	rs, ok := s.m[id]
	if !ok || !cond(rs) {
		return false
	}
	delete(s.m, id)
	return true
}

// snapshot 返回当前全部 ResourceStat，遍历期间不持有锁
func (r *registry) snapshot() []*ResourceStat {
	out := make([]*ResourceStat, 0, r.len())
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, rs := range s.m {
			out = append(out, rs)
		}
		s.mu.RUnlock()
	}
	return out
}

func (r *registry) len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.m)
		s.mu.RUnlock()
	}
	return n
}
