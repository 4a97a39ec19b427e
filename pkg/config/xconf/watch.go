package xconf

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce 默认防抖时间
const DefaultDebounce = 100 * time.Millisecond

// WatchCallback 重载后回调，err 非 nil 表示重载失败且旧配置仍生效
type WatchCallback func(cfg Config, err error)

// WatchOption 监视器配置选项
type WatchOption func(*Watcher)

// WithDebounce 设置防抖时间，时间窗口内的多次变更只触发一次重载
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// Watcher 配置文件监视器
type Watcher struct {
	cfg      Config
	watcher  *fsnotify.Watcher
	callback WatchCallback
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// Watch 创建监视器，需调用 Run 开始监视。
// 监视的是文件所在目录，编辑器先删后建或 rename 覆盖都能感知。
func Watch(cfg Config, callback WatchCallback, opts ...WatchOption) (*Watcher, error) {
	if cfg.Path() == "" {
		return nil, ErrNotReloadable
	}

	w := &Watcher{cfg: cfg, callback: callback, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("xconf: create watcher: %w", err)
	}
	dir := filepath.Dir(cfg.Path())
	if err := fw.Add(dir); err != nil {
		return nil, errors.Join(fmt.Errorf("xconf: watch directory %s: %w", dir, err), fw.Close())
	}
	w.watcher = fw
	return w, nil
}

// Run 监视直到 ctx 取消。返回后不会再有回调执行。
func (w *Watcher) Run(ctx context.Context) error {
	defer w.stop()
	filename := filepath.Base(w.cfg.Path())

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				w.schedule()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.notify(fmt.Errorf("xconf: watch error: %w", err))
		}
	}
}

// schedule 重置防抖定时器
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.notify(w.cfg.Reload())
	})
}

// notify 持锁回调，保证 stop 返回后不再回调
func (w *Watcher) notify(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || w.callback == nil {
		return
	}
	w.callback(w.cfg, err)
}

func (w *Watcher) stop() {
	w.mu.Lock()
	w.stopped = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	_ = w.watcher.Close()
}
