package listing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Closable 是可以放进 Registry 的页面状态，*Controller 实现了它
type Closable interface {
	Close()
	Closed() bool
}

type registryKey struct {
	sid    string
	screen string
}

type registryEntry struct {
	ctrl     Closable
	lastUsed time.Time
}

// Registry 为每个浏览器会话的每个页面保存一个列表控制器
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   clock.Clock
	entries map[registryKey]*registryEntry
}

func NewRegistry(ttl time.Duration, clk clock.Clock) *Registry {
	if clk == nil {
		clk = clock.New()
	}
	return &Registry{
		ttl:     ttl,
		clock:   clk,
		entries: make(map[registryKey]*registryEntry),
	}
}

// Get 返回 (sid, screen) 对应的页面状态，不存在或已关闭时用 create 创建
func Get[C Closable](r *Registry, sid, screen string, create func() C) C {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{sid: sid, screen: screen}
	if entry, ok := r.entries[key]; ok {
		if ctrl, ok := entry.ctrl.(C); ok && !ctrl.Closed() {
			entry.lastUsed = r.clock.Now()
			return ctrl
		}
		entry.ctrl.Close()
	}

	ctrl := create()
	r.entries[key] = &registryEntry{ctrl: ctrl, lastUsed: r.clock.Now()}
	return ctrl
}

// Evict 关闭并移除某个会话的所有控制器，在登出或会话失效时调用
func (r *Registry) Evict(sid string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key, entry := range r.entries {
		if key.sid == sid {
			entry.ctrl.Close()
			delete(r.entries, key)
		}
	}
}

// Sweep 移除超过空闲时间的控制器，返回移除的个数
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	removed := 0
	for key, entry := range r.entries {
		if now.Sub(entry.lastUsed) > r.ttl {
			entry.ctrl.Close()
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Run 定期清理空闲的控制器，直到 ctx 结束
func (r *Registry) Run(ctx context.Context) {
	ticker := r.clock.Ticker(r.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				slog.Debug("已清理空闲的列表页面", "count", n)
			}
		}
	}
}
