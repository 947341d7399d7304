package middleware

import (
	"context"
	"sync"
	"time"
)

// RateLimiter 限流判定接口。HTTP 中间件只依赖这一层。
type RateLimiter interface {
	Allow(ctx context.Context) bool
}

// TokenBucket 令牌桶限流器，作为服务入口的全局限流。
// capacity 决定允许的突发量，refillRate 决定稳态每秒放行的请求数。
type TokenBucket struct {
	mu         sync.Mutex
	capacity   int64
	tokens     int64
	refillRate int64
	lastRefill time.Time
}

// NewTokenBucket 创建令牌桶，初始装满。
func NewTokenBucket(capacity, refillRate int64) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow 先按流逝时间补充令牌，再尝试扣减一个。
func (tb *TokenBucket) Allow(ctx context.Context) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if added := int64(elapsed * float64(tb.refillRate)); added > 0 {
		tb.tokens = min(tb.tokens+added, tb.capacity)
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// SlidingWindow 滑动窗口限流器：窗口内精确计数，适合低频、按主体的配额。
type SlidingWindow struct {
	mu          sync.Mutex
	requests    []time.Time
	window      time.Duration
	maxRequests int
}

// NewSlidingWindow 创建滑动窗口限流器。
func NewSlidingWindow(window time.Duration, maxRequests int) *SlidingWindow {
	return &SlidingWindow{
		window:      window,
		maxRequests: maxRequests,
	}
}

// Allow 淘汰窗口外的记录后计数；requests 按时间递增追加，裁前缀即可。
func (sw *SlidingWindow) Allow(ctx context.Context) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	cutoff := time.Now().Add(-sw.window)
	i := 0
	for i < len(sw.requests) && !sw.requests[i].After(cutoff) {
		i++
	}
	sw.requests = sw.requests[i:]

	if len(sw.requests) < sw.maxRequests {
		sw.requests = append(sw.requests, time.Now())
		return true
	}
	return false
}

// KeyedLimiter 按 key（典型地是客户端 IP）惰性创建的一组滑动窗口。
// key 之间互不影响；窗口对象常驻不回收，key 空间由上层控制。
type KeyedLimiter struct {
	mu          sync.Mutex
	window      time.Duration
	maxRequests int
	perKey      map[string]*SlidingWindow
}

// NewKeyedLimiter 创建按 key 的滑动窗口限流器。
func NewKeyedLimiter(window time.Duration, maxRequests int) *KeyedLimiter {
	return &KeyedLimiter{
		window:      window,
		maxRequests: maxRequests,
		perKey:      make(map[string]*SlidingWindow),
	}
}

// AllowKey 判定某个 key 的请求是否放行。
func (kl *KeyedLimiter) AllowKey(ctx context.Context, key string) bool {
	kl.mu.Lock()
	sw, ok := kl.perKey[key]
	if !ok {
		sw = NewSlidingWindow(kl.window, kl.maxRequests)
		kl.perKey[key] = sw
	}
	kl.mu.Unlock()

	return sw.Allow(ctx)
}
