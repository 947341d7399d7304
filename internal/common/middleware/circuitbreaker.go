package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CircuitBreakerState 熔断器状态。
type CircuitBreakerState int

const (
	StateClosed   CircuitBreakerState = iota // 正常放行
	StateOpen                                // 熔断中，直接拒绝
	StateHalfOpen                            // 试探恢复，限量放行
)

// CircuitBreaker 熔断器。连续失败达到阈值后打开，冷却 resetTimeout 后
// 进入半开，放行少量试探请求：成功则闭合，再失败则重新打开。
// 通知落地这类尽力而为的旁路调用用它隔离持续不可用的依赖。
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	halfOpenMax  int

	mu            sync.Mutex
	state         CircuitBreakerState
	failures      int
	halfOpenCount int
	lastFailTime  time.Time
}

// NewCircuitBreaker 创建熔断器。半开试探上限固定为 3。
func NewCircuitBreaker(name string, maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		name:         name,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		halfOpenMax:  3,
		state:        StateClosed,
	}
}

// Call 在熔断器保护下执行 fn。被拒绝时返回错误且不执行 fn。
func (cb *CircuitBreaker) Call(ctx context.Context, fn func() error) error {
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	if err := cb.allow(); err != nil {
		return err
	}

	err := fn()
	cb.record(err)
	return err
}

// State 返回当前状态（监控用）。
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// allow 判定本次调用是否放行，并完成 open→half-open 的时间驱动转换。
func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen {
		if time.Since(cb.lastFailTime) < cb.resetTimeout {
			return fmt.Errorf("circuit breaker %s is open", cb.name)
		}
		cb.state = StateHalfOpen
		cb.halfOpenCount = 0
	}

	if cb.state == StateHalfOpen {
		if cb.halfOpenCount >= cb.halfOpenMax {
			return fmt.Errorf("circuit breaker %s half-open limit reached", cb.name)
		}
		cb.halfOpenCount++
	}
	return nil
}

// record 根据调用结果推进状态机。
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.lastFailTime = time.Now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = StateOpen
			cb.halfOpenCount = 0
		}
		return
	}

	if cb.state == StateHalfOpen {
		cb.state = StateClosed
	}
	cb.failures = 0
	cb.halfOpenCount = 0
}
