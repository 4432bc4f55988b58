// Package resilience 为远程模型调用提供熔断保护。
// 远程供应商连续失败达到阈值后熔断器打开，在冷却时间内直接拒绝调用，
// 冷却结束后放行单个探测请求。
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/logger"
)

// ErrOpen 熔断器打开，调用被拒绝。
var ErrOpen = errors.New("circuit breaker is open")

// Config 熔断器配置。
type Config struct {
	// MaxFailures 触发熔断的连续失败次数。
	MaxFailures int
	// Cooldown 打开后到放行探测请求前的等待时间。
	Cooldown time.Duration
	// IsFailure 判断错误是否计入失败，为空时使用 countsAsFailure。
	IsFailure func(error) bool
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{MaxFailures: 5, Cooldown: time.Minute}
}

// countsAsFailure 调用方取消不代表供应商故障。
func countsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, context.Canceled)
}

// State 熔断器状态。
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// Breaker 熔断器。
type Breaker struct {
	name      string
	max       int
	cooldown  time.Duration
	isFailure func(error) bool
	now       func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
}

// New 创建熔断器，name 用于日志。
func New(name string, cfg *Config) *Breaker {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	b := &Breaker{
		name:      name,
		max:       cfg.MaxFailures,
		cooldown:  cfg.Cooldown,
		isFailure: cfg.IsFailure,
		now:       time.Now,
	}
	if b.max <= 0 {
		b.max = 1
	}
	if b.isFailure == nil {
		b.isFailure = countsAsFailure
	}
	return b
}

// Do 通过熔断器执行 fn。ctx 已结束时直接返回其错误。
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := b.acquire()
	if err != nil {
		return err
	}
	err = fn(ctx)
	b.release(probe, err)
	return err
}

// acquire 判断是否放行，probe 表示本次调用是半开状态下的探测。
func (b *Breaker) acquire() (probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false, ErrOpen
		}
		b.state = StateHalfOpen
		logger.Infow("Circuit breaker half-open", "breaker", b.name)
		fallthrough
	case StateHalfOpen:
		if b.probing {
			return false, ErrOpen
		}
		b.probing = true
		return true, nil
	}
	return false, nil
}

func (b *Breaker) release(probe bool, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if probe {
		b.probing = false
	}
	failed := b.isFailure(err)

	switch {
	case !failed && err != nil:
		// 不计入的错误不改变状态
	case !failed:
		if b.state == StateHalfOpen {
			logger.Infow("Circuit breaker closed", "breaker", b.name)
		}
		b.state = StateClosed
		b.failures = 0
	case b.state == StateHalfOpen:
		logger.Warnw("Circuit breaker re-opened after failed probe", "breaker", b.name, "error", err)
		b.trip()
	default:
		b.failures++
		if b.state == StateClosed && b.failures >= b.max {
			logger.Warnw("Circuit breaker opened", "breaker", b.name, "failures", b.failures, "error", err)
			b.trip()
		}
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.now()
	b.probing = false
}

// State 返回当前状态。
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures 返回连续失败次数。
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset 恢复到关闭状态。
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}
