package breaker

import (
	"errors"
	"sync"
	"time"
)

// ErrOpen 熔断器处于打开状态，调用被直接拒绝（未触达依赖方）
// 调用方可通过 errors.Is 与真实的获取失败区分
var ErrOpen = errors.New("熔断器已打开，调用被拒绝")

// State 熔断器状态
type State int

const (
	// StateClosed 关闭（正常放行）
	StateClosed State = iota
	// StateOpen 打开（直接拒绝）
	StateOpen
	// StateHalfOpen 半开（仅放行一次试探调用）
	StateHalfOpen
)

// String 状态的可读名称
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker 单个外部依赖的熔断器
//
// 状态机：
//   - Closed：放行；连续失败达到阈值 → Open
//   - Open：拒绝；距转换时刻超过恢复超时后，下一次调用作为试探进入 HalfOpen
//   - HalfOpen：仅放行一次试探；成功 → Closed（清零计数），失败 → Open（重置计时）
//
// Allow/Success/Failure 均并发安全；试探名额的抢占是原子的
type Breaker struct {
	mu sync.Mutex

	name            string
	threshold       int
	recoveryTimeout time.Duration

	state          State
	failures       int
	lastFailureAt  time.Time
	lastTransition time.Time
	trialInFlight  bool

	now func() time.Time // 可注入时钟，便于测试
}

// Snapshot 状态快照（用于运维端点与测试断言）
type Snapshot struct {
	Name           string    `json:"name"`
	State          string    `json:"state"`
	Failures       int       `json:"failures"`
	LastFailureAt  time.Time `json:"last_failure_at"`
	LastTransition time.Time `json:"last_transition"`
}

const (
	defaultThreshold       = 5
	defaultRecoveryTimeout = 60 * time.Second
)

// New 创建命名熔断器
// threshold <= 0 或 recoveryTimeout <= 0 时使用默认值（5 次 / 60s）
func New(name string, threshold int, recoveryTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	if recoveryTimeout <= 0 {
		recoveryTimeout = defaultRecoveryTimeout
	}
	return &Breaker{
		name:            name,
		threshold:       threshold,
		recoveryTimeout: recoveryTimeout,
		state:           StateClosed,
		now:             time.Now,
	}
}

// Allow 判断当前调用是否放行
// 返回 ErrOpen 表示熔断拒绝；返回 nil 表示放行（Closed 正常放行或 HalfOpen 试探名额）
// 放行后调用方必须以 Success 或 Failure 回报结果
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil

	case StateOpen:
		if b.now().Sub(b.lastTransition) < b.recoveryTimeout {
			return ErrOpen
		}
		// 恢复窗口已过：转入半开，放行本次作为试探
		b.transitionLocked(StateHalfOpen)
		b.trialInFlight = true
		return nil

	case StateHalfOpen:
		if b.trialInFlight {
			// 已有试探在途，其余调用仍被拒绝
			return ErrOpen
		}
		b.trialInFlight = true
		return nil
	}

	return nil
}

// Success 回报一次成功调用
// Closed 状态下清零失败计数；HalfOpen 试探成功则关闭熔断器
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		b.failures = 0
	case StateHalfOpen:
		b.trialInFlight = false
		b.failures = 0
		b.transitionLocked(StateClosed)
	}
}

// Failure 回报一次失败调用
// Closed 状态下累计失败，达到阈值则打开；HalfOpen 试探失败立即重新打开
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lastFailureAt = b.now()

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.threshold {
			b.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		b.trialInFlight = false
		b.transitionLocked(StateOpen)
	}
}

// State 返回当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Snapshot 返回状态快照
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Snapshot{
		Name:           b.name,
		State:          b.state.String(),
		Failures:       b.failures,
		LastFailureAt:  b.lastFailureAt,
		LastTransition: b.lastTransition,
	}
}

// transitionLocked 执行状态转换并记录时刻（需持有锁）
func (b *Breaker) transitionLocked(to State) {
	b.state = to
	b.lastTransition = b.now()
}
