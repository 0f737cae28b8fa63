package txflow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"wallet-flow/pkg/logger"
	"wallet-flow/pkg/monitor"
	"wallet-flow/pkg/timer"
)

const (
	// MaxRetries 默认自动重试上限
	MaxRetries = 3
)

// DefaultBackoff 默认退避序列，按重试次数取值，超出部分取最后一个
var DefaultBackoff = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrClosed            = errors.New("machine closed")
)

// IllegalTransitionError 当前状态下不存在该事件的转移
type IllegalTransitionError struct {
	State State
	Event EventType
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s does not accept %s", e.State, e.Event)
}

func (e *IllegalTransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Transition 一次已接受的状态转移，通知给 Listener
type Transition struct {
	FlowID  string    `json:"flow_id"`
	From    State     `json:"from"`
	To      State     `json:"to"`
	Event   EventType `json:"event"`
	Context Context   `json:"context"`
	// RetryScheduled 本次转移后是否调度了自动重试
	RetryScheduled bool `json:"retry_scheduled"`
	// RetryIn 已调度重试的延迟，可以为 0
	RetryIn time.Duration `json:"retry_in"`
	At      time.Time     `json:"at"`
}

// Listener 状态转移观察者，在状态机锁外同步调用
type Listener interface {
	OnTransition(t Transition)
}

// ListenerFunc 函数适配器
type ListenerFunc func(t Transition)

func (f ListenerFunc) OnTransition(t Transition) { f(t) }

// Snapshot 状态机的只读投影
type Snapshot struct {
	FlowID         string      `json:"flow_id"`
	State          State       `json:"state"`
	Context        Context     `json:"context"`
	History        []State     `json:"history"`
	Animation      Animation   `json:"animation"`
	Permitted      []EventType `json:"permitted"`
	RetryScheduled bool        `json:"retry_scheduled"`
}

// Option 构造选项
type Option func(*Machine)

func WithScheduler(s timer.Scheduler) Option {
	return func(m *Machine) { m.scheduler = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.log = l }
}

// WithRetryPolicy 覆盖重试上限与退避序列
func WithRetryPolicy(maxRetries int, backoff []time.Duration) Option {
	return func(m *Machine) {
		m.maxRetries = maxRetries
		if len(backoff) > 0 {
			m.backoff = append([]time.Duration(nil), backoff...)
		}
	}
}

func WithListener(l Listener) Option {
	return func(m *Machine) { m.listeners = append(m.listeners, l) }
}

func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// Machine 单笔交易的状态机。
// 所有变更都在 mu 内同步完成，定时器回调同样经过 mu，并用 gen 校验是否仍然有效。
type Machine struct {
	id         string
	mu         sync.Mutex
	state      State
	ctx        Context
	history    []State
	maxRetries int
	backoff    []time.Duration
	scheduler  timer.Scheduler
	retryTimer timer.Timer
	gen        uint64
	closed     bool
	listeners  []Listener
	log        *zap.Logger
	now        func() time.Time
}

// New 创建处于 idle 的状态机
func New(id string, opts ...Option) *Machine {
	m := &Machine{
		id:         id,
		state:      StateIdle,
		history:    []State{StateIdle},
		maxRetries: MaxRetries,
		backoff:    DefaultBackoff,
		scheduler:  timer.System{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logger.Named("txflow")
	}
	m.log = m.log.With(zap.String("flow_id", id))
	return m
}

func (m *Machine) ID() string { return m.id }

// Send 处理一个事件。非法转移不修改任何状态，返回 *IllegalTransitionError。
func (m *Machine) Send(ev Event) error {
	m.mu.Lock()
	t, err := m.sendLocked(ev)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.notify(t)
	return nil
}

func (m *Machine) sendLocked(ev Event) (Transition, error) {
	if m.closed {
		return Transition{}, ErrClosed
	}

	from := m.state
	to, ok := Next(from, ev.Type())
	if !ok {
		m.log.Warn("事件被拒绝: 状态转移表中不存在",
			zap.String("state", string(from)),
			zap.String("event", string(ev.Type())))
		monitor.ObserveRejected(string(from), string(ev.Type()))
		return Transition{}, &IllegalTransitionError{State: from, Event: ev.Type()}
	}

	// 任何已接受的转移都会作废尚未触发的重试
	m.cancelRetryLocked()

	if _, reset := ev.(Reset); reset {
		// 表内的 RESET 同样销毁本次尝试的上下文
		m.ctx = Context{}
		m.history = []State{to}
	} else {
		ev.apply(&m.ctx)
		m.history = append(m.history, to)
	}
	m.state = to

	t := Transition{
		FlowID: m.id,
		From:   from,
		To:     to,
		Event:  ev.Type(),
		At:     m.now(),
	}

	if _, failed := ev.(Failure); failed {
		m.ctx.RetryCount++
		if m.ctx.RetryCount <= m.maxRetries {
			t.RetryIn = m.scheduleRetryLocked()
			t.RetryScheduled = true
		} else {
			m.log.Info("重试次数已用尽，停留在 error 等待手动处理",
				zap.Int("retry_count", m.ctx.RetryCount))
			monitor.ObserveRetry(false)
		}
	}

	t.Context = m.ctx
	monitor.ObserveTransition(string(from), string(to), string(ev.Type()))
	m.log.Debug("状态转移",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("event", string(ev.Type())))
	return t, nil
}

// backoffFor 第 attempt 次重试 (从 1 开始) 的延迟
func (m *Machine) backoffFor(attempt int) time.Duration {
	if len(m.backoff) == 0 {
		return 0
	}
	idx := attempt - 1
	if idx >= len(m.backoff) {
		idx = len(m.backoff) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return m.backoff[idx]
}

func (m *Machine) scheduleRetryLocked() time.Duration {
	delay := m.backoffFor(m.ctx.RetryCount)
	gen := m.gen
	m.retryTimer = m.scheduler.AfterFunc(delay, func() {
		m.fireRetry(gen)
	})
	monitor.ObserveRetry(true)
	m.log.Info("已调度自动重试",
		zap.Int("attempt", m.ctx.RetryCount),
		zap.Duration("delay", delay))
	return delay
}

func (m *Machine) fireRetry(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen || m.state != StateError {
		m.mu.Unlock()
		return
	}
	m.retryTimer = nil
	t, err := m.sendLocked(Retry{})
	m.mu.Unlock()
	if err == nil {
		m.notify(t)
	}
}

// cancelRetryLocked 停止定时器并推进 gen，已经在排队的回调会因 gen 不匹配而放弃
func (m *Machine) cancelRetryLocked() {
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	m.gen++
}

// Begin 清空上下文后开始一笔新交易
func (m *Machine) Begin(d Draft) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.resetLocked()
	t, err := m.sendLocked(Start{Draft: d})
	m.mu.Unlock()
	if err != nil {
		return err
	}
	m.notify(t)
	return nil
}

// Reset 无条件回到 idle，清空上下文与历史，不经过转移表
func (m *Machine) Reset() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	from := m.state
	m.resetLocked()
	t := Transition{FlowID: m.id, From: from, To: StateIdle, Event: EventReset, At: m.now()}
	m.mu.Unlock()
	m.notify(t)
}

func (m *Machine) resetLocked() {
	m.cancelRetryLocked()
	m.state = StateIdle
	m.ctx = Context{}
	m.history = []State{StateIdle}
}

// Close 作废状态机: 取消定时器，之后的 Send 返回 ErrClosed
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.cancelRetryLocked()
	m.closed = true
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) Context() Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctx
}

// History 返回状态历史的副本
func (m *Machine) History() []State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]State(nil), m.history...)
}

// Previous 当前状态之前的状态
func (m *Machine) Previous() (State, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.history) < 2 {
		return "", false
	}
	return m.history[len(m.history)-2], true
}

// Animation 当前状态的动画标识
func (m *Machine) Animation() Animation {
	return AnimationFor(m.State())
}

// Can 当前状态是否接受该事件类型
func (m *Machine) Can(t EventType) bool {
	_, ok := Next(m.State(), t)
	return ok
}

// Permitted 当前状态下合法的事件类型
func (m *Machine) Permitted() []EventType {
	return permitted(m.State())
}

func permitted(s State) []EventType {
	var out []EventType
	for _, t := range EventTypes {
		if _, ok := transitions[s][t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		FlowID:         m.id,
		State:          m.state,
		Context:        m.ctx,
		History:        append([]State(nil), m.history...),
		Animation:      AnimationFor(m.state),
		Permitted:      permitted(m.state),
		RetryScheduled: m.retryTimer != nil,
	}
}

func (m *Machine) notify(t Transition) {
	for _, l := range m.listeners {
		l.OnTransition(t)
	}
}
