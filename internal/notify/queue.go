package notify

import (
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallet-flow/pkg/logger"
	"wallet-flow/pkg/monitor"
	"wallet-flow/pkg/timer"
)

const (
	// MaxVisible 同时可见的通知上限
	MaxVisible = 3
	// DefaultDuration 默认自动消失时长
	DefaultDuration = 5 * time.Second
)

// Notifier 任何模块投递通知所需的最小接口
type Notifier interface {
	Add(reqs ...Request) []string
}

// Option 构造选项
type Option func(*Queue)

func WithMaxVisible(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.maxVisible = n
		}
	}
}

func WithDefaultDuration(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.defaultDuration = d
		}
	}
}

func WithScheduler(s timer.Scheduler) Option {
	return func(q *Queue) { q.scheduler = s }
}

func WithLogger(l *zap.Logger) Option {
	return func(q *Queue) { q.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(q *Queue) { q.now = now }
}

// WithIDGenerator 替换 uuid 生成器 (测试用)
func WithIDGenerator(gen func() string) Option {
	return func(q *Queue) { q.newID = gen }
}

// Queue 按优先级排序、按消息去重、自动过期的通知队列。
// pending 按优先级降序 (同优先级保持入队顺序)，visible 最多 maxVisible 条。
type Queue struct {
	mu              sync.Mutex
	pending         []Notification
	visible         []Notification
	timers          map[string]timer.Timer
	maxVisible      int
	defaultDuration time.Duration
	scheduler       timer.Scheduler
	listeners       []func(visible []Notification)
	log             *zap.Logger
	now             func() time.Time
	newID           func() string
}

func NewQueue(opts ...Option) *Queue {
	q := &Queue{
		timers:          make(map[string]timer.Timer),
		maxVisible:      MaxVisible,
		defaultDuration: DefaultDuration,
		scheduler:       timer.System{},
		now:             time.Now,
		newID:           uuid.NewString,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.log == nil {
		q.log = logger.Named("notify")
	}
	return q
}

// OnChange 注册可见集合变化的回调 (锁外调用)
func (q *Queue) OnChange(f func(visible []Notification)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, f)
}

// Add 入队一批通知并返回生成的 ID。
// 同一批次视为同时到达: 全部排序后才开始提升，因此 error 一定先于同批次的低优先级通知可见。
func (q *Queue) Add(reqs ...Request) []string {
	if len(reqs) == 0 {
		return nil
	}

	q.mu.Lock()
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		n := Notification{
			ID:        q.newID(),
			Message:   r.Message,
			Priority:  r.Priority,
			Duration:  r.Duration,
			Action:    r.Action,
			Timestamp: q.now(),
		}
		if n.Duration <= 0 {
			n.Duration = q.defaultDuration
		}
		q.dedupLocked(n.Message)
		q.pending = append(q.pending, n)
		ids = append(ids, n.ID)
	}

	// 稳定排序: 同优先级内较新的排在较旧的后面
	sort.SliceStable(q.pending, func(i, j int) bool {
		return q.pending[i].Priority > q.pending[j].Priority
	})

	q.promoteLocked()
	visible := q.snapshotLocked()
	q.mu.Unlock()

	q.emit(visible)
	return ids
}

// dedupLocked 删除同消息的旧通知。
// 可见集合里同消息的旧条目也会被替换，保证同一消息只出现一次。
func (q *Queue) dedupLocked(message string) {
	kept := q.pending[:0]
	for _, n := range q.pending {
		if n.Message == message {
			q.log.Debug("通知去重: 替换排队中的旧条目", zap.String("id", n.ID))
			continue
		}
		kept = append(kept, n)
	}
	q.pending = kept

	for i := 0; i < len(q.visible); i++ {
		if q.visible[i].Message == message {
			q.stopTimerLocked(q.visible[i].ID)
			q.visible = append(q.visible[:i], q.visible[i+1:]...)
			i--
		}
	}
}

// promoteLocked 从 pending 头部逐条提升到 visible，直到可见数达到上限
func (q *Queue) promoteLocked() {
	for len(q.visible) < q.maxVisible && len(q.pending) > 0 {
		n := q.pending[0]
		q.pending = q.pending[1:]
		q.visible = append(q.visible, n)

		if n.Expires() {
			id := n.ID
			q.timers[id] = q.scheduler.AfterFunc(n.Duration, func() {
				q.expire(id)
			})
		}
	}
	monitor.ObserveNotifications(len(q.visible), len(q.pending))
}

func (q *Queue) expire(id string) {
	q.mu.Lock()
	if _, live := q.timers[id]; !live {
		// 已被 remove / clear / 去重，定时器作废
		q.mu.Unlock()
		return
	}
	delete(q.timers, id)
	removed := q.removeLocked(id)
	visible := q.snapshotLocked()
	q.mu.Unlock()

	if removed {
		q.log.Debug("通知自动消失", zap.String("id", id))
		q.emit(visible)
	}
}

// Remove 从 pending 与 visible 中删除，不存在时什么也不做
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	removed := q.removeLocked(id)
	visible := q.snapshotLocked()
	q.mu.Unlock()

	if removed {
		q.emit(visible)
	}
	return removed
}

func (q *Queue) removeLocked(id string) bool {
	removed := false
	for i, n := range q.pending {
		if n.ID == id {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			removed = true
			break
		}
	}
	for i, n := range q.visible {
		if n.ID == id {
			q.visible = append(q.visible[:i], q.visible[i+1:]...)
			removed = true
			break
		}
	}
	q.stopTimerLocked(id)
	if removed {
		q.promoteLocked()
	}
	return removed
}

func (q *Queue) stopTimerLocked(id string) {
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
}

// Trigger 执行通知上的操作回调 (锁外)，随后移除该通知
func (q *Queue) Trigger(id string) bool {
	q.mu.Lock()
	var action *Action
	for _, n := range q.visible {
		if n.ID == id {
			action = n.Action
			break
		}
	}
	q.mu.Unlock()

	if action == nil || action.Handler == nil {
		return false
	}
	action.Handler()
	q.Remove(id)
	return true
}

// Clear 清空全部通知，所有自动消失定时器随之作废
func (q *Queue) Clear() {
	q.mu.Lock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	q.pending = nil
	q.visible = nil
	monitor.ObserveNotifications(0, 0)
	q.mu.Unlock()

	q.emit(nil)
}

// Visible 当前可见通知的副本 (按提升顺序)
func (q *Queue) Visible() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// Pending 排队中通知的副本 (按出队顺序)
func (q *Queue) Pending() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Notification(nil), q.pending...)
}

func (q *Queue) snapshotLocked() []Notification {
	return append([]Notification(nil), q.visible...)
}

func (q *Queue) emit(visible []Notification) {
	q.mu.Lock()
	listeners := slices.Clone(q.listeners)
	q.mu.Unlock()

	for _, f := range listeners {
		f(visible)
	}
}
