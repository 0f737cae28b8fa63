package modal

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallet-flow/pkg/logger"
	"wallet-flow/pkg/monitor"
)

const (
	// BaseZIndex 最底层弹窗的 z-index
	BaseZIndex = 1000
	// ZIndexStep 相邻层级的差值
	ZIndexStep = 10

	KeyEscape = "Escape"
)

// Modal 栈中的一个弹窗
type Modal struct {
	ID              string         `json:"id"`
	Component       string         `json:"component"`
	Props           map[string]any `json:"props,omitempty"`
	ZIndex          int            `json:"z_index"`
	Backdrop        bool           `json:"backdrop"`
	CloseOnEscape   bool           `json:"close_on_escape"`
	CloseOnBackdrop bool           `json:"close_on_backdrop"`
	onClose         func(Modal)
}

// OpenOption Open 的选项
type OpenOption func(*Modal)

// WithID 指定弹窗 ID，默认生成 uuid
func WithID(id string) OpenOption {
	return func(m *Modal) { m.ID = id }
}

func WithProps(props map[string]any) OpenOption {
	return func(m *Modal) { m.Props = props }
}

// WithoutBackdrop 不渲染遮罩
func WithoutBackdrop() OpenOption {
	return func(m *Modal) { m.Backdrop = false }
}

// KeepOnEscape 栈顶时忽略 Escape
func KeepOnEscape() OpenOption {
	return func(m *Modal) { m.CloseOnEscape = false }
}

// KeepOnBackdrop 提示渲染层点击遮罩不关闭
func KeepOnBackdrop() OpenOption {
	return func(m *Modal) { m.CloseOnBackdrop = false }
}

// OnClose 弹窗被移出栈时回调 (锁外)
func OnClose(f func(Modal)) OpenOption {
	return func(m *Modal) { m.onClose = f }
}

// Option Stack 构造选项
type Option func(*Stack)

func WithBaseZIndex(base int) Option {
	return func(s *Stack) { s.base = base }
}

func WithZIndexStep(step int) Option {
	return func(s *Stack) {
		if step > 0 {
			s.step = step
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Stack) { s.log = l }
}

// Stack LIFO 弹窗栈。只负责顺序与 z-index，遮罩点击由渲染层根据 CloseOnBackdrop 自行处理。
type Stack struct {
	mu    sync.Mutex
	items []Modal
	base  int
	step  int
	log   *zap.Logger
}

func NewStack(opts ...Option) *Stack {
	s := &Stack{base: BaseZIndex, step: ZIndexStep}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.Named("modal")
	}
	return s
}

// Open 压栈并分配 z-index = base + 当前深度*step。
// 中间弹窗关闭后不会重新编号，因此新弹窗至少比栈顶高一个 step，z-index 始终随深度严格递增。
// 已在栈中的 ID 再次打开时直接返回已有条目。
func (s *Stack) Open(component string, opts ...OpenOption) Modal {
	m := Modal{
		Component:       component,
		Backdrop:        true,
		CloseOnEscape:   true,
		CloseOnBackdrop: true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexLocked(m.ID); i >= 0 {
		s.log.Debug("弹窗已在栈中", zap.String("id", m.ID))
		return s.items[i]
	}

	z := s.base + len(s.items)*s.step
	if n := len(s.items); n > 0 && s.items[n-1].ZIndex+s.step > z {
		z = s.items[n-1].ZIndex + s.step
	}
	m.ZIndex = z
	s.items = append(s.items, m)
	monitor.ObserveModalDepth(len(s.items))
	return m
}

// Close 关闭栈中任意位置的弹窗，其余弹窗的 z-index 不变
func (s *Stack) Close(id string) bool {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	m := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	monitor.ObserveModalDepth(len(s.items))
	s.mu.Unlock()

	fireClose(m)
	return true
}

// CloseTop 关闭栈顶弹窗
func (s *Stack) CloseTop() (Modal, bool) {
	s.mu.Lock()
	n := len(s.items)
	if n == 0 {
		s.mu.Unlock()
		return Modal{}, false
	}
	m := s.items[n-1]
	s.items = s.items[:n-1]
	monitor.ObserveModalDepth(len(s.items))
	s.mu.Unlock()

	fireClose(m)
	return m, true
}

// CloseAll 清空栈，回调按从顶到底的顺序触发
func (s *Stack) CloseAll() {
	s.mu.Lock()
	items := s.items
	s.items = nil
	monitor.ObserveModalDepth(0)
	s.mu.Unlock()

	for i := len(items) - 1; i >= 0; i-- {
		fireClose(items[i])
	}
}

// Top 栈顶弹窗
func (s *Stack) Top() (Modal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return Modal{}, false
	}
	return s.items[len(s.items)-1], true
}

// HandleEscape 全局 Escape 处理: 只看栈顶弹窗的 CloseOnEscape
func (s *Stack) HandleEscape() bool {
	s.mu.Lock()
	n := len(s.items)
	if n == 0 || !s.items[n-1].CloseOnEscape {
		s.mu.Unlock()
		return false
	}
	m := s.items[n-1]
	s.items = s.items[:n-1]
	monitor.ObserveModalDepth(len(s.items))
	s.mu.Unlock()

	fireClose(m)
	return true
}

// HandleKey 文档级键盘事件入口
func (s *Stack) HandleKey(key string) bool {
	if key != KeyEscape {
		return false
	}
	return s.HandleEscape()
}

// Items 自底向上的栈副本
func (s *Stack) Items() []Modal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Modal(nil), s.items...)
}

func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Stack) indexLocked(id string) int {
	for i, m := range s.items {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func fireClose(m Modal) {
	if m.onClose != nil {
		m.onClose(m)
	}
}
