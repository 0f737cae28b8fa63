package wizard

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"wallet-flow/pkg/logger"
	"wallet-flow/pkg/monitor"
)

var (
	ErrNoSteps         = errors.New("wizard: step list is empty")
	ErrDuplicateStep   = errors.New("wizard: duplicate step id")
	ErrInvalidRunState = errors.New("wizard: invalid run state")
	ErrStepNotFound    = errors.New("wizard: step not found")
)

// runValidator 校验函数 panic 时按校验出错处理，保证 validating 标记被复位
func runValidator(ctx context.Context, v Validator, data map[string]any) (ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("wizard: validator panic: %v", r)
		}
	}()
	return v(ctx, data)
}

// Validator 步骤校验。返回 true, nil 才算通过；失败信息由校验函数自己负责展示 (例如投递通知)。
type Validator func(ctx context.Context, data map[string]any) (bool, error)

// Step 向导中的一步
type Step struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Component string `json:"component"`
	// Validate 为空表示无需校验
	Validate Validator `json:"-"`
	// Skip 为 true 时前进/后退直接跳过该步，该步不会被标记完成。
	// 在向导锁内调用，不能回调 Wizard。
	Skip func(state RunState) bool `json:"-"`
}

// RunState 向导运行状态的只读投影，也用于草稿持久化
type RunState struct {
	CurrentStepIndex int                       `json:"current_step_index"`
	CurrentStepID    string                    `json:"current_step_id"`
	CompletedSteps   []string                  `json:"completed_steps"`
	StepData         map[string]map[string]any `json:"step_data"`
	IsValidating     bool                      `json:"is_validating"`
	Progress         float64                   `json:"progress"`
}

// Option 构造选项
type Option func(*Wizard)

func WithLogger(l *zap.Logger) Option {
	return func(w *Wizard) { w.log = l }
}

// WithName 用于日志与指标标签
func WithName(name string) Option {
	return func(w *Wizard) { w.name = name }
}

// Wizard 多步表单控制器
type Wizard struct {
	mu         sync.Mutex
	name       string
	steps      []Step
	index      map[string]int
	current    int
	completed  []string
	data       map[string]map[string]any
	validating bool
	// gen 每次位置变化递增，校验返回时据此判断结果是否过期
	gen       uint64
	listeners []func(RunState)
	log       *zap.Logger
}

// New 以固定步骤列表构造向导
func New(steps []Step, opts ...Option) (*Wizard, error) {
	if len(steps) == 0 {
		return nil, ErrNoSteps
	}
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		if s.ID == "" {
			return nil, fmt.Errorf("%w: step %d has no id", ErrInvalidRunState, i)
		}
		if _, dup := index[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStep, s.ID)
		}
		index[s.ID] = i
	}

	w := &Wizard{
		steps: slices.Clone(steps),
		index: index,
		data:  make(map[string]map[string]any),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Named("wizard")
	}
	if w.name != "" {
		w.log = w.log.With(zap.String("wizard", w.name))
	}
	return w, nil
}

// MustNew 步骤列表非法时 panic，用于静态模板
func MustNew(steps []Step, opts ...Option) *Wizard {
	w, err := New(steps, opts...)
	if err != nil {
		panic(err)
	}
	return w
}

// OnChange 注册状态变化回调 (锁外调用)
func (w *Wizard) OnChange(f func(RunState)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, f)
}

// Next 校验当前步骤并前进。
// 已在最后一步、正在校验或校验未通过时返回 false。校验期间不持锁，
// 若校验返回前向导已被 Previous / GoTo / Reset / Restore 移动，结果作废。
func (w *Wizard) Next(ctx context.Context) bool {
	w.mu.Lock()
	if w.validating {
		w.mu.Unlock()
		return false
	}
	target := w.forwardLocked(w.current)
	if target < 0 {
		w.mu.Unlock()
		return false
	}

	step := w.steps[w.current]
	if step.Validate == nil {
		w.completeLocked(step.ID)
		w.moveLocked(target)
		state := w.snapshotLocked()
		w.mu.Unlock()
		w.emit(state)
		return true
	}

	w.validating = true
	gen := w.gen
	data := maps.Clone(w.data[step.ID])
	state := w.snapshotLocked()
	w.mu.Unlock()
	w.emit(state)

	ok, err := runValidator(ctx, step.Validate, data)

	w.mu.Lock()
	if w.gen != gen {
		w.mu.Unlock()
		w.log.Debug("校验结果已过期", zap.String("step", step.ID))
		monitor.ObserveValidation(step.ID, "stale")
		return false
	}
	w.validating = false

	switch {
	case err != nil:
		w.log.Warn("步骤校验出错", zap.String("step", step.ID), zap.Error(err))
		monitor.ObserveValidation(step.ID, "error")
		ok = false
	case !ok:
		w.log.Debug("步骤校验未通过", zap.String("step", step.ID))
		monitor.ObserveValidation(step.ID, "rejected")
	default:
		monitor.ObserveValidation(step.ID, "passed")
		// 校验期间 Skip 条件可能随步骤数据变化，重新计算目标
		if target = w.forwardLocked(w.current); target >= 0 {
			w.completeLocked(step.ID)
			w.moveLocked(target)
		} else {
			ok = false
		}
	}
	state = w.snapshotLocked()
	w.mu.Unlock()

	w.emit(state)
	return ok
}

// Previous 后退一步，已完成集合不变
func (w *Wizard) Previous() bool {
	w.mu.Lock()
	target := -1
	for i := w.current - 1; i >= 0; i-- {
		if !w.skippedLocked(i) {
			target = i
			break
		}
	}
	if target < 0 {
		w.mu.Unlock()
		return false
	}
	w.moveLocked(target)
	state := w.snapshotLocked()
	w.mu.Unlock()

	w.emit(state)
	return true
}

// GoTo 直接跳到指定步骤，不经过校验
func (w *Wizard) GoTo(stepID string) bool {
	w.mu.Lock()
	i, ok := w.index[stepID]
	if !ok {
		w.mu.Unlock()
		return false
	}
	w.moveLocked(i)
	state := w.snapshotLocked()
	w.mu.Unlock()

	w.emit(state)
	return true
}

// UpdateStepData 浅合并到该步骤原有数据，不存在则创建
func (w *Wizard) UpdateStepData(stepID string, data map[string]any) error {
	w.mu.Lock()
	if _, ok := w.index[stepID]; !ok {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	entry := w.data[stepID]
	if entry == nil {
		entry = make(map[string]any, len(data))
		w.data[stepID] = entry
	}
	maps.Copy(entry, data)
	state := w.snapshotLocked()
	w.mu.Unlock()

	w.emit(state)
	return nil
}

// StepData 某一步骤数据的副本
func (w *Wizard) StepData(stepID string) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return maps.Clone(w.data[stepID])
}

// Progress (index+1)/total*100，跟随位置而不是完成数
func (w *Wizard) Progress() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.progressLocked()
}

// Reset 回到第一步，清空已完成集合与全部步骤数据
func (w *Wizard) Reset() {
	w.mu.Lock()
	w.completed = nil
	w.data = make(map[string]map[string]any)
	w.validating = false
	w.moveLocked(0)
	state := w.snapshotLocked()
	w.mu.Unlock()

	w.emit(state)
}

// Name 构造时传入的名称，通常是向导 ID
func (w *Wizard) Name() string { return w.name }

// Current 当前步骤
func (w *Wizard) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.steps[w.current]
}

// Steps 步骤列表副本
func (w *Wizard) Steps() []Step {
	return slices.Clone(w.steps)
}

func (w *Wizard) IsCompleted(stepID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Contains(w.completed, stepID)
}

func (w *Wizard) Snapshot() RunState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Restore 从持久化的草稿恢复。未知步骤 ID 或越界索引返回 ErrInvalidRunState。
func (w *Wizard) Restore(rs RunState) error {
	if rs.CurrentStepIndex < 0 || rs.CurrentStepIndex >= len(w.steps) {
		return fmt.Errorf("%w: index %d out of range", ErrInvalidRunState, rs.CurrentStepIndex)
	}
	if rs.CurrentStepID != "" && w.steps[rs.CurrentStepIndex].ID != rs.CurrentStepID {
		return fmt.Errorf("%w: step %s is not at index %d", ErrInvalidRunState, rs.CurrentStepID, rs.CurrentStepIndex)
	}
	for _, id := range rs.CompletedSteps {
		if _, ok := w.index[id]; !ok {
			return fmt.Errorf("%w: unknown completed step %s", ErrInvalidRunState, id)
		}
	}
	for id := range rs.StepData {
		if _, ok := w.index[id]; !ok {
			return fmt.Errorf("%w: unknown step data %s", ErrInvalidRunState, id)
		}
	}

	w.mu.Lock()
	w.completed = nil
	for _, id := range rs.CompletedSteps {
		w.completeLocked(id)
	}
	w.data = make(map[string]map[string]any, len(rs.StepData))
	for id, d := range rs.StepData {
		w.data[id] = maps.Clone(d)
	}
	w.validating = false
	w.moveLocked(rs.CurrentStepIndex)
	state := w.snapshotLocked()
	w.mu.Unlock()

	w.emit(state)
	return nil
}

// forwardLocked from 之后第一个未跳过的步骤，没有则 -1
func (w *Wizard) forwardLocked(from int) int {
	for i := from + 1; i < len(w.steps); i++ {
		if !w.skippedLocked(i) {
			return i
		}
	}
	return -1
}

func (w *Wizard) skippedLocked(i int) bool {
	skip := w.steps[i].Skip
	return skip != nil && skip(w.snapshotLocked())
}

func (w *Wizard) completeLocked(id string) {
	if !slices.Contains(w.completed, id) {
		w.completed = append(w.completed, id)
	}
}

func (w *Wizard) moveLocked(i int) {
	w.current = i
	w.gen++
	// 位置变化使进行中的校验作废
	w.validating = false
}

func (w *Wizard) progressLocked() float64 {
	return float64(w.current+1) / float64(len(w.steps)) * 100
}

func (w *Wizard) snapshotLocked() RunState {
	data := make(map[string]map[string]any, len(w.data))
	for id, d := range w.data {
		data[id] = maps.Clone(d)
	}
	return RunState{
		CurrentStepIndex: w.current,
		CurrentStepID:    w.steps[w.current].ID,
		CompletedSteps:   slices.Clone(w.completed),
		StepData:         data,
		IsValidating:     w.validating,
		Progress:         w.progressLocked(),
	}
}

func (w *Wizard) emit(state RunState) {
	w.mu.Lock()
	listeners := slices.Clone(w.listeners)
	w.mu.Unlock()

	for _, f := range listeners {
		f(state)
	}
}
