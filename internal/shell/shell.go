package shell

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wallet-flow/internal/flows"
	"wallet-flow/internal/modal"
	"wallet-flow/internal/notify"
	"wallet-flow/internal/txflow"
	"wallet-flow/internal/wizard"
	"wallet-flow/pkg/cache"
	"wallet-flow/pkg/config"
	"wallet-flow/pkg/logger"
	"wallet-flow/pkg/timer"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrWizardNotFound      = errors.New("wizard not found")
	ErrDraftStoreDisabled  = errors.New("draft store is not configured")
)

const draftKeyPrefix = "wizard:"

// Options 构造 Shell 所需的依赖，零值可用 (全部使用内置默认值)
type Options struct {
	// Flow 为 nil 时使用各组件的内置常量
	Flow      *config.FlowConfig
	Scheduler timer.Scheduler
	// Listeners 挂到每个新建的交易状态机上，例如事件发布与审计记录
	Listeners []txflow.Listener
	Drafts    cache.Cache
	DraftTTL  time.Duration
	Logger    *zap.Logger
}

type wizardEntry struct {
	w        *wizard.Wizard
	template string
}

// Shell 进程内唯一的组合根: 持有全局通知队列、弹窗栈，以及按页面创建的交易状态机与向导。
// 由 main 显式构造一次并注入给 HTTP 层，不存在包级单例。
type Shell struct {
	Notifications *notify.Queue
	Modals        *modal.Stack

	opts    Options
	log     *zap.Logger
	mu      sync.Mutex
	txs     map[string]*txflow.Machine
	wizards map[string]*wizardEntry
}

func New(opts Options) *Shell {
	if opts.Scheduler == nil {
		opts.Scheduler = timer.System{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Named("shell")
	}

	queueOpts := []notify.Option{notify.WithScheduler(opts.Scheduler)}
	var stackOpts []modal.Option
	if f := opts.Flow; f != nil {
		queueOpts = append(queueOpts,
			notify.WithMaxVisible(f.Notify.MaxVisible),
			notify.WithDefaultDuration(f.Notify.DefaultDuration))
		stackOpts = append(stackOpts,
			modal.WithBaseZIndex(f.Modal.BaseZIndex),
			modal.WithZIndexStep(f.Modal.ZIndexStep))
	}

	return &Shell{
		Notifications: notify.NewQueue(queueOpts...),
		Modals:        modal.NewStack(stackOpts...),
		opts:          opts,
		log:           opts.Logger,
		txs:           make(map[string]*txflow.Machine),
		wizards:       make(map[string]*wizardEntry),
	}
}

// OpenTransaction 返回 id 对应的状态机，不存在则创建。id 为空时生成 uuid。
func (s *Shell) OpenTransaction(id string) *txflow.Machine {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.txs[id]; ok {
		return m
	}

	opts := []txflow.Option{
		txflow.WithScheduler(s.opts.Scheduler),
		txflow.WithListener(&notificationBridge{shell: s}),
	}
	if f := s.opts.Flow; f != nil {
		opts = append(opts, txflow.WithRetryPolicy(f.Tx.MaxRetries, f.Tx.RetryBackoff))
	}
	for _, l := range s.opts.Listeners {
		opts = append(opts, txflow.WithListener(l))
	}

	m := txflow.New(id, opts...)
	s.txs[id] = m
	s.log.Debug("创建交易状态机", zap.String("flow_id", id))
	return m
}

func (s *Shell) Transaction(id string) (*txflow.Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.txs[id]
	return m, ok
}

// Transactions 所有交易状态机的快照，按 ID 排序
func (s *Shell) Transactions() []txflow.Snapshot {
	s.mu.Lock()
	machines := make([]*txflow.Machine, 0, len(s.txs))
	for _, m := range s.txs {
		machines = append(machines, m)
	}
	s.mu.Unlock()

	out := make([]txflow.Snapshot, 0, len(machines))
	for _, m := range machines {
		out = append(out, m.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FlowID < out[j].FlowID })
	return out
}

// DiscardTransaction 页面销毁时调用: 关闭状态机，已调度的重试不会再触碰它
func (s *Shell) DiscardTransaction(id string) bool {
	s.mu.Lock()
	m, ok := s.txs[id]
	delete(s.txs, id)
	s.mu.Unlock()

	if ok {
		m.Close()
	}
	return ok
}

// OpenWizard 以模板创建向导，id 已存在时返回已有实例
func (s *Shell) OpenWizard(id, template string) (*wizard.Wizard, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.wizards[id]; ok {
		return e.w, nil
	}

	w, err := s.newWizardLocked(id, template)
	if err != nil {
		return nil, err
	}
	s.wizards[id] = &wizardEntry{w: w, template: template}
	return w, nil
}

func (s *Shell) newWizardLocked(id, template string) (*wizard.Wizard, error) {
	steps, err := flows.StepsFor(template, s.Notifications)
	if err != nil {
		return nil, err
	}
	return wizard.New(steps, wizard.WithName(id))
}

// Wizard 返回向导及其模板名
func (s *Shell) Wizard(id string) (*wizard.Wizard, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.wizards[id]
	if !ok {
		return nil, "", false
	}
	return e.w, e.template, true
}

// WizardIDs 已打开的向导 ID，排序后返回
func (s *Shell) WizardIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.wizards))
	for id := range s.wizards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DiscardWizard 移除向导并删除其草稿
func (s *Shell) DiscardWizard(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.wizards[id]
	delete(s.wizards, id)
	s.mu.Unlock()

	if ok && s.opts.Drafts != nil {
		if err := s.opts.Drafts.Delete(ctx, draftKeyPrefix+id); err != nil {
			s.log.Warn("删除向导草稿失败", zap.String("wizard", id), zap.Error(err))
		}
	}
	return ok
}

type draftRecord struct {
	Template string          `json:"template"`
	State    wizard.RunState `json:"state"`
}

// SaveDraft 把向导当前状态写入草稿存储
func (s *Shell) SaveDraft(ctx context.Context, id string) error {
	if s.opts.Drafts == nil {
		return ErrDraftStoreDisabled
	}
	w, template, ok := s.Wizard(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrWizardNotFound, id)
	}
	rec := draftRecord{Template: template, State: w.Snapshot()}
	return s.opts.Drafts.Set(ctx, draftKeyPrefix+id, rec, s.opts.DraftTTL)
}

// RestoreDraft 从草稿存储重建向导并注册，返回模板名
func (s *Shell) RestoreDraft(ctx context.Context, id string) (*wizard.Wizard, string, error) {
	if s.opts.Drafts == nil {
		return nil, "", ErrDraftStoreDisabled
	}
	var rec draftRecord
	if err := s.opts.Drafts.Get(ctx, draftKeyPrefix+id, &rec); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, "", fmt.Errorf("%w: %s", ErrWizardNotFound, id)
		}
		return nil, "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// 读取草稿期间可能已被并发恢复或重新打开，以内存中的实例为准
	if e, ok := s.wizards[id]; ok {
		return e.w, e.template, nil
	}
	w, err := s.newWizardLocked(id, rec.Template)
	if err != nil {
		return nil, "", err
	}
	if err := w.Restore(rec.State); err != nil {
		return nil, "", err
	}
	s.wizards[id] = &wizardEntry{w: w, template: rec.Template}
	return w, rec.Template, nil
}

// Close 关闭全部状态机并清空通知与弹窗
func (s *Shell) Close() {
	s.mu.Lock()
	machines := s.txs
	s.txs = make(map[string]*txflow.Machine)
	s.wizards = make(map[string]*wizardEntry)
	s.mu.Unlock()

	for _, m := range machines {
		m.Close()
	}
	s.Notifications.Clear()
	s.Modals.CloseAll()
}
