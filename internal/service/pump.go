package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"wallet-flow/internal/txflow"
)

// pump 把状态机的同步回调转成单 goroutine 异步处理。
// 缓冲满时丢弃并告警，状态机所在的调用方永远不会被 I/O 阻塞。
type pump struct {
	name   string
	ch     chan txflow.Transition
	handle func(ctx context.Context, t txflow.Transition) error
	log    *zap.Logger

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func newPump(name string, buffer int, log *zap.Logger, handle func(context.Context, txflow.Transition) error) *pump {
	if buffer <= 0 {
		buffer = 1
	}
	return &pump{
		name:   name,
		ch:     make(chan txflow.Transition, buffer),
		handle: handle,
		log:    log,
		done:   make(chan struct{}),
	}
}

// OnTransition 实现 txflow.Listener
func (p *pump) OnTransition(t txflow.Transition) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.ch <- t:
	default:
		p.log.Warn("缓冲已满, 丢弃转移事件",
			zap.String("worker", p.name),
			zap.String("flow_id", t.FlowID),
			zap.String("to", string(t.To)))
	}
}

// Run 消费直到 Close 或 ctx 取消
func (p *pump) Run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-p.ch:
			if !ok {
				return
			}
			if err := p.handle(ctx, t); err != nil {
				p.log.Error("处理转移事件失败",
					zap.String("worker", p.name),
					zap.String("flow_id", t.FlowID),
					zap.Error(err))
			}
		}
	}
}

// Close 停止接收并等待已缓冲的事件处理完，ctx 到期则放弃等待
func (p *pump) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.ch)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
