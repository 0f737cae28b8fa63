package service

import (
	"context"

	"wallet-flow/internal/model"
	"wallet-flow/internal/txflow"
	"wallet-flow/pkg/logger"
)

// Recorder 把每次状态转移写入审计表
type Recorder struct {
	*pump
	store TransitionStore
}

func NewRecorder(store TransitionStore, buffer int) *Recorder {
	r := &Recorder{store: store}
	r.pump = newPump("recorder", buffer, logger.Named("recorder"), r.record)
	return r
}

func (r *Recorder) record(ctx context.Context, t txflow.Transition) error {
	return r.store.Save(ctx, RecordFromTransition(t))
}

// RecordFromTransition 转换为数据库模型
func RecordFromTransition(t txflow.Transition) *model.TransitionRecord {
	return &model.TransitionRecord{
		FlowID:     t.FlowID,
		FromState:  string(t.From),
		ToState:    string(t.To),
		Event:      string(t.Event),
		Sender:     t.Context.From,
		Recipient:  t.Context.To,
		Amount:     t.Context.Amount,
		TxHash:     t.Context.TxHash,
		Error:      t.Context.Error,
		RetryCount: t.Context.RetryCount,
		CreatedAt:  t.At,
	}
}
