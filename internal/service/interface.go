package service

import (
	"context"
	"time"

	"wallet-flow/internal/model"
)

// TransitionStore 状态转移审计记录的存储
type TransitionStore interface {
	Save(ctx context.Context, rec *model.TransitionRecord) error
	// ListByFlow 按时间正序返回，limit <= 0 表示不限制
	ListByFlow(ctx context.Context, flowID string, limit int) ([]model.TransitionRecord, error)
	// Purge 删除 before 之前的记录，返回删除条数
	Purge(ctx context.Context, before time.Time) (int64, error)
}
