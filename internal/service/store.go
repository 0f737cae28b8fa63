package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	"wallet-flow/internal/model"
)

// GormStore 基于 gorm 的 TransitionStore
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Save(ctx context.Context, rec *model.TransitionRecord) error {
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *GormStore) ListByFlow(ctx context.Context, flowID string, limit int) ([]model.TransitionRecord, error) {
	var out []model.TransitionRecord
	q := s.db.WithContext(ctx).Where("flow_id = ?", flowID).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("created_at < ?", before).Delete(&model.TransitionRecord{})
	return res.RowsAffected, res.Error
}
