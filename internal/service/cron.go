package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"wallet-flow/pkg/logger"
	"wallet-flow/pkg/utils/lock"
)

const purgeLockKey = "cron:lock:purge_transitions"

// CronService 审计记录保留期清理
type CronService struct {
	cron      *cron.Cron
	store     TransitionStore
	locker    lock.DistributedLock
	retention time.Duration
	schedule  string
	now       func() time.Time
}

// NewCronService locker 为 nil 时按单实例处理
func NewCronService(store TransitionStore, locker lock.DistributedLock, retention time.Duration, schedule string) *CronService {
	if locker == nil {
		locker = lock.Local{}
	}
	if schedule == "" {
		schedule = "@every 1h"
	}
	return &CronService{
		cron:      cron.New(),
		store:     store,
		locker:    locker,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.PurgeTransitions(context.Background()) }); err != nil {
		return err
	}
	s.cron.Start()
	logger.Info("Cron Service started", zap.String("schedule", s.schedule))
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("Cron Service stopped")
}

// PurgeTransitions 删除超过保留期的审计记录。多实例部署时通过分布式锁保证只有一个实例执行。
func (s *CronService) PurgeTransitions(ctx context.Context) int64 {
	if s.retention <= 0 {
		return 0
	}
	locked, err := s.locker.Acquire(ctx, purgeLockKey, time.Minute)
	if err != nil || !locked {
		logger.Debug("PurgeTransitions: 获取锁失败或已有实例在运行", zap.Error(err))
		return 0
	}
	defer func() { _ = s.locker.Release(ctx, purgeLockKey) }()

	before := s.now().Add(-s.retention)
	n, err := s.store.Purge(ctx, before)
	if err != nil {
		logger.Error("清理审计记录失败", zap.Error(err))
		return 0
	}
	logger.Info("清理审计记录完成", zap.Int64("deleted", n), zap.Time("before", before))
	return n
}
