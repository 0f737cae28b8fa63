package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"wallet-flow/internal/handler"
	"wallet-flow/internal/model"
	"wallet-flow/internal/server"
	"wallet-flow/internal/service"
	"wallet-flow/internal/service/mq"
	"wallet-flow/internal/shell"
	"wallet-flow/internal/txflow"
	"wallet-flow/pkg/cache"
	"wallet-flow/pkg/config"
	"wallet-flow/pkg/database"
	"wallet-flow/pkg/logger"
	"wallet-flow/pkg/utils/lock"

	_ "wallet-flow/docs/swagger"
)

const (
	streamMaxLen   = 100000
	drainTimeout   = 5 * time.Second
	draftKeyPrefix = "wallet_flow:"
)

// @title Wallet Flow API
// @version 1.0
// @description Wallet dashboard flow orchestration API
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url http://www.swagger.io/support
// @contact.email support@swagger.io

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1
func main() {
	// 0. 初始化 Config
	config.Init()
	cfg := config.Global

	// 1. 初始化 Logger
	logger.Init(cfg.App.Env)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. 连接数据库 (可选，用于审计记录)
	var db *gorm.DB
	if cfg.DB.Enabled {
		var err error
		db, err = database.ConnectPostgres(cfg.DB.DSN(), cfg.App.Env == "development")
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}

		if cfg.App.Env == "development" {
			logger.Info("开发环境: 尝试自动迁移 Schema (GORM AutoMigrate)...")
			if err := db.AutoMigrate(model.AllModels()...); err != nil {
				logger.Fatal("数据库自动迁移失败", zap.Error(err))
			}
		} else {
			logger.Info("生产环境: 跳过 AutoMigrate，请使用 migrate 工具管理 Schema")
		}
	}

	// 3. 连接 Redis (可选，用于草稿、消息队列与分布式锁)
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		var err error
		rdb, err = database.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Redis 连接失败", zap.Error(err))
		}
	}

	// 4. 状态转移监听器: 事件发布与审计记录
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	var listeners []txflow.Listener
	var closers []func(context.Context) error

	producer := newProducer(cfg, rdb)
	if producer != nil {
		pub := service.NewPublisher(producer, cfg.MQ.Topic, cfg.MQ.Buffer)
		go pub.Run(workerCtx)
		listeners = append(listeners, pub)
		closers = append(closers, pub.Close, func(context.Context) error { return producer.Close() })
	}

	var store service.TransitionStore
	var cronSvc *service.CronService
	if db != nil {
		store = service.NewGormStore(db)
		rec := service.NewRecorder(store, cfg.MQ.Buffer)
		go rec.Run(workerCtx)
		listeners = append(listeners, rec)
		closers = append(closers, rec.Close)

		var locker lock.DistributedLock = lock.Local{}
		if rdb != nil {
			locker = lock.NewRedisLock(rdb)
		}
		cronSvc = service.NewCronService(store, locker, cfg.Flow.Audit.Retention, cfg.Flow.Audit.Schedule)
		if err := cronSvc.Start(); err != nil {
			logger.Fatal("Cron Service 启动失败", zap.Error(err))
		}
	}

	// 5. 组合根
	flowCfg := cfg.Flow
	sh := shell.New(shell.Options{
		Flow:      &flowCfg,
		Listeners: listeners,
		Drafts:    newDraftStore(cfg, rdb),
		DraftTTL:  cfg.Store.DraftTTL,
	})

	// 6. HTTP Router & gRPC Server
	r := server.NewHTTPRouter(handler.NewFlowHandler(sh, store))
	grpcServer, healthServer := server.NewGRPCServer()

	app, err := server.New(server.Config{
		HttpPort: cfg.App.HttpPort,
		GrpcPort: cfg.App.GrpcPort,
	}, r, grpcServer, healthServer)
	if err != nil {
		logger.Fatal("应用启动失败", zap.Error(err))
	}

	// 运行 (阻塞)
	app.Run(ctx)

	// 7. 退出后资源清理
	if cronSvc != nil {
		cronSvc.Stop()
	}
	// 先关闭状态机，挂起的重试不会再产生事件
	sh.Close()

	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for _, c := range closers {
		if err := c(drainCtx); err != nil {
			logger.Warn("后台任务关闭超时", zap.Error(err))
		}
	}

	if db != nil {
		logger.Info("正在关闭数据库连接...")
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}
	if rdb != nil {
		rdb.Close()
	}
	logger.Info("系统已退出")
}

// newProducer 按 mq.type 选择消息队列实现，"none" 返回 nil
func newProducer(cfg config.Config, rdb *redis.Client) mq.Producer {
	switch cfg.MQ.Type {
	case "kafka":
		logger.Info("使用 Kafka 作为消息队列...", zap.Strings("brokers", cfg.Kafka.Brokers))
		return mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.MQ.Topic)
	case "redis":
		if rdb == nil {
			logger.Fatal("mq.type=redis 需要启用 redis.enabled")
		}
		logger.Info("使用 Redis Stream 作为消息队列...")
		return mq.NewRedisProducer(rdb, streamMaxLen)
	case "", "none":
		logger.Info("未启用消息队列，状态转移事件不会对外发布")
		return nil
	default:
		logger.Fatal("未知的消息队列类型", zap.String("type", cfg.MQ.Type))
		return nil
	}
}

// newDraftStore 启用 Redis 时使用本地 + Redis 两级缓存，否则只用进程内缓存
func newDraftStore(cfg config.Config, rdb *redis.Client) cache.Cache {
	local := cache.NewMemoryCache(cfg.Store.DraftTTL, 10*time.Minute)
	if rdb == nil {
		return local
	}
	return cache.NewMultiLevelCache(local, cache.NewRedisCache(rdb, draftKeyPrefix, cfg.Store.DraftTTL))
}
