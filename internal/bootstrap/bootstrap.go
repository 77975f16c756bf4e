// Package bootstrap 按配置组装存储、外部适配器与私信用例，供各个二进制复用
package bootstrap

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"go-dm/internal/application/ports"
	"go-dm/internal/application/usecases"
	"go-dm/internal/cache"
	"go-dm/internal/config"
	"go-dm/internal/infrastructure/adapters/external"
	"go-dm/internal/infrastructure/adapters/persistence"
	"go-dm/internal/mq"
	"go-dm/internal/ratelimit"
	"go-dm/internal/store/mongostore"
	"go-dm/internal/store/sqlstore"
)

// App 组装完成的依赖
type App struct {
	Config     *config.Config
	DB         *sql.DB
	Dialect    persistence.Dialect
	Redis      *redis.Client
	Producer   *mq.KafkaProducer
	Messaging  *usecases.MessagingUseCase
	Reconciler *usecases.Reconciler
	Logger     ports.LogService

	closers []func() error
}

// New 打开连接并组装用例；Redis、Kafka 未配置时对应能力降级为空操作
func New(ctx context.Context, cfg *config.Config, component string) (*App, error) {
	logger := external.NewLogServiceAdapter(logrus.StandardLogger(), component)
	app := &App{Config: cfg, Logger: logger}

	db, err := sqlstore.Open(cfg.DBDriver, cfg.DBDSN, sqlstore.PoolConfig{})
	if err != nil {
		return nil, err
	}
	app.DB = db
	app.Dialect = persistence.DialectFor(cfg.DBDriver)
	app.closers = append(app.closers, db.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		app.Close()
		return nil, errors.Wrap(err, "bootstrap.PingDB")
	}
	if cfg.AutoMigrate {
		if err := persistence.Migrate(ctx, db, app.Dialect, cfg.MigrateCollabTabs); err != nil {
			app.Close()
			return nil, err
		}
	}

	messages, err := app.messageRepository(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	deps := usecases.Dependencies{
		Messages:    messages,
		Pairs:       persistence.NewPairRepositoryAdapter(db, app.Dialect),
		Views:       persistence.NewViewRepositoryAdapter(db, app.Dialect),
		Blocks:      persistence.NewBlockRepositoryAdapter(db, app.Dialect),
		Greetings:   persistence.NewGreetingRepositoryAdapter(db, app.Dialect),
		Preferences: persistence.NewPreferenceRepositoryAdapter(db, app.Dialect),
		Oracle:      persistence.NewFollowOracleAdapter(db),
		Profiles:    persistence.NewProfileLookupAdapter(db),
		Media:       external.NewPublicMediaStore(cfg.MediaPublicHost, cfg.MediaPrefix),
		IDs:         external.NewIDGeneratorAdapter(),
		Metrics:     external.NewMetricsServiceAdapter(),
		Logger:      logger,
	}

	if cfg.RedisAddr != "" {
		app.Redis = cache.InitRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		app.closers = append(app.closers, app.Redis.Close)
		deps.Oracle = external.NewCachedRelationOracle(deps.Oracle, app.Redis, cfg.RelationCacheTTL, logger)
		deps.Notifier = external.NewRedisNotifier(app.Redis, logger)
		deps.Limiter = external.NewRedisRateLimiter(ratelimit.NewTokenBucketLimiter(app.Redis))
	}

	if cfg.KafkaBrokers != "" {
		p, err := mq.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaMessageTopic)
		if err != nil {
			logger.Warn(ctx, "Kafka 生产者创建失败，消息事件不会发布", map[string]interface{}{"error": err.Error()})
		} else {
			app.Producer = p
			app.closers = append(app.closers, p.Close)
			deps.Events = external.NewKafkaEventPublisher(p, logger)
		}
	}

	app.Messaging = usecases.NewMessagingUseCase(deps, usecases.MessagingConfig{
		Enabled:              cfg.DMEnabled,
		SystemAllowStranger:  cfg.AllowStrangerMessage,
		DefaultAllowStranger: cfg.DefaultAllowStranger,
		MaxContentLength:     cfg.MaxContentLength,
		PreviewLength:        cfg.PreviewLength,
		WithdrawWindow:       cfg.WithdrawWindow,
		SendQPS:              cfg.SendQPS,
		SendBurst:            cfg.SendBurst,
	})

	rec := usecases.NewReconciler(deps.Pairs, deps.Views, app.Messaging.ViewStore(), deps.Metrics, logger)
	if cfg.RepairChunkSize > 0 {
		rec.ChunkSize = cfg.RepairChunkSize
	}
	if cfg.RepairConcurrency > 0 {
		rec.Concurrency = cfg.RepairConcurrency
	}
	if cfg.RepairRetry >= 0 {
		rec.Retry = cfg.RepairRetry
	}
	app.Reconciler = rec
	return app, nil
}

func (a *App) messageRepository(ctx context.Context) (ports.MessageRepository, error) {
	if a.Config.MessageDB != "mongodb" {
		return persistence.NewMessageRepositoryAdapter(a.DB), nil
	}
	mdb, err := mongostore.Connect(ctx, a.Config.MongoURI)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { return mdb.Client().Disconnect(context.Background()) })
	return persistence.NewMongoMessageRepository(ctx, mdb)
}

// Health 数据库与 Redis 连通性
func (a *App) Health(ctx context.Context) error {
	if err := a.DB.PingContext(ctx); err != nil {
		return errors.Wrap(err, "db")
	}
	if a.Redis != nil {
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			return errors.Wrap(err, "redis")
		}
	}
	return nil
}

// RunRepairLoop 按间隔对最近活跃的会话对做对账，直到 ctx 取消
func (a *App) RunRepairLoop(ctx context.Context) {
	interval := a.Config.RepairInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			since := time.Now().UTC().Add(-a.Config.RepairLookback)
			if _, err := a.Reconciler.Sweep(ctx, since, a.Config.RepairLimit); err != nil {
				a.Logger.Warn(ctx, "定时对账失败", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// Close 逆序释放资源
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
	a.closers = nil
}
