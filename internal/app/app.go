// Package app wires the stores, scheduler and services shared by the API
// server and the jobs CLI.
package app

import (
	"context"
	"fmt"

	"disputehub/internal/config"
	"disputehub/internal/repositories"
	"disputehub/internal/repositories/cache"
	"disputehub/internal/scheduler"
	"disputehub/internal/services/claim"
	"disputehub/internal/services/gateway"
	"disputehub/internal/services/investigation"
	"disputehub/internal/services/notification"
	"disputehub/internal/services/refund"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Publisher is the event sink handed to the claim and refund services.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// App holds the long-lived dependencies of one process.
type App struct {
	Config *config.Config
	Log    *zap.Logger

	DB        *gorm.DB
	Redis     *redis.Client
	Events    Publisher
	Scheduler scheduler.Scheduler
	Runner    scheduler.Runner

	Claims  claim.Service
	Refunds refund.Service
	Engine  *investigation.Engine

	closers []func() error
}

// New connects to postgres, redis and the job queue and builds the services.
// Redis is optional: without it stats are not cached and events are only
// logged.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}

	db, err := repositories.InitDB(cfg.Database, log)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() error { return repositories.Close(db) })

	var statsCache *cache.CacheService
	a.Events = notification.NewLogService(log.Named("events"))
	if cfg.Redis.Host != "" {
		client := cache.NewRedisClient(&cache.RedisConfig{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := cache.Ping(ctx, client); err != nil {
			log.Warn("redis unavailable, continuing without cache and event stream", zap.Error(err))
			client.Close()
		} else {
			a.Redis = client
			a.closers = append(a.closers, client.Close)
			statsCache = cache.NewCacheService(client, cfg.Redis.StatsTTL)
			a.Events = notification.NewService(client, cfg.Redis.EventsStream, cfg.Redis.EventsMaxLen, log.Named("events"))
		}
	}

	if err := a.openScheduler(); err != nil {
		a.Close()
		return nil, err
	}

	claimRepo := repositories.NewClaimRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	statsRepo := repositories.NewStatsRepository(db, statsCache, cfg.Redis.StatsTTL, log.Named("stats"))

	a.Engine = investigation.NewEngine(orderRepo, statsRepo, investigationConfig(cfg.Investigation), log.Named("investigation"))

	a.Claims = claim.NewService(
		claimRepo,
		a.Engine,
		refund.NewEnqueuer(a.Scheduler, log.Named("refund")),
		a.Events,
		claimConfig(cfg.Claims),
		log.Named("claim"),
	)

	a.Refunds = refund.NewService(refund.Deps{
		Refunds:   repositories.NewRefundRepository(db),
		Orders:    orderRepo,
		Ledger:    repositories.NewLedgerRepository(db),
		Claims:    claimRepo,
		Recorder:  a.Claims,
		Gateway:   gateway.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.Timeout, log.Named("stripe")),
		Scheduler: a.Scheduler,
		Events:    a.Events,
	}, refundConfig(cfg.Refund), &refund.NoopMetricsCollector{}, log.Named("refund"))

	return a, nil
}

func (a *App) openScheduler() error {
	switch a.Config.Scheduler.Driver {
	case "local":
		local, err := scheduler.OpenLocal(a.Config.Scheduler.LocalPath, a.Config.Scheduler.TickInterval, a.Log.Named("scheduler"))
		if err != nil {
			return err
		}
		a.Scheduler = local
		a.Runner = local
		a.closers = append(a.closers, local.Close)
	case "lmstfy":
		client := scheduler.NewLmstfyClient(a.Config.Lmstfy)
		a.Scheduler = scheduler.NewLmstfyScheduler(client, a.Config.Lmstfy, a.Log.Named("scheduler"))
		a.Runner = scheduler.NewWorker(client, a.Config.Lmstfy, a.Log.Named("worker"))
	default:
		return fmt.Errorf("unknown scheduler driver %q", a.Config.Scheduler.Driver)
	}
	return nil
}

// Ping reports whether postgres answers.
func (a *App) Ping(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases everything New opened, last opened first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}

func claimConfig(c config.ClaimsConfig) claim.Config {
	return claim.Config{
		ResponseWindow:       c.ResponseWindow,
		InvestigationWindow:  c.InvestigationWindow,
		AutoResolveThreshold: decimal.NewFromFloat(c.AutoResolveThreshold),
		HighPriorityAmount:   decimal.NewFromFloat(c.HighPriorityAmount),
		UrgentPriorityAmount: decimal.NewFromFloat(c.UrgentPriorityAmount),
		BatchSize:            c.BatchSize,
	}
}

// investigationConfig overrides the tunable thresholds and keeps the rest of
// the defaults.
func investigationConfig(c config.InvestigationConfig) investigation.Config {
	out := investigation.DefaultConfig()
	if c.FraudThreshold > 0 {
		out.FraudThreshold = c.FraudThreshold
	}
	if c.HighValueThreshold > 0 {
		out.HighValueThreshold = decimal.NewFromFloat(c.HighValueThreshold)
	}
	if c.RecentClaimsWindow > 0 {
		out.RecentClaimsWindow = c.RecentClaimsWindow
	}
	if c.RecentClaimsLimit > 0 {
		out.RecentClaimsLimit = c.RecentClaimsLimit
	}
	if c.LateReportingDays > 0 {
		out.LateReportingDays = c.LateReportingDays
	}
	return out
}

func refundConfig(c config.RefundConfig) refund.Config {
	return refund.Config{
		MaxRetries:     c.MaxRetries,
		MaxPolls:       c.MaxPolls,
		RetryBaseDelay: c.RetryBaseDelay,
		PollInterval:   c.PollInterval,
		GatewayTimeout: c.GatewayTimeout,
		LockTTL:        c.LockTTL,
		StalledAfter:   c.StalledAfter,
	}
}
