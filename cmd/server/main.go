package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"                  // Echo web framework
	echomw "github.com/labstack/echo/v4/middleware" // Recover, request logger, body limit
	"go.uber.org/zap"

	"github.com/cowblue-git/farm-telegram-bot/internal/admin"
	"github.com/cowblue-git/farm-telegram-bot/internal/catalog"
	"github.com/cowblue-git/farm-telegram-bot/internal/config"
	"github.com/cowblue-git/farm-telegram-bot/internal/database"
	"github.com/cowblue-git/farm-telegram-bot/internal/dispatch"
	"github.com/cowblue-git/farm-telegram-bot/internal/flow"
	"github.com/cowblue-git/farm-telegram-bot/internal/handler"
	"github.com/cowblue-git/farm-telegram-bot/internal/logger"
	"github.com/cowblue-git/farm-telegram-bot/internal/middleware"
	"github.com/cowblue-git/farm-telegram-bot/internal/model"
	"github.com/cowblue-git/farm-telegram-bot/internal/notify"
	"github.com/cowblue-git/farm-telegram-bot/internal/queue"
	"github.com/cowblue-git/farm-telegram-bot/internal/repository"
	"github.com/cowblue-git/farm-telegram-bot/internal/router"
)

func main() {
	cfg := config.Load() // Load environment config

	lg, err := logger.New(cfg.IsProd(), cfg.LogLevel)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis is the store for the redis driver and optional otherwise
	// (rate limiting, response cache).
	rdb, rerr := config.NewRedisClient()
	if rerr != nil {
		if cfg.StoreDriver == config.DriverRedis {
			lg.Fatal("redis unavailable", zap.Error(rerr))
		}
		lg.Warn("redis unavailable; cache disabled, rate limiting per process", zap.Error(rerr))
	} else {
		defer rdb.Close()
	}

	checks := map[string]handler.Pinger{}
	if rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	var store repository.Store
	switch cfg.StoreDriver {
	case config.DriverRedis:
		store = repository.NewRedisStore(rdb, model.SchemaVersion)
	case config.DriverMySQL:
		db := openMySQL(ctx, cfg, lg)
		defer db.Close()
		checks["mysql"] = db.PingContext
		store = repository.NewMySQLStore(db, model.SchemaVersion)
	case config.DriverMemory:
		lg.Warn("memory store: state is lost on restart")
		store = repository.NewMemoryStore(model.SchemaVersion, nil)
	}

	keys := repository.Keys{Prefix: cfg.KeyPrefix}
	sessions := repository.NewSessionRepo(store, keys, cfg.SessionTTL, cfg.StoreTimeout, nil)
	bookings := repository.NewBookingRepo(store, keys, cfg.StoreTimeout)
	counters := repository.NewCounterRepo(store, keys, cfg.StoreTimeout)
	locks := repository.NewLockRepo(store, keys, cfg.LockTTL, cfg.StoreTimeout)
	events := catalog.Default()

	protocol := &admin.Protocol{
		Bookings:   bookings,
		Counters:   counters,
		Locks:      locks,
		Catalog:    events,
		OperatorID: cfg.OperatorChatID,
		Log:        lg.Named("admin"),
		Now:        time.Now,
	}
	if cfg.RabbitURL != "" {
		protocol.Publisher = queue.NewAMQPPublisher(cfg.RabbitURL, lg.Named("queue"))
		protocol.PublishTimeout = cfg.PublishTimeout
	}

	engine := &flow.Engine{
		Sessions:   sessions,
		Bookings:   bookings,
		Counters:   counters,
		Catalog:    events,
		OperatorID: cfg.OperatorChatID,
		Log:        lg.Named("flow"),
		Now:        time.Now,
	}

	tg, err := notify.NewTelegram(cfg.BotToken, cfg.NotifyTimeout)
	if err != nil {
		lg.Fatal("telegram", zap.Error(err))
	}
	lg.Info("telegram bot ready", zap.String("username", tg.Username()))

	dispatcher := &dispatch.Dispatcher{
		Flow:          engine,
		Admin:         protocol,
		Notifier:      tg,
		NotifyTimeout: cfg.NotifyTimeout,
		Log:           lg.Named("dispatch"),
	}

	if cfg.AuditEnabled && cfg.RabbitURL != "" {
		consumer := queue.NewAuditConsumer(cfg.RabbitURL, cfg.AuditLogPath, lg.Named("audit"))
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				lg.Error("audit consumer stopped", zap.Error(err))
			}
		}()
	}

	e := newEcho(lg)
	router.RegisterRoutes(e, handler.Health(checks), &handler.WebhookHandler{
		Dispatcher: dispatcher,
		Secret:     cfg.WebhookSecret,
		Timeout:    cfg.WebhookTimeout,
		Log:        lg.Named("webhook"),
	}, cfg.WebhookPath)
	router.RegisterPublic(e,
		&handler.PublicHandler{Events: protocol, BotUsername: tg.Username()},
		middleware.NewRedisCache(config.LoadCacheConfig(cfg.KeyPrefix), rdb, lg.Named("cache")),
	)
	if cfg.OperatorHash != "" {
		router.RegisterOperator(e, &handler.AdminHandler{
			Views:        protocol,
			OperatorID:   cfg.OperatorChatID,
			PasswordHash: cfg.OperatorHash,
			JWTSecret:    cfg.JWTSecret,
			AccessTTLMin: cfg.AccessTTLMin,
		}, cfg.JWTSecret, middleware.NewTokenBucket(config.LoadRateLimitConfig(cfg.KeyPrefix), rdb, lg.Named("ratelimit")))
	}

	addr := ":" + cfg.Port
	go func() {
		lg.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("store", cfg.StoreDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("http server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		lg.Error("http shutdown", zap.Error(err))
	}
}

func openMySQL(ctx context.Context, cfg config.Config, lg *zap.Logger) *sql.DB {
	mctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	db, err := database.Open(mctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName))
	if err != nil {
		lg.Fatal("mysql open", zap.Error(err))
	}
	if err := database.Migrate(mctx, db); err != nil {
		lg.Fatal("mysql migrate", zap.Error(err))
	}
	return db
}

func newEcho(lg *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			lg.Info("request", fields...)
			return nil
		},
	}))
	return e
}
