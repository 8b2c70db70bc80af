package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/metavr/access-service/internal/config"
	"github.com/metavr/access-service/internal/database"
	"github.com/metavr/access-service/internal/handler"
	"github.com/metavr/access-service/internal/logging"
	"github.com/metavr/access-service/internal/middleware"
	"github.com/metavr/access-service/internal/obs"
	"github.com/metavr/access-service/internal/queue"
	"github.com/metavr/access-service/internal/repository"
	"github.com/metavr/access-service/internal/router"
	"github.com/metavr/access-service/internal/service"
	"github.com/metavr/access-service/internal/utils"
)

func main() {
	cfg := config.Load() // Load environment config
	logger := logging.Setup("access-service", cfg.LogFmt, os.Stderr)
	slog.SetDefault(logger)

	metrics := obs.NewMetrics()
	security := logging.NewSecurityLogger(logger, metrics.SecurityEvent)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(cfg); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	rdb := config.NewRedisClient(logger)
	if rdb != nil {
		defer rdb.Close()
	}

	principals := repository.NewPrincipalRepo(db)
	sessions := repository.NewSessionRepo(db)
	handshakes := repository.NewHandshakeRepo(db)
	apps := repository.NewCachedApplicationRepo(repository.NewApplicationRepo(db), rdb, config.LoadAppCacheConfig())
	requests := repository.NewAccessRequestRepo(db)

	publisher := queue.NewPublisher(cfg.AMQPURL, logger)
	mailer := queue.NewMailer(queue.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		User:     cfg.SMTPUser,
		Pass:     cfg.SMTPPass,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	}, logger)

	codec := utils.NewTokenCodec(utils.TokenConfig{
		Secret:            cfg.JWTSecret,
		Issuer:            cfg.TokenIssuer,
		SessionAudience:   cfg.SessionAudience,
		HandshakeAudience: cfg.HandshakeAudience,
	})
	opts := []service.Option{
		service.WithLogger(logger),
		service.WithSecurityLog(security),
		service.WithNotifier(publisher),
		service.WithSender(mailer),
	}
	auth := service.NewAuthService(codec, principals, sessions, handshakes, service.AuthConfig{
		HandshakeTTL:  cfg.HandshakeTTL,
		SessionTTL:    cfg.SessionTTL,
		RememberMeTTL: cfg.RememberMeTTL,
		IdleTimeout:   cfg.IdleTimeout,
		TouchInterval: cfg.TouchInterval,
	}, opts...)
	access := service.NewAccessService(auth, principals, apps, requests, opts...)
	users := service.NewUserAccessService(principals, apps, requests, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := queue.NewConsumer(cfg.AMQPURL, mailer, logger).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("notification consumer stopped", "error", err)
		}
	}()

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(metrics.Middleware())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "path", v.URIPath, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				logger.ErrorContext(c.Request().Context(), "request", append(attrs, "error", v.Error)...)
				return nil
			}
			logger.InfoContext(c.Request().Context(), "request", attrs...)
			return nil
		},
	}))

	rl := config.LoadRateLimitConfig()
	guards := router.Guards{
		Sessions: auth,
		Origin:   middleware.RequireOrigin(cfg.DashboardOrigins, security),
		Limit:    middleware.NewTokenBucket(rl, rdb),
		Strict:   middleware.NewTokenBucket(rl.Strict(), rdb),
	}
	checks := []handler.Check{{Name: "mysql", Ping: db.PingContext}}
	if rdb != nil {
		checks = append(checks, handler.Check{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }})
	}
	router.RegisterRoutes(e, handler.Readiness(checks...), metrics.Handler())
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, auth, access, logger), guards)
	router.RegisterUserAccess(e, handler.NewUserAccessHandler(users, logger), guards)

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", "addr", addr, "env", cfg.Env, "redis", rdb != nil)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", "error", err)
	}
	logger.Info("stopped")
}
