package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-shop-api/internal/application/confirmation"
	"github.com/go-shop-api/internal/application/notification"
	"github.com/go-shop-api/internal/config"
	"github.com/go-shop-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-shop-api/internal/infrastructure/jwt"
	"github.com/go-shop-api/internal/infrastructure/memory"
	"github.com/go-shop-api/internal/infrastructure/metrics"
	redisinfra "github.com/go-shop-api/internal/infrastructure/redis"
	"github.com/go-shop-api/internal/infrastructure/smtp"
	"github.com/go-shop-api/internal/infrastructure/sns"
	transporthttp "github.com/go-shop-api/internal/transport/http"
	"github.com/go-shop-api/internal/transport/http/handler"
	appmiddleware "github.com/go-shop-api/internal/transport/http/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	envErr := godotenv.Load()
	cfg := config.Load()
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)})))
	if envErr != nil {
		slog.Info("no .env file found, reading from environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		return err
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	health := map[string]handler.Pinger{}
	var keys confirmation.KeyStore
	switch cfg.KeyStoreBackend {
	case "redis":
		rc, err := redisinfra.NewClient(ctx, cfg, m)
		if err != nil {
			return err
		}
		defer rc.Close()
		sched, err := rc.ScheduleStats(cfg.RedisStatsSchedule)
		if err != nil {
			return err
		}
		defer sched.Stop()
		health["redis"] = rc
		keys = redisinfra.NewKeyStore(rc, cfg.ConfirmationTTL)
	case "dynamo":
		keys = dynamo.NewKeyStore(dynamoClient, cfg.DynamoTables.UserVerifications, cfg.ConfirmationTTL)
	case "memory":
		slog.Warn("in-memory key store: confirmation keys are lost on restart")
		keys = memory.NewKeyStore(cfg.ConfirmationTTL)
	default:
		return fmt.Errorf("unknown KEYSTORE_BACKEND %q", cfg.KeyStoreBackend)
	}
	slog.Info("key store selected", "backend", cfg.KeyStoreBackend, "ttl", cfg.ConfirmationTTL)

	// SNS SMS sender (optional: phone confirmation is disabled without it).
	transports := notification.Transports{Mailer: smtp.NewMailer(cfg)}
	if sender, err := sns.NewSender(ctx, cfg); err == nil {
		transports.SMS = sender
	} else {
		slog.Warn("SNS sender not available", "err", err)
	}

	dispatcher := notification.NewDispatcher(transports,
		notification.WithWorkers(cfg.NotifyWorkers),
		notification.WithQueueSize(cfg.NotifyQueueSize),
		notification.WithMetrics(m),
	)
	dispatcher.Start()

	limiter := appmiddleware.NewRateLimiter(rate.Limit(5), 10)
	defer limiter.Stop()

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		UserRepo:    dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users),
		SessionRepo: dynamo.NewSessionRepo(dynamoClient, cfg.DynamoTables.Sessions),
		KeyStore:    keys,
		Dispatcher:  dispatcher,
		JWTProvider: jwtProvider,
		Metrics:     m,
		Gatherer:    reg,
		Health:      health,
		Limiter:     limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("forced shutdown: %w", err)
		}
		// Requests are drained, so nothing can Submit any more.
		if err := dispatcher.Close(shutdownCtx); err != nil {
			slog.Warn("notification queue not drained", "err", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
