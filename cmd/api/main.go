package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-healthcare-api/internal/application/auth"
	"github.com/go-healthcare-api/internal/application/registration"
	"github.com/go-healthcare-api/internal/application/role"
	"github.com/go-healthcare-api/internal/application/user"
	"github.com/go-healthcare-api/internal/application/verification"
	"github.com/go-healthcare-api/internal/config"
	"github.com/go-healthcare-api/internal/domain"
	"github.com/go-healthcare-api/internal/infrastructure/cache"
	"github.com/go-healthcare-api/internal/infrastructure/dynamo"
	"github.com/go-healthcare-api/internal/infrastructure/memory"
	"github.com/go-healthcare-api/internal/infrastructure/messaging"
	"github.com/go-healthcare-api/internal/infrastructure/metrics"
	"github.com/go-healthcare-api/internal/infrastructure/postgres"
	"github.com/go-healthcare-api/internal/infrastructure/smtp"
	"github.com/go-healthcare-api/internal/pkg/password"
	transporthttp "github.com/go-healthcare-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if cfg.RedisURL != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		store = cache.NewRoleStore(store, rdb, cfg.RoleCacheTTL)
	}

	roleSvc := role.NewService(store)
	if cfg.SeedRoles {
		if err := roleSvc.Seed(ctx); err != nil {
			return fmt.Errorf("seed roles: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	transport, err := openTransport(cfg, logger)
	if err != nil {
		return err
	}
	bus, err := messaging.NewBus(transport, messaging.Config{
		MaxRetries:    cfg.JobMaxRetries,
		RetryInterval: cfg.JobRetryInterval,
	}, logger)
	if err != nil {
		return err
	}
	defer bus.Close()

	settings := verification.DefaultSettings()
	settings.TTL = cfg.VerificationCodeTTL
	worker, err := verification.NewWorker(verification.WorkerDeps{
		Store:    store,
		Mailer:   smtp.NewMailer(cfg),
		Settings: settings,
		Metrics:  m,
	})
	if err != nil {
		return err
	}
	listener := verification.NewListener(bus)
	if err := bus.OnUserRegistered("send-verification-code", listener.Handle); err != nil {
		return err
	}
	if err := bus.OnSendVerificationCode("verification-worker", worker.Handle); err != nil {
		return err
	}

	router := transporthttp.NewRouter(cfg, &transporthttp.Deps{
		Registration: registration.NewService(registration.ServiceDeps{
			Store:   store,
			Hasher:  password.NewHasher(),
			Events:  bus,
			Metrics: m,
		}),
		Auth:       auth.NewService(store),
		Users:      user.NewService(store),
		Roles:      roleSvc,
		RoleReader: store,
		Gatherer:   reg,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv,
		"store", cfg.StoreDriver, "queue", cfg.QueueDriver)
	return serve(ctx, srv, ln, bus)
}

func openStore(ctx context.Context, cfg *config.Config) (domain.TxStore, error) {
	switch cfg.StoreDriver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.DatabaseURL, !cfg.IsProduction())
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(db), nil
	case "memory":
		slog.Warn("using in-memory credential store, data is lost on restart")
		return memory.NewStore(), nil
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		// Create tables and GSIs if they don't exist.
		if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTables); err != nil {
			return nil, fmt.Errorf("bootstrap dynamo tables: %w", err)
		}
		return dynamo.NewStore(client, cfg.DynamoTables), nil
	}
}

func openTransport(cfg *config.Config, logger *slog.Logger) (messaging.Transport, error) {
	if cfg.QueueDriver == "kafka" {
		return messaging.NewKafkaTransport(cfg.KafkaBrokers, logger)
	}
	return messaging.NewGoChannelTransport(logger), nil
}
