package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"confesapp/backend/internal/auth"
	"confesapp/backend/internal/config"
	"confesapp/backend/internal/notify"
	"confesapp/backend/internal/obs"
	"confesapp/backend/internal/service/confessions"
	"confesapp/backend/internal/store/postgres"
	grpcTransport "confesapp/backend/internal/transport/grpc"
	"confesapp/backend/internal/transport/httpapi"
)

const serviceName = "confessiond"

var version = "dev"

func main() {
	log := newLogger(slog.LevelInfo)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = newLogger(parseLogLevel(cfg.LogLevel))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log, cfg); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, log *slog.Logger, cfg config.Config) error {
	log.Info(
		"starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("log_level", cfg.LogLevel),
		slog.String("schedule_location", cfg.ScheduleLocation.String()),
	)

	if cfg.OTelEnabled {
		shutdownTracer, err := obs.InitTracer(ctx, obs.TracerConfig{
			ServiceName: serviceName,
			Version:     version,
			Environment: cfg.Environment,
			Endpoint:    cfg.OTelEndpoint,
		})
		if err != nil {
			return fmt.Errorf("init tracer: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := shutdownTracer(sctx); err != nil {
				log.Warn("tracer shutdown failed", slog.Any("err", err))
			}
		}()
		log.Info("tracing enabled", slog.String("otel_endpoint", cfg.OTelEndpoint))
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	if cfg.DatabaseMigrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		ver, err := postgres.MigrationVersion(ctx, db)
		if err != nil {
			return fmt.Errorf("migration version: %w", err)
		}
		log.Info("migrations applied", slog.Int64("version", ver))
	}

	var notifier confessions.Notifier = notify.NewLogNotifier(log)
	if cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return fmt.Errorf("amqp publisher: %w", err)
		}
		defer func() {
			if err := pub.Close(); err != nil {
				log.Warn("amqp close failed", slog.Any("err", err))
			}
		}()
		notifier = pub
		log.Info("publishing booking events", slog.String("exchange", cfg.AMQPExchange))
	}

	svc := confessions.NewService(
		postgres.NewScheduleRepo(db),
		confessions.WithNotifier(notifier),
		confessions.WithLogger(log),
		confessions.WithLocation(cfg.ScheduleLocation),
	)
	verifier := auth.NewVerifier(cfg.JWTSecret, 0)

	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcTransport.RequestTimeout(cfg.GRPCRequestTimeout),
			grpcTransport.Authenticate(verifier),
		),
	)
	grpcTransport.RegisterConfessionBandsServer(grpcServer, grpcTransport.NewConfessionsServer(svc, log, cfg.ScheduleLocation))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	gin.SetMode(gin.ReleaseMode)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewRouter(httpapi.NewHandler(svc, log, cfg.ScheduleLocation), verifier, log),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		healthServer.Shutdown()
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
		return nil
	})

	return g.Wait()
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
		_ = h.Close()
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).With(
		slog.String("service", serviceName),
	)
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
