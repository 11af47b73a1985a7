package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/triage-ai/palisade/services/order_strategy/internal/caller"
	"github.com/triage-ai/palisade/services/order_strategy/internal/engine"
	"github.com/triage-ai/palisade/services/order_strategy/internal/health"
	"github.com/triage-ai/palisade/services/order_strategy/internal/metrics"
	"github.com/triage-ai/palisade/services/order_strategy/internal/policy"
	"github.com/triage-ai/palisade/services/order_strategy/internal/runner"
	"github.com/triage-ai/palisade/services/order_strategy/internal/wire"
)

func main() {
	// Logger. stdout carries responses, so logs go to stderr.
	logger := mustBuildLogger(envOrDefault("ORDER_STRATEGY_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	policyFile := os.Getenv("ORDER_STRATEGY_POLICY_FILE")
	policyName := envOrDefault("ORDER_STRATEGY_POLICY_NAME", "default")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	healthMode := envOrDefault("ORDER_STRATEGY_HEALTH_MODE", "up")
	upstreamAddr := os.Getenv("UPSTREAM_HEALTH_ADDR")
	upstreamService := os.Getenv("ORDER_STRATEGY_HEALTH_SERVICE")
	healthIntervalMs := envOrDefaultInt("ORDER_STRATEGY_HEALTH_INTERVAL_MS", 2000)
	decideTimeoutMs := envOrDefaultInt("ORDER_STRATEGY_DECIDE_TIMEOUT_MS", 50)
	workers := envOrDefaultInt("ORDER_STRATEGY_WORKERS", runner.DefaultWorkers)
	batchSize := envOrDefaultInt("ORDER_STRATEGY_BATCH_SIZE", runner.DefaultBatchSize)
	metricsAddr := os.Getenv("ORDER_STRATEGY_METRICS_ADDR")
	inputPath := envOrDefault("ORDER_STRATEGY_INPUT", "-")

	logger.Info("starting order strategy runner",
		zap.String("health_mode", healthMode),
		zap.Int("decide_timeout_ms", decideTimeoutMs),
		zap.Int("workers", workers),
		zap.Int("batch_size", batchSize),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	// Policy: Postgres if DSN provided, otherwise defaults, file and env
	var cfg policy.Config
	if postgresDSN != "" {
		db, err := sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		db.SetMaxOpenConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
		loadCtx, loadCancel := context.WithTimeout(ctx, 10*time.Second)
		cfg, err = policy.LoadFromStore(loadCtx, policy.NewSQLPolicyStore(db), policyName, logger)
		loadCancel()
		_ = db.Close()
		if err != nil {
			logger.Fatal("failed to load policy from postgres", zap.String("policy_name", policyName), zap.Error(err))
		}
	} else {
		var err error
		cfg, err = policy.Load(policyFile, os.LookupEnv)
		if err != nil {
			logger.Fatal("failed to load policy", zap.String("file", policyFile), zap.Error(err))
		}
		logger.Info("policy loaded", zap.String("file", policyFile))
	}

	// Metrics are only served when an address is configured
	var m *metrics.Metrics
	if metricsAddr != "" {
		m = metrics.New(prometheus.DefaultRegisterer)
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info("metrics listening", zap.String("addr", metricsAddr))
	}

	// Health gate
	gate, closeGate, err := buildHealthGate(ctx, healthMode, upstreamAddr, upstreamService,
		time.Duration(healthIntervalMs)*time.Millisecond, m, logger)
	if err != nil {
		logger.Fatal("failed to build health gate", zap.String("mode", healthMode), zap.Error(err))
	}
	defer closeGate()

	// Decision pipeline
	svc := engine.NewService(cfg, gate, logger, engine.Options{})
	c := caller.NewCaller(svc, logger, m, time.Duration(decideTimeoutMs)*time.Millisecond)
	dec, err := wire.NewDecoder()
	if err != nil {
		logger.Fatal("failed to compile request schema", zap.Error(err))
	}
	r := runner.New(c, dec, runner.Config{Workers: workers, BatchSize: batchSize}, logger)

	in, closeIn, err := openInput(inputPath)
	if err != nil {
		logger.Fatal("failed to open input", zap.String("path", inputPath), zap.Error(err))
	}
	defer closeIn()

	stats, err := r.Process(ctx, in, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("processing stopped", zap.Int("lines", stats.Lines), zap.Error(err))
	}
}

// buildHealthGate returns the configured gate and a cleanup function.
func buildHealthGate(ctx context.Context, mode, addr, service string, interval time.Duration,
	m *metrics.Metrics, logger *zap.Logger) (engine.HealthChecker, func(), error) {
	noop := func() {}

	switch mode {
	case "clock":
		window := time.Duration(envOrDefaultInt("ORDER_STRATEGY_OUTAGE_WINDOW_S", 3)) * time.Second
		cycle := time.Duration(envOrDefaultInt("ORDER_STRATEGY_OUTAGE_CYCLE_S", 60)) * time.Second
		logger.Warn("using simulated clock outages", zap.Duration("window", window), zap.Duration("cycle", cycle))
		return health.NewClockGate(window, cycle), noop, nil

	case "grpc":
		prober, err := health.NewGRPCProber(addr, service, 0)
		if err != nil {
			return nil, noop, err
		}
		mon := health.NewMonitor(prober, health.MonitorConfig{
			Interval: interval,
			OnChange: func(s health.Status) { m.SetUpstreamHealth(int(s)) },
		}, logger)
		m.SetUpstreamHealth(int(mon.Status()))
		go mon.Run(ctx)
		logger.Info("monitoring upstream health", zap.String("addr", addr), zap.String("service", service))
		return mon, func() { _ = prober.Close() }, nil

	default:
		status, err := health.ParseStatus(mode)
		if err != nil {
			return nil, noop, err
		}
		m.SetUpstreamHealth(int(status))
		return health.NewStaticGate(status), noop, nil
	}
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
