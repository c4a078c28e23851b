// Command server runs the fulfillment service: the HTTP API, the SQLite-backed
// workflow engine, and the OrderCreated consumers, all in one process. The
// event channel is Redis Streams when REDIS_ADDR is set, otherwise an
// in-process queue.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/shoplane/fulfillment"
	"github.com/shoplane/fulfillment/internal/bus"
	"github.com/shoplane/fulfillment/internal/httpapi"
	"github.com/shoplane/fulfillment/internal/identity"
	"github.com/shoplane/fulfillment/internal/ordersvc"
	"github.com/shoplane/fulfillment/internal/saga"
	"github.com/shoplane/fulfillment/pkg/consumer"
)

type config struct {
	HTTPAddr      string
	SQLiteDSN     string
	RedisAddr     string
	EventStream   string
	ConsumerGroup string
	ConsumerName  string
	Consumers     int
	LogLevel      string
}

func loadConfig() config {
	host, _ := os.Hostname()
	if host == "" {
		host = "fulfillment"
	}
	return config{
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		SQLiteDSN:     getEnv("SQLITE_DSN", "file:fulfillment.db?_pragma=busy_timeout(5000)"),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		EventStream:   getEnv("EVENT_STREAM", "orders.created"),
		ConsumerGroup: getEnv("CONSUMER_GROUP", "fulfillment"),
		ConsumerName:  getEnv("CONSUMER_NAME", host),
		Consumers:     getEnvInt("CONSUMERS", 2),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("sqlite", cfg.SQLiteDSN)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent workflow updates.
	db.SetMaxOpenConns(1)

	eventBus, err := newBus(ctx, cfg, logger)
	if err != nil {
		return err
	}

	engine, err := fulfillment.NewSQLiteEngineWithObserver(db, fulfillment.NewLoggingObserver(logger))
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	if err := engine.RegisterProcess(fulfillment.OrderProcess(logger)); err != nil {
		return fmt.Errorf("register process: %w", err)
	}

	orderStore, err := ordersvc.NewStore(db)
	if err != nil {
		return fmt.Errorf("init order store: %w", err)
	}
	carts := ordersvc.NewCartService(orderStore)
	orders := ordersvc.NewOrderService(orderStore, eventBus, logger)
	directory := identity.Seed()

	trigger := saga.NewTrigger(engine, fulfillment.OrderProcessKey, logger)
	cons := consumer.New(eventBus, trigger, logger)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cons.Run(ctx)
		}()
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewServer(engine, carts, orders, directory, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	wg.Wait()
	return nil
}

func newBus(ctx context.Context, cfg config, logger *slog.Logger) (bus.Bus, error) {
	if cfg.RedisAddr == "" {
		logger.Info("using in-process event bus")
		return bus.NewMemoryBus(1024), nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	b, err := bus.NewRedisBus(ctx, client, cfg.EventStream, cfg.ConsumerGroup, cfg.ConsumerName)
	if err != nil {
		return nil, fmt.Errorf("redis bus: %w", err)
	}
	logger.Info("using redis event bus",
		"addr", cfg.RedisAddr,
		"stream", cfg.EventStream,
		"group", cfg.ConsumerGroup,
	)
	return b, nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
