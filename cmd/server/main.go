package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/makeasinger/studio/internal/asset"
	"github.com/makeasinger/studio/internal/client"
	"github.com/makeasinger/studio/internal/config"
	"github.com/makeasinger/studio/internal/executor"
	"github.com/makeasinger/studio/internal/logger"
	"github.com/makeasinger/studio/internal/middleware"
	"github.com/makeasinger/studio/internal/observability"
	"github.com/makeasinger/studio/internal/orchestrator"
	"github.com/makeasinger/studio/internal/pipeline"
	"github.com/makeasinger/studio/internal/service"
	"github.com/makeasinger/studio/internal/store"
	ws "github.com/makeasinger/studio/internal/websocket"
	"github.com/makeasinger/studio/internal/worker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{
		Format: logger.FormatFor(cfg.Server.Env),
		Level:  cfg.Server.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	metricsHandler, shutdownMetrics, err := observability.InitMetrics()
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			log.Warn("failed to shutdown metrics", zap.Error(err))
		}
	}()

	// Redis backs the redis store, the asynq queue and rate limiting
	var redisClient *redis.Client
	if cfg.Store.Backend == config.StoreRedis || cfg.Worker.Dispatcher == config.DispatcherAsynq {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis not available", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
	}

	st, err := openStore(cfg, redisClient)
	if err != nil {
		return err
	}
	defer st.Close()

	storage, assetsDir, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	sink := asset.NewSink(storage, st)

	invoker, err := newInvoker(cfg, log)
	if err != nil {
		return err
	}

	registry := pipeline.NewRegistry(&pipeline.Env{
		Invoker:    invoker,
		Sink:       sink,
		Latency:    cfg.Pipeline.StageLatency,
		SampleRate: cfg.Pipeline.SampleRate,
	})

	// Initialize WebSocket hub
	hub := ws.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	opts := []orchestrator.Option{
		orchestrator.WithNotifier(hub),
		orchestrator.WithLogger(log.Named("orchestrator")),
		orchestrator.WithConcurrency(cfg.Worker.Concurrency),
	}

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	useQueue := cfg.Worker.Dispatcher == config.DispatcherAsynq
	if useQueue {
		asynqClient := asynq.NewClient(redisOpt)
		defer asynqClient.Close()
		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()
		opts = append(opts, orchestrator.WithDispatcher(worker.NewQueueDispatcher(asynqClient, inspector)))
	}

	orch := orchestrator.New(st, registry, opts...)

	if useQueue {
		srv := startWorkerServer(cfg, redisOpt, orch, log)
		if srv == nil {
			return errors.New("failed to start asynq worker server")
		}
		defer srv.Shutdown()
	}

	if err := observability.RegisterInFlightGauge(func(ctx context.Context) (int, error) {
		ids, err := orch.InFlight(ctx)
		return len(ids), err
	}); err != nil {
		log.Warn("in-flight gauge unavailable", zap.Error(err))
	}

	limiter := middleware.NewRateLimiter(nil, log)
	if redisClient != nil {
		limiter = middleware.NewRateLimiter(redisClient, log)
	}

	app := newApp(cfg, &services{
		generation: service.NewGenerationService(orch, st, st),
		projects:   service.NewProjectService(st),
		voices:     service.NewVoiceService(st, sink, cfg.Pipeline.SampleRate, log.Named("voice")),
		hub:        hub,
		limiter:    limiter,
		metrics:    metricsHandler,
		assetsDir:  assetsDir,
	}, log.Named("http"))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Server.Port
		log.Info("server starting",
			zap.String("addr", addr),
			zap.String("store", cfg.Store.Backend),
			zap.String("storage", cfg.Storage.Backend),
			zap.String("executor", cfg.Executor.Mode),
			zap.String("dispatcher", cfg.Worker.Dispatcher),
		)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("server shutdown error", zap.Error(err))
	}
	if local, ok := orch.Dispatcher().(*orchestrator.LocalDispatcher); ok {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := local.Shutdown(shutdownCtx); err != nil {
			log.Warn("jobs still running at shutdown were cancelled", zap.Error(err))
		}
	}
	return nil
}

func openStore(cfg *config.Config, redisClient *redis.Client) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.StoreRedis:
		return store.NewRedis(redisClient, cfg.Store.JobTTL), nil
	case config.StoreSQLite:
		return store.OpenSQLite(cfg.Store.SQLitePath)
	default:
		return store.NewMemory(), nil
	}
}

// openStorage returns the blob storage and, for local storage, the directory
// to serve statically.
func openStorage(ctx context.Context, cfg *config.Config) (client.StorageClient, string, error) {
	if cfg.Storage.Backend == config.StorageR2 {
		r2, err := client.NewR2Client(ctx, &cfg.R2)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create R2 client: %w", err)
		}
		return r2, "", nil
	}

	local, err := client.NewLocalStorage(cfg.Storage.AssetsDir, cfg.Storage.PublicPath)
	if err != nil {
		return nil, "", err
	}
	return local, local.Root(), nil
}

func newInvoker(cfg *config.Config, log *zap.Logger) (*executor.Executor, error) {
	catalog, err := executor.LoadCatalog(cfg.Executor.PromptsPath)
	if err != nil {
		return nil, err
	}

	opts := []executor.Option{executor.WithLogger(log.Named("executor"))}
	if cfg.Executor.Mode == config.ModeLive {
		transport := client.NewGenerationClient(&cfg.Generation)
		if !transport.IsConfigured() {
			return nil, errors.New("live executor mode requires GENERATION_API_KEY")
		}
		return executor.NewLive(catalog, transport, opts...), nil
	}
	opts = append(opts, executor.WithPacing(cfg.Executor.Pacing))
	return executor.NewMock(catalog, opts...), nil
}

func startWorkerServer(cfg *config.Config, redisOpt asynq.RedisClientOpt, orch *orchestrator.Orchestrator, log *zap.Logger) *asynq.Server {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
		Queues: map[string]int{
			worker.QueueJobs: 1,
		},
		Logger:   logger.NewAsynqLogger(log),
		LogLevel: logger.AsynqLevel(cfg.Server.LogLevel),
	})

	mux := asynq.NewServeMux()
	worker.NewJobWorker(orch, log).Register(mux)

	if err := srv.Start(mux); err != nil {
		log.Error("asynq worker error", zap.Error(err))
		return nil
	}
	return srv
}
