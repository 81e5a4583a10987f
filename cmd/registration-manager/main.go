// cmd/registration-manager/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"registration-workflow/internal/api"
	awsclient "registration-workflow/internal/common/aws"
	"registration-workflow/internal/common/camunda"
	"registration-workflow/internal/common/config"
	"registration-workflow/internal/common/database"
	"registration-workflow/internal/common/logger"
	"registration-workflow/internal/common/observability"
	"registration-workflow/internal/registration/delegation"
	"registration-workflow/internal/registration/draft"
	"registration-workflow/internal/registration/guard"
	"registration-workflow/internal/registration/markers"
	"registration-workflow/internal/registration/nameregistration"
	"registration-workflow/internal/registration/notify"
	"registration-workflow/internal/registration/orchestrator"
	"registration-workflow/internal/registration/search"

	ccf "registration-workflow/internal/workers/registration/cancel-client-fill"
	cfs "registration-workflow/internal/workers/registration/check-fulfillment-status"
	rcf "registration-workflow/internal/workers/registration/request-client-fill"
	sr "registration-workflow/internal/workers/registration/submit-registration"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting registration manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("applicationType", cfg.Workflow.ApplicationType),
	)

	obs := observability.New("registration-manager")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.Timeout),
			RequestTimeout:         config.GetDuration(cfg.Camunda.RequestTimeout),
			RetryConfig:            camunda.DefaultRetryConfig,
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	defer zeebe.Close()
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	if err := pg.EnsureSchema(ctx); err != nil {
		zapLog.Fatal("schema setup failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch. Indexing is optional, so a failure only disables it ---
	var indexer search.Indexer
	var esClient *database.ElasticsearchClient
	if len(cfg.Database.Elasticsearch.Addresses) > 0 {
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping(ctx)
		}, 5, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Warn("elasticsearch unavailable, submitted registrations will not be indexed", zap.Error(err))
			esClient = nil
		} else {
			esIndexer := search.NewESIndexer(esClient.Client, esClient.Index, log)
			if err := esIndexer.EnsureIndex(ctx); err != nil {
				zapLog.Warn("search index setup failed", zap.Error(err))
			}
			indexer = esIndexer
			zapLog.Info("Elasticsearch connected successfully")
		}
	}

	// --- Notifications ---
	var sesSvc awsclient.SESService
	var snsSvc awsclient.SNSService
	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		awsCfg, err := awsclient.LoadConfig(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Warn("aws config load failed, delegation notifications disabled", zap.Error(err))
		} else {
			if cfg.Notifications.Email.Enabled {
				sesSvc = awsclient.NewSESClient(awsCfg)
			}
			if cfg.Notifications.SMS.Enabled {
				snsSvc = awsclient.NewSNSClient(awsCfg)
			}
		}
	}
	notifier := notify.NewDelegationNotifier(sesSvc, snsSvc, cfg.Notifications, log)

	// --- Registration core ---
	wf := cfg.Workflow
	markerStore := markers.NewRedisStore(rdb.GetClient(), config.GetDuration(wf.MarkerTTL), log)
	drafts := draft.NewPostgresStore(pg.GetDB(), log)
	gateway := delegation.NewPostgresGateway(pg.GetDB(), log)

	var locker guard.Locker = guard.NewMemoryLocker()
	if wf.DistributedLock {
		locker = guard.NewRedisLocker(rdb.GetClient(), config.GetDuration(wf.GuardTTL))
	}
	submissions := guard.New(locker, drafts, markerStore, wf.Routes, log)

	orch := orchestrator.New(orchestrator.Dependencies{
		Drafts:        drafts,
		Cache:         draft.NewLocalCache(wf.DraftCache.Size, config.GetDuration(wf.DraftCache.TTL)),
		Gateway:       gateway,
		Markers:       markerStore,
		Guard:         submissions,
		Registrar:     nameregistration.NewZeebeRegistrar(zeebe, wf.NameRegistration.MessageName, log),
		Notifier:      notifier,
		Indexer:       indexer,
		Observability: obs,
	}, wf, log)

	// --- Workers ---
	workers := camunda.NewWorkerGroup(zeebe.GetClient(), zapLog)

	checkCfg := config.GetWorkerConfig(cfg, cfs.TaskType)
	workers.Start(cfs.TaskType, checkCfg,
		cfs.NewHandler(cfs.FromWorkerConfig(checkCfg), gateway, log).Handle)

	requestCfg := config.GetWorkerConfig(cfg, rcf.TaskType)
	workers.Start(rcf.TaskType, requestCfg,
		rcf.NewHandler(rcf.FromWorkerConfig(requestCfg), gateway, notifier, log).Handle)

	cancelCfg := config.GetWorkerConfig(cfg, ccf.TaskType)
	workers.Start(ccf.TaskType, cancelCfg,
		ccf.NewHandler(ccf.FromWorkerConfig(cancelCfg), gateway, log).Handle)

	submitCfg := config.GetWorkerConfig(cfg, sr.TaskType)
	workers.Start(sr.TaskType, submitCfg,
		sr.NewHandler(sr.FromWorkerConfig(submitCfg), drafts, submissions, indexer, log).Handle)

	zapLog.Info("workers registered", zap.Strings("taskTypes", workers.Running()))

	// --- HTTP API ---
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	checks := map[string]api.ReadinessCheck{
		"postgres": pg.Ready,
		"redis":    rdb.Ping,
		"zeebe":    zeebe.HealthCheck,
	}
	if esClient != nil {
		checks["elasticsearch"] = esClient.Ping
	}

	sessions := api.NewSessionRegistry(wf.Sessions.Size, config.GetDuration(wf.Sessions.TTL))
	server := api.NewServer(orch, sessions, checks, zapLog, log)

	go func() {
		if err := server.Start(cfg.HTTP.Address); err != nil {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zapLog.Info("Shutting down registration manager...", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("http server shutdown failed", zap.Error(err))
	}
	workers.Stop(20 * time.Second)

	zapLog.Info("Registration manager stopped")
}
