// cmd/worker-manager/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "time/tzdata"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"

	"appcc-workers/internal/api"
	awsclients "appcc-workers/internal/common/aws"
	"appcc-workers/internal/common/camunda"
	"appcc-workers/internal/common/config"
	"appcc-workers/internal/common/database"
	"appcc-workers/internal/common/logger"
	"appcc-workers/internal/common/observability"
	"appcc-workers/internal/common/templates"

	icr "appcc-workers/internal/workers/appcc/index-control-record"
	ncc "appcc-workers/internal/workers/appcc/notify-control-completed"
	scr "appcc-workers/internal/workers/appcc/submit-control-record"
	vcf "appcc-workers/internal/workers/appcc/validate-control-form"
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

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...", zap.String("app", cfg.App.Name), zap.String("environment", cfg.App.Environment))

	obs := observability.New(cfg.App.Name, log)
	defer obs.Shutdown()
	if err := obs.InitTracing(cfg.App.Name, cfg.Tracing.JaegerEndpoint); err != nil {
		zapLog.Warn("tracing disabled", zap.Error(err))
	}

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(camunda.ConfigFrom(cfg.Camunda))
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

	if err := pg.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	store := templates.NewStore(pg, redis, cfg.Forms.CacheTTL(), log)
	location := cfg.Forms.Location()

	// --- Register APPCC workers ---
	var workers []*camunda.CamundaWorker
	client := zeebe.GetClient()

	validateCfg := vcf.LoadConfig()
	validateCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, vcf.TaskType).Timeout)
	workers = startWorker(workers, client, cfg, vcf.TaskType,
		vcf.NewHandler(validateCfg, store, obs, log), log)

	submitCfg := scr.LoadConfig()
	submitCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, scr.TaskType).Timeout)
	submitCfg.DefaultUserName = cfg.Forms.DefaultUserName
	submitCfg.Location = location
	submitHandler := scr.NewHandler(submitCfg, store, obs, log)
	workers = startWorker(workers, client, cfg, scr.TaskType, submitHandler, log)

	indexCfg := icr.LoadConfig()
	indexCfg.Index = cfg.Database.Elasticsearch.RecordIndex
	indexCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, icr.TaskType).Timeout)
	workers = startWorker(workers, client, cfg, icr.TaskType,
		icr.NewHandler(indexCfg, esClient, obs, log), log)

	if config.IsWorkerEnabled(cfg, ncc.TaskType) {
		notifiers, err := awsclients.NewClients(ctx, cfg.Notifications.AWS)
		if err != nil {
			zapLog.Fatal("aws clients failed", zap.Error(err))
		}

		notifyCfg := ncc.LoadConfig()
		notifyCfg.EmailEnabled = cfg.Notifications.Email.Enabled
		notifyCfg.FromEmail = cfg.Notifications.Email.FromEmail
		notifyCfg.SMSEnabled = cfg.Notifications.SMS.Enabled
		notifyCfg.Location = location
		notifyCfg.Timeout = config.GetDuration(config.GetWorkerConfig(cfg, ncc.TaskType).Timeout)
		workers = startWorker(workers, client, cfg, ncc.TaskType,
			ncc.NewHandler(notifyCfg, pg.DB, notifiers.SES, notifiers.SNS, obs, log), log)
	}

	log.Info("workers registered", map[string]interface{}{"count": len(workers)})

	// --- Health, Metrics & Forms API ---
	server := api.New(api.Options{
		Submitter:       submitHandler,
		Publisher:       zeebe,
		Location:        location,
		DefaultUserName: cfg.Forms.DefaultUserName,
		Checks: map[string]api.Check{
			"postgres": pg.Ping,
			"redis":    redis.Ping,
			"zeebe":    zeebe.HealthCheck,
			"elasticsearch": func(context.Context) error {
				return esClient.Ping()
			},
		},
	}, log)

	go func() {
		if err := server.Start(cfg.HTTP.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Error("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("HTTP server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped")
}

// startWorker opens the worker for taskType unless it is disabled in config.
func startWorker(
	workers []*camunda.CamundaWorker,
	client zbc.Client,
	cfg *config.Config,
	taskType string,
	handler camunda.JobHandler,
	log logger.Logger,
) []*camunda.CamundaWorker {
	wcfg := config.GetWorkerConfig(cfg, taskType)
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return workers
	}

	w := camunda.NewWorker(client, taskType, wcfg.MaxJobsActive, config.GetDuration(wcfg.Timeout), handler, log)
	return append(workers, w)
}
