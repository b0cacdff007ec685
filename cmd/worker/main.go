package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/videoxray/videoxray-pipeline-service/internal/domain/port"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/config"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/dynamo"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/email"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/metrics"
	miniostorage "github.com/videoxray/videoxray-pipeline-service/internal/infra/minio"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/opencv"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/postgres"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/rabbitmq"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/rekognition"
	"github.com/videoxray/videoxray-pipeline-service/internal/infra/tracing"
	"github.com/videoxray/videoxray-pipeline-service/internal/usecase"
	"github.com/videoxray/videoxray-pipeline-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting videoxray-pipeline-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.JaegerEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// Object store
	store, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:  cfg.MinIOEndpoint,
		AccessKey: cfg.MinIOAccessKey,
		SecretKey: cfg.MinIOSecretKey,
		UseSSL:    cfg.MinIOUseSSL,
		Bucket:    cfg.MinIOBucket,
	})
	fatalOnErr(err, "create object store")
	fatalOnErr(store.EnsureBucket(ctx), "ensure bucket")

	// AWS clients (recognition, optionally the result store)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	fatalOnErr(err, "load aws config")
	recognizer := rekognition.NewClient(awsCfg, log)

	var results port.ResultStore
	switch cfg.ResultStoreDriver {
	case "dynamodb":
		results = dynamo.NewFrameResultStore(awsCfg, cfg.DynamoDBTable)
	default:
		results = postgres.NewFrameResultStore(pool)
	}
	log.Info("result store selected", zap.String("driver", cfg.ResultStoreDriver))

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Pipeline components
	runs := postgres.NewRunRepository(pool)
	extractor := opencv.NewExtractor(store, cfg.SampleIntervalSecs, log)
	annotator := opencv.NewAnnotator()
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.NotificationTo, log)

	processor := usecase.NewFrameProcessor(store, results, recognizer, annotator, log,
		usecase.FrameProcessorConfig{
			MaxAttempts: cfg.FrameMaxAttempts,
			BaseDelay:   cfg.FrameRetryBaseDelay,
		})
	aggregator := usecase.NewResultAggregator(results, store, log)

	orchestrator := usecase.NewOrchestrator(
		runs, store, extractor, processor, aggregator,
		statusPub, dlqPub, notifier,
		log,
		usecase.OrchestratorConfig{
			TempDir:          cfg.TempDir,
			MaxConcurrency:   cfg.MaxConcurrency,
			FailureTolerance: cfg.FanoutFailureTolerance,
			RunMaxAttempts:   cfg.RunMaxAttempts,
			ExtractTimeout:   cfg.ExtractTimeout,
			FrameTimeout:     cfg.FrameTimeout,
			AggregateTimeout: cfg.AggregateTimeout,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		UploadQueue: cfg.RabbitMQUploadQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, orchestrator.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("videoxray-pipeline-service started, consuming triggers")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("videoxray-pipeline-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
