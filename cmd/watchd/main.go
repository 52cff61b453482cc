// krono-watchd 增量提取守护进程。
// 监控入库目录，新 APK 落地后自动提取特征并追加到输出 CSV；
// 可选接入 RabbitMQ 消费远端采集机投递的样本，并提供 HTTP 查询接口。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/krono-analysis/krono-extract-go/internal/api"
	"github.com/krono-analysis/krono-extract-go/internal/api/handlers"
	"github.com/krono-analysis/krono-extract-go/internal/batch"
	"github.com/krono-analysis/krono-extract-go/internal/catalog"
	"github.com/krono-analysis/krono-extract-go/internal/config"
	"github.com/krono-analysis/krono-extract-go/internal/decompiler"
	"github.com/krono-analysis/krono-extract-go/internal/domain"
	"github.com/krono-analysis/krono-extract-go/internal/extractor"
	"github.com/krono-analysis/krono-extract-go/internal/features"
	"github.com/krono-analysis/krono-extract-go/internal/graphmetrics"
	"github.com/krono-analysis/krono-extract-go/internal/indicators"
	"github.com/krono-analysis/krono-extract-go/internal/metrics"
	"github.com/krono-analysis/krono-extract-go/internal/queue"
	"github.com/krono-analysis/krono-extract-go/internal/repository"
	"github.com/krono-analysis/krono-extract-go/internal/watcher"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
)

func main() {
	var (
		configPath   = flag.String("config", "./configs/config.yaml", "配置文件路径")
		scanExisting = flag.Bool("scan-existing", false, "启动时处理入库目录里已有的样本")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Watch.Dir == "" {
		log.Fatal("watch.dir is required for the watch daemon")
	}
	if cfg.Watch.OutputCSV == "" {
		log.Fatal("watch.output_csv is required for the watch daemon")
	}

	logger := config.InitLogger(&cfg.Log)
	logger.Infof("krono-watchd %s starting (build %s)", Version, BuildTime)

	db, err := repository.InitDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to init database: %v", err)
	}
	runRepo := repository.NewRunRepository(db)
	failureRepo := repository.NewFailureRepository(db)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	pool, err := decompiler.NewAndroguardPool(
		cfg.Decompiler.PythonPath,
		cfg.Decompiler.ScriptPath,
		cfg.Decompiler.PoolSize,
		time.Duration(cfg.Decompiler.TimeoutSeconds)*time.Second,
		logger,
	)
	if err != nil {
		logger.Fatalf("Failed to start decompiler pool: %v", err)
	}
	defer pool.Close()

	cat := catalog.Builtin()
	ext := extractor.New(
		pool,
		graphmetrics.NewCalculator(cfg.Extraction.ApproxNodeThreshold, cfg.Extraction.BetweennessSamples),
		cat,
		indicators.NewCalculator(logger),
		features.NewSchema(cat.Categories()),
		time.Duration(cfg.Extraction.SampleTimeoutSeconds)*time.Second,
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 守护进程的一个生命周期记为一次运行，失败记录都挂在它下面
	run := &domain.ExtractionRun{
		ID:             uuid.New().String(),
		DatasetDir:     cfg.Watch.Dir,
		OutputPath:     cfg.Watch.OutputCSV,
		Subset:         "watch",
		Workers:        cfg.Extraction.Workers,
		CatalogVersion: cat.Version(),
		StartedAt:      time.Now().UTC(),
	}
	if err := runRepo.Create(ctx, run); err != nil {
		logger.Fatalf("Failed to create run record: %v", err)
	}

	intake, err := batch.NewIntake(
		ext,
		cfg.Watch.OutputCSV,
		run.ID,
		cfg.Extraction.MinSampleSizeKB,
		failureRepo,
		collector,
		logger,
	)
	if err != nil {
		logger.Fatalf("Failed to open output: %v", err)
	}
	defer intake.Close()

	hub := handlers.NewProgressHub(logger)
	intake.OnResult(func(result *extractor.Result) {
		payload := map[string]interface{}{
			"sample": result.Sample.ID,
			"ok":     result.OK(),
		}
		if !result.OK() {
			payload["reason"] = string(result.Reason)
		}
		hub.Broadcast("sample", payload)

		if result.OK() {
			run.Processed++
		} else {
			run.Failed++
		}
	})

	watchLabel := domain.Label(cfg.Watch.Label)

	// 目录监控入口
	fw, err := watcher.NewSampleWatcher(cfg.Watch.Dir, "*.apk", func(ctx context.Context, apkPath string) error {
		return intake.HandleSample(ctx, apkPath, watchLabel)
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create sample watcher: %v", err)
	}
	if err := fw.Start(ctx, *scanExisting); err != nil {
		logger.Fatalf("Failed to start sample watcher: %v", err)
	}
	defer fw.Stop()

	// 可选的消息队列入口
	var consumer *queue.Consumer
	if cfg.RabbitMQ.Enabled {
		client, err := queue.NewClient(&queue.Config{
			Host:     cfg.RabbitMQ.Host,
			Port:     cfg.RabbitMQ.Port,
			User:     cfg.RabbitMQ.User,
			Password: cfg.RabbitMQ.Password,
			VHost:    cfg.RabbitMQ.VHost,
		}, cfg.RabbitMQ.Queue, cfg.Extraction.Workers, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer client.Close()

		consumer = queue.NewConsumer(client, func(ctx context.Context, msg *queue.SampleMessage) error {
			return intake.HandleSample(ctx, msg.APKPath, domain.Label(msg.Label))
		}, cfg.Extraction.Workers, logger)
		if err := consumer.Start(ctx); err != nil {
			logger.Fatalf("Failed to start queue consumer: %v", err)
		}
	}

	// HTTP 接口：健康检查、运行报告查询、指标、进度推送
	router := api.SetupRouter(cfg, logger, runRepo, failureRepo, registry, hub)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	go func() {
		logger.Infof("HTTP server listening on :%d", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown error")
	}
	if consumer != nil {
		consumer.Stop()
	}

	run.FinishedAt = time.Now().UTC()
	run.ElapsedSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	if err := runRepo.Update(context.Background(), run); err != nil {
		logger.WithError(err).Warn("Failed to persist run report")
	}

	logger.Info("krono-watchd stopped")
}
