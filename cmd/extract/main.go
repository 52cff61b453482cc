// krono-extract 批量特征提取 CLI。
// 从数据集目录批量提取调用图特征，输出训练用 CSV。
// 支持断点续跑：同一输出文件重复运行只处理未完成的样本。
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/krono-analysis/krono-extract-go/internal/batch"
	"github.com/krono-analysis/krono-extract-go/internal/catalog"
	"github.com/krono-analysis/krono-extract-go/internal/config"
	"github.com/krono-analysis/krono-extract-go/internal/decompiler"
	"github.com/krono-analysis/krono-extract-go/internal/extractor"
	"github.com/krono-analysis/krono-extract-go/internal/features"
	"github.com/krono-analysis/krono-extract-go/internal/graphmetrics"
	"github.com/krono-analysis/krono-extract-go/internal/indicators"
	"github.com/krono-analysis/krono-extract-go/internal/repository"
)

var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		datasetDir = flag.String("dataset", "./dataset", "数据集根目录（含 benign/ 和 malware/ 子目录）")
		outputPath = flag.String("out", "./output/features.csv", "输出 CSV 路径")
		subset     = flag.String("subset", "", "只处理一个子集: benign 或 malware（默认全部）")
		limit      = flag.Int("limit", 0, "最多处理的样本数（0 = 不限制）")
		workers    = flag.Int("processes", 0, "并发 worker 数（0 = CPU 核数减 2）")
		configPath = flag.String("config", "./configs/config.yaml", "配置文件路径")
		version    = flag.Bool("version", false, "打印版本后退出")
	)
	flag.Parse()

	if *version {
		fmt.Printf("krono-extract %s (build %s, commit %s)\n", Version, BuildTime, GitCommit)
		return
	}

	if *subset != "" && *subset != "benign" && *subset != "malware" {
		log.Fatalf("invalid --subset %q: must be benign or malware", *subset)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *workers > 0 {
		cfg.Extraction.Workers = *workers
	}

	logger := config.InitLogger(&cfg.Log)
	logger.Infof("krono-extract %s starting", Version)

	db, err := repository.InitDB(&cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to init database: %v", err)
	}

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

	orch := batch.NewOrchestrator(
		ext,
		repository.NewRunRepository(db),
		repository.NewFailureRepository(db),
		nil, // CLI 模式不开指标端点
		logger,
	)

	// Ctrl-C 触发优雅停止：不再派发新样本，在途样本跑完后退出。
	// 已完成的样本都在断点里，下次运行自动续跑。
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := orch.Run(ctx, batch.Options{
		DatasetDir:       *datasetDir,
		OutputPath:       *outputPath,
		Subset:           *subset,
		Limit:            *limit,
		Workers:          cfg.Extraction.Workers,
		MinSampleSizeKB:  cfg.Extraction.MinSampleSizeKB,
		ProgressInterval: cfg.Extraction.ProgressInterval,
	})
	if err != nil {
		logger.Fatalf("Batch extraction failed: %v", err)
	}

	// 单样本失败不影响退出码：失败明细在数据库里，批次本身是成功的
	logger.Infof("Run %s finished: %d processed, %d skipped, %d failed", run.ID, run.Processed, run.Skipped, run.Failed)
	os.Exit(0)
}
