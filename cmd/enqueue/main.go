// krono-enqueue 把本地目录里的 APK 批量投入提取队列。
// 跑在采集机上，消费端是远端运行的 krono-watchd。
package main

import (
	"context"
	"flag"
	"log"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/krono-analysis/krono-extract-go/internal/config"
	"github.com/krono-analysis/krono-extract-go/internal/queue"
)

func main() {
	var (
		dir        = flag.String("dir", "", "APK 目录（必填）")
		label      = flag.Int("label", 0, "样本标签（0 良性 / 1 恶意）")
		configPath = flag.String("config", "./configs/config.yaml", "配置文件路径")
	)
	flag.Parse()

	if *dir == "" {
		log.Fatal("--dir is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logger := config.InitLogger(&cfg.Log)

	client, err := queue.NewClient(&queue.Config{
		Host:     cfg.RabbitMQ.Host,
		Port:     cfg.RabbitMQ.Port,
		User:     cfg.RabbitMQ.User,
		Password: cfg.RabbitMQ.Password,
		VHost:    cfg.RabbitMQ.VHost,
	}, cfg.RabbitMQ.Queue, 1, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer client.Close()

	producer := queue.NewProducer(client, logger)

	paths, err := filepath.Glob(filepath.Join(*dir, "*.apk"))
	if err != nil {
		logger.Fatalf("Failed to list APKs: %v", err)
	}
	sort.Strings(paths)

	ctx := context.Background()
	published := 0
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			logger.WithError(err).WithField("path", p).Warn("Skipping unresolvable path")
			continue
		}
		msg := &queue.SampleMessage{
			TaskID:  uuid.New().String(),
			APKName: filepath.Base(p),
			APKPath: abs,
			Label:   *label,
		}
		if err := producer.PublishSample(ctx, msg); err != nil {
			logger.WithError(err).WithField("apk_name", msg.APKName).Error("Failed to enqueue sample")
			continue
		}
		published++
	}

	logger.Infof("Enqueued %d/%d samples", published, len(paths))
}
