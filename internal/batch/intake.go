package batch

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krono-analysis/krono-extract-go/internal/domain"
	"github.com/krono-analysis/krono-extract-go/internal/extractor"
	"github.com/krono-analysis/krono-extract-go/internal/metrics"
	"github.com/krono-analysis/krono-extract-go/internal/repository"
	"github.com/krono-analysis/krono-extract-go/internal/retry"
)

// ResultFunc 单样本处理完成后的回调，用于进度推送
type ResultFunc func(result *extractor.Result)

// Intake 增量入口：目录监控和消息队列共用的单样本落盘器。
// 与批量编排器共享同一套 CSV/断点文件格式，watch 模式下产出的
// 特征行和批量跑出来的完全等价。
type Intake struct {
	ext       *extractor.Extractor
	output    *Output
	cp        *Checkpoint
	failures  repository.FailureRepository
	collector *metrics.Collector
	logger    *logrus.Logger

	runID     string
	minSizeKB int64
	onResult  ResultFunc

	mu sync.Mutex // CSV 追加 + 断点标记必须成对串行
}

// NewIntake 创建入口。outputPath 不存在时写入表头；collector、onResult 可为 nil。
func NewIntake(
	ext *extractor.Extractor,
	outputPath string,
	runID string,
	minSizeKB int64,
	failures repository.FailureRepository,
	collector *metrics.Collector,
	logger *logrus.Logger,
) (*Intake, error) {
	output, err := OpenOutput(outputPath, ext.Schema().Header())
	if err != nil {
		return nil, err
	}

	cp, err := LoadCheckpoint(outputPath)
	if err != nil {
		output.Close()
		return nil, err
	}

	return &Intake{
		ext:       ext,
		output:    output,
		cp:        cp,
		failures:  failures,
		collector: collector,
		logger:    logger,
		runID:     runID,
		minSizeKB: minSizeKB,
	}, nil
}

// OnResult 注册结果回调
func (in *Intake) OnResult(fn ResultFunc) {
	in.onResult = fn
}

// HandleSample 处理一个落地样本。
// 返回 error 仅代表落盘失败；样本本身提取失败会被记录后返回 nil。
func (in *Intake) HandleSample(ctx context.Context, apkPath string, label domain.Label) error {
	info, err := os.Stat(apkPath)
	if err != nil {
		return fmt.Errorf("sample unreadable: %w", err)
	}

	sample := &domain.Sample{
		ID:     filepath.Base(apkPath),
		Path:   apkPath,
		Label:  label,
		SizeKB: math.Round(float64(info.Size())/1024.0*100) / 100,
	}

	if in.cp.Done(sample.ID) {
		in.logger.WithField("sample", sample.ID).Info("Sample already extracted, skipping")
		if in.collector != nil {
			in.collector.SamplesSkipped.Inc()
		}
		return nil
	}

	var result *extractor.Result
	if reason, err := in.precheck(sample); err != nil {
		result = &extractor.Result{Sample: sample, Reason: reason, Err: err}
	} else {
		start := time.Now()
		result = in.ext.Extract(ctx, sample)
		if in.collector != nil {
			in.collector.ExtractDuration.Observe(time.Since(start).Seconds())
		}
	}

	return in.commit(result)
}

func (in *Intake) precheck(sample *domain.Sample) (domain.FailureReason, error) {
	if in.minSizeKB > 0 && sample.SizeKB < float64(in.minSizeKB) {
		return domain.ReasonTooSmall, fmt.Errorf("sample is %.2f KB, minimum is %d KB", sample.SizeKB, in.minSizeKB)
	}
	if err := extractor.ValidateArchive(sample.Path); err != nil {
		return domain.ReasonInvalidArchive, err
	}
	return "", nil
}

// commit 在锁内完成落盘和回调，回调方无需自己做并发防护
func (in *Intake) commit(result *extractor.Result) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.onResult != nil {
		defer in.onResult(result)
	}

	if result.OK() {
		if err := in.output.Append(result.Vector.Row()); err != nil {
			return fmt.Errorf("failed to append feature row: %w", err)
		}
		if err := in.cp.Mark(result.Sample.ID); err != nil {
			return fmt.Errorf("failed to mark checkpoint: %w", err)
		}
		if in.collector != nil {
			in.collector.SamplesProcessed.Inc()
		}
		in.logger.WithField("sample", result.Sample.ID).Info("Feature row written")
		return nil
	}

	in.logger.WithFields(logrus.Fields{
		"sample": result.Sample.ID,
		"reason": result.Reason,
	}).WithError(result.Err).Warn("Sample failed")

	if in.collector != nil {
		in.collector.SamplesFailed.WithLabelValues(string(result.Reason)).Inc()
	}

	msg := ""
	if result.Err != nil {
		msg = result.Err.Error()
	}
	err := retry.RetryWithAttempts(context.Background(), 3, func(ctx context.Context) error {
		return in.failures.Record(ctx, in.runID, result.Sample.ID, result.Reason, msg)
	})
	if err != nil {
		in.logger.WithError(err).WithField("sample", result.Sample.ID).Error("Failed to persist failure record")
	}
	return nil
}

// Close 关闭输出文件与断点
func (in *Intake) Close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.output.Close()
	in.cp.Close()
}
