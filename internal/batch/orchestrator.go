// Package batch 批量编排器：样本枚举、断点续跑、worker 池、进度汇报。
package batch

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/krono-analysis/krono-extract-go/internal/domain"
	"github.com/krono-analysis/krono-extract-go/internal/extractor"
	"github.com/krono-analysis/krono-extract-go/internal/metrics"
	"github.com/krono-analysis/krono-extract-go/internal/repository"
	"github.com/krono-analysis/krono-extract-go/internal/retry"
)

// Options 一次批量运行的参数
type Options struct {
	DatasetDir       string // 数据集根目录（含 benign/ 和 malware/ 子目录）
	OutputPath       string // 输出 CSV 路径
	Subset           string // "benign" / "malware" / ""（全部）
	Limit            int    // 0 = 不限制
	Workers          int
	MinSampleSizeKB  int64 // 小于该值的文件记为 too_small
	ProgressInterval int   // 每处理多少个样本打印一次进度
}

// ProgressEvent 进度快照，供 WebSocket 推送等外部订阅方消费
type ProgressEvent struct {
	RunID      string  `json:"run_id"`
	Handled    int     `json:"handled"`
	Pending    int     `json:"pending"`
	Processed  int     `json:"processed"`
	Skipped    int     `json:"skipped"`
	Failed     int     `json:"failed"`
	RatePerSec float64 `json:"rate_per_sec"`
	ETASeconds float64 `json:"eta_seconds"`
}

// ProgressFunc 进度回调。在聚合协程里同步调用，实现方必须立即返回。
type ProgressFunc func(event ProgressEvent)

// rowWriter 聚合协程的行落盘出口
type rowWriter interface {
	Append(row []string) error
	Close() error
}

// Orchestrator 批量编排器。
// 输出 CSV 和断点是系统里仅有的两处可变共享状态，所有写入都收敛到
// Run 所在的聚合协程——这是唯一的串行点，单样本计算成本远大于一次
// 追加写，不会成为吞吐瓶颈。
type Orchestrator struct {
	ext       *extractor.Extractor
	runs      repository.RunRepository
	failures  repository.FailureRepository
	collector *metrics.Collector
	logger    *logrus.Logger
	progress  ProgressFunc

	// openOutput 测试中可替换，模拟输出介质故障
	openOutput func(path string, header []string) (rowWriter, error)
}

// NewOrchestrator 创建编排器。collector 可为 nil（不采集指标）。
func NewOrchestrator(
	ext *extractor.Extractor,
	runs repository.RunRepository,
	failures repository.FailureRepository,
	collector *metrics.Collector,
	logger *logrus.Logger,
) *Orchestrator {
	return &Orchestrator{
		ext:       ext,
		runs:      runs,
		failures:  failures,
		collector: collector,
		logger:    logger,
		openOutput: func(path string, header []string) (rowWriter, error) {
			return OpenOutput(path, header)
		},
	}
}

// OnProgress 注册进度回调，必须在 Run 之前调用
func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	o.progress = fn
}

// Run 执行一次批量提取。
// 单样本失败只产生失败记录，永远不会让批次中断；
// 返回 error 仅代表编排级致命问题（数据集不可读、输出不可写等）。
// ctx 取消表示运维请求停止：不再派发新样本，在途样本跑完或超时后干净退出。
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*domain.ExtractionRun, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = 50
	}

	samples, err := enumerateSamples(opts.DatasetDir, opts.Subset, opts.Limit)
	if err != nil {
		return nil, err
	}

	// 聚合协程遇到致命错误时通过 cancelDispatch 撤掉派发
	ctx, cancelDispatch := context.WithCancel(ctx)
	defer cancelDispatch()

	output, err := o.openOutput(opts.OutputPath, o.ext.Schema().Header())
	if err != nil {
		return nil, err
	}
	defer output.Close()

	cp, err := LoadCheckpoint(opts.OutputPath)
	if err != nil {
		return nil, err
	}
	defer cp.Close()

	run := &domain.ExtractionRun{
		ID:             uuid.New().String(),
		DatasetDir:     opts.DatasetDir,
		OutputPath:     opts.OutputPath,
		Subset:         opts.Subset,
		Limit:          opts.Limit,
		Workers:        opts.Workers,
		CatalogVersion: o.ext.CatalogVersion(),
		StartedAt:      time.Now().UTC(),
	}
	if err := o.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run record: %w", err)
	}

	pending := make([]*domain.Sample, 0, len(samples))
	for _, s := range samples {
		if cp.Done(s.ID) {
			run.Skipped++
			if o.collector != nil {
				o.collector.SamplesSkipped.Inc()
			}
			continue
		}
		pending = append(pending, s)
	}

	o.logger.WithFields(logrus.Fields{
		"run_id":   run.ID,
		"total":    len(samples),
		"resumed":  run.Skipped,
		"pending":  len(pending),
		"workers":  opts.Workers,
		"catalog":  run.CatalogVersion,
		"output":   opts.OutputPath,
	}).Info("🚀 Starting batch extraction")

	taskCh := make(chan *domain.Sample)
	resultCh := make(chan *extractor.Result, opts.Workers)

	// worker 用与停止信号解耦的 context：停止只拦住派发，
	// 在途样本靠 extractor 的单样本超时兜底跑完，不会被中途掐掉记成失败
	workCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for sample := range taskCh {
				start := time.Now()
				result := o.ext.Extract(workCtx, sample)
				if o.collector != nil {
					o.collector.ExtractDuration.Observe(time.Since(start).Seconds())
				}
				resultCh <- result
			}
		}(i)
	}

	// 派发协程：派发前做结构校验，不合格的样本直接产出失败结果。
	// ctx 取消后停止派发，在途样本自然收尾。
	go func() {
		defer func() {
			close(taskCh)
			wg.Wait()
			close(resultCh)
		}()

		for _, sample := range pending {
			select {
			case <-ctx.Done():
				o.logger.Warn("Stop requested, no new samples will be dispatched")
				return
			default:
			}

			if reason, err := o.precheck(sample, opts.MinSampleSizeKB); err != nil {
				resultCh <- &extractor.Result{Sample: sample, Reason: reason, Err: err}
				continue
			}

			select {
			case taskCh <- sample:
			case <-ctx.Done():
				o.logger.Warn("Stop requested, no new samples will be dispatched")
				return
			}
		}
	}()

	// 聚合循环：唯一的写入方。
	// 成功路径先追加 CSV 行、再追加断点行，两步各自落盘；
	// 中间崩溃由断点加载时的 CSV 并集修复。
	start := time.Now()
	handled := 0
	for result := range resultCh {
		handled++

		if result.OK() {
			if err := output.Append(result.Vector.Row()); err != nil {
				return nil, o.abort(cancelDispatch, resultCh, fmt.Errorf("failed to append feature row: %w", err))
			}
			if err := cp.Mark(result.Sample.ID); err != nil {
				return nil, o.abort(cancelDispatch, resultCh, fmt.Errorf("failed to mark checkpoint: %w", err))
			}
			run.Processed++
			if result.Approx {
				run.ApproxBetweenness = true
			}
			if o.collector != nil {
				o.collector.SamplesProcessed.Inc()
			}
		} else {
			o.recordFailure(run.ID, result)
			run.Failed++
			if o.collector != nil {
				o.collector.SamplesFailed.WithLabelValues(string(result.Reason)).Inc()
			}
		}

		// 固定节奏汇报进度，避免逐条打日志的 I/O 压过单样本计算
		if handled%opts.ProgressInterval == 0 || handled == len(pending) {
			o.logProgress(handled, len(pending), run, start)
		}
	}

	run.FinishedAt = time.Now().UTC()
	run.ElapsedSeconds = run.FinishedAt.Sub(run.StartedAt).Seconds()
	if err := o.runs.Update(context.WithoutCancel(ctx), run); err != nil {
		o.logger.WithError(err).Warn("Failed to persist run report")
	}

	o.logSummary(run)
	return run, nil
}

// abort 聚合协程的致命错误退出路径：先撤掉派发，再把结果通道排空到关闭，
// 否则 worker 会永远阻塞在无人消费的结果通道上。被排空的在途结果未进断点，
// 下次运行会重试。
func (o *Orchestrator) abort(cancel context.CancelFunc, resultCh <-chan *extractor.Result, err error) error {
	cancel()
	for range resultCh {
	}
	return err
}

// precheck 派发前的轻量校验：文件大小下限 + ZIP 结构
func (o *Orchestrator) precheck(sample *domain.Sample, minSizeKB int64) (domain.FailureReason, error) {
	if minSizeKB > 0 && sample.SizeKB < float64(minSizeKB) {
		return domain.ReasonTooSmall, fmt.Errorf("sample is %.2f KB, minimum is %d KB", sample.SizeKB, minSizeKB)
	}
	if err := extractor.ValidateArchive(sample.Path); err != nil {
		return domain.ReasonInvalidArchive, err
	}
	return "", nil
}

// recordFailure 失败写入走有界重试，数据库抖动不至于丢诊断记录
func (o *Orchestrator) recordFailure(runID string, result *extractor.Result) {
	msg := ""
	if result.Err != nil {
		msg = result.Err.Error()
	}

	o.logger.WithFields(logrus.Fields{
		"sample": result.Sample.ID,
		"reason": result.Reason,
	}).WithError(result.Err).Warn("Sample failed")

	err := retry.RetryWithAttempts(context.Background(), 3, func(ctx context.Context) error {
		return o.failures.Record(ctx, runID, result.Sample.ID, result.Reason, msg)
	})
	if err != nil {
		o.logger.WithError(err).WithField("sample", result.Sample.ID).Error("Failed to persist failure record")
	}
}

func (o *Orchestrator) logProgress(handled, total int, run *domain.ExtractionRun, start time.Time) {
	elapsed := time.Since(start)
	rate := float64(handled) / elapsed.Seconds()
	remaining := time.Duration(0)
	if rate > 0 {
		remaining = time.Duration(float64(total-handled)/rate) * time.Second
	}

	o.logger.WithFields(logrus.Fields{
		"progress":  fmt.Sprintf("%d/%d", handled, total),
		"processed": run.Processed,
		"failed":    run.Failed,
		"rate":      fmt.Sprintf("%.1f/s", rate),
		"eta":       remaining.Round(time.Second).String(),
	}).Info("📊 Extraction progress")

	if o.progress != nil {
		o.progress(ProgressEvent{
			RunID:      run.ID,
			Handled:    handled,
			Pending:    total,
			Processed:  run.Processed,
			Skipped:    run.Skipped,
			Failed:     run.Failed,
			RatePerSec: rate,
			ETASeconds: remaining.Seconds(),
		})
	}
}

func (o *Orchestrator) logSummary(run *domain.ExtractionRun) {
	o.logger.WithFields(logrus.Fields{
		"run_id":             run.ID,
		"processed":          run.Processed,
		"skipped":            run.Skipped,
		"failed":             run.Failed,
		"elapsed_min":        math.Round(run.ElapsedSeconds/60*10) / 10,
		"catalog":            run.CatalogVersion,
		"approx_betweenness": run.ApproxBetweenness,
	}).Info("🏁 Batch extraction completed")
}

// enumerateSamples 枚举数据集样本。
// 目录约定：<dataset>/benign/*.apk 标签 0，<dataset>/malware/*.apk 标签 1。
// 列表排序保证多次运行枚举顺序一致；limit 作用于合并后的列表。
func enumerateSamples(datasetDir, subset string, limit int) ([]*domain.Sample, error) {
	if _, err := os.Stat(datasetDir); err != nil {
		return nil, fmt.Errorf("dataset directory unreadable: %w", err)
	}

	var samples []*domain.Sample

	collect := func(sub string, label domain.Label) error {
		dir := filepath.Join(datasetDir, sub)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return nil
		}
		paths, err := filepath.Glob(filepath.Join(dir, "*.apk"))
		if err != nil {
			return err
		}
		sort.Strings(paths)
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil {
				continue
			}
			samples = append(samples, &domain.Sample{
				ID:     filepath.Base(p),
				Path:   p,
				Label:  label,
				SizeKB: math.Round(float64(info.Size())/1024.0*100) / 100,
			})
		}
		return nil
	}

	if subset == "" || subset == "benign" {
		if err := collect("benign", domain.LabelBenign); err != nil {
			return nil, err
		}
	}
	if subset == "" || subset == "malware" {
		if err := collect("malware", domain.LabelMalware); err != nil {
			return nil, err
		}
	}

	if limit > 0 && len(samples) > limit {
		samples = samples[:limit]
	}
	return samples, nil
}
