package batch

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krono-analysis/krono-extract-go/internal/catalog"
	"github.com/krono-analysis/krono-extract-go/internal/config"
	"github.com/krono-analysis/krono-extract-go/internal/decompiler"
	"github.com/krono-analysis/krono-extract-go/internal/domain"
	"github.com/krono-analysis/krono-extract-go/internal/extractor"
	"github.com/krono-analysis/krono-extract-go/internal/features"
	"github.com/krono-analysis/krono-extract-go/internal/graphmetrics"
	"github.com/krono-analysis/krono-extract-go/internal/indicators"
	"github.com/krono-analysis/krono-extract-go/internal/repository"
)

// stubDecompiler 合成反编译产物，不依赖 Python 环境
type stubDecompiler struct{}

func (stubDecompiler) Decompile(ctx context.Context, apkPath string) (*decompiler.Unit, error) {
	return &decompiler.Unit{
		Methods: []string{
			"Lcom/app/Main;->onCreate",
			"Lcom/app/Main;->send",
			"Landroid/telephony/SmsManager;->sendTextMessage",
		},
		Edges: [][2]string{
			{"Lcom/app/Main;->onCreate", "Lcom/app/Main;->send"},
			{"Lcom/app/Main;->send", "Landroid/telephony/SmsManager;->sendTextMessage"},
		},
		Permissions: []string{"android.permission.SEND_SMS"},
	}, nil
}

func (stubDecompiler) Close() {}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestExtractor() *extractor.Extractor {
	return newTestExtractorWith(stubDecompiler{})
}

func newTestExtractorWith(dec decompiler.Decompiler) *extractor.Extractor {
	cat := catalog.Builtin()
	return extractor.New(
		dec,
		graphmetrics.NewCalculator(0, 0),
		cat,
		indicators.NewCalculator(testLogger()),
		features.NewSchema(cat.Categories()),
		30*time.Second,
		testLogger(),
	)
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, repository.RunRepository, repository.FailureRepository) {
	t.Helper()
	return newTestOrchestratorWith(t, newTestExtractor())
}

func newTestOrchestratorWith(t *testing.T, ext *extractor.Extractor) (*Orchestrator, repository.RunRepository, repository.FailureRepository) {
	t.Helper()

	db, err := repository.InitDB(&config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "test.db"),
	}, testLogger())
	require.NoError(t, err)

	runs := repository.NewRunRepository(db)
	failures := repository.NewFailureRepository(db)
	return NewOrchestrator(ext, runs, failures, nil, testLogger()), runs, failures
}

// writeAPK 生成一个合法的最小 ZIP 文件充当样本
func writeAPK(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)

	zw := zip.NewWriter(f)
	w, err := zw.Create("classes.dex")
	require.NoError(t, err)
	_, err = w.Write([]byte("dex payload"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func buildDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "benign"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "malware"), 0755))

	writeAPK(t, filepath.Join(dir, "benign", "b1.apk"))
	writeAPK(t, filepath.Join(dir, "benign", "b2.apk"))
	writeAPK(t, filepath.Join(dir, "malware", "m1.apk"))
	// 损坏样本：不是 ZIP
	require.NoError(t, os.WriteFile(filepath.Join(dir, "benign", "bad.apk"), []byte("not a zip"), 0644))
	return dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

// TestOrchestrator_EndToEnd 三个正常样本产行，损坏样本记失败，批次照常完成
func TestOrchestrator_EndToEnd(t *testing.T) {
	orch, runs, failures := newTestOrchestrator(t)
	dataset := buildDataset(t)
	out := filepath.Join(t.TempDir(), "features.csv")

	run, err := orch.Run(context.Background(), Options{
		DatasetDir: dataset,
		OutputPath: out,
		Workers:    2,
	})
	require.NoError(t, err, "单样本失败不允许让批次报错")

	assert.Equal(t, 3, run.Processed)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, 0, run.Skipped)
	assert.NotEmpty(t, run.CatalogVersion)
	assert.False(t, run.FinishedAt.IsZero())

	// CSV：表头 + 3 行特征
	records := readCSV(t, out)
	require.Len(t, records, 4)
	assert.Equal(t, "apk_name", records[0][0])
	for _, row := range records[1:] {
		assert.Len(t, row, len(records[0]))
	}

	// 运行报告已持久化
	stored, err := runs.FindByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Processed)

	// 失败归因
	counts, err := failures.CountByReason(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.ReasonInvalidArchive])
}

// TestOrchestrator_Resume 断点续跑：第二次运行跳过已完成样本，不产重复行
func TestOrchestrator_Resume(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	dataset := buildDataset(t)
	out := filepath.Join(t.TempDir(), "features.csv")

	opts := Options{DatasetDir: dataset, OutputPath: out, Workers: 2}

	first, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)
	require.Equal(t, 3, first.Processed)

	second, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 0, second.Processed, "已完成样本不得重复处理")
	assert.Equal(t, 3, second.Skipped)
	assert.Equal(t, 1, second.Failed, "失败样本不进断点，每次都会重试")

	records := readCSV(t, out)
	assert.Len(t, records, 4, "续跑不得产出重复行")
}

// TestOrchestrator_SubsetAndLimit 子集过滤与数量上限
func TestOrchestrator_SubsetAndLimit(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	dataset := buildDataset(t)

	run, err := orch.Run(context.Background(), Options{
		DatasetDir: dataset,
		OutputPath: filepath.Join(t.TempDir(), "malware.csv"),
		Subset:     "malware",
		Workers:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, run.Processed)
	assert.Equal(t, 0, run.Failed)

	limited, err := orch.Run(context.Background(), Options{
		DatasetDir: dataset,
		OutputPath: filepath.Join(t.TempDir(), "limited.csv"),
		Subset:     "benign",
		Limit:      1,
		Workers:    1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, limited.Processed+limited.Failed)
}

// TestOrchestrator_TooSmall 小于阈值的样本记 too_small，不进管线
func TestOrchestrator_TooSmall(t *testing.T) {
	orch, _, failures := newTestOrchestrator(t)

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "benign"), 0755))
	writeAPK(t, filepath.Join(dir, "benign", "tiny.apk"))

	run, err := orch.Run(context.Background(), Options{
		DatasetDir:      dir,
		OutputPath:      filepath.Join(t.TempDir(), "features.csv"),
		Workers:         1,
		MinSampleSizeKB: 50, // 测试 ZIP 远小于 50KB
	})
	require.NoError(t, err)

	assert.Equal(t, 0, run.Processed)
	assert.Equal(t, 1, run.Failed)

	counts, err := failures.CountByReason(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.ReasonTooSmall])
}

// blockingDecompiler 在 release 关闭前挂起，用于制造停止时刻的在途样本
type blockingDecompiler struct {
	startOnce sync.Once
	started   chan struct{}
	release   chan struct{}
}

func (d *blockingDecompiler) Decompile(ctx context.Context, apkPath string) (*decompiler.Unit, error) {
	d.startOnce.Do(func() { close(d.started) })
	select {
	case <-d.release:
		return stubDecompiler{}.Decompile(ctx, apkPath)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (d *blockingDecompiler) Close() {}

// TestOrchestrator_StopLetsInFlightFinish 停止信号只拦住派发：
// 在途样本必须跑完并正常落盘，不得被中途掐掉记成失败
func TestOrchestrator_StopLetsInFlightFinish(t *testing.T) {
	dec := &blockingDecompiler{started: make(chan struct{}), release: make(chan struct{})}
	orch, _, failures := newTestOrchestratorWith(t, newTestExtractorWith(dec))

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "benign"), 0755))
	writeAPK(t, filepath.Join(dir, "benign", "s1.apk"))
	writeAPK(t, filepath.Join(dir, "benign", "s2.apk"))
	out := filepath.Join(t.TempDir(), "features.csv")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		run    *domain.ExtractionRun
		runErr error
		done   = make(chan struct{})
	)
	go func() {
		defer close(done)
		run, runErr = orch.Run(ctx, Options{
			DatasetDir: dir,
			OutputPath: out,
			Workers:    1,
		})
	}()

	<-dec.started      // 第一个样本已在 worker 手里
	cancel()           // 运维停止
	close(dec.release) // 放行在途样本

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("停止后编排器未干净退出")
	}

	require.NoError(t, runErr)
	assert.Equal(t, 1, run.Processed, "在途样本必须跑完并计入成功")
	assert.Equal(t, 0, run.Failed, "停止不得把在途样本记成失败")

	counts, err := failures.CountByReason(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Empty(t, counts)

	// 特征行已落盘，断点已记：下次运行只需补未派发的样本
	records := readCSV(t, out)
	assert.Len(t, records, 2)
}

// failingSink 首行即写失败，模拟输出介质故障
type failingSink struct{}

func (failingSink) Append(row []string) error { return errors.New("no space left on device") }
func (failingSink) Close() error              { return nil }

// TestOrchestrator_FatalWriteDrainsWorkers 落盘失败时 Run 报错返回，
// 且派发协程和 worker 全部收尾退出，不卡在无人消费的结果通道上
func TestOrchestrator_FatalWriteDrainsWorkers(t *testing.T) {
	orch, _, _ := newTestOrchestrator(t)
	orch.openOutput = func(path string, header []string) (rowWriter, error) {
		return failingSink{}, nil
	}

	dataset := buildDataset(t)
	before := runtime.NumGoroutine()

	_, err := orch.Run(context.Background(), Options{
		DatasetDir: dataset,
		OutputPath: filepath.Join(t.TempDir(), "features.csv"),
		Workers:    2,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feature row")

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+1
	}, 5*time.Second, 50*time.Millisecond, "worker 协程未随致命错误退出")
}

// TestEnumerateSamples 枚举顺序确定、标签按目录、limit 生效
func TestEnumerateSamples(t *testing.T) {
	dataset := buildDataset(t)

	samples, err := enumerateSamples(dataset, "", 0)
	require.NoError(t, err)
	require.Len(t, samples, 4)

	// benign 在前且按名排序，malware 在后
	assert.Equal(t, "b1.apk", samples[0].ID)
	assert.Equal(t, domain.LabelBenign, samples[0].Label)
	assert.Equal(t, "m1.apk", samples[3].ID)
	assert.Equal(t, domain.LabelMalware, samples[3].Label)
	assert.Greater(t, samples[0].SizeKB, 0.0)

	limited, err := enumerateSamples(dataset, "", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	_, err = enumerateSamples(filepath.Join(dataset, "missing"), "", 0)
	assert.Error(t, err, "数据集目录不可读属于编排级错误")
}
