// Package extractor 单样本特征提取管线：
// 结构校验 → 反编译 → 调用图 → 图指标 + 模式命中 + 安全指标 → 特征行。
// 管线内的任何错误都被收敛为带失败类型的 Result，绝不越过 worker 边界向上抛。
package extractor

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/krono-analysis/krono-extract-go/internal/callgraph"
	"github.com/krono-analysis/krono-extract-go/internal/catalog"
	"github.com/krono-analysis/krono-extract-go/internal/decompiler"
	"github.com/krono-analysis/krono-extract-go/internal/domain"
	"github.com/krono-analysis/krono-extract-go/internal/features"
	"github.com/krono-analysis/krono-extract-go/internal/graphmetrics"
	"github.com/krono-analysis/krono-extract-go/internal/indicators"
)

// Result 一个样本的带标签处理结果。
// 成功时 Vector 非 nil；失败时 Reason/Err 说明原因。
type Result struct {
	Sample *domain.Sample
	Vector *features.Vector
	Approx bool // 本样本的 betweenness 是否走了采样近似
	Reason domain.FailureReason
	Err    error
}

// OK 是否成功产出特征行
func (r *Result) OK() bool {
	return r.Vector != nil
}

// Extractor 单样本管线。除 Decompiler 外全部组件只读共享，可被任意多 worker 并发调用。
type Extractor struct {
	dec     decompiler.Decompiler
	metrics *graphmetrics.Calculator
	catalog *catalog.Catalog
	indic   *indicators.Calculator
	schema  *features.Schema
	timeout time.Duration
	logger  *logrus.Logger
}

// New 创建管线
func New(
	dec decompiler.Decompiler,
	metrics *graphmetrics.Calculator,
	cat *catalog.Catalog,
	indic *indicators.Calculator,
	schema *features.Schema,
	timeout time.Duration,
	logger *logrus.Logger,
) *Extractor {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{
		dec:     dec,
		metrics: metrics,
		catalog: cat,
		indic:   indic,
		schema:  schema,
		timeout: timeout,
		logger:  logger,
	}
}

// Schema 当前使用的特征模式
func (e *Extractor) Schema() *features.Schema {
	return e.schema
}

// CatalogVersion 当前模式目录版本
func (e *Extractor) CatalogVersion() string {
	return e.catalog.Version()
}

// Extract 处理一个样本。单样本超时由内部 context 控制，
// 病态样本最多损失自己，不会卡住整个批次。
func (e *Extractor) Extract(ctx context.Context, sample *domain.Sample) *Result {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	unit, err := e.dec.Decompile(ctx, sample.Path)
	if err != nil {
		return e.failure(sample, err)
	}

	g, err := callgraph.Build(unit)
	if err != nil {
		if !errors.Is(err, callgraph.ErrEmptyGraph) {
			return e.failure(sample, err)
		}
		// 空图非致命：所有图指标按零值产出
		e.logger.WithField("sample", sample.ID).Warn("Empty method list, emitting zero-valued graph metrics")
	}

	m, approx := e.metrics.Compute(g)
	counts, benignRatio := e.catalog.Detect(g)
	ind := e.indic.Compute(unit, sample)

	vec, err := e.schema.Assemble(sample, m, counts, benignRatio, ind)
	if err != nil {
		// 不变量被破坏，属于程序缺陷：大声记录，样本记失败
		e.logger.WithError(err).WithField("sample", sample.ID).Error("Feature schema violation")
		return e.failure(sample, err)
	}

	return &Result{Sample: sample, Vector: vec, Approx: approx}
}

// failure 把管线错误归类到失败类型
func (e *Extractor) failure(sample *domain.Sample, err error) *Result {
	reason := domain.ReasonUnexpected

	var decErr *decompiler.Error
	switch {
	case errors.As(err, &decErr):
		reason = domain.ReasonDecompileError
	case errors.Is(err, context.DeadlineExceeded):
		reason = domain.ReasonTimeout
	case errors.Is(err, features.ErrSchemaViolation):
		reason = domain.ReasonSchemaViolation
	}

	return &Result{Sample: sample, Reason: reason, Err: err}
}

// ValidateArchive 结构校验：样本必须是一个至少包含一个条目的合法 ZIP。
// 只做结构检查，不做完整反编译；校验失败的样本不进入管线、不自动重试。
func ValidateArchive(path string) error {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("not a valid archive: %w", err)
	}
	defer reader.Close()

	if len(reader.File) == 0 {
		return fmt.Errorf("archive has no entries")
	}
	return nil
}
