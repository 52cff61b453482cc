// Package features 把上游各阶段的产出合并成固定模式的特征行。
package features

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/krono-analysis/krono-extract-go/internal/domain"
	"github.com/krono-analysis/krono-extract-go/internal/graphmetrics"
	"github.com/krono-analysis/krono-extract-go/internal/indicators"
)

// ErrSchemaViolation 上游阶段产出了不完整的特征集。
// 这是内部不变量被破坏——每个阶段必须填满自己负责的全部字段
// （哪怕是零值默认），装配器不做逐字段的空值兜底。
var ErrSchemaViolation = errors.New("features: incomplete feature set")

// Schema 特征 CSV 的固定模式。
// 列名和顺序由模式目录版本唯一决定，同一目录版本下每一行的模式完全一致，
// 这是输出 CSV 能直接当训练表用的前提。
type Schema struct {
	categories []string
	header     []string
}

// NewSchema 由目录的类别顺序构建模式
func NewSchema(categories []string) *Schema {
	header := []string{
		"apk_name", "apk_size_kb", "node_count", "edge_count", "is_packed",
		"density", "avg_betweenness", "avg_clustering", "pagerank_max", "avg_in_degree", "avg_out_degree",
	}
	for _, cat := range categories {
		header = append(header, "api_"+cat)
	}
	header = append(header, "benign_ratio", "dangerous_perm_count", "label")

	return &Schema{
		categories: categories,
		header:     header,
	}
}

// Header CSV 表头
func (s *Schema) Header() []string {
	return s.header
}

// Vector 一行特征记录
type Vector struct {
	SampleID string
	Label    domain.Label
	row      []string
}

// Row CSV 行（与 Header 等长、同序）
func (v *Vector) Row() []string {
	return v.row
}

// Assemble 确定性地合并图指标、模式命中和安全指标。
// counts 缺少模式中的任何类别都会返回 ErrSchemaViolation。
func (s *Schema) Assemble(
	sample *domain.Sample,
	metrics graphmetrics.Metrics,
	counts map[string]int,
	benignRatio float64,
	ind indicators.Indicators,
) (*Vector, error) {
	row := make([]string, 0, len(s.header))
	row = append(row,
		sample.ID,
		formatFloat(sample.SizeKB),
		strconv.Itoa(metrics.NodeCount),
		strconv.Itoa(metrics.EdgeCount),
		formatBool(ind.IsPacked),
		formatFloat(metrics.Density),
		formatFloat(metrics.AvgBetweenness),
		formatFloat(metrics.AvgClustering),
		formatFloat(metrics.PageRankMax),
		formatFloat(metrics.AvgInDegree),
		formatFloat(metrics.AvgOutDegree),
	)

	for _, cat := range s.categories {
		count, ok := counts[cat]
		if !ok {
			return nil, fmt.Errorf("%w: missing category %q", ErrSchemaViolation, cat)
		}
		row = append(row, strconv.Itoa(count))
	}

	row = append(row,
		formatFloat(benignRatio),
		strconv.Itoa(ind.DangerousPermCount),
		strconv.Itoa(int(sample.Label)),
	)

	if len(row) != len(s.header) {
		return nil, fmt.Errorf("%w: got %d fields, schema has %d", ErrSchemaViolation, len(row), len(s.header))
	}

	return &Vector{
		SampleID: sample.ID,
		Label:    sample.Label,
		row:      row,
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
