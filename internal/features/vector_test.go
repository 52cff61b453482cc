package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krono-analysis/krono-extract-go/internal/domain"
	"github.com/krono-analysis/krono-extract-go/internal/graphmetrics"
	"github.com/krono-analysis/krono-extract-go/internal/indicators"
)

var testCategories = []string{"sms", "shell", "network"}

func testSample() *domain.Sample {
	return &domain.Sample{ID: "mal.apk", Path: "/data/mal.apk", Label: domain.LabelMalware, SizeKB: 123.45}
}

// TestNewSchema_HeaderOrder 表头顺序：固定前缀 + api_* 类别列 + 固定后缀
func TestNewSchema_HeaderOrder(t *testing.T) {
	s := NewSchema(testCategories)

	expected := []string{
		"apk_name", "apk_size_kb", "node_count", "edge_count", "is_packed",
		"density", "avg_betweenness", "avg_clustering", "pagerank_max", "avg_in_degree", "avg_out_degree",
		"api_sms", "api_shell", "api_network",
		"benign_ratio", "dangerous_perm_count", "label",
	}
	assert.Equal(t, expected, s.Header())
}

// TestAssemble_RowMatchesHeader 行与表头等长、同序，值按列核对
func TestAssemble_RowMatchesHeader(t *testing.T) {
	s := NewSchema(testCategories)

	m := graphmetrics.Metrics{
		NodeCount: 10, EdgeCount: 20, Density: 0.25,
		AvgBetweenness: 0.125, AvgClustering: 0.5, PageRankMax: 0.3,
		AvgInDegree: 2, AvgOutDegree: 2,
	}
	counts := map[string]int{"sms": 3, "shell": 0, "network": 7}
	ind := indicators.Indicators{IsPacked: true, DangerousPermCount: 4}

	vec, err := s.Assemble(testSample(), m, counts, 0.6, ind)
	require.NoError(t, err)

	row := vec.Row()
	require.Len(t, row, len(s.Header()))

	assert.Equal(t, "mal.apk", row[0])
	assert.Equal(t, "123.45", row[1])
	assert.Equal(t, "10", row[2])
	assert.Equal(t, "20", row[3])
	assert.Equal(t, "1", row[4], "is_packed 用 0/1 表示")
	assert.Equal(t, "0.25", row[5])
	assert.Equal(t, "3", row[11])
	assert.Equal(t, "0", row[12])
	assert.Equal(t, "7", row[13])
	assert.Equal(t, "0.6", row[14])
	assert.Equal(t, "4", row[15])
	assert.Equal(t, "1", row[16], "label 恶意样本为 1")
}

// TestAssemble_MissingCategory 缺类别必须报 ErrSchemaViolation
func TestAssemble_MissingCategory(t *testing.T) {
	s := NewSchema(testCategories)
	counts := map[string]int{"sms": 1, "network": 2} // 缺 shell

	vec, err := s.Assemble(testSample(), graphmetrics.Metrics{}, counts, 0, indicators.Indicators{})

	assert.Nil(t, vec)
	assert.ErrorIs(t, err, ErrSchemaViolation)
	assert.Contains(t, err.Error(), "shell")
}

// TestAssemble_ZeroValues 全零输入也能装配出完整的行
func TestAssemble_ZeroValues(t *testing.T) {
	s := NewSchema(testCategories)
	counts := map[string]int{"sms": 0, "shell": 0, "network": 0}
	benign := &domain.Sample{ID: "ok.apk", Label: domain.LabelBenign}

	vec, err := s.Assemble(benign, graphmetrics.Metrics{}, counts, 0, indicators.Indicators{})
	require.NoError(t, err)

	row := vec.Row()
	assert.Equal(t, "0", row[4], "未加壳为 0")
	assert.Equal(t, "0", row[len(row)-1], "良性标签为 0")
}

// TestAssemble_Deterministic 同样的输入两次装配产出逐字节相同的行
func TestAssemble_Deterministic(t *testing.T) {
	s := NewSchema(testCategories)
	m := graphmetrics.Metrics{NodeCount: 5, Density: 1.0 / 3.0, PageRankMax: 0.2857142857142857}
	counts := map[string]int{"sms": 1, "shell": 2, "network": 3}

	v1, err := s.Assemble(testSample(), m, counts, 0.123456789, indicators.Indicators{})
	require.NoError(t, err)
	v2, err := s.Assemble(testSample(), m, counts, 0.123456789, indicators.Indicators{})
	require.NoError(t, err)

	assert.Equal(t, v1.Row(), v2.Row())
}
