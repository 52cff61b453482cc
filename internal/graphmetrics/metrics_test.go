package graphmetrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krono-analysis/krono-extract-go/internal/callgraph"
)

func triangle() *callgraph.Graph {
	g := callgraph.New()
	g.AddEdge("La;->a", "Lb;->b")
	g.AddEdge("Lb;->b", "Lc;->c")
	g.AddEdge("Lc;->c", "La;->a")
	return g
}

// TestCompute_EmptyGraph 空图全零，不出现 NaN/Inf
func TestCompute_EmptyGraph(t *testing.T) {
	calc := NewCalculator(0, 0)
	m, approx := calc.Compute(callgraph.New())

	assert.False(t, approx)
	assert.Equal(t, Metrics{}, m)
}

// TestCompute_SingleNode 单节点图：density 取 0，PageRank 退化为 1/N
func TestCompute_SingleNode(t *testing.T) {
	g := callgraph.New()
	g.AddNode("La;->a")

	calc := NewCalculator(0, 0)
	m, approx := calc.Compute(g)

	assert.False(t, approx)
	assert.Equal(t, 1, m.NodeCount)
	assert.Equal(t, 0, m.EdgeCount)
	assert.Zero(t, m.Density)
	assert.Zero(t, m.AvgBetweenness)
	assert.Zero(t, m.AvgClustering)
	assert.Equal(t, 1.0, m.PageRankMax)
}

// TestCompute_Triangle 有向三角环上核对每个指标的精确值
func TestCompute_Triangle(t *testing.T) {
	calc := NewCalculator(0, 0)
	m, approx := calc.Compute(triangle())

	assert.False(t, approx)
	assert.Equal(t, 3, m.NodeCount)
	assert.Equal(t, 3, m.EdgeCount)
	assert.InDelta(t, 0.5, m.Density, 1e-12) // 3 / (3*2)
	assert.InDelta(t, 1.0, m.AvgInDegree, 1e-12)
	assert.InDelta(t, 1.0, m.AvgOutDegree, 1e-12)
	// 环上每个节点恰好位于 1 条最短路中间，归一化除以 (n-1)(n-2)=2
	assert.InDelta(t, 0.5, m.AvgBetweenness, 1e-12)
	// 无向投影是完全三角形
	assert.InDelta(t, 1.0, m.AvgClustering, 1e-12)
	// 对称图上 PageRank 均匀分布
	assert.InDelta(t, 1.0/3.0, m.PageRankMax, 1e-6)
}

// TestCompute_PathGraph 链式图 a->b->c 上 b 的介数
func TestCompute_PathGraph(t *testing.T) {
	g := callgraph.New()
	g.AddEdge("La;->a", "Lb;->b")
	g.AddEdge("Lb;->b", "Lc;->c")

	calc := NewCalculator(0, 0)
	m, _ := calc.Compute(g)

	// 只有 b 在最短路中间：bc(b)=1，归一化后 0.5，平均 0.5/3
	assert.InDelta(t, 0.5/3.0, m.AvgBetweenness, 1e-12)
	// 链上没有三角形
	assert.Zero(t, m.AvgClustering)
}

// TestCompute_NoNaN 各种退化输入下都不允许出现 NaN/Inf
func TestCompute_NoNaN(t *testing.T) {
	graphs := map[string]*callgraph.Graph{
		"empty":    callgraph.New(),
		"isolated": func() *callgraph.Graph { g := callgraph.New(); g.AddNode("La;->a"); g.AddNode("Lb;->b"); return g }(),
		"selfloop": func() *callgraph.Graph { g := callgraph.New(); g.AddEdge("La;->a", "La;->a"); return g }(),
		"pair":     func() *callgraph.Graph { g := callgraph.New(); g.AddEdge("La;->a", "Lb;->b"); return g }(),
	}

	calc := NewCalculator(0, 0)
	for name, g := range graphs {
		m, _ := calc.Compute(g)
		for field, v := range map[string]float64{
			"density":     m.Density,
			"betweenness": m.AvgBetweenness,
			"clustering":  m.AvgClustering,
			"pagerank":    m.PageRankMax,
			"in_degree":   m.AvgInDegree,
			"out_degree":  m.AvgOutDegree,
		} {
			assert.False(t, math.IsNaN(v) || math.IsInf(v, 0), "%s/%s 必须是有限值", name, field)
		}
	}
}

// TestCompute_SelfLoopExcludedFromProjection 自环不参与聚类和 PageRank
func TestCompute_SelfLoopExcludedFromProjection(t *testing.T) {
	g := triangle()
	g.AddEdge("La;->a", "La;->a")

	calc := NewCalculator(0, 0)
	m, _ := calc.Compute(g)

	assert.InDelta(t, 1.0, m.AvgClustering, 1e-12, "自环不得扭曲聚类系数")
	assert.InDelta(t, 1.0/3.0, m.PageRankMax, 1e-6)
}

// TestCompute_Deterministic 同一张图两次计算必须产出相同指标
func TestCompute_Deterministic(t *testing.T) {
	g := callgraph.New()
	sigs := []string{"La;->a", "Lb;->b", "Lc;->c", "Ld;->d", "Le;->e", "Lf;->f"}
	for i, s := range sigs {
		for j, d := range sigs {
			if (i+j)%3 == 1 {
				g.AddEdge(s, d)
			}
		}
	}

	calc := NewCalculator(0, 0)
	m1, _ := calc.Compute(g)
	m2, _ := calc.Compute(g)
	assert.Equal(t, m1, m2)
}

// TestCompute_ApproxBetweenness 超过阈值时走采样近似，且近似结果确定
func TestCompute_ApproxBetweenness(t *testing.T) {
	g := callgraph.New()
	sigs := []string{"La;->a", "Lb;->b", "Lc;->c", "Ld;->d", "Le;->e", "Lf;->f", "Lg;->g", "Lh;->h"}
	for i := 0; i < len(sigs)-1; i++ {
		g.AddEdge(sigs[i], sigs[i+1])
	}

	calc := NewCalculator(4, 3)
	m1, approx := calc.Compute(g)
	require.True(t, approx, "节点数超过阈值必须启用采样近似")

	m2, _ := calc.Compute(g)
	assert.Equal(t, m1, m2, "采样不用随机数，两次近似结果必须一致")
	assert.False(t, math.IsNaN(m1.AvgBetweenness))

	// 阈值之下不启用近似
	small := NewCalculator(100, 3)
	_, approx = small.Compute(g)
	assert.False(t, approx)
}

// TestBetweenness_MatchesFullOnStar 星形图上中心点拿走全部介数
func TestBetweenness_MatchesFullOnStar(t *testing.T) {
	g := callgraph.New()
	leaves := []string{"Ll1;->m", "Ll2;->m", "Ll3;->m", "Ll4;->m"}
	for _, l := range leaves {
		g.AddEdge(l, "Lhub;->m")
		g.AddEdge("Lhub;->m", l)
	}

	bc := defaultPrimitives{}.Betweenness(g, nil)
	// n=5：每对叶子间的最短路都经过 hub，共 4*3=12 条，归一化除以 12
	assert.InDelta(t, 1.0, bc["Lhub;->m"], 1e-12)
	for _, l := range leaves {
		assert.Zero(t, bc[l])
	}
}

// TestPageRank_SumsToOne PageRank 是概率分布
func TestPageRank_SumsToOne(t *testing.T) {
	g := triangle()
	g.AddEdge("Lc;->c", "Ld;->d")

	pr := defaultPrimitives{}.PageRank(g, 0.85, 100, 1e-6)
	require.NotNil(t, pr)

	sum := 0.0
	for _, v := range pr {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}
