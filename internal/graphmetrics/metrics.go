// Package graphmetrics 计算调用图的结构描述特征。
package graphmetrics

import (
	"github.com/krono-analysis/krono-extract-go/internal/callgraph"
)

// Metrics 图结构特征。所有字段在任何输入下都有定义，
// 不足 2 个节点时 centrality 类指标一律取 0，下游特征行里永远不会出现 NaN/Inf。
type Metrics struct {
	NodeCount      int
	EdgeCount      int
	Density        float64
	AvgBetweenness float64
	AvgClustering  float64
	PageRankMax    float64
	AvgInDegree    float64
	AvgOutDegree   float64
}

// Primitives 图论原语能力接口。
// Calculator 只依赖这个接口，具体算法实现可以整体替换。
type Primitives interface {
	// Betweenness 有向图介数中心性（networkx 同款归一化）。
	// sources 非空时只从这些源点累计并按 n/len(sources) 放大（采样近似模式）。
	Betweenness(g *callgraph.Graph, sources []string) map[string]float64

	// Clustering 无向投影上的局部聚类系数（自环不参与）
	Clustering(g *callgraph.Graph) map[string]float64

	// PageRank 无向投影上的 PageRank（幂迭代）
	PageRank(g *callgraph.Graph, damping float64, maxIter int, tol float64) map[string]float64
}

// Calculator 图指标计算器
type Calculator struct {
	prims Primitives

	// 节点数超过阈值时 betweenness 改用确定性采样近似，
	// 用指标精度换有界的单样本耗时。是否启用会记录到运行报告里。
	approxNodeThreshold int
	betweennessSamples  int
}

// NewCalculator 创建计算器（使用内置原语实现）
func NewCalculator(approxNodeThreshold, betweennessSamples int) *Calculator {
	return &Calculator{
		prims:               defaultPrimitives{},
		approxNodeThreshold: approxNodeThreshold,
		betweennessSamples:  betweennessSamples,
	}
}

// NewCalculatorWithPrimitives 注入自定义原语实现（测试用）
func NewCalculatorWithPrimitives(p Primitives, approxNodeThreshold, betweennessSamples int) *Calculator {
	return &Calculator{
		prims:               p,
		approxNodeThreshold: approxNodeThreshold,
		betweennessSamples:  betweennessSamples,
	}
}

// Compute 计算全部图指标。返回值 approx 表示本次 betweenness 是否走了采样近似。
func (c *Calculator) Compute(g *callgraph.Graph) (Metrics, bool) {
	n := g.NodeCount()
	e := g.EdgeCount()

	m := Metrics{NodeCount: n, EdgeCount: e}
	if n == 0 {
		return m, false
	}

	// density：单节点图按约定取 0
	if n > 1 {
		m.Density = float64(e) / float64(n*(n-1))
	}

	m.AvgInDegree = float64(e) / float64(n)
	m.AvgOutDegree = float64(e) / float64(n)

	if n < 2 {
		// PageRank 在单节点图上退化为 1/N，避免除零
		m.PageRankMax = 1.0 / float64(n)
		return m, false
	}

	approx := false
	var sources []string
	if c.approxNodeThreshold > 0 && n > c.approxNodeThreshold && c.betweennessSamples > 0 && c.betweennessSamples < n {
		sources = sampleSources(g.Nodes(), c.betweennessSamples)
		approx = true
	}

	m.AvgBetweenness = mean(c.prims.Betweenness(g, sources))
	m.AvgClustering = mean(c.prims.Clustering(g))

	pr := c.prims.PageRank(g, 0.85, 100, 1e-6)
	m.PageRankMax = maxValue(pr, 1.0/float64(n))

	return m, approx
}

// sampleSources 从排序节点表中按固定步长取样。
// 刻意不用随机数：同一个样本两次提取必须产出相同的特征行。
func sampleSources(nodes []string, k int) []string {
	stride := len(nodes) / k
	if stride < 1 {
		stride = 1
	}
	sources := make([]string, 0, k)
	for i := 0; i < len(nodes) && len(sources) < k; i += stride {
		sources = append(sources, nodes[i])
	}
	return sources
}

func mean(values map[string]float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maxValue(values map[string]float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	first := true
	max := 0.0
	for _, v := range values {
		if first || v > max {
			max = v
			first = false
		}
	}
	return max
}
