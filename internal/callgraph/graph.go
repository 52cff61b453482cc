// Package callgraph 把反编译产物组装成 API 调用图。
package callgraph

import "sort"

// Graph 单个样本的有向调用图。
// 节点是方法全限定签名，边是去重后的 (caller, callee) 调用关系；
// 自调用（递归）保留为自环。调用次数不保留——图是简单图而非多重图，
// 用调用频率信息换取大规模下可承受的指标计算成本。
type Graph struct {
	succ map[string]map[string]struct{}
	pred map[string]map[string]struct{}

	edgeCount int

	sorted []string // 排序后的节点缓存，保证遍历顺序确定
	dirty  bool
}

// New 创建空图
func New() *Graph {
	return &Graph{
		succ: make(map[string]map[string]struct{}),
		pred: make(map[string]map[string]struct{}),
	}
}

// AddNode 添加节点（幂等）
func (g *Graph) AddNode(sig string) {
	if _, ok := g.succ[sig]; ok {
		return
	}
	g.succ[sig] = make(map[string]struct{})
	g.pred[sig] = make(map[string]struct{})
	g.dirty = true
}

// AddEdge 添加有向边，重复边被去重，自环保留
func (g *Graph) AddEdge(caller, callee string) {
	g.AddNode(caller)
	g.AddNode(callee)
	if _, ok := g.succ[caller][callee]; ok {
		return
	}
	g.succ[caller][callee] = struct{}{}
	g.pred[callee][caller] = struct{}{}
	g.edgeCount++
}

// NodeCount 节点数
func (g *Graph) NodeCount() int {
	return len(g.succ)
}

// EdgeCount 边数（去重后）
func (g *Graph) EdgeCount() int {
	return g.edgeCount
}

// HasEdge 是否存在 caller -> callee 边
func (g *Graph) HasEdge(caller, callee string) bool {
	_, ok := g.succ[caller][callee]
	return ok
}

// Nodes 排序后的节点列表。排序是为了让下游指标计算完全确定，
// 同一个样本两次提取必须产出逐字节相同的特征行。
func (g *Graph) Nodes() []string {
	if g.dirty || g.sorted == nil {
		g.sorted = make([]string, 0, len(g.succ))
		for sig := range g.succ {
			g.sorted = append(g.sorted, sig)
		}
		sort.Strings(g.sorted)
		g.dirty = false
	}
	return g.sorted
}

// Successors 节点的出边邻居
func (g *Graph) Successors(sig string) map[string]struct{} {
	return g.succ[sig]
}

// Predecessors 节点的入边邻居
func (g *Graph) Predecessors(sig string) map[string]struct{} {
	return g.pred[sig]
}

// OutDegree 出度
func (g *Graph) OutDegree(sig string) int {
	return len(g.succ[sig])
}

// InDegree 入度
func (g *Graph) InDegree(sig string) int {
	return len(g.pred[sig])
}
