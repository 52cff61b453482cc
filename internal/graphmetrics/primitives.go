package graphmetrics

import (
	"sort"

	"github.com/krono-analysis/krono-extract-go/internal/callgraph"
)

// defaultPrimitives 内置图论原语实现。
// 介数中心性用 Brandes 算法，PageRank 用幂迭代，聚类系数在无向投影上计算。
// 无向投影里自环一律剔除：自环对聚类和 PageRank 没有结构含义，只会扭曲度数。
type defaultPrimitives struct{}

// indexed 把调用图压成整型索引的邻接表，避免在热循环里做字符串哈希
type indexed struct {
	nodes []string
	idx   map[string]int
	out   [][]int // 有向出边
	und   [][]int // 无向邻居（去自环、去重）
}

func buildIndex(g *callgraph.Graph) *indexed {
	nodes := g.Nodes()
	ix := &indexed{
		nodes: nodes,
		idx:   make(map[string]int, len(nodes)),
		out:   make([][]int, len(nodes)),
		und:   make([][]int, len(nodes)),
	}
	for i, sig := range nodes {
		ix.idx[sig] = i
	}

	undSets := make([]map[int]struct{}, len(nodes))
	for i, sig := range nodes {
		succ := g.Successors(sig)
		outs := make([]int, 0, len(succ))
		for callee := range succ {
			j := ix.idx[callee]
			outs = append(outs, j)
			if i != j {
				if undSets[i] == nil {
					undSets[i] = make(map[int]struct{})
				}
				if undSets[j] == nil {
					undSets[j] = make(map[int]struct{})
				}
				undSets[i][j] = struct{}{}
				undSets[j][i] = struct{}{}
			}
		}
		sort.Ints(outs)
		ix.out[i] = outs
	}

	for i, set := range undSets {
		und := make([]int, 0, len(set))
		for j := range set {
			und = append(und, j)
		}
		sort.Ints(und)
		ix.und[i] = und
	}

	return ix
}

// Betweenness Brandes 算法（无权 BFS 版本）。
// sources 非空时只从采样源点累计，并按 n/k 放大补偿；
// 归一化与 networkx 有向图默认一致：除以 (n-1)(n-2)。
func (defaultPrimitives) Betweenness(g *callgraph.Graph, sources []string) map[string]float64 {
	ix := buildIndex(g)
	n := len(ix.nodes)

	result := make(map[string]float64, n)
	if n < 3 {
		for _, sig := range ix.nodes {
			result[sig] = 0
		}
		return result
	}

	srcIdx := make([]int, 0, n)
	if len(sources) > 0 {
		for _, sig := range sources {
			if i, ok := ix.idx[sig]; ok {
				srcIdx = append(srcIdx, i)
			}
		}
	} else {
		for i := 0; i < n; i++ {
			srcIdx = append(srcIdx, i)
		}
	}

	bc := make([]float64, n)
	sigma := make([]float64, n)
	dist := make([]int, n)
	delta := make([]float64, n)
	preds := make([][]int, n)
	stack := make([]int, 0, n)
	queue := make([]int, 0, n)

	for _, s := range srcIdx {
		// 单源最短路计数
		stack = stack[:0]
		queue = queue[:0]
		for i := 0; i < n; i++ {
			sigma[i] = 0
			dist[i] = -1
			delta[i] = 0
			preds[i] = preds[i][:0]
		}
		sigma[s] = 1
		dist[s] = 0
		queue = append(queue, s)

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range ix.out[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					preds[w] = append(preds[w], v)
				}
			}
		}

		// 依赖回溯累计
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range preds[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != s {
				bc[w] += delta[w]
			}
		}
	}

	scale := 1.0 / (float64(n-1) * float64(n-2))
	if len(sources) > 0 && len(srcIdx) > 0 {
		scale *= float64(n) / float64(len(srcIdx))
	}
	for i, sig := range ix.nodes {
		result[sig] = bc[i] * scale
	}
	return result
}

// Clustering 无向投影上的局部聚类系数
func (defaultPrimitives) Clustering(g *callgraph.Graph) map[string]float64 {
	ix := buildIndex(g)
	result := make(map[string]float64, len(ix.nodes))

	for i, sig := range ix.nodes {
		neighbors := ix.und[i]
		k := len(neighbors)
		if k < 2 {
			result[sig] = 0
			continue
		}

		inNbr := make(map[int]struct{}, k)
		for _, j := range neighbors {
			inNbr[j] = struct{}{}
		}

		links := 0
		for _, j := range neighbors {
			for _, l := range ix.und[j] {
				if l <= j {
					continue
				}
				if _, ok := inNbr[l]; ok {
					links++
				}
			}
		}

		result[sig] = 2.0 * float64(links) / (float64(k) * float64(k-1))
	}

	return result
}

// PageRank 无向投影上的幂迭代。
// 孤立节点按悬挂节点处理，质量均匀回流。迭代 maxIter 次仍未收敛时返回 nil，
// 由调用方回退到均匀分布 1/N。
func (defaultPrimitives) PageRank(g *callgraph.Graph, damping float64, maxIter int, tol float64) map[string]float64 {
	ix := buildIndex(g)
	n := len(ix.nodes)
	if n == 0 {
		return nil
	}

	x := make([]float64, n)
	next := make([]float64, n)
	for i := range x {
		x[i] = 1.0 / float64(n)
	}

	for iter := 0; iter < maxIter; iter++ {
		dangleSum := 0.0
		for i := range x {
			if len(ix.und[i]) == 0 {
				dangleSum += x[i]
			}
		}

		base := (1-damping)/float64(n) + damping*dangleSum/float64(n)
		for i := range next {
			next[i] = base
		}
		for i := range x {
			deg := len(ix.und[i])
			if deg == 0 {
				continue
			}
			share := damping * x[i] / float64(deg)
			for _, j := range ix.und[i] {
				next[j] += share
			}
		}

		err := 0.0
		for i := range x {
			diff := next[i] - x[i]
			if diff < 0 {
				diff = -diff
			}
			err += diff
		}
		x, next = next, x

		if err < float64(n)*tol {
			result := make(map[string]float64, n)
			for i, sig := range ix.nodes {
				result[sig] = x[i]
			}
			return result
		}
	}

	return nil
}
