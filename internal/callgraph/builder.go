package callgraph

import (
	"errors"
	"strings"

	"github.com/krono-analysis/krono-extract-go/internal/decompiler"
)

// ErrEmptyGraph 方法列表为空（非致命）。
// 调用方继续走后续阶段，所有图指标按零值产出，绝不出现 NaN/Inf。
var ErrEmptyGraph = errors.New("callgraph: empty method list")

// stopClasses 噪声类：几乎每个 APK 都会大量调用，保留它们只会稀释结构信号
var stopClasses = map[string]struct{}{
	"Ljava/lang/Object;":        {},
	"Ljava/lang/String;":        {},
	"Ljava/lang/StringBuilder;": {},
	"Landroid/view/View;":       {},
	"Landroid/app/Activity;":    {},
	"Landroid/content/Context;": {},
}

// Build 从反编译产物构建调用图。
// 所有方法都成为节点（没有出入边的方法保留为孤立节点），
// 端点属于噪声类的边和节点被过滤，边去重，自环保留。
func Build(unit *decompiler.Unit) (*Graph, error) {
	g := New()

	if len(unit.Methods) == 0 {
		return g, ErrEmptyGraph
	}

	for _, sig := range unit.Methods {
		if isStopClass(sig) {
			continue
		}
		g.AddNode(sig)
	}

	for _, edge := range unit.Edges {
		caller, callee := edge[0], edge[1]
		if isStopClass(caller) || isStopClass(callee) {
			continue
		}
		g.AddEdge(caller, callee)
	}

	return g, nil
}

// isStopClass 签名的类前缀是否属于噪声类。
// 签名形如 Ljava/lang/Runtime;->exec(...)，类名以 ";" 结束。
func isStopClass(sig string) bool {
	idx := strings.Index(sig, ";")
	if idx < 0 {
		return false
	}
	_, ok := stopClasses[sig[:idx+1]]
	return ok
}
