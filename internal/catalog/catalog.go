// Package catalog 行为模式目录：~40 个行为类别到 API 签名匹配规则的静态注册表。
// 目录带版本号、加载后只读，所有并发 worker 共享同一份实例，无需加锁。
// 特征语义完全由目录内容决定，因此每次运行都要把目录版本记录到运行报告里，
// 目录的任何修改都必须升版本号。
package catalog

import (
	"strings"

	"github.com/krono-analysis/krono-extract-go/internal/callgraph"
)

// Rule 一个行为类别的匹配规则。
// Exact 是签名全等匹配，Prefixes 覆盖整个 API 族（比如一个包命名空间），
// 不用逐个枚举重载。匹配区分大小写。
type Rule struct {
	Category string
	Exact    []string
	Prefixes []string
}

type compiledRule struct {
	category string
	exact    map[string]struct{}
	prefixes []string
}

// Catalog 不可变的模式目录
type Catalog struct {
	version        string
	rules          []compiledRule
	categories     []string
	benignPrefixes []string
}

// Builtin 内置目录
func Builtin() *Catalog {
	return New(builtinVersion, builtinRules(), benignLibPrefixes())
}

// New 由规则表构建目录
func New(version string, rules []Rule, benignPrefixes []string) *Catalog {
	c := &Catalog{
		version:        version,
		benignPrefixes: benignPrefixes,
	}
	for _, r := range rules {
		cr := compiledRule{
			category: r.Category,
			exact:    make(map[string]struct{}, len(r.Exact)),
			prefixes: r.Prefixes,
		}
		for _, sig := range r.Exact {
			cr.exact[sig] = struct{}{}
		}
		c.rules = append(c.rules, cr)
		c.categories = append(c.categories, r.Category)
	}
	return c
}

// Version 目录版本号
func (c *Catalog) Version() string {
	return c.version
}

// Categories 类别名列表（固定顺序，决定特征列顺序）
func (c *Catalog) Categories() []string {
	return c.categories
}

// Detect 扫描图的节点集，返回各类别命中计数和良性 API 占比。
// 一个节点可以命中零个、一个或多个类别——类别之间互不排斥
// （比如一个 API 既是 network 又是 exfiltration），但同一节点对同一类别最多计一次。
// benignRatio = 良性库节点数 / 总节点数，空图取 0。
func (c *Catalog) Detect(g *callgraph.Graph) (map[string]int, float64) {
	counts := make(map[string]int, len(c.rules))
	for _, cat := range c.categories {
		counts[cat] = 0
	}

	nodes := g.Nodes()
	benignHits := 0

	for _, sig := range nodes {
		for i := range c.rules {
			if c.rules[i].matches(sig) {
				counts[c.rules[i].category]++
			}
		}
		if matchPrefix(c.benignPrefixes, sig) {
			benignHits++
		}
	}

	ratio := 0.0
	if len(nodes) > 0 {
		ratio = float64(benignHits) / float64(len(nodes))
	}
	return counts, ratio
}

func (r *compiledRule) matches(sig string) bool {
	if _, ok := r.exact[sig]; ok {
		return true
	}
	return matchPrefix(r.prefixes, sig)
}

func matchPrefix(prefixes []string, sig string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(sig, p) {
			return true
		}
	}
	return false
}
