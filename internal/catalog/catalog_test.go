package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krono-analysis/krono-extract-go/internal/callgraph"
)

// TestBuiltin_CategoryCount 内置目录的类别数量和版本号
func TestBuiltin_CategoryCount(t *testing.T) {
	c := Builtin()

	assert.Len(t, c.Categories(), 38)
	assert.NotEmpty(t, c.Version())

	// 类别顺序决定特征列顺序，首尾锚定
	cats := c.Categories()
	assert.Equal(t, "exfiltration", cats[0])
	assert.Equal(t, "app_ops", cats[len(cats)-1])
}

// TestDetect_ExactAndPrefix 全等匹配与前缀匹配
func TestDetect_ExactAndPrefix(t *testing.T) {
	g := callgraph.New()
	g.AddNode("Ljava/lang/Runtime;->exec")                       // shell 全等
	g.AddNode("Landroid/telephony/SmsManager;->sendTextMessage") // sms 前缀
	g.AddNode("Lcom/app/Main;->onCreate")                        // 无命中

	counts, _ := Builtin().Detect(g)

	assert.Equal(t, 1, counts["shell"])
	assert.Equal(t, 1, counts["sms"])
	assert.Equal(t, 0, counts["keylog"])
}

// TestDetect_MultiCategoryIndependent 一个节点可以同时命中多个类别
func TestDetect_MultiCategoryIndependent(t *testing.T) {
	g := callgraph.New()
	// DexClassLoader 既是 dynamic_load 也是 packer_check 的信号
	g.AddNode("Ldalvik/system/DexClassLoader;-><init>")

	counts, _ := Builtin().Detect(g)

	assert.Equal(t, 1, counts["dynamic_load"])
	assert.GreaterOrEqual(t, counts["packer_check"], 0) // 类别之间互不排斥
}

// TestDetect_NodeCountedOncePerCategory 同一节点对同一类别最多计一次
func TestDetect_NodeCountedOncePerCategory(t *testing.T) {
	rules := []Rule{
		{
			Category: "demo",
			Exact:    []string{"La;->m"},
			Prefixes: []string{"La;"}, // 同一个节点同时满足全等和前缀
		},
	}
	c := New("test", rules, nil)

	g := callgraph.New()
	g.AddNode("La;->m")

	counts, _ := c.Detect(g)
	assert.Equal(t, 1, counts["demo"])
}

// TestDetect_AllCategoriesPresent 即使全部为 0，每个类别的计数都必须存在
func TestDetect_AllCategoriesPresent(t *testing.T) {
	c := Builtin()
	g := callgraph.New()
	g.AddNode("Lcom/app/Nothing;->noop")

	counts, _ := c.Detect(g)

	require.Len(t, counts, len(c.Categories()))
	for _, cat := range c.Categories() {
		_, ok := counts[cat]
		assert.True(t, ok, "类别 %s 缺失", cat)
	}
}

// TestDetect_BenignRatio 良性库占比
func TestDetect_BenignRatio(t *testing.T) {
	g := callgraph.New()
	g.AddNode("Landroidx/appcompat/app/AppCompatActivity;->onCreate")
	g.AddNode("Lokhttp3/OkHttpClient;->newCall")
	g.AddNode("Lcom/evil/Payload;->run")
	g.AddNode("Lcom/evil/Payload;->exfil")

	_, ratio := Builtin().Detect(g)
	assert.InDelta(t, 0.5, ratio, 1e-12)
}

// TestDetect_EmptyGraph 空图：计数全零，占比取 0
func TestDetect_EmptyGraph(t *testing.T) {
	counts, ratio := Builtin().Detect(callgraph.New())

	assert.Zero(t, ratio)
	for cat, n := range counts {
		assert.Zero(t, n, "空图上类别 %s 不应有命中", cat)
	}
}

// TestDetect_CaseSensitive 匹配区分大小写
func TestDetect_CaseSensitive(t *testing.T) {
	g := callgraph.New()
	g.AddNode("LJAVA/LANG/RUNTIME;->EXEC")

	counts, _ := Builtin().Detect(g)
	assert.Zero(t, counts["shell"])
}
