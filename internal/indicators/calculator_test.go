package indicators

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/krono-analysis/krono-extract-go/internal/decompiler"
	"github.com/krono-analysis/krono-extract-go/internal/domain"
)

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func sample(sizeKB float64) *domain.Sample {
	return &domain.Sample{ID: "test.apk", Path: "/tmp/test.apk", SizeKB: sizeKB}
}

// TestCompute_NativeLibPacker native 库命中是最强信号，直接给名字和 0.9
func TestCompute_NativeLibPacker(t *testing.T) {
	unit := &decompiler.Unit{
		NativeLibs: []string{"libfoo.so", "libjiagu.so"},
	}

	ind := NewCalculator(testLogger()).Compute(unit, sample(8000))

	assert.True(t, ind.IsPacked)
	assert.Equal(t, "360加固", ind.PackerName)
	assert.InDelta(t, 0.9, ind.Confidence, 1e-12)
}

// TestCompute_AssetPacker asset 特征文件命中
func TestCompute_AssetPacker(t *testing.T) {
	unit := &decompiler.Unit{
		AssetFiles: []string{"assets/ijiami.ajm"},
	}

	ind := NewCalculator(testLogger()).Compute(unit, sample(3000))

	assert.True(t, ind.IsPacked)
	assert.Equal(t, "爱加密", ind.PackerName)
	assert.InDelta(t, 0.9, ind.Confidence, 1e-12)
}

// TestCompute_StringScanOnlyForSmallAPK 字符串扫描只对 10MB 以下样本启用
func TestCompute_StringScanOnlyForSmallAPK(t *testing.T) {
	unit := &decompiler.Unit{
		Strings: []string{"decrypt via com.stub.StubApp bootstrap"},
		Methods: make([]string, 100),
	}

	small := NewCalculator(testLogger()).Compute(unit, sample(5*1024))
	assert.True(t, small.IsPacked)
	assert.Equal(t, "360加固", small.PackerName)
	assert.InDelta(t, 0.8, small.Confidence, 1e-12)

	big := NewCalculator(testLogger()).Compute(unit, sample(20*1024))
	assert.False(t, big.IsPacked, "大包不做字符串扫描")
}

// TestCompute_SuspiciousCombination DexClassLoader + 反射的组合启发式（小包启用）
func TestCompute_SuspiciousCombination(t *testing.T) {
	unit := &decompiler.Unit{
		Methods: []string{
			"Ldalvik/system/DexClassLoader;-><init>",
			"Ljava/lang/reflect/Method;->invoke",
		},
	}

	ind := NewCalculator(testLogger()).Compute(unit, sample(2000))

	assert.True(t, ind.IsPacked)
	assert.Empty(t, ind.PackerName, "启发式命中没有具体壳名")
	assert.InDelta(t, 0.5, ind.Confidence, 1e-12)

	// 超过 5MB 的样本不启用组合启发式
	big := NewCalculator(testLogger()).Compute(unit, sample(6*1024))
	assert.False(t, big.IsPacked)
}

// TestCompute_StructuralAnomaly 大包 + 空方法表的壳外皮形态
func TestCompute_StructuralAnomaly(t *testing.T) {
	unit := &decompiler.Unit{
		Methods: []string{"Lcom/stub/A;->attachBaseContext"},
	}

	ind := NewCalculator(testLogger()).Compute(unit, sample(30*1024))

	assert.True(t, ind.IsPacked)
	assert.InDelta(t, 0.4, ind.Confidence, 1e-12)
}

// TestCompute_CleanSample 无任何加壳信号
func TestCompute_CleanSample(t *testing.T) {
	methods := make([]string, 200)
	for i := range methods {
		methods[i] = "Lcom/app/Main;->m"
	}
	unit := &decompiler.Unit{Methods: methods}

	ind := NewCalculator(testLogger()).Compute(unit, sample(2000))

	assert.False(t, ind.IsPacked)
	assert.Zero(t, ind.Confidence)
	assert.Empty(t, ind.PackerName)
}

// TestCompute_DangerousPermissions 危险权限计数，支持全限定名
func TestCompute_DangerousPermissions(t *testing.T) {
	unit := &decompiler.Unit{
		Permissions: []string{
			"android.permission.SEND_SMS",
			"android.permission.READ_CONTACTS",
			"android.permission.INTERNET",   // 普通权限
			"com.vendor.permission.SEND_SMS", // 短名相同也算
		},
	}

	ind := NewCalculator(testLogger()).Compute(unit, sample(1000))

	assert.Equal(t, 3, ind.DangerousPermCount)
	assert.InDelta(t, 1000.0, ind.APKSizeKB, 1e-12)
}
