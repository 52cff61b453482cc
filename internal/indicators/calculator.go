// Package indicators 计算安全指标特征：加壳判定、危险权限数、包体大小。
package indicators

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/krono-analysis/krono-extract-go/internal/decompiler"
	"github.com/krono-analysis/krono-extract-go/internal/domain"
)

// Indicators 一个样本的安全指标
type Indicators struct {
	IsPacked           bool
	PackerName         string  // 命中的壳名，启发式判定时为空
	Confidence         float64 // 加壳判定置信度，0 表示未检出
	DangerousPermCount int
	APKSizeKB          float64
}

// Calculator 安全指标计算器。规则表只读，可被所有 worker 共享。
type Calculator struct {
	rules  []PackerRule
	logger *logrus.Logger
}

// NewCalculator 创建计算器
func NewCalculator(logger *logrus.Logger) *Calculator {
	return &Calculator{
		rules:  builtinPackerRules(),
		logger: logger,
	}
}

// Compute 计算样本的安全指标。
// 加壳检测是尽力而为的弱信号：漏报是预期内的，这里只求不拖垮批次。
func (c *Calculator) Compute(unit *decompiler.Unit, sample *domain.Sample) Indicators {
	ind := Indicators{
		DangerousPermCount: countDangerousPermissions(unit.Permissions),
		APKSizeKB:          sample.SizeKB,
	}

	if name, conf := c.detectPacker(unit, sample); conf > 0 {
		ind.IsPacked = true
		ind.PackerName = name
		ind.Confidence = conf

		c.logger.WithFields(logrus.Fields{
			"sample":     sample.ID,
			"packer":     name,
			"confidence": conf,
		}).Debug("Packer detected")
	}

	return ind
}

// detectPacker 按置信度从高到低依次应用各条启发式，命中即返回。
func (c *Calculator) detectPacker(unit *decompiler.Unit, sample *domain.Sample) (string, float64) {
	sizeMB := sample.SizeKB / 1024.0

	// 规则 1：商业加固的 native 库 / asset 特征文件（最强信号）
	for _, rule := range c.rules {
		for _, ruleLib := range rule.NativeLibs {
			for _, lib := range unit.NativeLibs {
				if strings.HasSuffix(lib, ruleLib) {
					return rule.Name, 0.9
				}
			}
		}
		for _, ruleAsset := range rule.Assets {
			for _, asset := range unit.AssetFiles {
				if strings.Contains(asset, ruleAsset) {
					return rule.Name, 0.9
				}
			}
		}
	}

	// 规则 2：dex 字符串里的壳签名。
	// 大包字符串量太大、误报率高，只对 10MB 以下的样本启用。
	if sizeMB < 10.0 {
		for _, rule := range c.rules {
			for _, ruleStr := range rule.Strings {
				for _, s := range unit.Strings {
					if strings.Contains(s, ruleStr) {
						return rule.Name, 0.8
					}
				}
			}
		}
	}

	// 规则 3：行为组合——DexClassLoader 配合反射或 native 加载（小包启用）
	if sizeMB < 5.0 && hasSuspiciousCombination(unit) {
		return "", 0.5
	}

	// 规则 4：结构异常——包很大但方法表几乎为空，典型的壳外皮形态
	if sample.SizeKB > 1024 && len(unit.Methods) < 50 {
		return "", 0.4
	}

	return "", 0
}

// hasSuspiciousCombination DexClassLoader + 反射/native 的组合
func hasSuspiciousCombination(unit *decompiler.Unit) bool {
	dexClassLoader := false
	reflection := false
	native := false

	for _, sig := range unit.Methods {
		if strings.Contains(sig, "DexClassLoader") {
			dexClassLoader = true
		}
		lower := strings.ToLower(sig)
		if strings.Contains(lower, "reflect") {
			reflection = true
		}
		if strings.Contains(lower, "native") || strings.Contains(lower, "jni") {
			native = true
		}
		if dexClassLoader && (reflection || native) {
			return true
		}
	}

	return false
}
