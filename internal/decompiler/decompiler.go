// Package decompiler 定义反编译能力接口。
// 具体实现通过常驻 androguard 进程池完成，管线本身不依赖任何反编译细节，
// 测试时可以用合成的 Unit 直接驱动下游阶段。
package decompiler

import (
	"context"
	"fmt"
)

// Unit 单个 APK 的反编译产物。
// 只属于发起本次反编译的提取流程，提取完成后即丢弃，不跨样本保留。
type Unit struct {
	Methods     []string    `json:"methods"`     // 方法全限定签名（smali 形式，如 Ljava/lang/Runtime;->exec）
	Edges       [][2]string `json:"edges"`       // 调用边 (caller, callee)
	Permissions []string    `json:"permissions"` // 声明的权限
	Strings     []string    `json:"strings"`     // 字符串常量（加壳启发式使用）
	NativeLibs  []string    `json:"native_libs"` // lib/ 下的 so 名称
	AssetFiles  []string    `json:"asset_files"` // assets/ 下的文件路径
	DexCount    int         `json:"dex_count"`
	DexSizeKB   int64       `json:"dex_size_kb"`
	AppClass    string      `json:"app_class"` // manifest 中的自定义 Application 类
}

// Decompiler 反编译能力接口
type Decompiler interface {
	// Decompile 反编译一个 APK。超时通过 ctx 控制；
	// 反编译器本身拒绝样本时返回 *Error。
	Decompile(ctx context.Context, apkPath string) (*Unit, error)

	// Close 释放底层资源（常驻进程等）
	Close()
}

// Error 反编译器拒绝样本
type Error struct {
	APKPath string
	Msg     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("decompile %s: %s", e.APKPath, e.Msg)
}
