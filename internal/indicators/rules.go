package indicators

// PackerRule 一个加固壳的识别规则
type PackerRule struct {
	Name       string
	NativeLibs []string // lib/ 下的特征 so 名
	Assets     []string // assets/ 下的特征文件（子串匹配）
	Strings    []string // dex 字符串常量里的特征（子串匹配）
}

// builtinPackerRules 内置壳规则库
func builtinPackerRules() []PackerRule {
	return []PackerRule{
		{
			Name:       "360加固",
			NativeLibs: []string{"libjiagu.so", "libjiagu_x86.so", "libjiagu_a64.so", "libjiagu_x64.so", "libjgbibc_32.so", "libjgbibc_64.so"},
			Assets:     []string{"jiagu_data.bin", "jiagu_art", "ijm_lib", ".jiagu", "jiagu.db"},
			Strings:    []string{"com.qihoo.util", "com.stub.StubApp", "com.qihoo360.protect"},
		},
		{
			Name:       "腾讯乐固",
			NativeLibs: []string{"libshell.so", "libshellx.so", "libtxmsecurity.so"},
			Strings:    []string{"com.tencent.StubShell", "com.tencent.legu"},
		},
		{
			Name:       "爱加密",
			NativeLibs: []string{"libexec.so", "libexecmain.so"},
			Assets:     []string{"ijiami.ajm"},
			Strings:    []string{"ijiami", "s.h.e.l.l", "com.shell.SuperApplication"},
		},
		{
			Name:       "梆梆加固",
			NativeLibs: []string{"libDexHelper.so", "libSecShell.so"},
			Strings:    []string{"com.secneo.apkwrapper", "com.bangcle"},
		},
		{
			Name:       "百度加固",
			NativeLibs: []string{"libbaiduprotect.so", "libbdmain.so", "libBaiduProtect.so"},
			Assets:     []string{"baidu_dex.jar", "baiduprotect.dat", "baiduprotect.jar"},
			Strings:    []string{"com.baidu.protect"},
		},
		{
			Name:       "网易易盾",
			NativeLibs: []string{"libnesec.so", "libNetHTProtect.so"},
			Strings:    []string{"com.netease.nis", "com.netease.htprotect"},
		},
		{
			Name:       "阿里聚安全",
			NativeLibs: []string{"libmobisec.so", "libsgmain.so", "libsgsecuritybody.so"},
			Strings:    []string{"com.alibaba.wireless.security"},
		},
	}
}
