package catalog

// builtinVersion 内置目录版本。改动任何规则必须升版本号，
// 否则不同批次产出的特征列语义无法对齐。
const builtinVersion = "2025.08.1"

// builtinRules 内置规则表。
// 类别顺序即特征 CSV 中 api_* 列的顺序，只能追加，不能重排。
// 签名使用 smali 形式（Ljava/lang/Runtime;->exec），前缀规则覆盖整个 API 族。
func builtinRules() []Rule {
	return []Rule{
		{
			Category: "exfiltration",
			Exact: []string{
				"Ljava/net/Socket;->getOutputStream",
				"Landroid/telephony/SmsManager;->sendDataMessage",
				"Ljava/io/ObjectOutputStream;->writeObject",
			},
			Prefixes: []string{
				"Ljava/net/HttpURLConnection;->setRequestMethod",
				"Lorg/apache/http/client/methods/HttpPost;",
				"Ljava/net/URLConnection;->getOutputStream",
			},
		},
		{
			Category: "keylog",
			Prefixes: []string{
				"Landroid/view/inputmethod/InputMethodManager;",
				"Landroid/text/TextWatcher;",
				"Landroid/view/KeyEvent;->getKeyCode",
				"Landroid/view/accessibility/AccessibilityEvent;->getText",
			},
		},
		{
			Category: "admin",
			Prefixes: []string{
				"Landroid/app/admin/DevicePolicyManager;",
				"Landroid/app/admin/DeviceAdminReceiver;",
			},
		},
		{
			Category: "shell",
			Exact: []string{
				"Ljava/lang/Runtime;->exec",
				"Ljava/lang/ProcessBuilder;->start",
			},
			Prefixes: []string{
				"Ljava/lang/ProcessBuilder;-><init>",
				"Landroid/os/Process;->killProcess",
			},
		},
		{
			Category: "accessibility_abuse",
			Prefixes: []string{
				"Landroid/accessibilityservice/",
				"Landroid/view/accessibility/AccessibilityNodeInfo;->performAction",
			},
		},
		{
			Category: "overlay",
			Exact: []string{
				"Landroid/view/WindowManager;->addView",
				"Landroid/provider/Settings;->canDrawOverlays",
			},
			Prefixes: []string{
				"Landroid/view/WindowManager$LayoutParams;-><init>",
			},
		},
		{
			Category: "ransomware",
			Exact: []string{
				"Ljavax/crypto/Cipher;->doFinal",
				"Landroid/app/admin/DevicePolicyManager;->lockNow",
				"Landroid/app/admin/DevicePolicyManager;->resetPassword",
				"Ljava/io/File;->renameTo",
			},
		},
		{
			Category: "sms",
			Prefixes: []string{
				"Landroid/telephony/SmsManager;",
				"Landroid/telephony/SmsMessage;",
				"Landroid/provider/Telephony",
			},
		},
		{
			Category: "telephony",
			Prefixes: []string{
				"Landroid/telephony/TelephonyManager;",
				"Landroid/telecom/",
			},
		},
		{
			Category: "anti_debug",
			Exact: []string{
				"Landroid/os/Debug;->isDebuggerConnected",
				"Landroid/os/Debug;->waitingForDebugger",
			},
			Prefixes: []string{
				"Landroid/os/Debug;->threadCpuTimeNanos",
			},
		},
		{
			Category: "obfuscation",
			Prefixes: []string{
				"Landroid/util/Base64;->decode",
				"Ljava/util/zip/Inflater;",
				"Ljavax/crypto/spec/SecretKeySpec;-><init>",
			},
		},
		{
			Category: "anti_vm",
			Exact: []string{
				"Landroid/os/Build;->getRadioVersion",
				"Landroid/telephony/TelephonyManager;->getNetworkOperatorName",
			},
			Prefixes: []string{
				"Landroid/os/SystemProperties;->get",
			},
		},
		{
			Category: "packer_check",
			Prefixes: []string{
				"Ldalvik/system/DexFile;",
				"Lcom/qihoo/util/",
				"Lcom/secneo/apkwrapper/",
				"Lcom/baidu/protect/",
			},
		},
		{
			Category: "dynamic_load",
			Exact: []string{
				"Ljava/lang/ClassLoader;->loadClass",
			},
			Prefixes: []string{
				"Ldalvik/system/DexClassLoader;",
				"Ldalvik/system/PathClassLoader;",
				"Ldalvik/system/InMemoryDexClassLoader;",
			},
		},
		{
			Category: "screenshot",
			Prefixes: []string{
				"Landroid/media/projection/",
				"Landroid/view/PixelCopy;",
			},
		},
		{
			Category: "clipboard",
			Prefixes: []string{
				"Landroid/content/ClipboardManager;",
				"Landroid/content/ClipData;",
			},
		},
		{
			Category: "persistence",
			Prefixes: []string{
				"Landroid/app/AlarmManager;->set",
				"Landroid/app/job/JobScheduler;",
				"Landroid/os/PowerManager$WakeLock;",
			},
		},
		{
			Category: "hooking",
			Exact: []string{
				"Ljava/lang/reflect/Proxy;->newProxyInstance",
			},
			Prefixes: []string{
				"Lde/robv/android/xposed/",
				"Lcom/taobao/android/dexposed/",
			},
		},
		{
			Category: "network",
			Prefixes: []string{
				"Ljava/net/",
				"Ljavax/net/ssl/",
				"Landroid/net/ConnectivityManager;",
				"Lorg/apache/http/",
			},
		},
		{
			Category: "stealth",
			Exact: []string{
				"Landroid/content/pm/PackageManager;->setComponentEnabledSetting",
				"Landroid/app/NotificationManager;->cancelAll",
			},
		},
		{
			Category: "location",
			Prefixes: []string{
				"Landroid/location/",
				"Lcom/google/android/gms/location/",
			},
		},
		{
			Category: "camera",
			Prefixes: []string{
				"Landroid/hardware/Camera;",
				"Landroid/hardware/camera2/",
			},
		},
		{
			Category: "microphone",
			Prefixes: []string{
				"Landroid/media/MediaRecorder;",
				"Landroid/media/AudioRecord;",
			},
		},
		{
			Category: "crypto",
			Prefixes: []string{
				"Ljavax/crypto/",
				"Ljava/security/",
			},
		},
		{
			Category: "reflection",
			Exact: []string{
				"Ljava/lang/Class;->getDeclaredMethod",
				"Ljava/lang/Class;->getMethod",
			},
			Prefixes: []string{
				"Ljava/lang/reflect/",
			},
		},
		{
			Category: "device_info",
			Exact: []string{
				"Landroid/telephony/TelephonyManager;->getDeviceId",
				"Landroid/telephony/TelephonyManager;->getSubscriberId",
				"Landroid/telephony/TelephonyManager;->getSimSerialNumber",
				"Landroid/provider/Settings$Secure;->getString",
			},
			Prefixes: []string{
				"Landroid/os/Build;->getSerial",
			},
		},
		{
			Category: "contacts",
			Prefixes: []string{
				"Landroid/provider/ContactsContract",
				"Landroid/provider/CallLog",
			},
		},
		{
			Category: "root_detect",
			Prefixes: []string{
				"Lcom/scottyab/rootbeer/",
				"Leu/chainfire/libsuperuser/",
				"Lcom/topjohnwu/superuser/",
			},
		},
		{
			Category: "file_ops",
			Exact: []string{
				"Landroid/os/Environment;->getExternalStorageDirectory",
			},
			Prefixes: []string{
				"Ljava/io/File;",
				"Ljava/io/FileOutputStream;",
				"Ljava/io/FileInputStream;",
			},
		},
		{
			Category: "webview",
			Prefixes: []string{
				"Landroid/webkit/",
			},
		},
		{
			Category: "sqlite",
			Prefixes: []string{
				"Landroid/database/sqlite/",
				"Lnet/sqlcipher/",
			},
		},
		{
			Category: "native_code",
			Exact: []string{
				"Ljava/lang/System;->loadLibrary",
				"Ljava/lang/System;->load",
				"Ljava/lang/Runtime;->loadLibrary",
				"Ljava/lang/Runtime;->load",
			},
		},
		{
			Category: "background",
			Exact: []string{
				"Landroid/app/Service;->startForeground",
				"Landroid/content/Context;->startService",
			},
			Prefixes: []string{
				"Landroid/app/IntentService;",
				"Landroidx/work/WorkManager;",
			},
		},
		{
			Category: "biometric",
			Prefixes: []string{
				"Landroid/hardware/biometrics/",
				"Landroid/hardware/fingerprint/",
				"Landroidx/biometric/",
			},
		},
		{
			Category: "notification_abuse",
			Exact: []string{
				"Landroid/app/NotificationManager;->notify",
			},
			Prefixes: []string{
				"Landroid/service/notification/NotificationListenerService;",
				"Landroid/app/Notification$Builder;->setFullScreenIntent",
			},
		},
		{
			Category: "vpn",
			Prefixes: []string{
				"Landroid/net/VpnService",
			},
		},
		{
			Category: "browser_exploit",
			Exact: []string{
				"Landroid/webkit/WebView;->addJavascriptInterface",
				"Landroid/webkit/WebSettings;->setJavaScriptEnabled",
				"Landroid/webkit/WebView;->loadUrl",
			},
		},
		{
			Category: "app_ops",
			Exact: []string{
				"Landroid/app/ActivityManager;->killBackgroundProcesses",
				"Landroid/app/ActivityManager;->getRunningTasks",
				"Landroid/app/ActivityManager;->getRunningAppProcesses",
				"Landroid/content/pm/PackageManager;->getInstalledPackages",
				"Landroid/content/pm/PackageManager;->getInstalledApplications",
			},
			Prefixes: []string{
				"Landroid/app/usage/UsageStatsManager;",
			},
		},
	}
}
