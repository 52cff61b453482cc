package catalog

// benignLibPrefixes 常见良性库前缀。
// 节点命中任意前缀即计入良性 API 数，benign_ratio = 良性节点 / 总节点。
// 恶意样本通常自带大量手写代码，良性应用则大面积调用这些生态库，
// 该比值是区分度很高的弱信号。
func benignLibPrefixes() []string {
	return []string{
		// Google / Android 官方
		"Landroidx/",
		"Lcom/google/android/",
		"Lcom/google/firebase/",
		"Lcom/google/common/",
		"Lcom/google/gson/",
		"Lcom/google/crypto/",
		"Lcom/google/zxing/",
		"Lcom/google/protobuf/",
		"Lcom/android/volley/",
		"Lcom/google/dagger/",
		"Lcom/google/mlkit/",
		"Lcom/google/flatbuffers/",

		// Kotlin / JVM 语言运行时
		"Lkotlin/",
		"Lkotlinx/",
		"Lscala/",
		"Lorg/jetbrains/",

		// 网络库
		"Lcom/squareup/okhttp",
		"Lcom/squareup/retrofit",
		"Lokhttp3/",
		"Lretrofit2/",
		"Lcom/squareup/okio/",
		"Lcom/squareup/moshi/",
		"Lio/netty/",
		"Lio/grpc/",
		"Lio/ktor/",

		// UI / 图片
		"Lcom/bumptech/glide/",
		"Lcom/squareup/picasso/",
		"Lcom/facebook/fresco/",
		"Lcom/airbnb/lottie/",
		"Lcoil/",
		"Lde/hdodenhof/circleimageview/",

		// 社交 / 统计 / 广告 SDK
		"Lcom/facebook/",
		"Lcom/twitter/",
		"Lcom/crashlytics/",
		"Lio/fabric/",
		"Lcom/mixpanel/",
		"Lcom/amplitude/",
		"Lcom/appsflyer/",
		"Lcom/adjust/sdk/",
		"Lio/sentry/",
		"Lcom/bugsnag/android/",
		"Lcom/applovin/",
		"Lcom/unity3d/ads/",
		"Lcom/ironsource/",

		// 支付 SDK
		"Lcom/stripe/android/",
		"Lcom/paypal/android/",
		"Lcom/braintreepayments/",
		"Lcom/adyen/",

		// 数据库 / ORM
		"Lio/realm/",
		"Lcom/j256/ormlite/",
		"Lorg/greenrobot/greendao/",

		// 依赖注入
		"Ldagger/",
		"Ljavax/inject/",
		"Lorg/koin/",

		// 响应式 / 异步
		"Lio/reactivex/",
		"Lrx/",
		"Lorg/reactivestreams/",

		// 常见 Java / Apache
		"Lorg/apache/",
		"Lorg/json/",
		"Lorg/slf4j/",
		"Lch/qos/logback/",
		"Lcom/fasterxml/jackson/",
		"Lorg/bouncycastle/",
		"Lorg/jsoup/",

		// 测试框架
		"Lorg/junit/",
		"Lorg/mockito/",
		"Lorg/hamcrest/",
		"Lio/mockk/",

		// 跨平台框架
		"Lio/flutter/",
		"Lcom/facebook/react/",
		"Lorg/apache/cordova/",
		"Lmono/android/",
		"Lcom/getcapacitor/",

		// 云服务
		"Lcom/amazonaws/",
		"Lcom/microsoft/azure/",
		"Lcom/huawei/hms/",
		"Lcom/mapbox/",

		// 其他常见库
		"Lbutterknife/",
		"Lcom/jakewharton/",
		"Lcom/squareup/leakcanary/",
		"Lcom/github/mikephil/charting/",
		"Lorg/tensorflow/lite/",
		"Lcom/auth0/",
	}
}
