package config

import (
	"os"
	"runtime"

	"github.com/spf13/viper"
)

type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Decompiler DecompilerConfig `mapstructure:"decompiler"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Server     ServerConfig     `mapstructure:"server"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq"`
	Watch      WatchConfig      `mapstructure:"watch"`
	Log        LogConfig        `mapstructure:"log"`
}

type DatabaseConfig struct {
	Type     string `mapstructure:"type"` // mysql, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"db_name"`
	Path     string `mapstructure:"path"` // sqlite 文件路径
}

// DecompilerConfig 反编译器（androguard 常驻进程池）配置
type DecompilerConfig struct {
	PythonPath     string `mapstructure:"python_path"`
	ScriptPath     string `mapstructure:"script_path"`
	PoolSize       int    `mapstructure:"pool_size"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 单样本反编译超时
}

// ExtractionConfig 特征提取配置
type ExtractionConfig struct {
	Workers              int   `mapstructure:"workers"`                // 0 = NumCPU-2（下限 1）
	SampleTimeoutSeconds int   `mapstructure:"sample_timeout_seconds"` // 单样本全管线超时
	MinSampleSizeKB      int64 `mapstructure:"min_sample_size_kb"`     // 小于该值直接记为 too_small
	ApproxNodeThreshold  int   `mapstructure:"approx_node_threshold"`  // 节点数超过该值时 betweenness 采样近似
	BetweennessSamples   int   `mapstructure:"betweenness_samples"`    // 近似模式的采样源点数
	ProgressInterval     int   `mapstructure:"progress_interval"`      // 每处理多少个样本打印一次进度
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // debug, release
}

type RabbitMQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	Queue    string `mapstructure:"queue"`
}

// WatchConfig 目录监控模式配置
type WatchConfig struct {
	Dir       string `mapstructure:"dir"`
	OutputCSV string `mapstructure:"output_csv"`
	Label     int    `mapstructure:"label"` // watch 模式下新样本的标签
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// 环境变量覆盖（支持嵌套配置）
	viper.AutomaticEnv()
	viper.BindEnv("database.type", "DB_TYPE")
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASS")
	viper.BindEnv("rabbitmq.host", "RABBITMQ_HOST")
	viper.BindEnv("rabbitmq.port", "RABBITMQ_PORT")
	viper.BindEnv("rabbitmq.user", "RABBITMQ_USER")
	viper.BindEnv("rabbitmq.password", "RABBITMQ_PASS")
	viper.BindEnv("decompiler.python_path", "DECOMPILER_PYTHON")
	viper.BindEnv("decompiler.script_path", "DECOMPILER_SCRIPT")

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// 配置文件可选：找不到时全部走默认值 + 环境变量。
		// SetConfigFile 路径下缺文件报的是 *fs.PathError，不是 ConfigFileNotFoundError
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Extraction.Workers <= 0 {
		cfg.Extraction.Workers = DefaultWorkers()
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", "./data/extraction.db")
	viper.SetDefault("decompiler.python_path", "python3")
	viper.SetDefault("decompiler.script_path", "./scripts/decompile_apk.py")
	viper.SetDefault("decompiler.pool_size", 3)
	viper.SetDefault("decompiler.timeout_seconds", 60)
	viper.SetDefault("extraction.sample_timeout_seconds", 120)
	viper.SetDefault("extraction.min_sample_size_kb", 50)
	viper.SetDefault("extraction.approx_node_threshold", 2000)
	viper.SetDefault("extraction.betweenness_samples", 256)
	viper.SetDefault("extraction.progress_interval", 50)
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "release")
	viper.SetDefault("rabbitmq.enabled", false)
	viper.SetDefault("rabbitmq.queue", "feature_extraction")
	viper.SetDefault("watch.label", 0)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
}

// DefaultWorkers 默认并发度：总核数减 2，下限 1（长时间无人值守运行时给系统留余量）
func DefaultWorkers() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}
