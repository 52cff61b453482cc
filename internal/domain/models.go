package domain

import (
	"time"
)

// Label 样本标签（来源目录决定）
type Label int

const (
	LabelBenign  Label = 0 // benign/ 目录
	LabelMalware Label = 1 // malware/ 目录
)

// Sample 一个待提取特征的 APK 样本
type Sample struct {
	ID     string  // 样本 ID（文件名，含 .apk 后缀）
	Path   string  // APK 绝对路径
	Label  Label   // 0=良性 1=恶意
	SizeKB float64 // 文件大小（KB，保留两位小数）
}

// FailureReason 失败类型
type FailureReason string

const (
	ReasonInvalidArchive  FailureReason = "invalid_archive"  // ZIP 结构校验失败（不可重试）
	ReasonTooSmall        FailureReason = "too_small"        // 文件小于最小样本阈值
	ReasonDecompileError  FailureReason = "decompile_error"  // 反编译器拒绝该样本
	ReasonTimeout         FailureReason = "timeout"          // 超过单样本计算预算
	ReasonSchemaViolation FailureReason = "schema_violation" // 内部不变量被破坏：某阶段产出了不完整的特征集
	ReasonUnexpected      FailureReason = "unexpected"       // 未归类的管线错误
)

// FailureRecord 失败日志记录（仅供运维诊断，不进入特征 CSV）
type FailureRecord struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID     string        `gorm:"type:varchar(36);index" json:"run_id"`
	SampleID  string        `gorm:"type:varchar(255);not null;index" json:"sample_id"`
	Reason    FailureReason `gorm:"type:varchar(30);not null" json:"reason"`
	Message   string        `gorm:"type:text" json:"message,omitempty"`
	CreatedAt time.Time     `gorm:"not null" json:"created_at"`
}

// ExtractionRun 一次批量提取的运行报告
// CatalogVersion 和 ApproxBetweenness 记录在这里，保证特征语义可复现
type ExtractionRun struct {
	ID                string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DatasetDir        string    `gorm:"type:varchar(512);not null" json:"dataset_dir"`
	OutputPath        string    `gorm:"type:varchar(512);not null" json:"output_path"`
	Subset            string    `gorm:"type:varchar(16)" json:"subset,omitempty"`
	Limit             int       `gorm:"default:0" json:"limit,omitempty"`
	Workers           int       `gorm:"not null" json:"workers"`
	CatalogVersion    string    `gorm:"type:varchar(32);not null" json:"catalog_version"`
	ApproxBetweenness bool      `gorm:"default:false" json:"approx_betweenness"`
	Processed         int       `gorm:"default:0" json:"processed"`
	Skipped           int       `gorm:"default:0" json:"skipped"`
	Failed            int       `gorm:"default:0" json:"failed"`
	StartedAt         time.Time `gorm:"not null" json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
	ElapsedSeconds    float64   `gorm:"default:0" json:"elapsed_seconds"`
}

// TableName 指定表名
func (ExtractionRun) TableName() string {
	return "extraction_runs"
}

// TableName 指定表名
func (FailureRecord) TableName() string {
	return "failure_records"
}
