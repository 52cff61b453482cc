package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/krono-analysis/krono-extract-go/internal/domain"
)

// FailureRepository 失败日志仓库（追加写，仅供运维诊断）
type FailureRepository interface {
	Record(ctx context.Context, runID, sampleID string, reason domain.FailureReason, message string) error
	ListByRun(ctx context.Context, runID string, limit int) ([]*domain.FailureRecord, error)
	CountByReason(ctx context.Context, runID string) (map[domain.FailureReason]int64, error)
}

type failureRepo struct {
	db *gorm.DB
}

// NewFailureRepository 创建失败日志仓库
func NewFailureRepository(db *gorm.DB) FailureRepository {
	return &failureRepo{db: db}
}

func (r *failureRepo) Record(ctx context.Context, runID, sampleID string, reason domain.FailureReason, message string) error {
	rec := &domain.FailureRecord{
		RunID:     runID,
		SampleID:  sampleID,
		Reason:    reason,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *failureRepo) ListByRun(ctx context.Context, runID string, limit int) ([]*domain.FailureRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var records []*domain.FailureRecord
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

func (r *failureRepo) CountByReason(ctx context.Context, runID string) (map[domain.FailureReason]int64, error) {
	type row struct {
		Reason domain.FailureReason
		Count  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&domain.FailureRecord{}).
		Select("reason, COUNT(*) as count").
		Where("run_id = ?", runID).
		Group("reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.FailureReason]int64, len(rows))
	for _, r := range rows {
		counts[r.Reason] = r.Count
	}
	return counts, nil
}
