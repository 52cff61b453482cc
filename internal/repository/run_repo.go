package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/krono-analysis/krono-extract-go/internal/domain"
)

// RunRepository 运行报告仓库
type RunRepository interface {
	Create(ctx context.Context, run *domain.ExtractionRun) error
	Update(ctx context.Context, run *domain.ExtractionRun) error
	FindByID(ctx context.Context, id string) (*domain.ExtractionRun, error)
	ListRecent(ctx context.Context, limit int) ([]*domain.ExtractionRun, error)
}

type runRepo struct {
	db *gorm.DB
}

// NewRunRepository 创建运行报告仓库
func NewRunRepository(db *gorm.DB) RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(ctx context.Context, run *domain.ExtractionRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *runRepo) Update(ctx context.Context, run *domain.ExtractionRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *runRepo) FindByID(ctx context.Context, id string) (*domain.ExtractionRun, error) {
	var run domain.ExtractionRun
	if err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *runRepo) ListRecent(ctx context.Context, limit int) ([]*domain.ExtractionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []*domain.ExtractionRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
