package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/database"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// HealthRunRepository 财务对账巡检记录仓储
type HealthRunRepository struct {
	db *gorm.DB
}

// NewHealthRunRepository 创建巡检记录仓储
func NewHealthRunRepository(db *gorm.DB) *HealthRunRepository {
	return &HealthRunRepository{db: db}
}

// Create 写入巡检记录
func (r *HealthRunRepository) Create(ctx context.Context, run *models.FinanceHealthRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

// Latest 获取最近一次巡检记录
func (r *HealthRunRepository) Latest(ctx context.Context) (*models.FinanceHealthRun, error) {
	var run models.FinanceHealthRun
	err := r.db.WithContext(ctx).
		Order("started_at DESC").
		First(&run).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// List 分页查询巡检记录
func (r *HealthRunRepository) List(ctx context.Context, page, pageSize int) ([]models.FinanceHealthRun, int64, error) {
	var runs []models.FinanceHealthRun
	var total int64

	query := r.db.WithContext(ctx).Model(&models.FinanceHealthRun{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("started_at DESC").
		Scopes(database.Paginate(page, pageSize)).
		Find(&runs).Error
	return runs, total, err
}
