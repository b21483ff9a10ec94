package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/database"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// PeriodRepository 对账周期仓储
type PeriodRepository struct {
	db *gorm.DB
}

// NewPeriodRepository 创建对账周期仓储
func NewPeriodRepository(db *gorm.DB) *PeriodRepository {
	return &PeriodRepository{db: db}
}

// PeriodBounds 计算某时刻所在周期的边界，周周期从周一起算
func PeriodBounds(periodType string, at time.Time) (time.Time, time.Time) {
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	switch periodType {
	case models.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 7)
	case models.PeriodMonthly:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, at.Location())
		return start, start.AddDate(0, 1, 0)
	default:
		return day, day.AddDate(0, 0, 1)
	}
}

// GetOrCreate 获取某时刻所在的对账周期，不存在则创建
func (r *PeriodRepository) GetOrCreate(ctx context.Context, periodType string, at time.Time) (*models.ReconciliationPeriod, error) {
	start, end := PeriodBounds(periodType, at)

	var period models.ReconciliationPeriod
	err := r.db.WithContext(ctx).
		Where("period_type = ? AND period_start = ?", periodType, start).
		First(&period).Error
	if err == nil {
		return &period, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	period = models.ReconciliationPeriod{
		PeriodType:  periodType,
		PeriodStart: start,
		PeriodEnd:   end,
	}
	if err := r.db.WithContext(ctx).Create(&period).Error; err != nil {
		return nil, err
	}
	return &period, nil
}

// Update 更新周期汇总
func (r *PeriodRepository) Update(ctx context.Context, period *models.ReconciliationPeriod) error {
	return r.db.WithContext(ctx).Save(period).Error
}

// ListStale 查询在指定时刻之后未刷新过的未结束周期
func (r *PeriodRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]models.ReconciliationPeriod, error) {
	var periods []models.ReconciliationPeriod
	err := r.db.WithContext(ctx).
		Where("last_recalculated_at IS NULL OR last_recalculated_at < ?", before).
		Order("period_start").
		Limit(limit).
		Find(&periods).Error
	return periods, err
}

// List 分页查询对账周期
func (r *PeriodRepository) List(ctx context.Context, periodType string, page, pageSize int) ([]models.ReconciliationPeriod, int64, error) {
	var periods []models.ReconciliationPeriod
	var total int64

	query := r.db.WithContext(ctx).Model(&models.ReconciliationPeriod{})
	if periodType != "" {
		query = query.Where("period_type = ?", periodType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order("period_start DESC").
		Scopes(database.Paginate(page, pageSize)).
		Find(&periods).Error
	return periods, total, err
}
