package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/database"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// PayoutRepository 房东放款仓储
type PayoutRepository struct {
	db *gorm.DB
}

// NewPayoutRepository 创建房东放款仓储
func NewPayoutRepository(db *gorm.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create 创建放款单
func (r *PayoutRepository) Create(ctx context.Context, payout *models.HostPayout) error {
	return r.db.WithContext(ctx).Create(payout).Error
}

// CreateTx 事务内创建放款单
func (r *PayoutRepository) CreateTx(tx *gorm.DB, payout *models.HostPayout) error {
	return tx.Create(payout).Error
}

// GetByID 根据 ID 获取放款单
func (r *PayoutRepository) GetByID(ctx context.Context, id int64) (*models.HostPayout, error) {
	var payout models.HostPayout
	err := r.db.WithContext(ctx).First(&payout, id).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// GetByIDForUpdateTx 事务内加行锁读取，状态流转前调用
func (r *PayoutRepository) GetByIDForUpdateTx(tx *gorm.DB, id int64) (*models.HostPayout, error) {
	var payout models.HostPayout
	err := lockForUpdate(tx).First(&payout, id).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// GetByBooking 获取预订对应的放款单
func (r *PayoutRepository) GetByBooking(ctx context.Context, bookingID int64) (*models.HostPayout, error) {
	var payout models.HostPayout
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// GetByBookingTx 事务内加行锁获取预订对应的放款单
func (r *PayoutRepository) GetByBookingTx(tx *gorm.DB, bookingID int64) (*models.HostPayout, error) {
	var payout models.HostPayout
	err := lockForUpdate(tx).Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

// Update 更新放款单
func (r *PayoutRepository) Update(ctx context.Context, payout *models.HostPayout) error {
	return r.db.WithContext(ctx).Save(payout).Error
}

// UpdateTx 事务内更新放款单
func (r *PayoutRepository) UpdateTx(tx *gorm.DB, payout *models.HostPayout) error {
	return tx.Save(payout).Error
}

// List 分页查询放款单
func (r *PayoutRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.HostPayout, int64, error) {
	var payouts []models.HostPayout
	var total int64

	query := r.db.WithContext(ctx).Model(&models.HostPayout{})

	if hostID, ok := filters["host_id"]; ok {
		query = query.Where("host_id = ?", hostID)
	}
	if status, ok := filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if bookingID, ok := filters["booking_id"]; ok {
		query = query.Where("booking_id = ?", bookingID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.OrderByCreatedDesc, database.Paginate(page, pageSize)).
		Find(&payouts).Error
	return payouts, total, err
}

// SumByHostAndStatus 统计房东在指定状态下的放款总额
func (r *PayoutRepository) SumByHostAndStatus(ctx context.Context, hostID int64, status domain.PayoutStatus) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.HostPayout{}).
		Where("host_id = ? AND status = ?", hostID, status).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ListDuePending 查询到期待放款的单据，定时任务据此批量转为可放款
func (r *PayoutRepository) ListDuePending(ctx context.Context, asOf time.Time, limit int) ([]models.HostPayout, error) {
	var payouts []models.HostPayout
	err := r.db.WithContext(ctx).
		Where("status = ? AND payout_date <= ?", domain.PayoutStatusPending, asOf).
		Order("payout_date").
		Limit(limit).
		Find(&payouts).Error
	return payouts, err
}

// ListOrphans 查询预订已被删除引用的放款单，用于对账健康检查
func (r *PayoutRepository) ListOrphans(ctx context.Context, limit int) ([]models.HostPayout, error) {
	var payouts []models.HostPayout
	err := r.db.WithContext(ctx).
		Where("booking_id IS NOT NULL").
		Where("booking_id NOT IN (?)", r.db.Model(&models.Booking{}).Select("id")).
		Limit(limit).
		Find(&payouts).Error
	return payouts, err
}

// ListByDateRange 按创建时间窗口导出放款流水，可按状态过滤
func (r *PayoutRepository) ListByDateRange(ctx context.Context, from, to time.Time, status string) ([]models.HostPayout, error) {
	var payouts []models.HostPayout
	query := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	err := query.Order("created_at").Find(&payouts).Error
	return payouts, err
}
