package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/database"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// PaymentRepository 支付仓储
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建支付仓储
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create 创建支付单
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// GetByID 根据 ID 获取支付单
func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByIDForUpdateTx 事务内加行锁读取，状态流转前调用
func (r *PaymentRepository) GetByIDForUpdateTx(tx *gorm.DB, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := lockForUpdate(tx).First(&payment, id).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByPaymentNo 根据支付单号获取支付单
func (r *PaymentRepository) GetByPaymentNo(ctx context.Context, paymentNo string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("payment_no = ?", paymentNo).
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByBooking 获取预订的支付单
func (r *PaymentRepository) GetByBooking(ctx context.Context, bookingID int64) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Update 更新支付单
func (r *PaymentRepository) Update(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Save(payment).Error
}

// List 分页查询支付单
func (r *PaymentRepository) List(ctx context.Context, filters map[string]interface{}, page, pageSize int) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Payment{})

	if bookingID, ok := filters["booking_id"]; ok {
		query = query.Where("booking_id = ?", bookingID)
	}
	if guestID, ok := filters["guest_id"]; ok {
		query = query.Where("guest_id = ?", guestID)
	}
	if status, ok := filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if gateway, ok := filters["gateway"]; ok {
		query = query.Where("gateway = ?", gateway)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Scopes(database.OrderByCreatedDesc, database.Paginate(page, pageSize)).
		Find(&payments).Error
	return payments, total, err
}

// ListByDateRange 按创建时间窗口导出支付流水
func (r *PaymentRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at").
		Find(&payments).Error
	return payments, err
}
