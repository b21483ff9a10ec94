package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

// RefundRepository 退款仓储
type RefundRepository struct {
	db *gorm.DB
}

// NewRefundRepository 创建退款仓储
func NewRefundRepository(db *gorm.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

// Create 创建退款单
func (r *RefundRepository) Create(ctx context.Context, refund *models.Refund) error {
	return r.db.WithContext(ctx).Create(refund).Error
}

// CreateTx 事务内创建退款单
func (r *RefundRepository) CreateTx(tx *gorm.DB, refund *models.Refund) error {
	return tx.Create(refund).Error
}

// GetByID 根据 ID 获取退款单
func (r *RefundRepository) GetByID(ctx context.Context, id int64) (*models.Refund, error) {
	var refund models.Refund
	err := r.db.WithContext(ctx).First(&refund, id).Error
	if err != nil {
		return nil, err
	}
	return &refund, nil
}

// SumByPayment 统计某支付单已批准的退款总额
func (r *RefundRepository) SumByPayment(ctx context.Context, paymentID int64) (int64, error) {
	return r.sumByPayment(r.db.WithContext(ctx), paymentID)
}

// SumByPaymentTx 事务内统计某支付单已批准的退款总额
func (r *RefundRepository) SumByPaymentTx(tx *gorm.DB, paymentID int64) (int64, error) {
	return r.sumByPayment(tx, paymentID)
}

func (r *RefundRepository) sumByPayment(db *gorm.DB, paymentID int64) (int64, error) {
	var total int64
	err := db.Model(&models.Refund{}).
		Where("payment_id = ? AND status = ?", paymentID, models.RefundStatusApproved).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ListByBooking 查询预订的退款记录
func (r *RefundRepository) ListByBooking(ctx context.Context, bookingID int64) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Find(&refunds).Error
	return refunds, err
}

// SumByBookingIDs 按预订批量统计已批准退款额，用于房东收益对账单
func (r *RefundRepository) SumByBookingIDs(ctx context.Context, bookingIDs []int64) (map[int64]int64, error) {
	if len(bookingIDs) == 0 {
		return map[int64]int64{}, nil
	}
	type row struct {
		BookingID int64
		Total     int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.Refund{}).
		Where("booking_id IN ? AND status = ?", bookingIDs, models.RefundStatusApproved).
		Select("booking_id, COALESCE(SUM(amount), 0) AS total").
		Group("booking_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[int64]int64, len(rows))
	for _, v := range rows {
		result[v.BookingID] = v.Total
	}
	return result, nil
}

// ListByDateRange 按创建时间窗口导出退款流水
func (r *RefundRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.Refund, error) {
	var refunds []models.Refund
	err := r.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at").
		Find(&refunds).Error
	return refunds, err
}
