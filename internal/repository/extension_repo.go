package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

// ExtensionRepository 延住申请仓储
type ExtensionRepository struct {
	db *gorm.DB
}

// NewExtensionRepository 创建延住申请仓储
func NewExtensionRepository(db *gorm.DB) *ExtensionRepository {
	return &ExtensionRepository{db: db}
}

// Create 创建延住申请
func (r *ExtensionRepository) Create(ctx context.Context, ext *models.BookingExtension) error {
	return r.db.WithContext(ctx).Create(ext).Error
}

// GetByID 根据 ID 获取延住申请
func (r *ExtensionRepository) GetByID(ctx context.Context, id int64) (*models.BookingExtension, error) {
	var ext models.BookingExtension
	err := r.db.WithContext(ctx).First(&ext, id).Error
	if err != nil {
		return nil, err
	}
	return &ext, nil
}

// LatestPending 获取预订最新的待审批延住申请
func (r *ExtensionRepository) LatestPending(ctx context.Context, bookingID int64) (*models.BookingExtension, error) {
	var ext models.BookingExtension
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, models.ExtensionStatusPending).
		Order("created_at DESC").
		First(&ext).Error
	if err != nil {
		return nil, err
	}
	return &ext, nil
}

// Update 更新延住申请
func (r *ExtensionRepository) Update(ctx context.Context, ext *models.BookingExtension) error {
	return r.db.WithContext(ctx).Save(ext).Error
}

// ListByBooking 查询预订的全部延住申请
func (r *ExtensionRepository) ListByBooking(ctx context.Context, bookingID int64) ([]models.BookingExtension, error) {
	var exts []models.BookingExtension
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at DESC").
		Find(&exts).Error
	return exts, err
}
