// Package repository 提供数据访问层
package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// BookingRepository 预订仓储
type BookingRepository struct {
	db *gorm.DB
}

// NewBookingRepository 创建预订仓储
func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

// Create 创建预订
func (r *BookingRepository) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

// GetByID 根据 ID 获取预订
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByIDForUpdateTx 事务内加行锁读取，状态流转前调用
func (r *BookingRepository) GetByIDForUpdateTx(tx *gorm.DB, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := lockForUpdate(tx).First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByIDWithDetails 根据 ID 获取预订（包含关联信息）
func (r *BookingRepository) GetByIDWithDetails(ctx context.Context, id int64) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Preload("Listing").
		Preload("Guest").
		Preload("Host").
		First(&booking, id).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByBookingNumber 根据预订号获取预订
func (r *BookingRepository) GetByBookingNumber(ctx context.Context, number string) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).
		Where("booking_number = ?", number).
		First(&booking).Error
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// Update 更新预订
func (r *BookingRepository) Update(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

// List 查询预订列表
func (r *BookingRepository) List(ctx context.Context, filters map[string]interface{}, offset, limit int) ([]models.Booking, int64, error) {
	var bookings []models.Booking
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Booking{})

	if guestID, ok := filters["guest_id"]; ok {
		query = query.Where("guest_id = ?", guestID)
	}
	if hostID, ok := filters["host_id"]; ok {
		query = query.Where("host_id = ?", hostID)
	}
	if listingID, ok := filters["listing_id"]; ok {
		query = query.Where("listing_id = ?", listingID)
	}
	if status, ok := filters["status"]; ok {
		query = query.Where("status = ?", status)
	}
	if source, ok := filters["source"]; ok {
		query = query.Where("source = ?", source)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&bookings).Error
	if err != nil {
		return nil, 0, err
	}

	return bookings, total, nil
}

// CountByStatus 按状态统计预订数
func (r *BookingRepository) CountByStatus(ctx context.Context, status domain.BookingStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("status = ?", status).
		Count(&count).Error
	return count, err
}

// Count 统计全部预订数
func (r *BookingRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Booking{}).Count(&count).Error
	return count, err
}

// ListCompletedWithoutSnapshot 查询缺少财务快照的已完成预订
func (r *BookingRepository) ListCompletedWithoutSnapshot(ctx context.Context, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.BookingStatusCompleted).
		Where("id NOT IN (?)",
			r.db.Model(&models.BookingFinancialSnapshot{}).Select("booking_id")).
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}

// ListByIDs 批量获取预订
func (r *BookingRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Booking, error) {
	var bookings []models.Booking
	if len(ids) == 0 {
		return bookings, nil
	}
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&bookings).Error
	return bookings, err
}

// ListStaleCheckouts 查询退房日已过但仍在住的预订
func (r *BookingRepository) ListStaleCheckouts(ctx context.Context, asOf time.Time, limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.BookingStatusCheckedIn).
		Where("check_out < ?", asOf).
		Limit(limit).
		Find(&bookings).Error
	return bookings, err
}
