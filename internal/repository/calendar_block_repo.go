package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

// CalendarBlockRepository 日历占用仓储
type CalendarBlockRepository struct {
	db *gorm.DB
}

// NewCalendarBlockRepository 创建日历占用仓储
func NewCalendarBlockRepository(db *gorm.DB) *CalendarBlockRepository {
	return &CalendarBlockRepository{db: db}
}

// Create 创建占用记录
func (r *CalendarBlockRepository) Create(ctx context.Context, block *models.CalendarBlock) error {
	return r.db.WithContext(ctx).Create(block).Error
}

// LockListing 在事务内获取房源级别的咨询锁，串行化可用性检查与写入
// sqlite 没有 pg_advisory_xact_lock，测试环境事务本身即可串行化
func (r *CalendarBlockRepository) LockListing(tx *gorm.DB, listingID int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	return tx.Exec("SELECT pg_advisory_xact_lock(?)", listingID).Error
}

// HasOverlap 判断 [startDate, endDate) 是否与既有占用重叠
// 区间左闭右开：同日退房/入住（背靠背周转）不算冲突
func (r *CalendarBlockRepository) HasOverlap(ctx context.Context, listingID int64, startDate, endDate time.Time) (bool, error) {
	return r.hasOverlap(r.db.WithContext(ctx), listingID, startDate, endDate, nil)
}

// HasOverlapTx 事务内的重叠检查，可排除指定预订自身的占用
func (r *CalendarBlockRepository) HasOverlapTx(tx *gorm.DB, listingID int64, startDate, endDate time.Time, excludeBookingID *int64) (bool, error) {
	return r.hasOverlap(tx, listingID, startDate, endDate, excludeBookingID)
}

func (r *CalendarBlockRepository) hasOverlap(db *gorm.DB, listingID int64, startDate, endDate time.Time, excludeBookingID *int64) (bool, error) {
	var count int64
	query := db.Model(&models.CalendarBlock{}).
		Where("listing_id = ?", listingID).
		Where("start_date < ?", endDate).
		Where("end_date > ?", startDate)
	if excludeBookingID != nil {
		query = query.Where("booking_id IS NULL OR booking_id <> ?", *excludeBookingID)
	}
	if err := query.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetByBooking 获取预订对应的占用记录
func (r *CalendarBlockRepository) GetByBooking(ctx context.Context, bookingID int64) (*models.CalendarBlock, error) {
	var block models.CalendarBlock
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&block).Error
	if err != nil {
		return nil, err
	}
	return &block, nil
}

// DeleteByBookingTx 事务内删除预订对应的占用（取消预订时释放日历）
func (r *CalendarBlockRepository) DeleteByBookingTx(tx *gorm.DB, bookingID int64) error {
	return tx.Where("booking_id = ?", bookingID).Delete(&models.CalendarBlock{}).Error
}

// ExtendByBookingTx 事务内延长预订占用的退房日（延住审批通过）
func (r *CalendarBlockRepository) ExtendByBookingTx(tx *gorm.DB, bookingID int64, newEndDate time.Time) error {
	return tx.Model(&models.CalendarBlock{}).
		Where("booking_id = ?", bookingID).
		Update("end_date", newEndDate).Error
}

// ListByListing 查询房源在给定窗口内的占用
func (r *CalendarBlockRepository) ListByListing(ctx context.Context, listingID int64, from, to time.Time) ([]models.CalendarBlock, error) {
	var blocks []models.CalendarBlock
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Where("start_date < ?", to).
		Where("end_date > ?", from).
		Order("start_date").
		Find(&blocks).Error
	return blocks, err
}
