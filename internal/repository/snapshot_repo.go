package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

// SnapshotRepository 预订财务快照仓储
// 快照在预订完成时一次性写入，之后不可变更
type SnapshotRepository struct {
	db *gorm.DB
}

// NewSnapshotRepository 创建财务快照仓储
func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create 写入快照
func (r *SnapshotRepository) Create(ctx context.Context, snapshot *models.BookingFinancialSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

// CreateTx 事务内写入快照
func (r *SnapshotRepository) CreateTx(tx *gorm.DB, snapshot *models.BookingFinancialSnapshot) error {
	return tx.Create(snapshot).Error
}

// GetByBooking 获取预订的快照
func (r *SnapshotRepository) GetByBooking(ctx context.Context, bookingID int64) (*models.BookingFinancialSnapshot, error) {
	var snapshot models.BookingFinancialSnapshot
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		First(&snapshot).Error
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ExistsForBooking 判断预订是否已有快照
func (r *SnapshotRepository) ExistsForBooking(ctx context.Context, bookingID int64) (bool, error) {
	return r.existsForBooking(r.db.WithContext(ctx), bookingID)
}

// ExistsForBookingTx 事务内判断预订是否已有快照
func (r *SnapshotRepository) ExistsForBookingTx(tx *gorm.DB, bookingID int64) (bool, error) {
	return r.existsForBooking(tx, bookingID)
}

func (r *SnapshotRepository) existsForBooking(db *gorm.DB, bookingID int64) (bool, error) {
	var count int64
	err := db.Model(&models.BookingFinancialSnapshot{}).
		Where("booking_id = ?", bookingID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListByHostAndDateRange 按快照时间窗口查询房东的快照，用于收益对账单
func (r *SnapshotRepository) ListByHostAndDateRange(ctx context.Context, hostID int64, from, to time.Time) ([]models.BookingFinancialSnapshot, error) {
	var snapshots []models.BookingFinancialSnapshot
	err := r.db.WithContext(ctx).
		Where("host_id = ?", hostID).
		Where("snapshot_at >= ? AND snapshot_at < ?", from, to).
		Order("snapshot_at").
		Find(&snapshots).Error
	return snapshots, err
}

// SnapshotAggregate 快照窗口聚合结果
type SnapshotAggregate struct {
	Commission int64
	HostPayout int64
	TotalPrice int64
	Nights     int64
	Count      int64
}

// AggregateByDateRange 统计窗口内快照的佣金、应放款与成交总额
func (r *SnapshotRepository) AggregateByDateRange(ctx context.Context, from, to time.Time) (*SnapshotAggregate, error) {
	var v SnapshotAggregate
	err := r.db.WithContext(ctx).Model(&models.BookingFinancialSnapshot{}).
		Where("snapshot_at >= ? AND snapshot_at < ?", from, to).
		Select("COALESCE(SUM(commission), 0) AS commission, COALESCE(SUM(host_payout), 0) AS host_payout, COALESCE(SUM(guest_total), 0) AS total_price, COALESCE(SUM(nights), 0) AS nights, COUNT(*) AS count").
		Scan(&v).Error
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CommissionBySource 按渠道统计窗口内的佣金与单量
func (r *SnapshotRepository) CommissionBySource(ctx context.Context, from, to time.Time) (map[string]models.SourceRevenue, error) {
	type row struct {
		Source     string
		Commission int64
		Total      int64
		Count      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&models.BookingFinancialSnapshot{}).
		Where("snapshot_at >= ? AND snapshot_at < ?", from, to).
		Select("source, COALESCE(SUM(commission), 0) AS commission, COALESCE(SUM(guest_total), 0) AS total, COUNT(*) AS count").
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]models.SourceRevenue, len(rows))
	for _, v := range rows {
		result[v.Source] = models.SourceRevenue{
			Commission:   v.Commission,
			TotalVolume:  v.Total,
			BookingCount: v.Count,
		}
	}
	return result, nil
}

// AverageCommissionBps 窗口内快照的平均佣金费率
func (r *SnapshotRepository) AverageCommissionBps(ctx context.Context, from, to time.Time) (float64, error) {
	var avg *float64
	err := r.db.WithContext(ctx).Model(&models.BookingFinancialSnapshot{}).
		Where("snapshot_at >= ? AND snapshot_at < ?", from, to).
		Select("AVG(commission_bps)").
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}

// ListDuplicateBookingIDs 查询存在多条快照的预订，用于对账健康检查
func (r *SnapshotRepository) ListDuplicateBookingIDs(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.BookingFinancialSnapshot{}).
		Select("booking_id").
		Group("booking_id").
		Having("COUNT(*) > 1").
		Limit(limit).
		Pluck("booking_id", &ids).Error
	return ids, err
}

// ListByDateRange 按快照时间窗口导出快照
func (r *SnapshotRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.BookingFinancialSnapshot, error) {
	var snapshots []models.BookingFinancialSnapshot
	err := r.db.WithContext(ctx).
		Where("snapshot_at >= ? AND snapshot_at < ?", from, to).
		Order("snapshot_at").
		Find(&snapshots).Error
	return snapshots, err
}

// Count 快照总数
func (r *SnapshotRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.BookingFinancialSnapshot{}).Count(&count).Error
	return count, err
}
