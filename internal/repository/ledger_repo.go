package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

// LedgerRepository 结算流水仓储
// 流水只追加不修改，仓储层故意不提供 Update/Delete 方法
type LedgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository 创建结算流水仓储
func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Create 追加一条流水
func (r *LedgerRepository) Create(ctx context.Context, entry *models.SettlementLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// CreateTx 事务内追加一条流水
func (r *LedgerRepository) CreateTx(tx *gorm.DB, entry *models.SettlementLedgerEntry) error {
	return tx.Create(entry).Error
}

// ExistsEntry 判断同一业务单据是否已记过同类型流水
func (r *LedgerRepository) ExistsEntry(ctx context.Context, entryType string, refColumn string, refID int64) (bool, error) {
	return r.existsEntry(r.db.WithContext(ctx), entryType, refColumn, refID)
}

// ExistsEntryTx 事务内判断同类型流水是否已存在
func (r *LedgerRepository) ExistsEntryTx(tx *gorm.DB, entryType string, refColumn string, refID int64) (bool, error) {
	return r.existsEntry(tx, entryType, refColumn, refID)
}

func (r *LedgerRepository) existsEntry(db *gorm.DB, entryType string, refColumn string, refID int64) (bool, error) {
	var count int64
	err := db.Model(&models.SettlementLedgerEntry{}).
		Where("entry_type = ?", entryType).
		Where(refColumn+" = ?", refID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumByTypeAndDateRange 统计窗口内某类流水的总额与笔数
func (r *LedgerRepository) SumByTypeAndDateRange(ctx context.Context, entryType string, from, to time.Time) (int64, int64, error) {
	type row struct {
		Total int64
		Count int64
	}
	var v row
	err := r.db.WithContext(ctx).Model(&models.SettlementLedgerEntry{}).
		Where("entry_type = ?", entryType).
		Where("effective_date >= ? AND effective_date < ?", from, to).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Scan(&v).Error
	return v.Total, v.Count, err
}

// SumByDirection 统计全账本某方向的流水总额
func (r *LedgerRepository) SumByDirection(ctx context.Context, direction string) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&models.SettlementLedgerEntry{}).
		Where("direction = ?", direction).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	return total, err
}

// ListByBooking 查询预订关联的全部流水
func (r *LedgerRepository) ListByBooking(ctx context.Context, bookingID int64) ([]models.SettlementLedgerEntry, error) {
	var entries []models.SettlementLedgerEntry
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at").
		Find(&entries).Error
	return entries, err
}

// ListByDateRange 按生效日期窗口导出流水
func (r *LedgerRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]models.SettlementLedgerEntry, error) {
	var entries []models.SettlementLedgerEntry
	err := r.db.WithContext(ctx).
		Where("effective_date >= ? AND effective_date < ?", from, to).
		Order("created_at").
		Find(&entries).Error
	return entries, err
}

// ListDanglingBookingRefs 查询引用了不存在预订的流水，用于对账健康检查
func (r *LedgerRepository) ListDanglingBookingRefs(ctx context.Context, limit int) ([]models.SettlementLedgerEntry, error) {
	var entries []models.SettlementLedgerEntry
	err := r.db.WithContext(ctx).
		Where("booking_id IS NOT NULL").
		Where("booking_id NOT IN (?)", r.db.Model(&models.Booking{}).Select("id")).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// ListNonPositive 查询金额非法的流水，账本约定金额为正数，争议开启标记允许为零
func (r *LedgerRepository) ListNonPositive(ctx context.Context, limit int) ([]models.SettlementLedgerEntry, error) {
	var entries []models.SettlementLedgerEntry
	err := r.db.WithContext(ctx).
		Where("amount < 0 OR (amount = 0 AND entry_type <> ?)", models.EntryDisputeOpened).
		Limit(limit).
		Find(&entries).Error
	return entries, err
}

// SnapshotPaymentMismatch 快照应收与账本实收不一致的预订
type SnapshotPaymentMismatch struct {
	BookingID  int64 `json:"booking_id"`
	GuestTotal int64 `json:"guest_total"`
	Recorded   int64 `json:"recorded"`
}

// ListSnapshotPaymentMismatches 按预订汇总收款流水并与快照应收比对
func (r *LedgerRepository) ListSnapshotPaymentMismatches(ctx context.Context, limit int) ([]SnapshotPaymentMismatch, error) {
	var rows []SnapshotPaymentMismatch
	err := r.db.WithContext(ctx).
		Table("booking_financial_snapshots AS s").
		Select("s.booking_id AS booking_id, s.guest_total AS guest_total, COALESCE(SUM(e.amount), 0) AS recorded").
		Joins("LEFT JOIN settlement_ledger_entries e ON e.booking_id = s.booking_id AND e.entry_type = ?", models.EntryPaymentReceived).
		Group("s.booking_id, s.guest_total").
		Having("COALESCE(SUM(e.amount), 0) <> s.guest_total").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// CountBookingsWithoutSnapshot 统计有流水但缺财务快照的预订数
func (r *LedgerRepository) CountBookingsWithoutSnapshot(ctx context.Context) (int64, []int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).Model(&models.SettlementLedgerEntry{}).
		Where("booking_id IS NOT NULL").
		Where("booking_id NOT IN (?)", r.db.Model(&models.BookingFinancialSnapshot{}).Select("booking_id")).
		Distinct("booking_id").
		Limit(10).
		Pluck("booking_id", &ids).Error
	if err != nil {
		return 0, nil, err
	}
	var count int64
	err = r.db.WithContext(ctx).Model(&models.SettlementLedgerEntry{}).
		Where("booking_id IS NOT NULL").
		Where("booking_id NOT IN (?)", r.db.Model(&models.BookingFinancialSnapshot{}).Select("booking_id")).
		Distinct("booking_id").
		Count(&count).Error
	return count, ids, err
}

// Count 流水总数
func (r *LedgerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.SettlementLedgerEntry{}).Count(&count).Error
	return count, err
}
