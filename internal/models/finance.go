package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/voloteam/volo-stay-backend/internal/common/errors"
)

// LedgerEntryType 结算账本分录类型
const (
	EntryPaymentReceived = "payment_received"
	EntryRefundIssued    = "refund_issued"
	EntryPayoutReleased  = "payout_released"
	EntryPayoutReversed  = "payout_reversed"
	EntryDisputeOpened   = "dispute_opened"
	EntryDisputeResolved = "dispute_resolved"
	EntryDisputeReversed = "dispute_reversed"
)

// LedgerDirection 分录方向
const (
	DirectionCredit = "credit"
	DirectionDebit  = "debit"
)

// CounterpartyType 对手方类型
const (
	CounterpartyGuest   = "guest"
	CounterpartyHost    = "host"
	CounterpartyGateway = "gateway"
	CounterpartyDispute = "dispute"
)

// SettlementLedgerEntry 结算账本分录，只增不改
type SettlementLedgerEntry struct {
	ID                   int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EntryType            string    `gorm:"type:varchar(30);not null;index:idx_ledger_type_date;uniqueIndex:uidx_ledger_payment,priority:1;uniqueIndex:uidx_ledger_refund,priority:1;uniqueIndex:uidx_ledger_payout,priority:1;uniqueIndex:uidx_ledger_dispute,priority:1" json:"entry_type"`
	Direction            string    `gorm:"type:varchar(10);not null" json:"direction"`
	Amount               int64     `gorm:"not null" json:"amount"`
	Currency             string    `gorm:"type:varchar(3);not null;default:'PKR'" json:"currency"`
	BookingID            *int64    `gorm:"index" json:"booking_id,omitempty"`
	PaymentID            *int64    `gorm:"index;uniqueIndex:uidx_ledger_payment,priority:2" json:"payment_id,omitempty"`
	RefundID             *int64    `gorm:"index;uniqueIndex:uidx_ledger_refund,priority:2" json:"refund_id,omitempty"`
	PayoutID             *int64    `gorm:"index;uniqueIndex:uidx_ledger_payout,priority:2" json:"payout_id,omitempty"`
	DisputeID            *int64    `gorm:"index;uniqueIndex:uidx_ledger_dispute,priority:2" json:"dispute_id,omitempty"`
	CounterpartyType     string    `gorm:"type:varchar(10);not null" json:"counterparty_type"`
	CounterpartyID       *int64    `json:"counterparty_id,omitempty"`
	Gateway              *string   `gorm:"type:varchar(30)" json:"gateway,omitempty"`
	GatewayTransactionID *string   `gorm:"type:varchar(100)" json:"gateway_transaction_id,omitempty"`
	Description          string    `gorm:"type:varchar(255);not null" json:"description"`
	EffectiveDate        time.Time `gorm:"type:date;not null;index:idx_ledger_type_date" json:"effective_date"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (SettlementLedgerEntry) TableName() string {
	return "settlement_ledger_entries"
}

// BeforeUpdate 账本只追加，冲销走反向分录
func (SettlementLedgerEntry) BeforeUpdate(*gorm.DB) error {
	return errors.ErrImmutabilityViolation
}

// BeforeDelete 账本分录不可删除
func (SettlementLedgerEntry) BeforeDelete(*gorm.DB) error {
	return errors.ErrImmutabilityViolation
}

// BookingFinancialSnapshot 预订完成时的财务快照，只增不改
// 每个已完成预订恰好一条（booking_id 唯一索引兜底）
type BookingFinancialSnapshot struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID     int64     `gorm:"uniqueIndex;not null" json:"booking_id"`
	BookingNumber string    `gorm:"type:varchar(20);not null" json:"booking_number"`
	GuestTotal    int64     `gorm:"not null" json:"guest_total"`
	Subtotal      int64     `gorm:"not null" json:"subtotal"`
	CleaningFee   int64     `gorm:"not null;default:0" json:"cleaning_fee"`
	ServiceFee    int64     `gorm:"not null;default:0" json:"service_fee"`
	Taxes         int64     `gorm:"not null;default:0" json:"taxes"`
	CommissionBps int       `gorm:"not null" json:"commission_bps"`
	Commission    int64     `gorm:"not null" json:"commission"`
	HostPayout    int64     `gorm:"not null" json:"host_payout"`
	Currency      string    `gorm:"type:varchar(3);not null;default:'PKR'" json:"currency"`
	CheckIn       time.Time `gorm:"type:date;not null" json:"check_in"`
	CheckOut      time.Time `gorm:"type:date;not null" json:"check_out"`
	Nights        int       `gorm:"not null" json:"nights"`
	NightlyRate   int64     `gorm:"not null" json:"nightly_rate"`
	GuestID       int64     `gorm:"index;not null" json:"guest_id"`
	HostID        int64     `gorm:"index;not null" json:"host_id"`
	ListingID     int64     `gorm:"index;not null" json:"listing_id"`
	Source        string    `gorm:"type:varchar(30);not null;index" json:"source"`
	SnapshotAt    time.Time `gorm:"not null;index" json:"snapshot_at"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (BookingFinancialSnapshot) TableName() string {
	return "booking_financial_snapshots"
}

// BeforeUpdate 快照落库后不可变更
func (BookingFinancialSnapshot) BeforeUpdate(*gorm.DB) error {
	return errors.ErrImmutabilityViolation
}

// BeforeDelete 快照不可删除
func (BookingFinancialSnapshot) BeforeDelete(*gorm.DB) error {
	return errors.ErrImmutabilityViolation
}

// PeriodType 对账周期类型
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

// ReconciliationPeriod 对账周期汇总
type ReconciliationPeriod struct {
	ID                 int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PeriodType         string     `gorm:"type:varchar(10);not null;uniqueIndex:idx_period_type_start" json:"period_type"`
	PeriodStart        time.Time  `gorm:"type:date;not null;uniqueIndex:idx_period_type_start" json:"period_start"`
	PeriodEnd          time.Time  `gorm:"type:date;not null" json:"period_end"`
	TotalPayments      int64      `gorm:"not null;default:0" json:"total_payments"`
	TotalRefunds       int64      `gorm:"not null;default:0" json:"total_refunds"`
	TotalPayouts       int64      `gorm:"not null;default:0" json:"total_payouts"`
	TotalReversals     int64      `gorm:"not null;default:0" json:"total_reversals"`
	NetPosition        int64      `gorm:"not null;default:0" json:"net_position"`
	PaymentCount       int        `gorm:"not null;default:0" json:"payment_count"`
	RefundCount        int        `gorm:"not null;default:0" json:"refund_count"`
	PayoutCount        int        `gorm:"not null;default:0" json:"payout_count"`
	ReversalCount      int        `gorm:"not null;default:0" json:"reversal_count"`
	LastRecalculatedAt *time.Time `json:"last_recalculated_at,omitempty"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (ReconciliationPeriod) TableName() string {
	return "reconciliation_periods"
}

// DailySettlementSummary 日结算汇总（账本聚合结果）
type DailySettlementSummary struct {
	ReportDate            time.Time `json:"report_date"`
	TotalPaymentsReceived int64     `json:"total_payments_received"`
	TotalRefundsIssued    int64     `json:"total_refunds_issued"`
	TotalPayoutsReleased  int64     `json:"total_payouts_released"`
	TotalPayoutsReversed  int64     `json:"total_payouts_reversed"`
	NetPosition           int64     `json:"net_position"`
	PaymentCount          int64     `json:"payment_count"`
	RefundCount           int64     `json:"refund_count"`
	PayoutCount           int64     `json:"payout_count"`
	ReversalCount         int64     `json:"reversal_count"`
	Currency              string    `json:"currency"`
}

// MonthlySettlementSummary 月结算汇总
type MonthlySettlementSummary struct {
	Year                  int       `json:"year"`
	Month                 int       `json:"month"`
	PeriodStart           time.Time `json:"period_start"`
	PeriodEnd             time.Time `json:"period_end"`
	TotalPaymentsReceived int64     `json:"total_payments_received"`
	TotalRefundsIssued    int64     `json:"total_refunds_issued"`
	TotalPayoutsReleased  int64     `json:"total_payouts_released"`
	TotalPayoutsReversed  int64     `json:"total_payouts_reversed"`
	NetPosition           int64     `json:"net_position"`
	TotalCommissionEarned int64     `json:"total_commission_earned"`
	PaymentCount          int64     `json:"payment_count"`
	RefundCount           int64     `json:"refund_count"`
	PayoutCount           int64     `json:"payout_count"`
	BookingCount          int64     `json:"booking_count"`
	Currency              string    `json:"currency"`
}

// HostEarningsStatement 房东收益报表
type HostEarningsStatement struct {
	HostID          int64     `json:"host_id"`
	HostEmail       string    `json:"host_email"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	TotalBookings   int64     `json:"total_bookings"`
	TotalNights     int64     `json:"total_nights"`
	GrossEarnings   int64     `json:"gross_earnings"`
	CommissionPaid  int64     `json:"commission_paid"`
	RefundsDeducted int64     `json:"refunds_deducted"`
	NetEarnings     int64     `json:"net_earnings"`
	PayoutsReleased int64     `json:"payouts_released"`
	PayoutsPending  int64     `json:"payouts_pending"`
	Currency        string    `json:"currency"`
}

// HostEarningsLineItem 房东收益明细行
type HostEarningsLineItem struct {
	BookingID     int64     `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Nights        int       `json:"nights"`
	GuestTotal    int64     `json:"guest_total"`
	CommissionBps int       `json:"commission_bps"`
	Commission    int64     `json:"commission"`
	HostPayout    int64     `json:"host_payout"`
	RefundAmount  int64     `json:"refund_amount"`
	SnapshotAt    time.Time `json:"snapshot_at"`
}

// SourceRevenue 单个渠道的收入聚合
type SourceRevenue struct {
	Commission   int64 `json:"commission"`
	TotalVolume  int64 `json:"total_volume"`
	BookingCount int64 `json:"booking_count"`
}

// PlatformRevenueReport 平台佣金收入报表
type PlatformRevenueReport struct {
	PeriodStart           time.Time                `json:"period_start"`
	PeriodEnd             time.Time                `json:"period_end"`
	TotalBookingValue     int64                    `json:"total_booking_value"`
	TotalCommissionEarned int64                    `json:"total_commission_earned"`
	AverageCommissionBps  float64                  `json:"average_commission_bps"`
	BookingCount          int64                    `json:"booking_count"`
	BySource              map[string]SourceRevenue `json:"by_source"`
	Currency              string                   `json:"currency"`
}
