package models

import (
	"time"

	"github.com/voloteam/volo-stay-backend/internal/domain"
)

// Payment 支付记录
type Payment struct {
	ID                   int64                `gorm:"primaryKey;autoIncrement" json:"id"`
	PaymentNo            string               `gorm:"type:varchar(40);uniqueIndex;not null" json:"payment_no"`
	BookingID            int64                `gorm:"index;not null" json:"booking_id"`
	GuestID              int64                `gorm:"index;not null" json:"guest_id"`
	Amount               int64                `gorm:"not null" json:"amount"`
	Currency             string               `gorm:"type:varchar(3);not null;default:'PKR'" json:"currency"`
	Gateway              string               `gorm:"type:varchar(30);not null" json:"gateway"`
	GatewayTransactionID *string              `gorm:"type:varchar(100);index" json:"gateway_transaction_id,omitempty"`
	Status               domain.PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaidAt               *time.Time           `json:"paid_at,omitempty"`
	FailureReason        *string              `gorm:"type:varchar(255)" json:"failure_reason,omitempty"`
	CreatedAt            time.Time            `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time            `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

// TableName 表名
func (Payment) TableName() string {
	return "payments"
}

// Refund 退款记录
type Refund struct {
	ID                   int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	RefundNo             string     `gorm:"type:varchar(40);uniqueIndex;not null" json:"refund_no"`
	PaymentID            int64      `gorm:"index;not null" json:"payment_id"`
	BookingID            int64      `gorm:"index;not null" json:"booking_id"`
	Amount               int64      `gorm:"not null" json:"amount"`
	Currency             string     `gorm:"type:varchar(3);not null;default:'PKR'" json:"currency"`
	Reason               string     `gorm:"type:varchar(255);not null" json:"reason"`
	Status               string     `gorm:"type:varchar(20);not null;default:'approved'" json:"status"`
	GatewayRefundID      *string    `gorm:"type:varchar(100)" json:"gateway_refund_id,omitempty"`
	DeductedFromPayoutID *int64     `gorm:"index" json:"deducted_from_payout_id,omitempty"`
	ProcessedAt          *time.Time `json:"processed_at,omitempty"`
	CreatedAt            time.Time  `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Payment *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

// TableName 表名
func (Refund) TableName() string {
	return "refunds"
}

// RefundStatus 退款状态
const (
	RefundStatusApproved = "approved"
	RefundStatusFailed   = "failed"
)

// HostPayout 房东打款
type HostPayout struct {
	ID          int64               `gorm:"primaryKey;autoIncrement" json:"id"`
	PayoutNo    string              `gorm:"type:varchar(40);uniqueIndex;not null" json:"payout_no"`
	BookingID   *int64              `gorm:"index" json:"booking_id,omitempty"`
	HostID      int64               `gorm:"index;not null" json:"host_id"`
	Amount      int64               `gorm:"not null" json:"amount"`
	Currency    string              `gorm:"type:varchar(3);not null;default:'PKR'" json:"currency"`
	Status      domain.PayoutStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PayoutDate  time.Time           `gorm:"type:date;not null;index" json:"payout_date"`
	PeriodStart *time.Time          `gorm:"type:date" json:"period_start,omitempty"`
	PeriodEnd   *time.Time          `gorm:"type:date" json:"period_end,omitempty"`
	ProcessedAt *time.Time          `json:"processed_at,omitempty"`
	CreatedAt   time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time           `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
	Host    *User    `gorm:"foreignKey:HostID" json:"host,omitempty"`
}

// TableName 表名
func (HostPayout) TableName() string {
	return "host_payouts"
}
