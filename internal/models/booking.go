package models

import (
	"time"

	"github.com/voloteam/volo-stay-backend/internal/domain"
)

// BookingSource 预订来源渠道
const (
	SourceAirbnb          = "airbnb"
	SourceBookingCom      = "booking_com"
	SourceVoloMarketplace = "volo_marketplace"
	SourceDirectLink      = "direct_link"
	SourceDirectWhatsApp  = "direct_whatsapp"
)

// Booking 预订模型，金额一律为最小货币单位（paisa）
type Booking struct {
	ID            int64                      `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingNumber string                     `gorm:"type:varchar(20);uniqueIndex;not null" json:"booking_number"`
	ListingID     int64                      `gorm:"index;not null" json:"listing_id"`
	GuestID       int64                      `gorm:"index;not null" json:"guest_id"`
	HostID        int64                      `gorm:"index;not null" json:"host_id"`
	Source        string                     `gorm:"type:varchar(30);not null;index" json:"source"`
	CheckIn       time.Time                  `gorm:"type:date;not null;index" json:"check_in"`
	CheckOut      time.Time                  `gorm:"type:date;not null" json:"check_out"`
	Nights        int                        `gorm:"not null" json:"nights"`
	Adults        int                        `gorm:"not null;default:1" json:"adults"`
	Children      int                        `gorm:"not null;default:0" json:"children"`
	Infants       int                        `gorm:"not null;default:0" json:"infants"`
	NightlyRate   int64                      `gorm:"not null" json:"nightly_rate"`
	Subtotal      int64                      `gorm:"not null" json:"subtotal"`
	CleaningFee   int64                      `gorm:"not null;default:0" json:"cleaning_fee"`
	ServiceFee    int64                      `gorm:"not null;default:0" json:"service_fee"`
	Taxes         int64                      `gorm:"not null;default:0" json:"taxes"`
	TotalPrice    int64                      `gorm:"not null" json:"total_price"`
	Currency      string                     `gorm:"type:varchar(3);not null;default:'PKR'" json:"currency"`
	CommissionBps int                        `gorm:"not null" json:"commission_bps"`
	Commission    int64                      `gorm:"not null" json:"commission"`
	HostPayout    int64                      `gorm:"not null" json:"host_payout"`
	Status        domain.BookingStatus       `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	PaymentState  domain.BookingPaymentState `gorm:"type:varchar(20);not null;default:'unpaid'" json:"payment_state"`
	RefundAmount  int64                      `gorm:"not null;default:0" json:"refund_amount"`
	CancelledBy   *string                    `gorm:"type:varchar(10)" json:"cancelled_by,omitempty"`
	CancelReason  *string                    `gorm:"type:varchar(255)" json:"cancel_reason,omitempty"`
	CancelledAt   *time.Time                 `json:"cancelled_at,omitempty"`
	ConfirmedAt   *time.Time                 `json:"confirmed_at,omitempty"`
	CheckedInAt   *time.Time                 `json:"checked_in_at,omitempty"`
	CompletedAt   *time.Time                 `json:"completed_at,omitempty"`
	CreatedAt     time.Time                  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time                  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Guest   *User    `gorm:"foreignKey:GuestID" json:"guest,omitempty"`
	Host    *User    `gorm:"foreignKey:HostID" json:"host,omitempty"`
}

// TableName 表名
func (Booking) TableName() string {
	return "bookings"
}

// IsExternalSource 是否外部渠道同步的预订（佣金为 0，资金不经平台）
func (b *Booking) IsExternalSource() bool {
	return b.Source == SourceAirbnb || b.Source == SourceBookingCom
}

// BookingExtension 延住申请
type BookingExtension struct {
	ID               int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID        int64      `gorm:"index;not null" json:"booking_id"`
	OriginalCheckOut time.Time  `gorm:"type:date;not null" json:"original_check_out"`
	NewCheckOut      time.Time  `gorm:"type:date;not null" json:"new_check_out"`
	AdditionalNights int        `gorm:"not null" json:"additional_nights"`
	AdditionalAmount int64      `gorm:"not null" json:"additional_amount"`
	Commission       int64      `gorm:"not null" json:"commission"`
	HostAdditional   int64      `gorm:"not null" json:"host_additional"`
	Status           string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

// TableName 表名
func (BookingExtension) TableName() string {
	return "booking_extensions"
}

// ExtensionStatus 延住申请状态
const (
	ExtensionStatusPending  = "pending"
	ExtensionStatusApproved = "approved"
	ExtensionStatusRejected = "rejected"
)

// CalendarBlock 日历占用记录，区间为左闭右开 [start_date, end_date)
type CalendarBlock struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ListingID int64     `gorm:"index:idx_calendar_listing_dates;not null" json:"listing_id"`
	StartDate time.Time `gorm:"type:date;not null;index:idx_calendar_listing_dates" json:"start_date"`
	EndDate   time.Time `gorm:"type:date;not null" json:"end_date"`
	BlockType string    `gorm:"type:varchar(20);not null" json:"block_type"`
	BookingID *int64    `gorm:"index" json:"booking_id,omitempty"`
	Note      *string   `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// 关联
	Listing *Listing `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

// TableName 表名
func (CalendarBlock) TableName() string {
	return "calendar_blocks"
}

// BlockType 日历占用类型
const (
	BlockTypeManual      = "manual"       // 房东手动锁定
	BlockTypeAirbnbSync  = "airbnb_sync"  // Airbnb 渠道同步
	BlockTypeBookingSync = "booking_sync" // Booking.com 渠道同步
	BlockTypeVoloBooking = "volo_booking" // 平台预订占用
)
