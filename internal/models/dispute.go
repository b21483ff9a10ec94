package models

import (
	"time"

	"github.com/voloteam/volo-stay-backend/internal/domain"
)

// DisputeCategory 争议类别
const (
	DisputeCategoryDamage      = "damage"
	DisputeCategoryCleanliness = "cleanliness"
	DisputeCategoryNoShow      = "no_show"
	DisputeCategoryChargeback  = "chargeback"
	DisputeCategoryOther       = "other"
)

// Dispute 争议工单
type Dispute struct {
	ID               int64                  `gorm:"primaryKey;autoIncrement" json:"id"`
	BookingID        int64                  `gorm:"index;not null" json:"booking_id"`
	RaisedByID       int64                  `gorm:"index;not null" json:"raised_by_id"`
	AgainstID        int64                  `gorm:"index;not null" json:"against_id"`
	Category         string                 `gorm:"type:varchar(30);not null" json:"category"`
	Description      string                 `gorm:"type:text;not null" json:"description"`
	EvidenceURLs     JSONArray              `gorm:"type:jsonb" json:"evidence_urls,omitempty"`
	Status           domain.DisputeStatus   `gorm:"type:varchar(20);not null;default:'opened';index" json:"status"`
	ResolutionType   *domain.ResolutionType `gorm:"type:varchar(30)" json:"resolution_type,omitempty"`
	ResolutionNotes  *string                `gorm:"type:text" json:"resolution_notes,omitempty"`
	AdjustmentAmount int64                  `gorm:"not null;default:0" json:"adjustment_amount"`
	ResolvedByID     *int64                 `json:"resolved_by_id,omitempty"`
	ResolvedAt       *time.Time             `json:"resolved_at,omitempty"`
	CreatedAt        time.Time              `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time              `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Booking *Booking `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
}

// TableName 表名
func (Dispute) TableName() string {
	return "disputes"
}
