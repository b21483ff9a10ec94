package models

import (
	"time"
)

// AuditLog 审计日志，只增不改
type AuditLog struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID       *int64    `gorm:"index" json:"user_id,omitempty"`
	Action       string    `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType string    `gorm:"type:varchar(30);not null;index:idx_audit_resource" json:"resource_type"`
	ResourceID   *int64    `gorm:"index:idx_audit_resource" json:"resource_id,omitempty"`
	OldValues    JSON      `gorm:"type:jsonb" json:"old_values,omitempty"`
	NewValues    JSON      `gorm:"type:jsonb" json:"new_values,omitempty"`
	IP           *string   `gorm:"type:varchar(45)" json:"ip,omitempty"`
	UserAgent    *string   `gorm:"type:varchar(255)" json:"user_agent,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// TableName 表名
func (AuditLog) TableName() string {
	return "audit_logs"
}
