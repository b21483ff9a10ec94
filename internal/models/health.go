package models

import (
	"time"
)

// HealthStatus 健康检查结论
const (
	HealthStatusOK      = "ok"
	HealthStatusWarning = "warning"
	HealthStatusError   = "error"
)

// HealthTrigger 巡检触发方式
const (
	HealthTriggerStartup   = "startup"
	HealthTriggerScheduled = "scheduled"
	HealthTriggerManual    = "manual"
)

// FinanceHealthRun 财务一致性巡检记录
type FinanceHealthRun struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Status       string     `gorm:"type:varchar(10);not null;index" json:"status"`
	Checks       JSON       `gorm:"type:jsonb" json:"checks,omitempty"`
	EntityCounts JSON       `gorm:"type:jsonb" json:"entity_counts,omitempty"`
	Trigger      string     `gorm:"type:varchar(10);not null" json:"trigger"`
	StartedAt    time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	DurationMs   int64      `gorm:"not null;default:0" json:"duration_ms"`
	ErrorMessage *string    `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (FinanceHealthRun) TableName() string {
	return "finance_health_runs"
}
