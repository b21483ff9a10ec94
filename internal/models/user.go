package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// User 用户模型（房客 / 房东 / 管理员共用）
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Phone        *string   `gorm:"type:varchar(20);index" json:"phone,omitempty"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	FullName     string    `gorm:"type:varchar(100);not null" json:"full_name"`
	Role         string    `gorm:"type:varchar(20);not null;default:'guest';index" json:"role"`
	Status       int8      `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (User) TableName() string {
	return "users"
}

// UserRole 用户角色
const (
	UserRoleGuest = "guest"
	UserRoleHost  = "host"
	UserRoleAdmin = "admin"
)

// UserStatus 用户状态
const (
	UserStatusDisabled = 0 // 禁用
	UserStatusActive   = 1 // 正常
)

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// Listing 房源模型
type Listing struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	HostID             int64     `gorm:"index;not null" json:"host_id"`
	Title              string    `gorm:"type:varchar(200);not null" json:"title"`
	City               string    `gorm:"type:varchar(100);not null" json:"city"`
	Address            string    `gorm:"type:varchar(255);not null" json:"address"`
	MaxGuests          int       `gorm:"not null;default:2" json:"max_guests"`
	MinNights          int       `gorm:"not null;default:1" json:"min_nights"`
	MaxNights          int       `gorm:"not null;default:90" json:"max_nights"`
	NightlyRate        int64     `gorm:"not null" json:"nightly_rate"`
	CleaningFee        int64     `gorm:"not null;default:0" json:"cleaning_fee"`
	Currency           string    `gorm:"type:varchar(3);not null;default:'PKR'" json:"currency"`
	InstantBooking     bool      `gorm:"not null;default:false" json:"instant_booking"`
	CancellationPolicy string    `gorm:"type:varchar(20);not null;default:'moderate'" json:"cancellation_policy"`
	Status             string    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	CreatedAt          time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// 关联
	Host *User `gorm:"foreignKey:HostID" json:"host,omitempty"`
}

// TableName 表名
func (Listing) TableName() string {
	return "listings"
}

// CancellationPolicy 退订政策
const (
	CancelPolicyFlexible = "flexible"
	CancelPolicyModerate = "moderate"
	CancelPolicyStrict   = "strict"
)

// ListingStatus 房源状态
const (
	ListingStatusPending   = "pending"   // 待审核
	ListingStatusApproved  = "approved"  // 已上架
	ListingStatusSuspended = "suspended" // 已下架
)

// JSON 自定义 JSON 类型
type JSON map[string]interface{}

// Scan 实现 sql.Scanner 接口
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// Value 实现 driver.Valuer 接口
func (j JSON) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Unmarshal 将 JSON 值反序列化到目标结构（便于业务层使用）
func (j JSON) Unmarshal(target interface{}) error {
	if j == nil {
		return nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

// JSONArray 自定义 JSON 数组类型（证据链接等列表字段）
type JSONArray []string

// Scan 实现 sql.Scanner 接口
func (a *JSONArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}
	return json.Unmarshal(bytes, a)
}

// Value 实现 driver.Valuer 接口
func (a JSONArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	return json.Marshal(a)
}
