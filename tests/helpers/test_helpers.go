// Package helpers 提供测试辅助工具
package helpers

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

// RandomString 生成随机字符串
func RandomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[rand.Intn(len(letters))]
	}
	return string(b)
}

// RandomPhone 生成随机手机号
func RandomPhone() string {
	return fmt.Sprintf("030%08d", rand.Intn(100000000))
}

// RandomEmail 生成随机邮箱
func RandomEmail() string {
	return fmt.Sprintf("%s@example.com", RandomString(10))
}

// NewTestGuest 创建测试房客
func NewTestGuest() *models.User {
	phone := RandomPhone()
	return &models.User{
		Email:        RandomEmail(),
		Phone:        &phone,
		PasswordHash: "$2a$10$test.hash.placeholder.value.for.tests",
		FullName:     "测试房客" + RandomString(4),
		Role:         models.UserRoleGuest,
		Status:       models.UserStatusActive,
	}
}

// NewTestHost 创建测试房东
func NewTestHost() *models.User {
	phone := RandomPhone()
	return &models.User{
		Email:        RandomEmail(),
		Phone:        &phone,
		PasswordHash: "$2a$10$test.hash.placeholder.value.for.tests",
		FullName:     "测试房东" + RandomString(4),
		Role:         models.UserRoleHost,
		Status:       models.UserStatusActive,
	}
}

// NewTestAdmin 创建测试管理员
func NewTestAdmin() *models.User {
	return &models.User{
		Email:        RandomEmail(),
		PasswordHash: "$2a$10$test.hash.placeholder.value.for.tests",
		FullName:     "测试管理员" + RandomString(4),
		Role:         models.UserRoleAdmin,
		Status:       models.UserStatusActive,
	}
}

// NewTestListing 创建测试房源
func NewTestListing(hostID int64) *models.Listing {
	return &models.Listing{
		HostID:             hostID,
		Title:              "测试房源" + RandomString(4),
		City:               "Karachi",
		Address:            "Test Street " + RandomString(6),
		MaxGuests:          4,
		MinNights:          1,
		MaxNights:          90,
		NightlyRate:        500000,
		CleaningFee:        50000,
		Currency:           "PKR",
		InstantBooking:     true,
		CancellationPolicy: models.CancelPolicyModerate,
		Status:             models.ListingStatusApproved,
	}
}

// FutureDate 返回 days 天后的 UTC 零点
func FutureDate(days int) time.Time {
	t := time.Now().UTC().AddDate(0, 0, days)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
