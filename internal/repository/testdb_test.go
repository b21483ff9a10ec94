// Package repository 仓储层单元测试公共基础
package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{}, &models.Listing{},
		&models.Booking{}, &models.BookingExtension{}, &models.CalendarBlock{},
		&models.Payment{}, &models.Refund{}, &models.HostPayout{},
		&models.SettlementLedgerEntry{}, &models.BookingFinancialSnapshot{},
		&models.ReconciliationPeriod{}, &models.Dispute{},
		&models.AuditLog{}, &models.FinanceHealthRun{},
	)
	require.NoError(t, err)

	return db
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seedGuestHostListing(t *testing.T, db *gorm.DB) (*models.User, *models.User, *models.Listing) {
	guest := &models.User{Email: "guest@example.com", PasswordHash: "x", FullName: "测试房客", Role: models.UserRoleGuest}
	host := &models.User{Email: "host@example.com", PasswordHash: "x", FullName: "测试房东", Role: models.UserRoleHost}
	require.NoError(t, db.Create(guest).Error)
	require.NoError(t, db.Create(host).Error)

	listing := &models.Listing{
		HostID:             host.ID,
		Title:              "海景两居室",
		City:               "Karachi",
		Address:            "Clifton Block 2",
		MaxGuests:          4,
		MinNights:          1,
		MaxNights:          30,
		NightlyRate:        1000000,
		CleaningFee:        200000,
		Currency:           "PKR",
		CancellationPolicy: models.CancelPolicyModerate,
		Status:             models.ListingStatusApproved,
	}
	require.NoError(t, db.Create(listing).Error)
	return guest, host, listing
}

func seedBooking(t *testing.T, db *gorm.DB, guest, host *models.User, listing *models.Listing, number string) *models.Booking {
	booking := &models.Booking{
		BookingNumber: number,
		ListingID:     listing.ID,
		GuestID:       guest.ID,
		HostID:        host.ID,
		Source:        models.SourceVoloMarketplace,
		CheckIn:       date(2026, 3, 10),
		CheckOut:      date(2026, 3, 13),
		Nights:        3,
		Adults:        2,
		NightlyRate:   1000000,
		Subtotal:      3000000,
		CleaningFee:   200000,
		TotalPrice:    3200000,
		Currency:      "PKR",
		CommissionBps: 900,
		Commission:    288000,
		HostPayout:    2912000,
	}
	require.NoError(t, db.Create(booking).Error)
	return booking
}
