package booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voloteam/volo-stay-backend/internal/common/config"
	"github.com/voloteam/volo-stay-backend/internal/common/errors"
	"github.com/voloteam/volo-stay-backend/internal/common/metrics"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
	"github.com/voloteam/volo-stay-backend/internal/service/audit"
	"github.com/voloteam/volo-stay-backend/internal/service/pricing"
)

func setupBookingTest(t *testing.T) (*BookingService, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{}, &models.Listing{}, &models.Booking{},
		&models.BookingExtension{}, &models.CalendarBlock{},
		&models.Payment{}, &models.HostPayout{},
		&models.BookingFinancialSnapshot{}, &models.AuditLog{},
	)
	require.NoError(t, err)

	pricingSvc := pricing.NewPricingService(&config.FinanceConfig{
		Currency:             "PKR",
		DefaultCommissionBps: 1500,
		CommissionBps: map[string]int{
			models.SourceAirbnb:     0,
			models.SourceBookingCom: 0,
		},
	})
	auditSvc := audit.NewAuditService(repository.NewAuditLogRepository(db))

	svc := NewBookingService(
		db,
		repository.NewBookingRepository(db),
		repository.NewListingRepository(db),
		repository.NewCalendarBlockRepository(db),
		repository.NewExtensionRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewPayoutRepository(db),
		repository.NewSnapshotRepository(db),
		pricingSvc,
		auditSvc,
		metrics.GetMetrics(),
		1, 90,
	)
	return svc, db
}

func seedGuestHostListing(t *testing.T, db *gorm.DB, instantBooking bool) (*models.User, *models.User, *models.Listing) {
	guest := &models.User{Email: "guest-" + time.Now().Format("150405.000000") + "@t.io", PasswordHash: "x", FullName: "房客", Role: models.UserRoleGuest}
	host := &models.User{Email: "host-" + time.Now().Format("150405.000000") + "@t.io", PasswordHash: "x", FullName: "房东", Role: models.UserRoleHost}
	require.NoError(t, db.Create(guest).Error)
	require.NoError(t, db.Create(host).Error)

	listing := &models.Listing{
		HostID:             host.ID,
		Title:              "市中心公寓",
		City:               "Lahore",
		Address:            "Gulberg III",
		MaxGuests:          4,
		MinNights:          1,
		MaxNights:          30,
		NightlyRate:        1000000,
		CleaningFee:        200000,
		Currency:           "PKR",
		InstantBooking:     instantBooking,
		CancellationPolicy: models.CancelPolicyModerate,
		Status:             models.ListingStatusApproved,
	}
	require.NoError(t, db.Create(listing).Error)
	return guest, host, listing
}

func day(offset int) time.Time {
	t := time.Now().UTC().AddDate(0, 0, offset)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func TestBookingService_CreateBooking(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)

	booking, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(10),
		CheckOut:  day(13),
		Adults:    2,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	assert.Equal(t, 3, booking.Nights)
	assert.Equal(t, int64(3000000), booking.Subtotal)
	assert.Equal(t, int64(3200000), booking.TotalPrice)
	// 15% 佣金对总价计提
	assert.Equal(t, int64(480000), booking.Commission)
	assert.Equal(t, int64(2720000), booking.HostPayout)

	// 日历占用写入
	var block models.CalendarBlock
	require.NoError(t, db.Where("booking_id = ?", booking.ID).First(&block).Error)
	assert.Equal(t, models.BlockTypeVoloBooking, block.BlockType)
}

func TestBookingService_CreateBooking_InstantConfirm(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, true)

	booking, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(10),
		CheckOut:  day(12),
		Adults:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)
	require.NotNil(t, booking.ConfirmedAt)
}

func TestBookingService_CreateBooking_OverlapRejected(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)

	_, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(10),
		CheckOut:  day(14),
		Adults:    2,
	})
	require.NoError(t, err)

	_, err = svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(12),
		CheckOut:  day(16),
		Adults:    2,
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrDatesUnavailable.Code, appErr.Code)
}

func TestBookingService_CreateBooking_BackToBackAllowed(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)

	_, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(10),
		CheckOut:  day(13),
		Adults:    2,
	})
	require.NoError(t, err)

	// 同日退房入住不算冲突
	_, err = svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(13),
		CheckOut:  day(15),
		Adults:    2,
	})
	require.NoError(t, err)
}

func TestBookingService_CreateBooking_SelfBookingRejected(t *testing.T) {
	svc, db := setupBookingTest(t)
	_, host, listing := seedGuestHostListing(t, db, false)

	_, err := svc.CreateBooking(context.Background(), host.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(10),
		CheckOut:  day(12),
		Adults:    1,
	})
	require.Error(t, err)
}

func TestBookingService_CreateBooking_ExternalSourceZeroCommission(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)

	booking, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceAirbnb,
		CheckIn:   day(10),
		CheckOut:  day(12),
		Adults:    2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), booking.Commission)
	assert.Equal(t, booking.TotalPrice, booking.HostPayout)
}

func createPaidBooking(t *testing.T, svc *BookingService, db *gorm.DB, guestID int64, listingID int64) *models.Booking {
	booking, err := svc.CreateBooking(context.Background(), guestID, &CreateBookingRequest{
		ListingID: listingID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(5),
		CheckOut:  day(8),
		Adults:    2,
	})
	require.NoError(t, err)

	_, err = svc.ConfirmBooking(context.Background(), booking.ID, 1)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Booking{}).Where("id = ?", booking.ID).
		Update("payment_state", domain.BookingPaymentPaid).Error)

	got, err := svc.GetBooking(context.Background(), booking.ID)
	require.NoError(t, err)
	return got
}

func TestBookingService_CompleteBooking_SnapshotAndPayout(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, host, listing := seedGuestHostListing(t, db, false)
	booking := createPaidBooking(t, svc, db, guest.ID, listing.ID)

	_, err := svc.CheckIn(context.Background(), booking.ID, 1)
	require.NoError(t, err)

	got, err := svc.CompleteBooking(context.Background(), booking.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCompleted, got.Status)

	// 财务快照恰好一份
	var snapshots []models.BookingFinancialSnapshot
	require.NoError(t, db.Where("booking_id = ?", booking.ID).Find(&snapshots).Error)
	require.Len(t, snapshots, 1)
	assert.Equal(t, booking.TotalPrice, snapshots[0].GuestTotal)
	assert.Equal(t, booking.Commission, snapshots[0].Commission)

	// 放款单按退房日排期
	var payout models.HostPayout
	require.NoError(t, db.Where("booking_id = ?", booking.ID).First(&payout).Error)
	assert.Equal(t, host.ID, payout.HostID)
	assert.Equal(t, booking.HostPayout, payout.Amount)
	assert.Equal(t, domain.PayoutStatusPending, payout.Status)
	assert.True(t, payout.PayoutDate.Equal(booking.CheckOut))
}

func TestBookingService_CheckIn_RequiresPayment(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, true)

	booking, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(5),
		CheckOut:  day(8),
		Adults:    2,
	})
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), booking.ID, 1)
	require.Error(t, err)
}

func TestBookingService_CancelBooking_ReleasesCalendar(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)

	booking, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(10),
		CheckOut:  day(13),
		Adults:    2,
	})
	require.NoError(t, err)

	result, err := svc.CancelBooking(context.Background(), booking.ID, guest.ID, &CancelBookingRequest{
		CancelledBy: "guest",
		Reason:      "行程有变",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, result.Booking.Status)
	// 未收款不产生应退金额
	assert.Equal(t, int64(0), result.RefundDue)

	// 日历释放后可重订
	_, err = svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   day(10),
		CheckOut:  day(13),
		Adults:    2,
	})
	require.NoError(t, err)
}

func TestBookingService_Extension_ApproveUpdatesFinancials(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)
	booking := createPaidBooking(t, svc, db, guest.ID, listing.ID)

	origTotal := booking.TotalPrice
	origCheckOut := booking.CheckOut

	ext, err := svc.RequestExtension(context.Background(), booking.ID, guest.ID, &RequestExtensionRequest{
		NewCheckOut: origCheckOut.AddDate(0, 0, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusPending, ext.Status)
	assert.Equal(t, 2, ext.AdditionalNights)

	got, err := svc.DecideExtension(context.Background(), ext.ID, listing.HostID, true)
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusApproved, got.Status)

	var gotBooking models.Booking
	require.NoError(t, db.First(&gotBooking, booking.ID).Error)
	assert.True(t, gotBooking.CheckOut.Equal(origCheckOut.AddDate(0, 0, 2)))
	assert.Equal(t, origTotal+ext.AdditionalAmount, gotBooking.TotalPrice)

	// 日历占用同步延长
	var block models.CalendarBlock
	require.NoError(t, db.Where("booking_id = ?", booking.ID).First(&block).Error)
	assert.True(t, block.EndDate.Equal(gotBooking.CheckOut))
}

func TestBookingService_Extension_RejectKeepsBooking(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)
	booking := createPaidBooking(t, svc, db, guest.ID, listing.ID)

	ext, err := svc.RequestExtension(context.Background(), booking.ID, guest.ID, &RequestExtensionRequest{
		NewCheckOut: booking.CheckOut.AddDate(0, 0, 3),
	})
	require.NoError(t, err)

	got, err := svc.DecideExtension(context.Background(), ext.ID, listing.HostID, false)
	require.NoError(t, err)
	assert.Equal(t, models.ExtensionStatusRejected, got.Status)

	var gotBooking models.Booking
	require.NoError(t, db.First(&gotBooking, booking.ID).Error)
	assert.True(t, gotBooking.CheckOut.Equal(booking.CheckOut))
}

func TestBookingService_Extension_OverlapRejected(t *testing.T) {
	svc, db := setupBookingTest(t)
	guest, _, listing := seedGuestHostListing(t, db, false)
	booking := createPaidBooking(t, svc, db, guest.ID, listing.ID)

	// 紧挨着的下一段被别人订走
	_, err := svc.CreateBooking(context.Background(), guest.ID, &CreateBookingRequest{
		ListingID: listing.ID,
		Source:    models.SourceVoloMarketplace,
		CheckIn:   booking.CheckOut,
		CheckOut:  booking.CheckOut.AddDate(0, 0, 2),
		Adults:    1,
	})
	require.NoError(t, err)

	_, err = svc.RequestExtension(context.Background(), booking.ID, guest.ID, &RequestExtensionRequest{
		NewCheckOut: booking.CheckOut.AddDate(0, 0, 2),
	})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrDatesUnavailable.Code, appErr.Code)
}
