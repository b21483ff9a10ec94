// Package repository 房东放款仓储单元测试
package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

func TestPayoutRepository_CreateAndGetByBooking(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0050")

	payout := &models.HostPayout{
		PayoutNo:   "PO-0001",
		BookingID:  &booking.ID,
		HostID:     host.ID,
		Amount:     booking.HostPayout,
		PayoutDate: date(2026, 3, 14),
	}
	require.NoError(t, repo.Create(ctx, payout))

	got, err := repo.GetByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutStatusPending, got.Status)
	assert.Equal(t, int64(2912000), got.Amount)
}

func TestPayoutRepository_SumByHostAndStatus(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0051")

	require.NoError(t, repo.Create(ctx, &models.HostPayout{
		PayoutNo: "PO-0002", BookingID: &booking.ID, HostID: host.ID,
		Amount: 2912000, PayoutDate: date(2026, 3, 14), Status: domain.PayoutStatusReleased,
	}))
	require.NoError(t, repo.Create(ctx, &models.HostPayout{
		PayoutNo: "PO-0003", BookingID: &booking.ID, HostID: host.ID,
		Amount: 100000, PayoutDate: date(2026, 3, 20),
	}))

	released, err := repo.SumByHostAndStatus(ctx, host.ID, domain.PayoutStatusReleased)
	require.NoError(t, err)
	assert.Equal(t, int64(2912000), released)

	pending, err := repo.SumByHostAndStatus(ctx, host.ID, domain.PayoutStatusPending)
	require.NoError(t, err)
	assert.Equal(t, int64(100000), pending)
}

func TestPayoutRepository_ListDuePending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0052")

	require.NoError(t, repo.Create(ctx, &models.HostPayout{
		PayoutNo: "PO-0004", BookingID: &booking.ID, HostID: host.ID,
		Amount: 100, PayoutDate: date(2026, 3, 14),
	}))
	require.NoError(t, repo.Create(ctx, &models.HostPayout{
		PayoutNo: "PO-0005", BookingID: &booking.ID, HostID: host.ID,
		Amount: 200, PayoutDate: date(2026, 5, 1),
	}))
	require.NoError(t, repo.Create(ctx, &models.HostPayout{
		PayoutNo: "PO-0006", BookingID: &booking.ID, HostID: host.ID,
		Amount: 300, PayoutDate: date(2026, 3, 1), Status: domain.PayoutStatusReleased,
	}))

	due, err := repo.ListDuePending(ctx, date(2026, 4, 1), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "PO-0004", due[0].PayoutNo)
}

func TestPayoutRepository_ListOrphans(t *testing.T) {
	db := setupTestDB(t)
	repo := NewPayoutRepository(db)
	ctx := context.Background()

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0053")

	orphanBookingID := int64(987654)
	require.NoError(t, repo.Create(ctx, &models.HostPayout{
		PayoutNo: "PO-0007", BookingID: &booking.ID, HostID: host.ID,
		Amount: 100, PayoutDate: date(2026, 3, 14),
	}))
	require.NoError(t, repo.Create(ctx, &models.HostPayout{
		PayoutNo: "PO-0008", BookingID: &orphanBookingID, HostID: host.ID,
		Amount: 200, PayoutDate: date(2026, 3, 14),
	}))

	orphans, err := repo.ListOrphans(ctx, 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "PO-0008", orphans[0].PayoutNo)
}
