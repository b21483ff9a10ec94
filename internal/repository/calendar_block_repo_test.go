// Package repository 日历占用仓储单元测试
package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

func TestCalendarBlockRepository_HasOverlap(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCalendarBlockRepository(db)
	ctx := context.Background()

	_, _, listing := seedGuestHostListing(t, db)

	block := &models.CalendarBlock{
		ListingID: listing.ID,
		StartDate: date(2026, 3, 10),
		EndDate:   date(2026, 3, 13),
		BlockType: models.BlockTypeVoloBooking,
	}
	require.NoError(t, repo.Create(ctx, block))

	// 区间内部，冲突
	overlap, err := repo.HasOverlap(ctx, listing.ID, date(2026, 3, 11), date(2026, 3, 12))
	require.NoError(t, err)
	assert.True(t, overlap)

	// 退房当日再入住（背靠背），不冲突
	overlap, err = repo.HasOverlap(ctx, listing.ID, date(2026, 3, 13), date(2026, 3, 15))
	require.NoError(t, err)
	assert.False(t, overlap)

	// 入住当日之前退房，不冲突
	overlap, err = repo.HasOverlap(ctx, listing.ID, date(2026, 3, 8), date(2026, 3, 10))
	require.NoError(t, err)
	assert.False(t, overlap)

	// 跨越既有区间的左边界，冲突
	overlap, err = repo.HasOverlap(ctx, listing.ID, date(2026, 3, 9), date(2026, 3, 11))
	require.NoError(t, err)
	assert.True(t, overlap)

	// 其他房源不受影响
	overlap, err = repo.HasOverlap(ctx, listing.ID+1, date(2026, 3, 11), date(2026, 3, 12))
	require.NoError(t, err)
	assert.False(t, overlap)
}

func TestCalendarBlockRepository_ExcludeBooking(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCalendarBlockRepository(db)

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0010")

	block := &models.CalendarBlock{
		ListingID: listing.ID,
		StartDate: booking.CheckIn,
		EndDate:   booking.CheckOut,
		BlockType: models.BlockTypeVoloBooking,
		BookingID: &booking.ID,
	}
	require.NoError(t, db.Create(block).Error)

	// 排除自身占用后延住窗口可用
	overlap, err := repo.HasOverlapTx(db, listing.ID, booking.CheckOut, date(2026, 3, 15), &booking.ID)
	require.NoError(t, err)
	assert.False(t, overlap)

	// 其他预订的占用仍然冲突
	otherID := booking.ID + 999
	overlap, err = repo.HasOverlapTx(db, listing.ID, date(2026, 3, 11), date(2026, 3, 14), &otherID)
	require.NoError(t, err)
	assert.True(t, overlap)
}

func TestCalendarBlockRepository_DeleteAndExtend(t *testing.T) {
	db := setupTestDB(t)
	repo := NewCalendarBlockRepository(db)
	ctx := context.Background()

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0011")

	block := &models.CalendarBlock{
		ListingID: listing.ID,
		StartDate: booking.CheckIn,
		EndDate:   booking.CheckOut,
		BlockType: models.BlockTypeVoloBooking,
		BookingID: &booking.ID,
	}
	require.NoError(t, db.Create(block).Error)

	require.NoError(t, repo.ExtendByBookingTx(db, booking.ID, date(2026, 3, 15)))
	got, err := repo.GetByBooking(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, date(2026, 3, 15), got.EndDate.UTC())

	require.NoError(t, repo.DeleteByBookingTx(db, booking.ID))
	_, err = repo.GetByBooking(ctx, booking.ID)
	assert.Error(t, err)
}
