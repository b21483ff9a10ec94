// Package repository 结算流水仓储单元测试
package repository

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voloteam/volo-stay-backend/internal/models"
)

func TestLedgerRepository_CreateAndExists(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0020")

	paymentID := int64(7)
	entry := &models.SettlementLedgerEntry{
		EntryType:        models.EntryPaymentReceived,
		Direction:        models.DirectionCredit,
		Amount:           3200000,
		Currency:         "PKR",
		BookingID:        &booking.ID,
		PaymentID:        &paymentID,
		CounterpartyType: models.CounterpartyGuest,
		EffectiveDate:    date(2026, 3, 10),
	}
	require.NoError(t, repo.Create(ctx, entry))

	exists, err := repo.ExistsEntry(ctx, models.EntryPaymentReceived, "payment_id", paymentID)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsEntry(ctx, models.EntryRefundIssued, "payment_id", paymentID)
	require.NoError(t, err)
	assert.False(t, exists)

	entries, err := repo.ListByBooking(ctx, booking.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.DirectionCredit, entries[0].Direction)
}

func TestLedgerRepository_SumByTypeAndDateRange(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	guest, host, listing := seedGuestHostListing(t, db)
	booking := seedBooking(t, db, guest, host, listing, "VS-20260310-0021")

	for i, amount := range []int64{3200000, 1500000} {
		paymentID := int64(i + 1)
		require.NoError(t, repo.Create(ctx, &models.SettlementLedgerEntry{
			EntryType:        models.EntryPaymentReceived,
			Direction:        models.DirectionCredit,
			Amount:           amount,
			Currency:         "PKR",
			BookingID:        &booking.ID,
			PaymentID:        &paymentID,
			CounterpartyType: models.CounterpartyGuest,
			EffectiveDate:    date(2026, 3, 10),
		}))
	}
	refundID := int64(1)
	require.NoError(t, repo.Create(ctx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryRefundIssued,
		Direction:        models.DirectionDebit,
		Amount:           500000,
		Currency:         "PKR",
		BookingID:        &booking.ID,
		RefundID:         &refundID,
		CounterpartyType: models.CounterpartyGuest,
		EffectiveDate:    date(2026, 3, 11),
	}))

	total, count, err := repo.SumByTypeAndDateRange(ctx, models.EntryPaymentReceived, date(2026, 3, 1), date(2026, 4, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(4700000), total)
	assert.Equal(t, int64(2), count)

	// 窗口左闭右开，窗口外不计入
	total, count, err = repo.SumByTypeAndDateRange(ctx, models.EntryRefundIssued, date(2026, 3, 1), date(2026, 3, 11))
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Equal(t, int64(0), count)

	credits, err := repo.SumByDirection(ctx, models.DirectionCredit)
	require.NoError(t, err)
	debits, err2 := repo.SumByDirection(ctx, models.DirectionDebit)
	require.NoError(t, err2)
	assert.Equal(t, int64(4700000), credits)
	assert.Equal(t, int64(500000), debits)
	assert.GreaterOrEqual(t, credits-debits, int64(0))
}

func TestLedgerRepository_HealthQueries(t *testing.T) {
	db := setupTestDB(t)
	repo := NewLedgerRepository(db)
	ctx := context.Background()

	danglingID := int64(424242)
	require.NoError(t, repo.Create(ctx, &models.SettlementLedgerEntry{
		EntryType:        models.EntryPaymentReceived,
		Direction:        models.DirectionCredit,
		Amount:           100000,
		Currency:         "PKR",
		BookingID:        &danglingID,
		CounterpartyType: models.CounterpartyGuest,
		EffectiveDate:    date(2026, 3, 10),
	}))

	dangling, err := repo.ListDanglingBookingRefs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dangling, 1)
	assert.Equal(t, danglingID, *dangling[0].BookingID)

	count, ids, err := repo.CountBookingsWithoutSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.True(t, reflect.DeepEqual(ids, []int64{danglingID}))
}

func TestLedgerRepository_HasNoMutators(t *testing.T) {
	// 账本只追加，仓储不得暴露任何更新或删除方法
	repoType := reflect.TypeOf(NewLedgerRepository(nil))
	for i := 0; i < repoType.NumMethod(); i++ {
		name := repoType.Method(i).Name
		assert.NotContains(t, name, "Update")
		assert.NotContains(t, name, "Delete")
	}
}
