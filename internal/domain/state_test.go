package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/voloteam/volo-stay-backend/internal/common/errors"
)

// ==================== 预订状态机测试 ====================

func TestBookingTransitions(t *testing.T) {
	allowed := map[BookingStatus][]BookingStatus{
		BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
		BookingStatusConfirmed: {BookingStatusCheckedIn, BookingStatusCancelled},
		BookingStatusCheckedIn: {BookingStatusCompleted},
		BookingStatusCompleted: {},
		BookingStatusCancelled: {},
	}

	all := []BookingStatus{
		BookingStatusPending, BookingStatusConfirmed, BookingStatusCheckedIn,
		BookingStatusCompleted, BookingStatusCancelled,
	}

	// 遍历全部状态组合，白名单内放行，白名单外一律拒绝
	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			err := AssertBookingTransition(from, to)
			if want {
				assert.NoError(t, err, "%s -> %s 应当允许", from, to)
			} else {
				require.Error(t, err, "%s -> %s 应当拒绝", from, to)
				appErr := apperrors.GetAppError(err)
				assert.Equal(t, apperrors.ErrInvalidTransition.Code, appErr.Code)
			}
		}
	}
}

func TestBookingTransition_UnknownStatus(t *testing.T) {
	err := AssertBookingTransition("teleported", BookingStatusConfirmed)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrInvalidStatus.Code, apperrors.GetAppError(err).Code)
}

// ==================== 支付状态机测试 ====================

func TestPaymentTransitions(t *testing.T) {
	tests := []struct {
		from PaymentStatus
		to   PaymentStatus
		ok   bool
	}{
		{PaymentStatusPending, PaymentStatusProcessing, true},
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusProcessing, PaymentStatusCompleted, true},
		{PaymentStatusProcessing, PaymentStatusFailed, true},
		{PaymentStatusCompleted, PaymentStatusRefunded, true},
		{PaymentStatusPending, PaymentStatusRefunded, false},
		{PaymentStatusFailed, PaymentStatusCompleted, false},
		{PaymentStatusRefunded, PaymentStatusCompleted, false},
		{PaymentStatusCompleted, PaymentStatusPending, false},
	}

	for _, tt := range tests {
		err := AssertPaymentTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
}

// ==================== 打款状态机测试 ====================

func TestPayoutTransitions(t *testing.T) {
	tests := []struct {
		from PayoutStatus
		to   PayoutStatus
		ok   bool
	}{
		{PayoutStatusPending, PayoutStatusEligible, true},
		{PayoutStatusPending, PayoutStatusReversed, true},
		{PayoutStatusEligible, PayoutStatusReleased, true},
		{PayoutStatusEligible, PayoutStatusReversed, true},
		{PayoutStatusReleased, PayoutStatusReversed, true},
		{PayoutStatusPending, PayoutStatusReleased, false},
		{PayoutStatusReversed, PayoutStatusReleased, false},
		{PayoutStatusReleased, PayoutStatusEligible, false},
	}

	for _, tt := range tests {
		err := AssertPayoutTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
}

// ==================== 争议状态机测试 ====================

func TestDisputeTransitions(t *testing.T) {
	tests := []struct {
		from DisputeStatus
		to   DisputeStatus
		ok   bool
	}{
		{DisputeStatusOpened, DisputeStatusUnderReview, true},
		{DisputeStatusOpened, DisputeStatusResolved, true},
		{DisputeStatusUnderReview, DisputeStatusResolved, true},
		{DisputeStatusUnderReview, DisputeStatusOpened, true},
		{DisputeStatusResolved, DisputeStatusReversed, true},
		{DisputeStatusOpened, DisputeStatusReversed, false},
		{DisputeStatusReversed, DisputeStatusOpened, false},
		{DisputeStatusResolved, DisputeStatusOpened, false},
	}

	for _, tt := range tests {
		err := AssertDisputeTransition(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
}

func TestResolutionType_Valid(t *testing.T) {
	assert.True(t, ResolutionRefund.Valid())
	assert.True(t, ResolutionPayoutReversal.Valid())
	assert.True(t, ResolutionNoAction.Valid())
	assert.True(t, ResolutionChargebackWon.Valid())
	assert.True(t, ResolutionChargebackLost.Valid())
	assert.False(t, ResolutionType("split_the_baby").Valid())
}

// ==================== 打款释放闸门测试 ====================

func TestCanReleasePayout(t *testing.T) {
	tests := []struct {
		name    string
		booking BookingStatus
		payment BookingPaymentState
		ok      bool
	}{
		{"已完成且已支付", BookingStatusCompleted, BookingPaymentPaid, true},
		{"已入住且已支付", BookingStatusCheckedIn, BookingPaymentPaid, true},
		{"预订已取消", BookingStatusCancelled, BookingPaymentPaid, false},
		{"已全额退款", BookingStatusCompleted, BookingPaymentRefunded, false},
		{"已部分退款", BookingStatusCompleted, BookingPaymentPartiallyRefunded, false},
		{"未支付", BookingStatusCompleted, BookingPaymentUnpaid, false},
		{"已确认未入住", BookingStatusConfirmed, BookingPaymentPaid, false},
		{"待确认", BookingStatusPending, BookingPaymentPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := CanReleasePayout(tt.booking, tt.payment)
			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				assert.NotEmpty(t, reason)
			} else {
				assert.Empty(t, reason)
			}
		})
	}
}

// 取消优先于退款检查
func TestCanReleasePayout_CancelledBeatsRefunded(t *testing.T) {
	_, reason := CanReleasePayout(BookingStatusCancelled, BookingPaymentRefunded)
	assert.Contains(t, reason, "取消")
}

// ==================== 金额舍入测试 ====================

func TestRoundHalfUpBps(t *testing.T) {
	tests := []struct {
		amount int64
		bps    int
		want   int64
	}{
		{3200000, 900, 288000}, // 9% 佣金
		{0, 900, 0},
		{3200000, 0, 0},
		{100, 50, 1},     // 0.5% of 100 = 0.5 -> 1
		{99, 50, 0},      // 0.495 -> 0
		{101, 50, 1},     // 0.505 -> 1
		{1, 10000, 1},    // 100%
		{333, 3333, 111}, // 110.98 -> 111
	}

	for _, tt := range tests {
		got := RoundHalfUpBps(tt.amount, tt.bps)
		assert.Equal(t, tt.want, got, "amount=%d bps=%d", tt.amount, tt.bps)
	}
}

func TestRoundHalfUpPercent(t *testing.T) {
	assert.Equal(t, int64(288000), RoundHalfUpPercent(3200000, 9))
	assert.Equal(t, int64(1600000), RoundHalfUpPercent(3200000, 50))
	assert.Equal(t, int64(3200000), RoundHalfUpPercent(3200000, 100))
}
