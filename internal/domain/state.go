// Package domain 定义预订交易的核心状态机与金额规则
package domain

import (
	"github.com/voloteam/volo-stay-backend/internal/common/errors"
)

// BookingStatus 预订状态
type BookingStatus string

// 预订状态枚举
const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCheckedIn BookingStatus = "checked_in"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// PaymentStatus 支付状态
type PaymentStatus string

// 支付状态枚举
const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// PayoutStatus 房东打款状态
type PayoutStatus string

// 打款状态枚举
const (
	PayoutStatusPending  PayoutStatus = "pending"
	PayoutStatusEligible PayoutStatus = "eligible"
	PayoutStatusReleased PayoutStatus = "released"
	PayoutStatusReversed PayoutStatus = "reversed"
)

// DisputeStatus 争议状态
type DisputeStatus string

// 争议状态枚举
const (
	DisputeStatusOpened      DisputeStatus = "opened"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusReversed    DisputeStatus = "reversed"
)

// BookingPaymentState 预订侧的收款进度
type BookingPaymentState string

// 收款进度枚举
const (
	BookingPaymentUnpaid            BookingPaymentState = "unpaid"
	BookingPaymentPaid              BookingPaymentState = "paid"
	BookingPaymentPartiallyRefunded BookingPaymentState = "partially_refunded"
	BookingPaymentRefunded          BookingPaymentState = "refunded"
)

// ResolutionType 争议裁决类型
type ResolutionType string

// 裁决类型枚举
const (
	ResolutionRefund         ResolutionType = "refund"
	ResolutionPayoutReversal ResolutionType = "payout_reversal"
	ResolutionNoAction       ResolutionType = "no_action"
	ResolutionChargebackWon  ResolutionType = "chargeback_won"
	ResolutionChargebackLost ResolutionType = "chargeback_lost"
)

// 取消发起方
const (
	CancelledByGuest = "guest"
	CancelledByHost  = "host"
	CancelledByAdmin = "admin"
)

// bookingTransitions 预订状态流转表
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled},
	BookingStatusConfirmed: {BookingStatusCheckedIn, BookingStatusCancelled},
	BookingStatusCheckedIn: {BookingStatusCompleted},
	BookingStatusCompleted: {},
	BookingStatusCancelled: {},
}

// paymentTransitions 支付状态流转表
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusRefunded:   {},
}

// payoutTransitions 打款状态流转表
var payoutTransitions = map[PayoutStatus][]PayoutStatus{
	PayoutStatusPending:  {PayoutStatusEligible, PayoutStatusReversed},
	PayoutStatusEligible: {PayoutStatusReleased, PayoutStatusReversed},
	PayoutStatusReleased: {PayoutStatusReversed},
	PayoutStatusReversed: {},
}

// disputeTransitions 争议状态流转表
var disputeTransitions = map[DisputeStatus][]DisputeStatus{
	DisputeStatusOpened:      {DisputeStatusUnderReview, DisputeStatusResolved},
	DisputeStatusUnderReview: {DisputeStatusResolved, DisputeStatusOpened},
	DisputeStatusResolved:    {DisputeStatusReversed},
	DisputeStatusReversed:    {},
}

// validResolutionTypes 允许的裁决类型集合
var validResolutionTypes = map[ResolutionType]bool{
	ResolutionRefund:         true,
	ResolutionPayoutReversal: true,
	ResolutionNoAction:       true,
	ResolutionChargebackWon:  true,
	ResolutionChargebackLost: true,
}

// Valid 状态值是否合法
func (s BookingStatus) Valid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// Valid 状态值是否合法
func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// Valid 状态值是否合法
func (s PayoutStatus) Valid() bool {
	_, ok := payoutTransitions[s]
	return ok
}

// Valid 状态值是否合法
func (s DisputeStatus) Valid() bool {
	_, ok := disputeTransitions[s]
	return ok
}

// Valid 裁决类型是否合法
func (r ResolutionType) Valid() bool {
	return validResolutionTypes[r]
}

// CanTransition 预订是否允许从当前状态流转到目标状态
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, t := range bookingTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransition 支付是否允许从当前状态流转到目标状态
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, t := range paymentTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransition 打款是否允许从当前状态流转到目标状态
func (s PayoutStatus) CanTransition(to PayoutStatus) bool {
	for _, t := range payoutTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransition 争议是否允许从当前状态流转到目标状态
func (s DisputeStatus) CanTransition(to DisputeStatus) bool {
	for _, t := range disputeTransitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

// AssertBookingTransition 校验预订状态流转，非法流转返回错误
func AssertBookingTransition(from, to BookingStatus) error {
	if !from.Valid() || !to.Valid() {
		return errors.ErrInvalidStatus.WithMessagef("无效的预订状态: %s -> %s", from, to)
	}
	if !from.CanTransition(to) {
		return errors.ErrInvalidTransition.WithMessagef("预订不允许从 %s 流转到 %s", from, to)
	}
	return nil
}

// AssertPaymentTransition 校验支付状态流转
func AssertPaymentTransition(from, to PaymentStatus) error {
	if !from.Valid() || !to.Valid() {
		return errors.ErrInvalidStatus.WithMessagef("无效的支付状态: %s -> %s", from, to)
	}
	if !from.CanTransition(to) {
		return errors.ErrInvalidTransition.WithMessagef("支付不允许从 %s 流转到 %s", from, to)
	}
	return nil
}

// AssertPayoutTransition 校验打款状态流转
func AssertPayoutTransition(from, to PayoutStatus) error {
	if !from.Valid() || !to.Valid() {
		return errors.ErrInvalidStatus.WithMessagef("无效的打款状态: %s -> %s", from, to)
	}
	if !from.CanTransition(to) {
		return errors.ErrInvalidTransition.WithMessagef("打款不允许从 %s 流转到 %s", from, to)
	}
	return nil
}

// AssertDisputeTransition 校验争议状态流转
func AssertDisputeTransition(from, to DisputeStatus) error {
	if !from.Valid() || !to.Valid() {
		return errors.ErrInvalidStatus.WithMessagef("无效的争议状态: %s -> %s", from, to)
	}
	if !from.CanTransition(to) {
		return errors.ErrInvalidTransition.WithMessagef("争议不允许从 %s 流转到 %s", from, to)
	}
	return nil
}

// CanReleasePayout 综合预订与收款状态判断打款是否可以释放
// 按固定顺序检查，返回第一条被触发的拦截原因
func CanReleasePayout(booking BookingStatus, payment BookingPaymentState) (bool, string) {
	if booking == BookingStatusCancelled {
		return false, "预订已取消，不能向房东打款"
	}
	if payment == BookingPaymentRefunded || payment == BookingPaymentPartiallyRefunded {
		return false, "订单存在退款，打款需人工复核"
	}
	if payment != BookingPaymentPaid {
		return false, "房客款项未到账"
	}
	if booking != BookingStatusCompleted && booking != BookingStatusCheckedIn {
		return false, "住宿尚未开始，不能打款"
	}
	return true, ""
}
