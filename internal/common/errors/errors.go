// Package errors 定义业务错误码和错误处理
package errors

import (
	"fmt"
)

// AppError 应用错误
type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 实现 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// New 创建新的应用错误
func New(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装错误
func Wrap(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithMessage 修改错误消息
func (e *AppError) WithMessage(message string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: message,
		Err:     e.Err,
	}
}

// WithMessagef 格式化错误消息
func (e *AppError) WithMessagef(format string, args ...interface{}) *AppError {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// WithError 添加原始错误
func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// 通用错误码 (1000-1999)
var (
	ErrUnknown         = New(1000, "未知错误")
	ErrInvalidParams   = New(1001, "参数错误")
	ErrNotFound        = New(1002, "资源不存在")
	ErrAlreadyExists   = New(1003, "资源已存在")
	ErrDatabaseError   = New(1004, "数据库错误")
	ErrCacheError      = New(1005, "缓存错误")
	ErrInternalError   = New(1006, "内部错误")
	ErrExternalService = New(1007, "外部服务错误")
	ErrRateLimitExceed = New(1008, "请求过于频繁")
	ErrOperationFailed = New(1009, "操作失败")
	ErrExportFailed    = New(1010, "报表导出失败")
)

// 认证错误码 (2000-2999)
var (
	ErrUnauthorized     = New(2000, "未登录")
	ErrTokenExpired     = New(2001, "登录已过期")
	ErrTokenInvalid     = New(2002, "无效的令牌")
	ErrTokenRefreshFail = New(2003, "刷新令牌失败")
	ErrPermissionDenied = New(2004, "权限不足")
	ErrAccountDisabled  = New(2005, "账号已禁用")
	ErrPasswordError    = New(2006, "密码错误")
)

// 用户错误码 (3000-3999)
var (
	ErrUserNotFound = New(3000, "用户不存在")
)

// 状态机错误码 (4000-4999)
var (
	ErrInvalidTransition = New(4001, "非法状态流转")
	ErrInvalidStatus     = New(4002, "无效的状态值")
)

// 幂等错误码 (5000-5999)
var (
	ErrDuplicateOperation = New(5001, "重复操作")
	ErrIdempotencyStore   = New(5002, "幂等存储不可用")
)

// 支付与退款错误码 (6000-6999)
var (
	ErrPaymentNotFound    = New(6000, "支付记录不存在")
	ErrPaymentNotSettled  = New(6001, "支付未完成")
	ErrRefundAmountExceed = New(6002, "退款金额超出可退上限")
	ErrRefundNotFound     = New(6003, "退款记录不存在")
	ErrRefundInvalid      = New(6004, "退款金额非法")
	ErrGatewayError       = New(6005, "支付网关调用失败")
	ErrBookingCancelled   = New(6006, "预订已取消，无法收款")
)

// 结算打款错误码 (7000-7999)
var (
	ErrPayoutNotFound     = New(7000, "打款记录不存在")
	ErrPayoutNotEligible  = New(7001, "打款不满足释放条件")
	ErrPayoutStateBlocked = New(7002, "预订或支付状态阻止打款")
)

// 预订错误码 (8000-8999)
var (
	ErrBookingNotFound   = New(8000, "预订不存在")
	ErrListingNotFound   = New(8001, "房源不存在")
	ErrDatesUnavailable  = New(8002, "所选日期已被占用")
	ErrListingNotActive  = New(8003, "房源未上架")
	ErrSelfBooking       = New(8004, "房东不能预订自己的房源")
	ErrCapacityExceeded  = New(8005, "超出房源可住人数")
	ErrNightsOutOfRange  = New(8006, "入住晚数超出限制")
	ErrExtensionNotFound = New(8007, "延住申请不存在")
	ErrExtensionInvalid  = New(8008, "延住申请不满足条件")
	ErrDisputeNotFound   = New(8009, "争议不存在")
	ErrDisputeOpen       = New(8010, "预订存在未结争议")
	ErrDisputeInvalid    = New(8011, "争议裁决参数非法")
)

// 账本与快照错误码 (9000-9999)
var (
	ErrImmutabilityViolation = New(9001, "账本记录不可修改")
	ErrDuplicateLedgerEntry  = New(9002, "账本分录重复")
	ErrLedgerAmountInvalid   = New(9003, "账本金额非法")
	ErrSnapshotExists        = New(9004, "预订财务快照已存在")
	ErrSnapshotNotFound      = New(9005, "预订财务快照不存在")
	ErrLedgerImbalance       = New(9006, "账本余额异常")
)

// IsAppError 判断是否为应用错误
func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

// GetAppError 获取应用错误
func GetAppError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrUnknown.WithError(err)
}
