package domain

// 金额一律使用最小货币单位（paisa）的 int64 表示，不使用浮点数

// DefaultCurrency 默认结算货币
const DefaultCurrency = "PKR"

// RoundHalfUpBps 按万分比计算金额并做四舍五入（0.5 进位）
// 例如 amount=3200000, bps=900 表示 9%，结果 288000
func RoundHalfUpBps(amount int64, bps int) int64 {
	if amount == 0 || bps == 0 {
		return 0
	}
	sign := int64(1)
	if amount < 0 {
		sign = -1
		amount = -amount
	}
	return sign * (amount*int64(bps) + 5000) / 10000
}

// RoundHalfUpPercent 按百分比计算金额并做四舍五入
func RoundHalfUpPercent(amount int64, percent int) int64 {
	return RoundHalfUpBps(amount, percent*100)
}
