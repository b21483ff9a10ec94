// Package pricing 提供报价、佣金与退订政策计算
package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/voloteam/volo-stay-backend/internal/common/config"
	"github.com/voloteam/volo-stay-backend/internal/common/logger"
	"github.com/voloteam/volo-stay-backend/internal/domain"
	"github.com/voloteam/volo-stay-backend/internal/models"
)

// PricingService 定价服务，费率与退订政策来自配置，全部计算为纯函数
type PricingService struct {
	defaultBps     int
	commissionBps  map[string]int
	currency       string
	cancelPolicies map[string][]refundTier
	defaultPolicy  string
}

// NewPricingService 创建定价服务
// 配置中的退订政策覆盖内置梯度表，解析失败的条目保留内置值
func NewPricingService(cfg *config.FinanceConfig) *PricingService {
	policies := make(map[string][]refundTier, len(defaultCancelPolicies))
	for name, tiers := range defaultCancelPolicies {
		policies[name] = tiers
	}
	for name, spec := range cfg.CancelPolicies {
		tiers, err := parseRefundTiers(spec)
		if err != nil {
			logger.Warn("退订政策配置无效，沿用内置梯度",
				logger.String("policy", name), logger.Err(err))
			continue
		}
		policies[name] = tiers
	}

	defaultPolicy := cfg.DefaultCancelPolicy
	if _, ok := policies[defaultPolicy]; !ok {
		defaultPolicy = models.CancelPolicyModerate
	}

	return &PricingService{
		defaultBps:     cfg.DefaultCommissionBps,
		commissionBps:  cfg.CommissionBps,
		currency:       cfg.Currency,
		cancelPolicies: policies,
		defaultPolicy:  defaultPolicy,
	}
}

// CommissionBps 返回渠道佣金费率（基点）
// 未配置的渠道按默认费率收取，外部渠道资金不经平台，费率为 0
func (s *PricingService) CommissionBps(source string) int {
	if bps, ok := s.commissionBps[source]; ok {
		return bps
	}
	return s.defaultBps
}

// Quote 一次预订的完整报价
type Quote struct {
	Nights        int    `json:"nights"`
	NightlyRate   int64  `json:"nightly_rate"`
	Subtotal      int64  `json:"subtotal"`
	CleaningFee   int64  `json:"cleaning_fee"`
	ServiceFee    int64  `json:"service_fee"`
	Taxes         int64  `json:"taxes"`
	TotalPrice    int64  `json:"total_price"`
	CommissionBps int    `json:"commission_bps"`
	Commission    int64  `json:"commission"`
	HostPayout    int64  `json:"host_payout"`
	Currency      string `json:"currency"`
}

// QuoteBooking 计算预订报价
// 总价 = 每晚价 × 晚数 + 清洁费 + 服务费 + 税费，佣金对总价计提，四舍五入
func (s *PricingService) QuoteBooking(source string, nights int, nightlyRate, cleaningFee, serviceFee, taxes int64) *Quote {
	subtotal := nightlyRate * int64(nights)
	total := subtotal + cleaningFee + serviceFee + taxes
	bps := s.CommissionBps(source)
	commission := domain.RoundHalfUpBps(total, bps)

	return &Quote{
		Nights:        nights,
		NightlyRate:   nightlyRate,
		Subtotal:      subtotal,
		CleaningFee:   cleaningFee,
		ServiceFee:    serviceFee,
		Taxes:         taxes,
		TotalPrice:    total,
		CommissionBps: bps,
		Commission:    commission,
		HostPayout:    total - commission,
		Currency:      s.currency,
	}
}

// QuoteExtension 计算延住报价，费率沿用原预订的费率而非渠道当前费率
func (s *PricingService) QuoteExtension(booking *models.Booking, additionalNights int) *Quote {
	additional := booking.NightlyRate * int64(additionalNights)
	commission := domain.RoundHalfUpBps(additional, booking.CommissionBps)

	return &Quote{
		Nights:        additionalNights,
		NightlyRate:   booking.NightlyRate,
		Subtotal:      additional,
		TotalPrice:    additional,
		CommissionBps: booking.CommissionBps,
		Commission:    commission,
		HostPayout:    additional - commission,
		Currency:      s.currency,
	}
}

// refundTier 退订梯度：提前 MinDaysBefore 天及以上可退 Percent%
type refundTier struct {
	MinDaysBefore int
	Percent       int
}

// 内置各退订政策的梯度表，从上到下取首个命中项
var defaultCancelPolicies = map[string][]refundTier{
	models.CancelPolicyFlexible: {
		{MinDaysBefore: 1, Percent: 100},
		{MinDaysBefore: 0, Percent: 50},
	},
	models.CancelPolicyModerate: {
		{MinDaysBefore: 5, Percent: 100},
		{MinDaysBefore: 1, Percent: 50},
		{MinDaysBefore: 0, Percent: 0},
	},
	models.CancelPolicyStrict: {
		{MinDaysBefore: 7, Percent: 50},
		{MinDaysBefore: 0, Percent: 0},
	},
}

// parseRefundTiers 解析 "天数:比例" 逗号分隔的梯度串，如 "5:100,1:50,0:0"
func parseRefundTiers(spec string) ([]refundTier, error) {
	parts := strings.Split(spec, ",")
	tiers := make([]refundTier, 0, len(parts))
	for _, part := range parts {
		fields := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("无效梯度项 %q", part)
		}
		days, err := strconv.Atoi(fields[0])
		if err != nil || days < 0 {
			return nil, fmt.Errorf("无效提前天数 %q", fields[0])
		}
		percent, err := strconv.Atoi(fields[1])
		if err != nil || percent < 0 || percent > 100 {
			return nil, fmt.Errorf("无效退款比例 %q", fields[1])
		}
		tiers = append(tiers, refundTier{MinDaysBefore: days, Percent: percent})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("梯度表为空")
	}
	return tiers, nil
}

// RefundPercent 按退订政策计算可退比例
// daysBefore 为取消时刻距入住日的整天数，负数按 0 处理；房东取消一律全退
// 未知政策按默认政策的梯度计算
func (s *PricingService) RefundPercent(policy string, daysBefore int, cancelledBy string) int {
	if cancelledBy == domain.CancelledByHost {
		return 100
	}
	tiers, ok := s.cancelPolicies[policy]
	if !ok {
		tiers = s.cancelPolicies[s.defaultPolicy]
	}
	if daysBefore < 0 {
		daysBefore = 0
	}
	for _, tier := range tiers {
		if daysBefore >= tier.MinDaysBefore {
			return tier.Percent
		}
	}
	return 0
}

// RefundAmount 按政策计算退款额
func (s *PricingService) RefundAmount(policy string, totalPaid int64, checkIn, cancelledAt time.Time, cancelledBy string) int64 {
	daysBefore := int(checkIn.Sub(cancelledAt).Hours() / 24)
	percent := s.RefundPercent(policy, daysBefore, cancelledBy)
	return domain.RoundHalfUpPercent(totalPaid, percent)
}
