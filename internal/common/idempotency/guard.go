// Package idempotency 提供资金操作的幂等闸门
// 同一操作同一参数在窗口期内只允许执行一次，重复请求直接拒绝
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/voloteam/volo-stay-backend/internal/common/cache"
	"github.com/voloteam/volo-stay-backend/internal/common/errors"
)

// DefaultTTL 幂等键默认保留时长
const DefaultTTL = 24 * time.Hour

// 需要幂等保护的资金操作
const (
	OpPaymentMarkPaid = "payment_mark_paid"
	OpRefundCreate    = "refund_create"
	OpPayoutRelease   = "payout_release"
	OpPayoutReverse   = "payout_reverse"
)

// Guard 幂等闸门
type Guard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewGuard 创建幂等闸门
func NewGuard(client *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{client: client, ttl: ttl}
}

// Key 计算幂等键，对操作名、实体与参数做规范化 JSON 后取 SHA-256
// 参数按键名排序，保证同一请求体编码稳定
func Key(operation string, entityID int64, params map[string]interface{}) string {
	payload := map[string]interface{}{
		"operation": operation,
		"entity_id": entityID,
		"params":    canonicalize(params),
	}
	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return cache.KeyPrefixIdempotency + hex.EncodeToString(sum[:])
}

func canonicalize(params map[string]interface{}) []interface{} {
	if len(params) == 0 {
		return []interface{}{}
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]interface{}, 0, len(keys)*2)
	for _, k := range keys {
		out = append(out, k, params[k])
	}
	return out
}

// Acquire 尝试占据幂等键
// 首次调用成功返回 nil，窗口期内的重复调用返回 ErrDuplicateOperation
func (g *Guard) Acquire(ctx context.Context, operation string, entityID int64, params map[string]interface{}) error {
	key := Key(operation, entityID, params)
	ok, err := g.client.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), g.ttl).Result()
	if err != nil {
		return errors.ErrIdempotencyStore.WithError(err)
	}
	if !ok {
		return errors.ErrDuplicateOperation.WithMessagef("重复操作: %s", operation)
	}
	return nil
}

// Release 主动释放幂等键，操作落库失败时回滚占位，允许重试
func (g *Guard) Release(ctx context.Context, operation string, entityID int64, params map[string]interface{}) error {
	key := Key(operation, entityID, params)
	if err := g.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
