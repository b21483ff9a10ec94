// ====== 幂等闸门测试 ======
package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/voloteam/volo-stay-backend/internal/common/errors"
)

func setupGuard(t *testing.T) (*Guard, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewGuard(client, time.Hour), mr
}

func TestKey_Deterministic(t *testing.T) {
	k1 := Key("refund_create", 42, map[string]interface{}{"amount": 500000, "reason": "guest_cancel"})
	k2 := Key("refund_create", 42, map[string]interface{}{"reason": "guest_cancel", "amount": 500000})
	assert.Equal(t, k1, k2, "参数顺序不影响幂等键")

	k3 := Key("refund_create", 42, map[string]interface{}{"amount": 600000, "reason": "guest_cancel"})
	assert.NotEqual(t, k1, k3, "参数不同则键不同")

	k4 := Key("payout_release", 42, map[string]interface{}{"amount": 500000, "reason": "guest_cancel"})
	assert.NotEqual(t, k1, k4, "操作不同则键不同")

	k5 := Key("refund_create", 43, map[string]interface{}{"amount": 500000, "reason": "guest_cancel"})
	assert.NotEqual(t, k1, k5, "实体不同则键不同")
}

func TestGuard_AcquireOnce(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	err := guard.Acquire(ctx, "payment_mark_paid", 1, nil)
	require.NoError(t, err)

	err = guard.Acquire(ctx, "payment_mark_paid", 1, nil)
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrDuplicateOperation.Code, appErr.Code)

	// 不同实体不受影响
	err = guard.Acquire(ctx, "payment_mark_paid", 2, nil)
	assert.NoError(t, err)
}

func TestGuard_Release(t *testing.T) {
	guard, _ := setupGuard(t)
	ctx := context.Background()

	params := map[string]interface{}{"amount": 100}
	require.NoError(t, guard.Acquire(ctx, "refund_create", 1, params))
	require.NoError(t, guard.Release(ctx, "refund_create", 1, params))

	// 释放后可以重新占据
	assert.NoError(t, guard.Acquire(ctx, "refund_create", 1, params))
}

func TestGuard_TTLExpiry(t *testing.T) {
	guard, mr := setupGuard(t)
	ctx := context.Background()

	require.NoError(t, guard.Acquire(ctx, "payout_release", 9, nil))
	require.Error(t, guard.Acquire(ctx, "payout_release", 9, nil))

	// 窗口过期后允许再次执行
	mr.FastForward(2 * time.Hour)
	assert.NoError(t, guard.Acquire(ctx, "payout_release", 9, nil))
}
