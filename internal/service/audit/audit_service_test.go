package audit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/voloteam/volo-stay-backend/internal/models"
	"github.com/voloteam/volo-stay-backend/internal/repository"
)

func setupAuditTest(t *testing.T) (*AuditService, *gorm.DB) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.AuditLog{}))
	return NewAuditService(repository.NewAuditLogRepository(db)), db
}

func TestAuditService_Record(t *testing.T) {
	svc, db := setupAuditTest(t)
	userID := int64(7)
	resourceID := int64(42)

	err := svc.Record(context.Background(), &Entry{
		UserID:       &userID,
		Action:       "booking.cancel",
		ResourceType: ResourceBooking,
		ResourceID:   &resourceID,
		OldValues:    map[string]interface{}{"status": "confirmed"},
		NewValues:    map[string]interface{}{"status": "cancelled", "refund_due": 500000},
		IP:           "10.0.0.8",
		UserAgent:    "volo-admin/1.0",
	})
	require.NoError(t, err)

	var log models.AuditLog
	require.NoError(t, db.First(&log).Error)
	assert.Equal(t, "booking.cancel", log.Action)
	assert.Equal(t, ResourceBooking, log.ResourceType)
	assert.Equal(t, userID, *log.UserID)
	require.NotNil(t, log.IP)
	assert.Equal(t, "10.0.0.8", *log.IP)
	require.NotNil(t, log.UserAgent)
	assert.Equal(t, "volo-admin/1.0", *log.UserAgent)
	assert.Equal(t, "confirmed", log.OldValues["status"])
	assert.Equal(t, "cancelled", log.NewValues["status"])
}

func TestAuditService_Record_EmptyIPStoredAsNull(t *testing.T) {
	svc, db := setupAuditTest(t)
	userID := int64(7)

	err := svc.Record(context.Background(), &Entry{
		UserID:       &userID,
		Action:       "payout.sweep",
		ResourceType: ResourcePayout,
	})
	require.NoError(t, err)

	var log models.AuditLog
	require.NoError(t, db.First(&log).Error)
	assert.Nil(t, log.IP)
	assert.Nil(t, log.UserAgent)
}

func TestAuditService_RecordStateChange_InTx(t *testing.T) {
	svc, db := setupAuditTest(t)
	userID := int64(3)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RecordStateChange(tx, &userID, ResourcePayout, 11, "payout.release", "eligible", "released")
	})
	require.NoError(t, err)

	logs, err := svc.ListByResource(context.Background(), ResourcePayout, 11)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "payout.release", logs[0].Action)
	assert.Equal(t, "eligible", logs[0].OldValues["status"])
	assert.Equal(t, "released", logs[0].NewValues["status"])
}

func TestAuditService_RecordTx_RollsBackWithBusinessWrite(t *testing.T) {
	svc, db := setupAuditTest(t)

	// 审计与业务写入同事务，回滚时一并撤销
	_ = db.Transaction(func(tx *gorm.DB) error {
		if err := svc.RecordTx(tx, &Entry{
			Action:       "payment.mark_paid",
			ResourceType: ResourcePayment,
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestAuditService_List_Filters(t *testing.T) {
	svc, db := setupAuditTest(t)
	ctx := context.Background()
	userA, userB := int64(1), int64(2)

	seed := []Entry{
		{UserID: &userA, Action: "dispute.open", ResourceType: ResourceDispute},
		{UserID: &userA, Action: "dispute.resolve", ResourceType: ResourceDispute},
		{UserID: &userB, Action: "payment.refund", ResourceType: ResourcePayment},
	}
	for i := range seed {
		require.NoError(t, svc.Record(ctx, &seed[i]))
	}

	logs, total, err := svc.List(ctx, map[string]interface{}{"user_id": userA}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, logs, 2)

	logs, total, err = svc.List(ctx, map[string]interface{}{"resource_type": ResourcePayment}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "payment.refund", logs[0].Action)

	var count int64
	require.NoError(t, db.Model(&models.AuditLog{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}
