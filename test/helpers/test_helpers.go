package helpers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/repository"
	"github.com/retailcore/till-service/pkg/pg"
	"github.com/retailcore/till-service/pkg/redis"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	// every pooled connection would otherwise see its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&repository.TillSessionEntity{},
		&repository.CashDropEntity{},
		&repository.CashVarianceEntity{},
		&repository.VarianceActionEntity{},
		&repository.TillSettingsEntity{},
		&repository.SaleEntity{},
		&repository.RefundEntity{},
	)
	require.NoError(t, err)

	return pg.NewWithConnections(db, db)
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

// ActorContext returns a context carrying the given user, the way the HTTP
// layer does it for authenticated requests.
func ActorContext(userID string) context.Context {
	return model.WithActor(context.Background(), model.Actor{ID: userID})
}

func CreateTestSettings(t *testing.T, db *pg.DB, branchID string, threshold decimal.Decimal) *repository.TillSettingsEntity {
	ctx := context.Background()
	now := time.Now().UTC()
	entity := &repository.TillSettingsEntity{
		BranchID:                  branchID,
		TillCashManagementEnabled: true,
		TillCountRemindersEnabled: true,
		VarianceAlertsEnabled:     true,
		MaxTillAmount:             decimal.NewFromInt(5000),
		MinTillAmount:             decimal.NewFromInt(500),
		VarianceThreshold:         threshold,
		CreatedAt:                 now,
		UpdatedAt:                 now,
	}
	err := db.Write(ctx).Create(entity).Error
	require.NoError(t, err)
	return entity
}

func CreateCashSale(t *testing.T, db *pg.DB, branchID string, amount decimal.Decimal, at time.Time) *repository.SaleEntity {
	ctx := context.Background()
	sale := &repository.SaleEntity{
		BranchID:      branchID,
		PaymentMethod: model.PaymentMethodCash,
		PaymentStatus: model.PaymentStatusCompleted,
		Amount:        amount,
		CreatedAt:     at,
	}
	err := db.Write(ctx).Create(sale).Error
	require.NoError(t, err)
	return sale
}

func CreateCardSale(t *testing.T, db *pg.DB, branchID string, amount decimal.Decimal, at time.Time) *repository.SaleEntity {
	ctx := context.Background()
	sale := &repository.SaleEntity{
		BranchID:      branchID,
		PaymentMethod: "card",
		PaymentStatus: model.PaymentStatusCompleted,
		Amount:        amount,
		CreatedAt:     at,
	}
	err := db.Write(ctx).Create(sale).Error
	require.NoError(t, err)
	return sale
}

func CreateCashRefund(t *testing.T, db *pg.DB, branchID string, amount decimal.Decimal, at time.Time) *repository.RefundEntity {
	ctx := context.Background()
	refund := &repository.RefundEntity{
		BranchID:      branchID,
		PaymentMethod: model.PaymentMethodCash,
		PaymentStatus: model.PaymentStatusCompleted,
		Amount:        amount,
		CreatedAt:     at,
	}
	err := db.Write(ctx).Create(refund).Error
	require.NoError(t, err)
	return refund
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
