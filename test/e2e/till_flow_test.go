package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/retailcore/till-service/internal/alerts"
	"github.com/retailcore/till-service/internal/model"
	"github.com/retailcore/till-service/internal/queue"
	"github.com/retailcore/till-service/internal/repository"
	"github.com/retailcore/till-service/internal/services"
	"github.com/retailcore/till-service/pkg/cache"
	"github.com/retailcore/till-service/pkg/pg"
	"github.com/retailcore/till-service/pkg/redis"
	"github.com/retailcore/till-service/test/fixtures"
	"github.com/retailcore/till-service/test/helpers"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestEnvironment struct {
	DB              *pg.DB
	Redis           *miniredis.Miniredis
	RedisAdapter    redis.RedisAdapter
	Queue           *queue.Queue
	SessionRepo     *repository.SessionRepository
	DropRepo        *repository.CashDropRepository
	SaleRepo        *repository.SaleRepository
	VarianceRepo    *repository.VarianceRepository
	ActionRepo      *repository.VarianceActionRepository
	SettingsRepo    *repository.SettingsRepository
	SettingsService *services.SettingsService
	VarianceService *services.VarianceService
	TillService     *services.TillService
}

func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := helpers.SetupTestDB(t)

	mr, err := miniredis.Run()
	require.NoError(t, err)

	connName := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	q, err := queue.New(adapter, queue.Config{
		Name:              "variance-alerts",
		ConsumerGroup:     "alerts",
		ConsumerName:      "e2e-consumer",
		MaxRetries:        3,
		VisibilityTimeout: 5 * time.Second,
		PollInterval:      50 * time.Millisecond,
		BatchSize:         10,
	})
	require.NoError(t, err)

	sessionRepo := repository.NewSessionRepository(db)
	dropRepo := repository.NewCashDropRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	varianceRepo := repository.NewVarianceRepository(db)
	actionRepo := repository.NewVarianceActionRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)

	settingsService := services.NewSettingsService(settingsRepo, cache.NewMemoryCache(), time.Minute)
	varianceService := services.NewVarianceService(varianceRepo, actionRepo, settingsService, alerts.NewQueuePublisher(q))
	tillService := services.NewTillService(sessionRepo, dropRepo, saleRepo, settingsService, varianceService)

	env := &TestEnvironment{
		DB:              db,
		Redis:           mr,
		RedisAdapter:    adapter,
		Queue:           q,
		SessionRepo:     sessionRepo,
		DropRepo:        dropRepo,
		SaleRepo:        saleRepo,
		VarianceRepo:    varianceRepo,
		ActionRepo:      actionRepo,
		SettingsRepo:    settingsRepo,
		SettingsService: settingsService,
		VarianceService: varianceService,
		TillService:     tillService,
	}
	return env
}

func (env *TestEnvironment) Cleanup() {
	if env.Queue != nil {
		env.Queue.Stop(5 * time.Second)
	}
	time.Sleep(100 * time.Millisecond)
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func TestE2E_FullDrawerCycle(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	branch := "BR-001"
	helpers.CreateTestSettings(t, env.DB, branch, decimal.NewFromInt(2))

	cashierCtx := helpers.ActorContext("cashier-7")
	managerCtx := helpers.ActorContext("manager-1")

	// Open the drawer with a 1000 float.
	session, err := env.TillService.OpenSession(cashierCtx, model.OpenSessionRequest{
		BranchID:      branch,
		OpeningAmount: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusOpen, session.Status)
	assert.Equal(t, "cashier-7", session.OpenedBy)

	// Trade happens: 3500 in completed cash sales plus a card sale that
	// must never enter the drawer math.
	now := time.Now().UTC()
	helpers.CreateCashSale(t, env.DB, branch, decimal.NewFromInt(2000), now)
	helpers.CreateCashSale(t, env.DB, branch, decimal.NewFromInt(1500), now)
	helpers.CreateCardSale(t, env.DB, branch, decimal.NewFromInt(900), now)

	// Skim 500 to the safe.
	drop, err := env.TillService.PerformCashDrop(cashierCtx, model.CashDropRequest{
		BranchID: branch,
		Amount:   decimal.NewFromInt(500),
		Reason:   "safe drop",
	})
	require.NoError(t, err)
	assert.Equal(t, session.ID, drop.SessionID)
	assert.True(t, drop.TillAmountBefore.Equal(decimal.NewFromInt(4500)))
	assert.True(t, drop.TillAmountAfter.Equal(decimal.NewFromInt(4000)))

	// Live summary: 1000 + 3500 - 500 = 4000 in the drawer.
	summary, err := env.TillService.GetTillSummary(cashierCtx, branch)
	require.NoError(t, err)
	assert.True(t, summary.CurrentAmount.Equal(decimal.NewFromInt(4000)),
		"current amount = %s", summary.CurrentAmount)
	assert.True(t, summary.DropsTotal.Equal(decimal.NewFromInt(500)))
	assert.True(t, summary.SalesByMethod["cash"].Equal(decimal.NewFromInt(3500)))
	assert.True(t, summary.SalesByMethod["card"].Equal(decimal.NewFromInt(900)))

	// Count out 4.50 short.
	result, err := env.TillService.CloseSession(cashierCtx, model.CloseSessionRequest{
		BranchID:      branch,
		ClosingAmount: decimal.RequireFromString("3995.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, model.SessionStatusClosed, result.Session.Status)
	assert.True(t, result.Expected.Equal(decimal.NewFromInt(4000)))
	assert.True(t, result.Variance.Equal(decimal.RequireFromString("-4.50")),
		"variance = %s", result.Variance)

	// The shortage opened a case automatically.
	require.NotNil(t, result.Case)
	assert.Equal(t, model.VarianceShortage, result.Case.VarianceType)
	assert.True(t, result.Case.Amount.Equal(decimal.RequireFromString("4.50")))
	assert.Equal(t, model.StatusPending, result.Case.ResolutionStatus)

	// 4.50 is above the branch threshold of 2, so an alert went out.
	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalMessages, int64(1))

	// Work the case: investigate, then manager sign-off.
	investigated, err := env.VarianceService.Investigate(cashierCtx, result.Case.ID, services.InvestigateRequest{
		Notes: "recounted drawer, coin tray was short",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInvestigating, investigated.ResolutionStatus)
	assert.Equal(t, "cashier-7", investigated.InvestigatedBy)

	approved, err := env.VarianceService.Approve(managerCtx, result.Case.ID, services.ApproveRequest{
		Approved: true,
		Notes:    "write-off, amount immaterial",
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusManagerApproved, approved.ResolutionStatus)
	assert.True(t, approved.ManagerApproval)
	assert.Equal(t, "manager-1", approved.ManagerID)
	assert.NotNil(t, approved.ResolvedAt)

	// The audit trail recorded every step, in order.
	actions, err := env.VarianceService.Actions(cashierCtx, result.Case.ID)
	require.NoError(t, err)
	require.Len(t, actions, 3)
	assert.Equal(t, model.ActionCreated, actions[0].ActionType)
	assert.Equal(t, model.ActionInvestigated, actions[1].ActionType)
	assert.Equal(t, model.ActionApproved, actions[2].ActionType)

	// A terminal case rejects further transitions.
	_, err = env.VarianceService.Investigate(managerCtx, result.Case.ID, services.InvestigateRequest{})
	assert.Equal(t, services.KindConflict, services.KindOf(err))
}

func TestE2E_AlertPayloadOnQueue(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	branch := "BR-002"
	helpers.CreateTestSettings(t, env.DB, branch, decimal.NewFromInt(5))

	ctx := helpers.ActorContext("cashier-2")

	session, err := env.TillService.OpenSession(ctx, model.OpenSessionRequest{
		BranchID:      branch,
		OpeningAmount: decimal.NewFromInt(500),
	})
	require.NoError(t, err)

	// Close 20 over with no sales at all.
	result, err := env.TillService.CloseSession(ctx, model.CloseSessionRequest{
		BranchID:      branch,
		ClosingAmount: decimal.NewFromInt(520),
	})
	require.NoError(t, err)
	require.NotNil(t, result.Case)
	assert.Equal(t, model.VarianceOverage, result.Case.VarianceType)

	received := make(chan model.VarianceAlert, 1)
	err = env.Queue.Consume(func(ctx context.Context, msg *queue.Message) error {
		var alert model.VarianceAlert
		if err := json.Unmarshal(msg.Data, &alert); err != nil {
			return err
		}
		received <- alert
		return nil
	})
	require.NoError(t, err)

	select {
	case alert := <-received:
		assert.NotEmpty(t, alert.EventID)
		assert.Equal(t, result.Case.ID, alert.VarianceID)
		assert.Equal(t, session.ID, alert.SessionID)
		assert.Equal(t, branch, alert.BranchID)
		assert.Equal(t, model.VarianceOverage, alert.Type)
		assert.True(t, alert.Amount.Equal(decimal.NewFromInt(20)))
		assert.True(t, alert.Threshold.Equal(decimal.NewFromInt(5)))
	case <-time.After(3 * time.Second):
		t.Fatal("alert not consumed within timeout")
	}
}

func TestE2E_SmallVarianceOpensCaseWithoutAlert(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	branch := "BR-003"
	helpers.CreateTestSettings(t, env.DB, branch, decimal.NewFromInt(10))

	ctx := helpers.ActorContext("cashier-3")

	_, err := env.TillService.OpenSession(ctx, model.OpenSessionRequest{
		BranchID:      branch,
		OpeningAmount: decimal.NewFromInt(300),
	})
	require.NoError(t, err)

	result, err := env.TillService.CloseSession(ctx, model.CloseSessionRequest{
		BranchID:      branch,
		ClosingAmount: decimal.RequireFromString("299.25"),
	})
	require.NoError(t, err)

	// A case always opens, but 0.75 stays under the alert threshold.
	require.NotNil(t, result.Case)
	assert.Equal(t, model.VarianceShortage, result.Case.VarianceType)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalMessages)
}

func TestE2E_SecondOpenRejected(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	ctx := helpers.ActorContext("cashier-4")

	_, err := env.TillService.OpenSession(ctx, fixtures.NewOpenSessionRequest(fixtures.BranchMain, 200))
	require.NoError(t, err)

	_, err = env.TillService.OpenSession(ctx, fixtures.NewOpenSessionRequest(fixtures.BranchMain, 200))
	assert.Equal(t, services.KindConflict, services.KindOf(err))

	// A different branch is unaffected.
	_, err = env.TillService.OpenSession(ctx, fixtures.NewOpenSessionRequest(fixtures.BranchMall, 200))
	assert.NoError(t, err)
}

func TestE2E_ExpensesReduceExpected(t *testing.T) {
	env := setupE2EEnvironment(t)
	defer env.Cleanup()

	branch := "BR-006"
	ctx := helpers.ActorContext("cashier-6")

	_, err := env.TillService.OpenSession(ctx, model.OpenSessionRequest{
		BranchID:      branch,
		OpeningAmount: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)

	now := time.Now().UTC()
	helpers.CreateCashSale(t, env.DB, branch, decimal.NewFromInt(250), now)
	helpers.CreateCashRefund(t, env.DB, branch, decimal.NewFromInt(50), now)

	// 1000 + 250 - 50 - 30 courier = 1170 expected; counted exactly.
	result, err := env.TillService.CloseSession(ctx, model.CloseSessionRequest{
		BranchID:      branch,
		ClosingAmount: decimal.NewFromInt(1170),
		Expenses: []model.ExpenseEntry{
			{Label: "courier", Amount: decimal.NewFromInt(30)},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Expected.Equal(decimal.NewFromInt(1170)))
	assert.True(t, result.Variance.IsZero())
	assert.Nil(t, result.Case)

	stats, err := env.Queue.GetStats()
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalMessages)
}
