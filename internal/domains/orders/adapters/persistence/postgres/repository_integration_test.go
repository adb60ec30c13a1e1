//go:build integration
// +build integration

// To enable gopls support for this file, add the following to your VSCode settings.json:
// "gopls": {
//   "buildFlags": ["-tags=integration"]
// }

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	orderspostgres "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/persistence/postgres"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/costume-order-engine/internal/platform/migrations"
)

func setupPostgresContainer(t *testing.T) (*gorm.DB, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("orders_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, cleanup
}

func seedOrders(t *testing.T, repo *orderspostgres.Repository) {
	t.Helper()
	ctx := context.Background()
	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	standard, err := domain.NewStandardOrder("o1", "EMPI-1", domain.Customer{Name: "Ada", Email: "ada@example.com"},
		[]domain.OrderItem{
			{Name: "Pirate Coat", Quantity: 1, Price: decimal.NewFromInt(18000), Mode: domain.ModeBuy},
		},
		decimal.NewFromInt(19350), domain.StatusPending, created)
	require.NoError(t, err)
	require.NoError(t, repo.SaveStandardOrder(ctx, standard))

	custom, err := domain.NewCustomOrder("c1", "CUST-1", domain.Customer{Email: "bo@example.com"},
		domain.CustomDetails{Description: "Dragon", Quantity: 1, QuotedPrice: decimal.NewFromInt(5000), ImageRefs: []string{"dragon.png"}},
		decimal.NewFromInt(5375), domain.StatusApproved, created.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.SaveCustomOrder(ctx, custom))

	require.NoError(t, repo.SaveInvoice(ctx, domain.NewInvoice("inv-1", "EMPI-1", "", decimal.NewFromInt(19350), created.Add(2*time.Hour))))
}

func TestPostgresRepository_ReconcileCycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := orderspostgres.NewRepository(db)
	seedOrders(t, repo)

	cycle, err := application.NewReconciler(repo, repo, repo).RunCycle(context.Background())
	require.NoError(t, err)
	require.Len(t, cycle.Orders, 2)
	assert.Equal(t, domain.PaymentPaid, cycle.Payments[domain.Key{By: domain.KeyByID, Value: "o1"}])
	assert.Equal(t, domain.PaymentPaid, cycle.Payments[domain.Key{By: domain.KeyByID, Value: "c1"}])

	breakdown := domain.ComputeBreakdown(cycle.Orders[0], domain.DefaultDiscountTable())
	assert.True(t, decimal.NewFromInt(19350).Equal(breakdown.ComputedTotal))
}

func TestPostgresRepository_Writes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	repo := orderspostgres.NewRepository(db)
	seedOrders(t, repo)
	ctx := context.Background()

	_, err := repo.ApproveOrder(ctx, domain.OrderRef{OrderNumber: "EMPI-1"}, "admin-1")
	require.NoError(t, err)
	_, err = repo.SetOrderStatus(ctx, domain.OrderRef{ID: "c1", Kind: domain.KindCustom}, domain.StatusReady)
	require.NoError(t, err)

	approved, err := repo.FetchStandardOrders(ctx, ports.Filter{Statuses: []domain.Status{domain.StatusApproved}})
	require.NoError(t, err)
	require.Len(t, approved, 1)

	ready, err := repo.FetchCustomOrders(ctx, ports.Filter{Statuses: []domain.Status{domain.StatusReady}})
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, []string{"dragon.png"}, ready[0].Custom.ImageRefs)

	_, err = repo.DeleteOrder(ctx, domain.OrderRef{ID: "o1"})
	require.NoError(t, err)
	_, err = repo.DeleteOrder(ctx, domain.OrderRef{ID: "o1"})
	require.ErrorIs(t, err, ports.ErrNotFound)
}

func TestPostgresHandoffStore_Save(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, cleanup := setupPostgresContainer(t)
	defer cleanup()

	store := orderspostgres.NewHandoffStore(db)
	ctx := context.Background()

	saved, err := store.Save(ctx, ports.HandoffRecord{Key: "logistics-handoff:id:o1", RequestHash: "h1", OrderRef: "o1"})
	require.NoError(t, err)
	assert.False(t, saved.CreatedAt.IsZero())

	_, err = store.Save(ctx, ports.HandoffRecord{Key: "logistics-handoff:id:o1", RequestHash: "h1", OrderRef: "o1"})
	require.NoError(t, err)

	_, err = store.Save(ctx, ports.HandoffRecord{Key: "logistics-handoff:id:o1", RequestHash: "h2", OrderRef: "o1"})
	require.ErrorIs(t, err, ports.ErrHandoffConflict)
}
