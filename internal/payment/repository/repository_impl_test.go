package repository_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/migration"
	"github.com/smallbiznis/paylink/internal/payment/domain"
	"github.com/smallbiznis/paylink/internal/payment/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:payment_repo_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(db))
	return db
}

func seedOrder(t *testing.T, db *gorm.DB) *domain.PurchaseOrder {
	t.Helper()
	uuid := "7d7c6a52-0000-4000-8000-000000000001"
	order := &domain.PurchaseOrder{
		ID:            10,
		ReferenceID:   "900",
		ReferenceType: domain.ReferenceOrder,
		UUID:          &uuid,
		UserID:        5,
		Amount:        decimal.RequireFromString("100"),
		Currency:      "AED",
		Gateway:       domain.GatewayTelr,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, repository.Provide().InsertOrder(context.Background(), db, order))
	return order
}

func TestOrderLookupsLoadTransactionsInIDOrder(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := repository.Provide()
	order := seedOrder(t, db)

	for _, id := range []int64{30, 20} {
		require.NoError(t, repo.SaveTransaction(ctx, db, &domain.PaymentTransaction{
			ID:              snowflake.ID(id),
			PurchaseOrderID: order.ID,
			Status:          domain.StatusReadyForPayment,
			Amount:          decimal.Zero,
			Reference:       fmt.Sprintf("ref-%d", id),
			ExpiresAt:       now.Add(time.Hour),
			CreatedAt:       now,
			UpdatedAt:       now,
		}))
	}

	found, err := repo.FindOrderByReference(ctx, db, "900", domain.ReferenceOrder)
	require.NoError(t, err)
	require.NotNil(t, found)
	require.Len(t, found.Transactions, 2)
	assert.EqualValues(t, 20, found.Transactions[0].ID)
	assert.EqualValues(t, 30, found.Transactions[1].ID)

	byUUID, err := repo.FindOrderByUUID(ctx, db, *order.UUID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, byUUID.ID)

	byID, err := repo.FindOrderByID(ctx, db, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "900", byID.ReferenceID)

	missing, err := repo.FindOrderByReference(ctx, db, "900", domain.ReferenceSubscription)
	require.NoError(t, err)
	assert.Nil(t, missing)

	tx, err := repo.FindTransactionByReference(ctx, db, "ref-30")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.EqualValues(t, 30, tx.ID)

	none, err := repo.FindTransactionByReference(ctx, db, "nope")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateOrderKeepsTimestampsFromCaller(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := repository.Provide()
	order := seedOrder(t, db)

	later := now.Add(2 * time.Hour)
	order.Amount = decimal.RequireFromString("80")
	order.UpdatedAt = later
	require.NoError(t, repo.UpdateOrder(ctx, db, order))

	found, err := repo.FindOrderByID(ctx, db, order.ID)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("80").Equal(found.Amount))
	assert.True(t, later.Equal(found.UpdatedAt))
}

func TestSaveTransactionOverwritesByID(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := repository.Provide()
	order := seedOrder(t, db)

	tx := &domain.PaymentTransaction{
		ID:              1,
		PurchaseOrderID: order.ID,
		Status:          domain.StatusReadyForPayment,
		Amount:          decimal.Zero,
		ExpiresAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, repo.SaveTransaction(ctx, db, tx))
	tx.Status = domain.StatusAuthorized
	tx.CardLast4 = "4242"
	require.NoError(t, repo.SaveTransaction(ctx, db, tx))

	txs, err := repo.ListTransactions(ctx, db, order.ID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.StatusAuthorized, txs[0].Status)
	assert.Equal(t, "4242", txs[0].CardLast4)
}

func TestWebhookEventDedupe(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := repository.Provide()

	event := &domain.WebhookEventRecord{
		ID:         1,
		Gateway:    domain.GatewayNoon,
		EventID:    "evt-1",
		Payload:    datatypes.JSON(`{"eventId":"evt-1"}`),
		ReceivedAt: now,
	}
	inserted, err := repo.InsertWebhookEvent(ctx, db, event)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *event
	dup.ID = 2
	inserted, err = repo.InsertWebhookEvent(ctx, db, &dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	other := *event
	other.ID = 3
	other.Gateway = domain.GatewayTelr
	inserted, err = repo.InsertWebhookEvent(ctx, db, &other)
	require.NoError(t, err)
	assert.True(t, inserted)

	stored, err := repo.FindWebhookEvent(ctx, db, domain.GatewayNoon, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.EqualValues(t, 1, stored.ID)
	assert.Nil(t, stored.ProcessedAt)

	require.NoError(t, repo.MarkWebhookProcessed(ctx, db, stored.ID, now.Add(time.Minute)))
	stored, err = repo.FindWebhookEvent(ctx, db, domain.GatewayNoon, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, stored.ProcessedAt)

	missing, err := repo.FindWebhookEvent(ctx, db, domain.GatewayTelr, "evt-404")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestWebhookEventClaim(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	repo := repository.Provide()

	claimedAt := now
	require.NoError(t, db.Create(&domain.WebhookEventRecord{
		ID:         1,
		Gateway:    domain.GatewayTelr,
		EventID:    "030012345678",
		Payload:    datatypes.JSON(`"tran_ref=030012345678"`),
		ReceivedAt: now,
		ClaimedAt:  &claimedAt,
	}).Error)

	// A fresh claim blocks other deliveries.
	ok, err := repo.ClaimWebhookEvent(ctx, db, 1, now.Add(time.Second), now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	// A stale one can be taken over.
	ok, err = repo.ClaimWebhookEvent(ctx, db, 1, now.Add(10*time.Minute), now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, repo.ReleaseWebhookEvent(ctx, db, 1))
	stored, err := repo.FindWebhookEvent(ctx, db, domain.GatewayTelr, "030012345678")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Nil(t, stored.ClaimedAt)

	ok, err = repo.ClaimWebhookEvent(ctx, db, 1, now.Add(11*time.Minute), now.Add(6*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	// Processed records are never claimed again.
	require.NoError(t, repo.MarkWebhookProcessed(ctx, db, 1, now.Add(12*time.Minute)))
	ok, err = repo.ClaimWebhookEvent(ctx, db, 1, now.Add(time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInsertOrderDuplicateReferenceIsConflict(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	seedOrder(t, db)

	err := repository.Provide().InsertOrder(ctx, db, &domain.PurchaseOrder{
		ID:            11,
		ReferenceID:   "900",
		ReferenceType: domain.ReferenceOrder,
		UserID:        5,
		Amount:        decimal.RequireFromString("80"),
		Currency:      "AED",
		Gateway:       domain.GatewayTelr,
		CreatedAt:     now,
		UpdatedAt:     now,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrOrderExists)
	assert.ErrorIs(t, err, apperror.ErrConflict)
}
