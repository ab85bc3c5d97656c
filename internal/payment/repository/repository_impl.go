package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/payment/domain"
	pkgdb "github.com/smallbiznis/paylink/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOrderByReference(ctx context.Context, db *gorm.DB, referenceID string, t domain.ReferenceType) (*domain.PurchaseOrder, error) {
	return r.findOrder(ctx, db, "reference_id = ? AND reference_type = ?", referenceID, t)
}

func (r *repo) FindOrderByUUID(ctx context.Context, db *gorm.DB, uuid string) (*domain.PurchaseOrder, error) {
	return r.findOrder(ctx, db, "uuid = ?", uuid)
}

func (r *repo) FindOrderByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PurchaseOrder, error) {
	return r.findOrder(ctx, db, "id = ?", id)
}

func (r *repo) findOrder(ctx context.Context, db *gorm.DB, query string, args ...any) (*domain.PurchaseOrder, error) {
	var item domain.PurchaseOrder
	err := db.WithContext(ctx).Where(query, args...).Limit(1).Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	txs, err := r.ListTransactions(ctx, db, item.ID)
	if err != nil {
		return nil, err
	}
	item.Transactions = txs
	return &item, nil
}

// InsertOrder reports a concurrent create of the same reference as
// ErrOrderExists.
func (r *repo) InsertOrder(ctx context.Context, db *gorm.DB, order *domain.PurchaseOrder) error {
	err := db.WithContext(ctx).Create(order).Error
	if pkgdb.IsDuplicateKeyErr(err) {
		return apperror.Wrap(apperror.ErrConflict, domain.ErrOrderExists,
			"Purchase order already exists, reference id: %s, referenceType: %s", order.ReferenceID, order.ReferenceType)
	}
	return err
}

func (r *repo) UpdateOrder(ctx context.Context, db *gorm.DB, order *domain.PurchaseOrder) error {
	return db.WithContext(ctx).Save(order).Error
}

func (r *repo) ListTransactions(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.PaymentTransaction, error) {
	var items []domain.PaymentTransaction
	err := db.WithContext(ctx).
		Where("purchase_order_id = ?", orderID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) FindTransactionByReference(ctx context.Context, db *gorm.DB, reference string) (*domain.PaymentTransaction, error) {
	var item domain.PaymentTransaction
	err := db.WithContext(ctx).
		Where("reference = ?", reference).
		Order("id DESC").
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

// SaveTransaction inserts or overwrites by primary key.
func (r *repo) SaveTransaction(ctx context.Context, db *gorm.DB, tx *domain.PaymentTransaction) error {
	return db.WithContext(ctx).Save(tx).Error
}

func (r *repo) InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *domain.WebhookEventRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_webhook_events (
			id, gateway, event_id, payload, received_at, claimed_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (gateway, event_id) DO NOTHING`,
		event.ID,
		event.Gateway,
		event.EventID,
		event.Payload,
		event.ReceivedAt,
		event.ClaimedAt,
		event.ProcessedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindWebhookEvent(ctx context.Context, db *gorm.DB, gateway domain.Gateway, eventID string) (*domain.WebhookEventRecord, error) {
	var item domain.WebhookEventRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, gateway, event_id, payload, received_at, claimed_at, processed_at
		 FROM payment_webhook_events
		 WHERE gateway = ? AND event_id = ?
		 LIMIT 1`,
		gateway,
		eventID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ClaimWebhookEvent(ctx context.Context, db *gorm.DB, id snowflake.ID, at, staleBefore time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payment_webhook_events
		 SET claimed_at = ?
		 WHERE id = ? AND processed_at IS NULL AND (claimed_at IS NULL OR claimed_at < ?)`,
		at,
		id,
		staleBefore,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ReleaseWebhookEvent(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_webhook_events
		 SET claimed_at = NULL
		 WHERE id = ? AND processed_at IS NULL`,
		id,
	).Error
}

func (r *repo) MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_webhook_events
		 SET processed_at = ?
		 WHERE id = ?`,
		processedAt,
		id,
	).Error
}
