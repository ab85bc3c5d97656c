package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrInvalidDiscount = errors.New("invalid_discount")

type Repository interface {
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Promo, error)
	FindCampaign(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Campaign, error)
	ListCampaignCodes(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]string, error)
	ListAvailable(ctx context.Context, db *gorm.DB, now time.Time) ([]Promo, error)
	CountSuccessfulUsages(ctx context.Context, db *gorm.DB, userID int64, codes []string) (int64, error)
	FindLatestUsage(ctx context.Context, db *gorm.DB, purchaseOrderID snowflake.ID, code string) (*Usage, error)
	InsertUsage(ctx context.Context, db *gorm.DB, usage *Usage) error
	MarkUsageSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
}

// Service validates codes and tracks usages. Methods taking a *gorm.DB run
// on that handle so callers can include them in their own transaction; nil
// means the service's own connection.
type Service interface {
	Validate(ctx context.Context, userID int64, code string) (*Promo, error)
	Get(ctx context.Context, userID int64, code string) (*View, error)
	ListAvailable(ctx context.Context, userID int64) ([]View, error)
	RecordUsage(ctx context.Context, tx *gorm.DB, userID int64, purchaseOrderID snowflake.ID, promo *Promo) (*Usage, error)
	MarkSucceeded(ctx context.Context, tx *gorm.DB, purchaseOrderID snowflake.ID, code string) (*Usage, bool, error)
	FindUsage(ctx context.Context, tx *gorm.DB, purchaseOrderID snowflake.ID, code string) (*Usage, error)
}
