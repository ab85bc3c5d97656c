package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Campaign pools the per-user usage limit across all of its codes.
type Campaign struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	Name        string       `json:"name" gorm:"type:text;not null"`
	Description string       `json:"description" gorm:"type:text"`
	UsageLimit  int          `json:"usage_limit" gorm:"not null;default:1"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Campaign) TableName() string { return "promo_campaigns" }

// Promo codes are stored upper-case and matched case-insensitively.
type Promo struct {
	ID          snowflake.ID    `json:"id" gorm:"primaryKey"`
	Code        string          `json:"code" gorm:"type:varchar(64);not null;uniqueIndex"`
	Description string          `json:"description" gorm:"type:text"`
	Discount    decimal.Decimal `json:"discount" gorm:"type:numeric(5,2);not null"`
	ExpiresAt   *time.Time      `json:"expires_at"`
	UsageLimit  int             `json:"usage_limit" gorm:"not null;default:1"`
	Hidden      bool            `json:"hidden" gorm:"not null;default:false"`
	CampaignID  *snowflake.ID   `json:"campaign_id" gorm:"index"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	Campaign *Campaign `json:"campaign,omitempty" gorm:"-"`
}

func (Promo) TableName() string { return "promos" }

// Usage records a user applying a code to one purchase order. It counts
// toward limits only once UsedWithSuccessPayment is set.
type Usage struct {
	ID                     snowflake.ID    `json:"id" gorm:"primaryKey"`
	UserID                 int64           `json:"user_id" gorm:"not null;index"`
	PurchaseOrderID        snowflake.ID    `json:"purchase_order_id" gorm:"not null;index"`
	PromoID                snowflake.ID    `json:"promo_id" gorm:"not null"`
	PromoCode              string          `json:"promo_code" gorm:"type:varchar(64);not null;index"`
	Discount               decimal.Decimal `json:"discount" gorm:"type:numeric(5,2);not null"`
	UsedWithSuccessPayment bool            `json:"used_with_success_payment" gorm:"not null;default:false"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
}

func (Usage) TableName() string { return "promo_usages" }

// View is the public shape of a promo code check.
type View struct {
	Code     string          `json:"code"`
	Discount decimal.Decimal `json:"discount"`
	Valid    bool            `json:"valid"`
}

var fullDiscount = decimal.NewFromInt(100)

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (p *Promo) IsFullDiscount() bool {
	return p.Discount.GreaterThanOrEqual(fullDiscount)
}

// IsExpired treats a promo without an expiry as expired.
func (p *Promo) IsExpired(now time.Time) bool {
	return p.ExpiresAt == nil || !p.ExpiresAt.After(now)
}

// Limit returns the per-user success limit, taken from the campaign when
// the code belongs to one.
func (p *Promo) Limit() int {
	limit := p.UsageLimit
	if p.Campaign != nil {
		limit = p.Campaign.UsageLimit
	}
	if limit <= 0 {
		limit = 1
	}
	return limit
}
