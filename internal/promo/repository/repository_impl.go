package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/promo/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Promo, error) {
	var item domain.Promo
	err := db.WithContext(ctx).
		Where("UPPER(code) = ?", domain.NormalizeCode(code)).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	if item.CampaignID != nil {
		campaign, err := r.FindCampaign(ctx, db, *item.CampaignID)
		if err != nil {
			return nil, err
		}
		item.Campaign = campaign
	}
	return &item, nil
}

func (r *repo) FindCampaign(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Campaign, error) {
	var item domain.Campaign
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) ListCampaignCodes(ctx context.Context, db *gorm.DB, campaignID snowflake.ID) ([]string, error) {
	var codes []string
	err := db.WithContext(ctx).Raw(
		`SELECT UPPER(code)
		 FROM promos
		 WHERE campaign_id = ?`,
		campaignID,
	).Scan(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *repo) ListAvailable(ctx context.Context, db *gorm.DB, now time.Time) ([]domain.Promo, error) {
	var items []domain.Promo
	err := db.WithContext(ctx).
		Where("hidden = ? AND expires_at > ?", false, now).
		Order("code ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	campaigns := map[snowflake.ID]*domain.Campaign{}
	for i := range items {
		if items[i].CampaignID == nil {
			continue
		}
		id := *items[i].CampaignID
		campaign, ok := campaigns[id]
		if !ok {
			campaign, err = r.FindCampaign(ctx, db, id)
			if err != nil {
				return nil, err
			}
			campaigns[id] = campaign
		}
		items[i].Campaign = campaign
	}
	return items, nil
}

func (r *repo) CountSuccessfulUsages(ctx context.Context, db *gorm.DB, userID int64, codes []string) (int64, error) {
	if len(codes) == 0 {
		return 0, nil
	}
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM promo_usages
		 WHERE user_id = ? AND UPPER(promo_code) IN ? AND used_with_success_payment = ?`,
		userID,
		codes,
		true,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) FindLatestUsage(ctx context.Context, db *gorm.DB, purchaseOrderID snowflake.ID, code string) (*domain.Usage, error) {
	var item domain.Usage
	err := db.WithContext(ctx).
		Where("purchase_order_id = ? AND UPPER(promo_code) = ?", purchaseOrderID, domain.NormalizeCode(code)).
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

func (r *repo) InsertUsage(ctx context.Context, db *gorm.DB, usage *domain.Usage) error {
	return db.WithContext(ctx).Create(usage).Error
}

// MarkUsageSucceeded only moves the flag from false to true and reports
// whether this call did it.
func (r *repo) MarkUsageSucceeded(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE promo_usages
		 SET used_with_success_payment = ?, updated_at = ?
		 WHERE id = ? AND used_with_success_payment = ?`,
		true,
		at,
		id,
		false,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
