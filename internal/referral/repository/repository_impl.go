package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/referral/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindProgramByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Program, error) {
	var item domain.Program
	err := db.WithContext(ctx).
		Where("referral_code = ?", code).
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

func (r *repo) FindProgram(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Program, error) {
	var item domain.Program
	err := db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindReferralByReferee(ctx context.Context, db *gorm.DB, refereeID int64) (*domain.Referral, error) {
	var item domain.Referral
	err := db.WithContext(ctx).
		Where("referee_id = ?", refereeID).
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

func (r *repo) InsertReferral(ctx context.Context, db *gorm.DB, referral *domain.Referral) error {
	return db.WithContext(ctx).Create(referral).Error
}

func (r *repo) CountRewards(ctx context.Context, db *gorm.DB, userID int64) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM rewards_balances
		 WHERE user_id = ?`,
		userID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repo) InsertReward(ctx context.Context, db *gorm.DB, reward *domain.RewardsBalance) error {
	return db.WithContext(ctx).Create(reward).Error
}

func (r *repo) ListRewards(ctx context.Context, db *gorm.DB, userID int64, page domain.Page) ([]domain.RewardsBalance, error) {
	page = page.Normalize()
	var items []domain.RewardsBalance
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
