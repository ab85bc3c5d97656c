package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/promo/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("promo.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Validate(ctx context.Context, userID int64, code string) (*domain.Promo, error) {
	promo, err := s.repo.FindByCode(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if promo == nil {
		return nil, apperror.New(apperror.ErrNotFound, "Invalid promo code.")
	}
	if promo.IsExpired(s.clock.Now()) {
		return nil, apperror.New(apperror.ErrGone, "The promo code '%s' is no longer valid.", code)
	}
	exceeded, err := s.limitReached(ctx, userID, promo)
	if err != nil {
		return nil, err
	}
	if exceeded {
		return nil, apperror.New(apperror.ErrTooManyRequests,
			"You have already reached usage limit for the promo code or its associated campaign '%s' has been reached.", code)
	}
	return promo, nil
}

func (s *Service) Get(ctx context.Context, userID int64, code string) (*domain.View, error) {
	promo, err := s.Validate(ctx, userID, code)
	if err != nil {
		return nil, err
	}
	return &domain.View{Code: promo.Code, Discount: promo.Discount, Valid: true}, nil
}

func (s *Service) ListAvailable(ctx context.Context, userID int64) ([]domain.View, error) {
	promos, err := s.repo.ListAvailable(ctx, s.db, s.clock.Now())
	if err != nil {
		return nil, err
	}
	views := make([]domain.View, 0, len(promos))
	for i := range promos {
		exceeded, err := s.limitReached(ctx, userID, &promos[i])
		if err != nil {
			return nil, err
		}
		views = append(views, domain.View{
			Code:     promos[i].Code,
			Discount: promos[i].Discount,
			Valid:    !exceeded,
		})
	}
	return views, nil
}

// RecordUsage returns the existing usage when the code was already applied to
// this order. A new usage starts as successful only for a full discount.
func (s *Service) RecordUsage(ctx context.Context, tx *gorm.DB, userID int64, purchaseOrderID snowflake.ID, promo *domain.Promo) (*domain.Usage, error) {
	db := s.handle(tx)
	existing, err := s.repo.FindLatestUsage(ctx, db, purchaseOrderID, promo.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	now := s.clock.Now()
	usage := &domain.Usage{
		ID:                     s.genID.Generate(),
		UserID:                 userID,
		PurchaseOrderID:        purchaseOrderID,
		PromoID:                promo.ID,
		PromoCode:              domain.NormalizeCode(promo.Code),
		Discount:               promo.Discount,
		UsedWithSuccessPayment: promo.IsFullDiscount(),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.repo.InsertUsage(ctx, db, usage); err != nil {
		return nil, err
	}
	s.log.Info("promo usage recorded",
		zap.String("promo_code", usage.PromoCode),
		zap.String("purchase_order_id", purchaseOrderID.String()),
		zap.Bool("used_with_success_payment", usage.UsedWithSuccessPayment),
	)
	return usage, nil
}

// MarkSucceeded flips the latest usage for (order, code) to successful. The
// bool reports whether this call performed the flip; a usage that is already
// successful is left untouched.
func (s *Service) MarkSucceeded(ctx context.Context, tx *gorm.DB, purchaseOrderID snowflake.ID, code string) (*domain.Usage, bool, error) {
	db := s.handle(tx)
	usage, err := s.repo.FindLatestUsage(ctx, db, purchaseOrderID, code)
	if err != nil {
		return nil, false, err
	}
	if usage == nil {
		return nil, false, nil
	}
	if usage.UsedWithSuccessPayment {
		return usage, false, nil
	}

	now := s.clock.Now()
	flipped, err := s.repo.MarkUsageSucceeded(ctx, db, usage.ID, now)
	if err != nil {
		return nil, false, err
	}
	usage.UsedWithSuccessPayment = true
	if flipped {
		usage.UpdatedAt = now
	}
	return usage, flipped, nil
}

func (s *Service) FindUsage(ctx context.Context, tx *gorm.DB, purchaseOrderID snowflake.ID, code string) (*domain.Usage, error) {
	return s.repo.FindLatestUsage(ctx, s.handle(tx), purchaseOrderID, code)
}

func (s *Service) limitReached(ctx context.Context, userID int64, promo *domain.Promo) (bool, error) {
	codes := []string{domain.NormalizeCode(promo.Code)}
	if promo.CampaignID != nil {
		campaignCodes, err := s.repo.ListCampaignCodes(ctx, s.db, *promo.CampaignID)
		if err != nil {
			return false, err
		}
		if len(campaignCodes) > 0 {
			codes = campaignCodes
		}
	}
	used, err := s.repo.CountSuccessfulUsages(ctx, s.db, userID, codes)
	if err != nil {
		return false, err
	}
	return used >= int64(promo.Limit()), nil
}

func (s *Service) handle(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}
