package service

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paylink/internal/apperror"
	"github.com/smallbiznis/paylink/internal/clock"
	"github.com/smallbiznis/paylink/internal/referral/domain"
	pkgdb "github.com/smallbiznis/paylink/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	referrerRewardDescription = "Claimed when referrer code %s is used by user id %d"
	refereeRewardDescription  = "Claimed when referrer code %s is used"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Publisher domain.EventPublisher
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	publisher domain.EventPublisher
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("referral.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		publisher: p.Publisher,
	}
}

// Apply records that userID joined through code and publishes the referral.
// A code is either a program code owned by one referrer, or a shared
// program code followed by the referrer's user id.
func (s *Service) Apply(ctx context.Context, userID int64, code string) (*domain.ReferralView, error) {
	code = domain.NormalizeCode(code)
	if code == "" || len(code) > domain.MaxCodeLength {
		return nil, apperror.New(apperror.ErrInvalidRequest, "Invalid referral code")
	}
	existing, err := s.repo.FindReferralByReferee(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, alreadyReferred(userID)
	}

	program, referrerID, err := s.resolve(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrerID == userID {
		return nil, apperror.New(apperror.ErrInvalidRequest, "Referral code (%s) belongs to this user", code)
	}

	now := s.clock.Now()
	referral := &domain.Referral{
		ID:           s.genID.Generate(),
		RefereeID:    userID,
		ReferrerID:   referrerID,
		ProgramID:    program.ID,
		ReferralCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.InsertReferral(ctx, s.db, referral); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, alreadyReferred(userID)
		}
		return nil, err
	}

	view := domain.NewReferralView(referral)
	s.publisher.PublishReferral(ctx, userID, view)
	s.log.Info("referral applied",
		zap.Int64("referee_id", userID),
		zap.Int64("referrer_id", referrerID),
		zap.String("referral_code", code),
	)
	return &view, nil
}

func alreadyReferred(userID int64) error {
	return apperror.New(apperror.ErrInvalidRequest, "This user(%d) is already used a referral code", userID)
}

func (s *Service) resolve(ctx context.Context, code string) (*domain.Program, int64, error) {
	program, err := s.repo.FindProgramByCode(ctx, s.db, code)
	if err != nil {
		return nil, 0, err
	}
	if program != nil {
		if program.ReferrerUserID == nil {
			return nil, 0, apperror.New(apperror.ErrInvalidRequest, "Referral program (%s) has no referrer", code)
		}
		return program, *program.ReferrerUserID, nil
	}

	parts := domain.SplitCode(code)
	if len(parts) != 2 {
		return nil, 0, apperror.New(apperror.ErrInvalidRequest, "Invalid referral code (%s)", code)
	}
	lookup, referrerPart := parts[0], parts[1]

	program, err = s.repo.FindProgramByCode(ctx, s.db, lookup)
	if err != nil {
		return nil, 0, err
	}
	if program == nil {
		return nil, 0, apperror.New(apperror.ErrNotFound, "Invalid referral program, referral lookup code(%s)", lookup)
	}
	referrerID, err := strconv.ParseInt(referrerPart, 10, 64)
	if err != nil {
		return nil, 0, apperror.Wrap(apperror.ErrInvalidRequest, err,
			"Failed while extracting referrer id, referral code (%s)", code)
	}
	return program, referrerID, nil
}

func (s *Service) RewardsBalance(ctx context.Context, userID int64, page domain.Page) ([]domain.RewardView, error) {
	rewards, err := s.repo.ListRewards(ctx, s.db, userID, page)
	if err != nil {
		return nil, err
	}
	views := make([]domain.RewardView, 0, len(rewards))
	for i := range rewards {
		views = append(views, domain.NewRewardView(&rewards[i]))
	}
	return views, nil
}

// ConsultationCompleted grants the referrer and the referee one reward each
// while they hold fewer than the program allows. Events go out after the
// rewards are committed.
func (s *Service) ConsultationCompleted(ctx context.Context, userID int64) error {
	referral, err := s.repo.FindReferralByReferee(ctx, s.db, userID)
	if err != nil {
		return err
	}
	if referral == nil {
		return nil
	}
	program, err := s.repo.FindProgram(ctx, s.db, referral.ProgramID)
	if err != nil {
		return err
	}
	if program == nil {
		return apperror.New(apperror.ErrNotFound, "Referral program not found for referral code %s", referral.ReferralCode)
	}

	var outbox []func(context.Context)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reward, err := s.grant(ctx, tx, referral.ReferrerID, program.ReferrerRewardType, program.ReferrerRewardValue,
			program.ReferrerNumberOfRewards, fmt.Sprintf(referrerRewardDescription, referral.ReferralCode, referral.RefereeID))
		if err != nil {
			return err
		}
		if reward != nil {
			event := domain.RewardEvent{RewardView: domain.NewRewardView(reward), ReferralCode: referral.ReferralCode, IsReferrer: true}
			outbox = append(outbox, func(ctx context.Context) {
				s.publisher.PublishReward(ctx, event.UserID, event)
			})
		}

		reward, err = s.grant(ctx, tx, referral.RefereeID, program.RefereeRewardType, program.RefereeRewardValue,
			program.RefereeNumberOfRewards, fmt.Sprintf(refereeRewardDescription, referral.ReferralCode))
		if err != nil {
			return err
		}
		if reward != nil {
			event := domain.RewardEvent{RewardView: domain.NewRewardView(reward), ReferralCode: referral.ReferralCode}
			notification := domain.NewRewardNotification(reward)
			outbox = append(outbox, func(ctx context.Context) {
				s.publisher.PublishNotification(ctx, event.UserID, notification)
				s.publisher.PublishReward(ctx, event.UserID, event)
			})
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, publish := range outbox {
		publish(ctx)
	}
	return nil
}

// grant adds a reward unless the user already holds limit of them. It
// returns nil when nothing was granted.
func (s *Service) grant(ctx context.Context, tx *gorm.DB, userID int64, rewardType domain.RewardType, value string, limit int, description string) (*domain.RewardsBalance, error) {
	held, err := s.repo.CountRewards(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if held >= int64(limit) {
		s.log.Info("reward limit reached", zap.Int64("user_id", userID), zap.Int64("held", held), zap.Int("limit", limit))
		return nil, nil
	}

	now := s.clock.Now()
	reward := &domain.RewardsBalance{
		ID:          s.genID.Generate(),
		UserID:      userID,
		RewardType:  rewardType,
		Value:       value,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertReward(ctx, tx, reward); err != nil {
		return nil, err
	}
	s.log.Info("reward granted",
		zap.Int64("user_id", userID),
		zap.String("reward_type", string(rewardType)),
		zap.String("value", value),
	)
	return reward, nil
}
