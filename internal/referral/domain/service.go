package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/paylink/internal/payment/domain"
	"gorm.io/gorm"
)

// ConsultationCompleted is the consultation status that grants rewards.
const ConsultationCompleted = "COMPLETED"

type Repository interface {
	FindProgramByCode(ctx context.Context, db *gorm.DB, code string) (*Program, error)
	FindProgram(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Program, error)
	FindReferralByReferee(ctx context.Context, db *gorm.DB, refereeID int64) (*Referral, error)
	InsertReferral(ctx context.Context, db *gorm.DB, referral *Referral) error
	CountRewards(ctx context.Context, db *gorm.DB, userID int64) (int64, error)
	InsertReward(ctx context.Context, db *gorm.DB, reward *RewardsBalance) error
	ListRewards(ctx context.Context, db *gorm.DB, userID int64, page Page) ([]RewardsBalance, error)
}

// Page selects a window of a user's rewards, newest first.
type Page struct {
	Number int
	Size   int
}

const DefaultPageSize = 1

func (p Page) Normalize() Page {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	return p
}

func (p Page) Offset() int { return p.Number * p.Size }

type Service interface {
	Apply(ctx context.Context, userID int64, code string) (*ReferralView, error)
	RewardsBalance(ctx context.Context, userID int64, page Page) ([]RewardView, error)
	// ConsultationCompleted grants the rewards of the referral the user
	// joined with, if any.
	ConsultationCompleted(ctx context.Context, userID int64) error
}

type EventPublisher interface {
	PublishReferral(ctx context.Context, userID int64, referral ReferralView)
	PublishReward(ctx context.Context, userID int64, reward RewardEvent)
	PublishNotification(ctx context.Context, userID int64, req paymentdomain.NotificationRequest)
}

// NewRewardNotification tells the referee a reward was added to the
// balance.
func NewRewardNotification(b *RewardsBalance) paymentdomain.NotificationRequest {
	return paymentdomain.NotificationRequest{
		ReceiverID:    b.UserID,
		ReferenceType: "PAYMENT_REFERRAL_NOTIFICATION",
		Source:        "PAYMENT_SERVICE",
		Methods:       []string{"PUSH_NOTIFICATION"},
	}
}
