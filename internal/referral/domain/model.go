package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type RewardType string

const (
	RewardCash     RewardType = "CASH"
	RewardGift     RewardType = "GIFT"
	RewardDiscount RewardType = "DISCOUNT"
)

// MaxCodeLength bounds a referral code as entered by the referee.
const MaxCodeLength = 20

// Program is looked up by its code. A program that belongs to one person
// carries ReferrerUserID; shared programs are referenced by a code made of
// the program code followed by the referrer's user id, e.g. "FRIEND1234".
type Program struct {
	ID                      snowflake.ID `json:"id" gorm:"primaryKey"`
	ReferralCode            string       `json:"referral_code" gorm:"type:varchar(20);not null;uniqueIndex"`
	ReferrerUserID          *int64       `json:"referrer_user_id"`
	Description             string       `json:"description" gorm:"type:text"`
	RefereeRewardType       RewardType   `json:"referee_reward_type" gorm:"type:varchar(16);not null"`
	RefereeRewardValue      string       `json:"referee_reward_value" gorm:"type:varchar(64);not null"`
	ReferrerRewardType      RewardType   `json:"referrer_reward_type" gorm:"type:varchar(16);not null"`
	ReferrerRewardValue     string       `json:"referrer_reward_value" gorm:"type:varchar(64);not null"`
	ReferrerNumberOfRewards int          `json:"referrer_number_of_rewards" gorm:"not null;default:0"`
	RefereeNumberOfRewards  int          `json:"referee_number_of_rewards" gorm:"not null;default:0"`
	CreatedAt               time.Time    `json:"created_at"`
	UpdatedAt               time.Time    `json:"updated_at"`
}

func (Program) TableName() string { return "referral_programs" }

// Referral links a referee to the referrer whose code they applied. A user
// is a referee at most once.
type Referral struct {
	ID           snowflake.ID `json:"id" gorm:"primaryKey"`
	RefereeID    int64        `json:"referee_id" gorm:"not null;uniqueIndex"`
	ReferrerID   int64        `json:"referrer_id" gorm:"not null;index"`
	ProgramID    snowflake.ID `json:"referral_program_id" gorm:"column:referral_program_id;not null"`
	ReferralCode string       `json:"referral_code" gorm:"type:varchar(20);not null"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (Referral) TableName() string { return "referrals" }

type RewardsBalance struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID      int64        `json:"user_id" gorm:"not null;index"`
	RewardType  RewardType   `json:"reward_type" gorm:"type:varchar(16);not null"`
	Value       string       `json:"value" gorm:"type:varchar(64);not null"`
	Description string       `json:"description" gorm:"type:text"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (RewardsBalance) TableName() string { return "rewards_balances" }

// ReferralView is published on the referral topic and returned to the
// caller applying a code.
type ReferralView struct {
	ID                string    `json:"id"`
	RefereeID         int64     `json:"refereeId"`
	ReferrerID        int64     `json:"referrerId"`
	ReferralProgramID string    `json:"referralProgramId"`
	ReferralCode      string    `json:"referralCode"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func NewReferralView(r *Referral) ReferralView {
	return ReferralView{
		ID:                r.ID.String(),
		RefereeID:         r.RefereeID,
		ReferrerID:        r.ReferrerID,
		ReferralProgramID: r.ProgramID.String(),
		ReferralCode:      r.ReferralCode,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

type RewardView struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"userId"`
	RewardType  RewardType `json:"rewardType"`
	Value       string     `json:"value"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

func NewRewardView(b *RewardsBalance) RewardView {
	return RewardView{
		ID:          b.ID.String(),
		UserID:      b.UserID,
		RewardType:  b.RewardType,
		Value:       b.Value,
		Description: b.Description,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// RewardEvent is the reporting shape of a granted reward.
type RewardEvent struct {
	RewardView
	ReferralCode string `json:"referralCode"`
	IsReferrer   bool   `json:"isReferrer"`
}

// SplitCode cuts a code at every letter/digit boundary. "FRIEND1234" gives
// ["FRIEND", "1234"]; "A1B2" gives four parts.
func SplitCode(code string) []string {
	var parts []string
	start := 0
	runes := []rune(code)
	for i := 1; i < len(runes); i++ {
		if isDigit(runes[i]) != isDigit(runes[i-1]) {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes[start:]))
	}
	return parts
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func NormalizeCode(code string) string {
	return strings.TrimSpace(code)
}
