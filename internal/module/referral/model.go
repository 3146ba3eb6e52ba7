package referral

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reward is a referral reward issued when a referred user's first order
// completes. The unique index on referee id enforces at most one reward
// per referred user regardless of delivery replays.
type Reward struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	ReferrerID uuid.UUID       `json:"referrer_id" gorm:"type:uuid;not null;index"`
	RefereeID  uuid.UUID       `json:"referee_id" gorm:"type:uuid;not null;uniqueIndex"`
	OrderID    uuid.UUID       `json:"order_id" gorm:"type:uuid;not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(20,2);not null"`
	Currency   string          `json:"currency" gorm:"not null"`
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName returns the database table name.
func (Reward) TableName() string {
	return "referral_rewards"
}

// Referral links a referred user to their referrer.
type Referral struct {
	RefereeID  uuid.UUID `json:"referee_id" gorm:"type:uuid;primaryKey"`
	ReferrerID uuid.UUID `json:"referrer_id" gorm:"type:uuid;not null;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (Referral) TableName() string {
	return "referrals"
}
