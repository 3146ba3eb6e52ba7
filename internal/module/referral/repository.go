package referral

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrReferralNotFound is returned when the user was not referred.
var ErrReferralNotFound = errors.New("referral not found")

// Repository defines the interface for referral data access.
type Repository interface {
	GetReferral(ctx context.Context, refereeID uuid.UUID) (*Referral, error)
	CreateReward(ctx context.Context, reward *Reward) error
	RewardExists(ctx context.Context, refereeID uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new referral repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetReferral(ctx context.Context, refereeID uuid.UUID) (*Referral, error) {
	var ref Referral
	err := r.db.WithContext(ctx).First(&ref, "referee_id = ?", refereeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, fmt.Errorf("get referral: %w", err)
	}
	return &ref, nil
}

func (r *repository) CreateReward(ctx context.Context, reward *Reward) error {
	if err := r.db.WithContext(ctx).Create(reward).Error; err != nil {
		return fmt.Errorf("create referral reward: %w", err)
	}
	return nil
}

func (r *repository) RewardExists(ctx context.Context, refereeID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&Reward{}).
		Where("referee_id = ?", refereeID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check reward existence: %w", err)
	}
	return count > 0, nil
}
