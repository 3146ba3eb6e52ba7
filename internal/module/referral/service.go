package referral

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Service issues referral rewards.
type Service struct {
	repo         Repository
	rewardAmount decimal.Decimal
	currency     string
	logger       *zap.Logger
}

// NewService creates a new referral service.
func NewService(repo Repository, rewardAmount decimal.Decimal, currency string, logger *zap.Logger) *Service {
	return &Service{
		repo:         repo,
		rewardAmount: rewardAmount,
		currency:     currency,
		logger:       logger,
	}
}

// QualifyFirstOrder issues a reward to the user's referrer when their
// first order completes. Users without a referrer and users already
// rewarded are no-ops. Returns whether a reward was issued.
func (s *Service) QualifyFirstOrder(ctx context.Context, userID, orderID uuid.UUID) (bool, error) {
	ref, err := s.repo.GetReferral(ctx, userID)
	if errors.Is(err, ErrReferralNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	exists, err := s.repo.RewardExists(ctx, userID)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Info("referral already rewarded",
			zap.String("referee_id", userID.String()),
		)
		return false, nil
	}

	reward := &Reward{
		ID:         uuid.New(),
		ReferrerID: ref.ReferrerID,
		RefereeID:  userID,
		OrderID:    orderID,
		Amount:     s.rewardAmount,
		Currency:   s.currency,
	}
	if err := s.repo.CreateReward(ctx, reward); err != nil {
		return false, err
	}

	s.logger.Info("referral reward issued",
		zap.String("referrer_id", ref.ReferrerID.String()),
		zap.String("referee_id", userID.String()),
		zap.String("order_id", orderID.String()),
		zap.String("amount", s.rewardAmount.String()),
	)
	return true, nil
}
