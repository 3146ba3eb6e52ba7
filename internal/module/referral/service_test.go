package referral

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeRepo struct {
	referral     *Referral
	referralErr  error
	rewardExists bool
	existsErr    error
	created      *Reward
	createErr    error
}

func (f *fakeRepo) GetReferral(_ context.Context, _ uuid.UUID) (*Referral, error) {
	if f.referralErr != nil {
		return nil, f.referralErr
	}
	return f.referral, nil
}

func (f *fakeRepo) CreateReward(_ context.Context, reward *Reward) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = reward
	return nil
}

func (f *fakeRepo) RewardExists(_ context.Context, _ uuid.UUID) (bool, error) {
	return f.rewardExists, f.existsErr
}

func TestQualifyFirstOrder(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	orderID := uuid.New()
	referrerID := uuid.New()
	amount := decimal.RequireFromString("5.00")

	t.Run("issues reward to referrer", func(t *testing.T) {
		repo := &fakeRepo{referral: &Referral{RefereeID: userID, ReferrerID: referrerID}}
		svc := NewService(repo, amount, "gbp", zap.NewNop())

		issued, err := svc.QualifyFirstOrder(ctx, userID, orderID)
		require.NoError(t, err)
		assert.True(t, issued)

		require.NotNil(t, repo.created)
		assert.Equal(t, referrerID, repo.created.ReferrerID)
		assert.Equal(t, userID, repo.created.RefereeID)
		assert.Equal(t, orderID, repo.created.OrderID)
		assert.True(t, repo.created.Amount.Equal(amount))
		assert.Equal(t, "gbp", repo.created.Currency)
	})

	t.Run("user without referrer is a no-op", func(t *testing.T) {
		repo := &fakeRepo{referralErr: ErrReferralNotFound}
		svc := NewService(repo, amount, "gbp", zap.NewNop())

		issued, err := svc.QualifyFirstOrder(ctx, userID, orderID)
		require.NoError(t, err)
		assert.False(t, issued)
		assert.Nil(t, repo.created)
	})

	t.Run("already rewarded is a no-op", func(t *testing.T) {
		repo := &fakeRepo{
			referral:     &Referral{RefereeID: userID, ReferrerID: referrerID},
			rewardExists: true,
		}
		svc := NewService(repo, amount, "gbp", zap.NewNop())

		issued, err := svc.QualifyFirstOrder(ctx, userID, orderID)
		require.NoError(t, err)
		assert.False(t, issued)
		assert.Nil(t, repo.created)
	})

	t.Run("lookup failure surfaces without issuing", func(t *testing.T) {
		repo := &fakeRepo{referralErr: errors.New("db timeout")}
		svc := NewService(repo, amount, "gbp", zap.NewNop())

		issued, err := svc.QualifyFirstOrder(ctx, userID, orderID)
		require.Error(t, err)
		assert.False(t, issued)
	})

	t.Run("create failure surfaces without issuing", func(t *testing.T) {
		repo := &fakeRepo{
			referral:  &Referral{RefereeID: userID, ReferrerID: referrerID},
			createErr: errors.New("insert failed"),
		}
		svc := NewService(repo, amount, "gbp", zap.NewNop())

		issued, err := svc.QualifyFirstOrder(ctx, userID, orderID)
		require.Error(t, err)
		assert.False(t, issued)
	})
}
