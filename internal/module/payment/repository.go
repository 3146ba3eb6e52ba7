package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines the interface for payment data access.
type Repository interface {
	CreateIntent(ctx context.Context, intent *PaymentIntent) error
	GetIntent(ctx context.Context, id uuid.UUID) (*PaymentIntent, error)
	GetIntentByProviderReference(ctx context.Context, provider, reference string) (*PaymentIntent, error)
	UpdateIntent(ctx context.Context, intent *PaymentIntent) error
	ListIntentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*PaymentIntent, error)

	CreateWebhookEvent(ctx context.Context, event *WebhookEvent) error
	WebhookEventExists(ctx context.Context, provider, eventID string) (bool, error)
	MarkWebhookEventProcessed(ctx context.Context, provider, eventID string, procErr error) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository creates a new payment repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateIntent(ctx context.Context, intent *PaymentIntent) error {
	if err := r.db.WithContext(ctx).Create(intent).Error; err != nil {
		return fmt.Errorf("create payment intent: %w", err)
	}
	return nil
}

func (r *repository) GetIntent(ctx context.Context, id uuid.UUID) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := r.db.WithContext(ctx).First(&intent, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("get payment intent: %w", err)
	}
	return &intent, nil
}

func (r *repository) GetIntentByProviderReference(ctx context.Context, provider, reference string) (*PaymentIntent, error) {
	var intent PaymentIntent
	err := r.db.WithContext(ctx).
		First(&intent, "provider = ? AND provider_reference = ?", provider, reference).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("get payment intent by reference: %w", err)
	}
	return &intent, nil
}

func (r *repository) UpdateIntent(ctx context.Context, intent *PaymentIntent) error {
	if err := r.db.WithContext(ctx).Save(intent).Error; err != nil {
		return fmt.Errorf("update payment intent: %w", err)
	}
	return nil
}

func (r *repository) ListIntentsByOrder(ctx context.Context, orderID uuid.UUID) ([]*PaymentIntent, error) {
	var intents []*PaymentIntent
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		Find(&intents).Error
	if err != nil {
		return nil, fmt.Errorf("list payment intents: %w", err)
	}
	return intents, nil
}

func (r *repository) CreateWebhookEvent(ctx context.Context, event *WebhookEvent) error {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create webhook event: %w", err)
	}
	return nil
}

func (r *repository) WebhookEventExists(ctx context.Context, provider, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check webhook event: %w", err)
	}
	return count > 0, nil
}

func (r *repository) MarkWebhookEventProcessed(ctx context.Context, provider, eventID string, procErr error) error {
	now := time.Now()
	updates := map[string]any{
		"processed":    true,
		"processed_at": &now,
	}
	if procErr != nil {
		msg := procErr.Error()
		updates["error"] = &msg
	}
	err := r.db.WithContext(ctx).Model(&WebhookEvent{}).
		Where("provider = ? AND event_id = ?", provider, eventID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}
