package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when an order does not exist.
var ErrOrderNotFound = errors.New("order not found")

// Store is the gorm-backed order store. It implements both OrderStore
// and InventoryStore for the completion coordinator.
type Store struct {
	db *gorm.DB
}

// NewStore creates a new order store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create persists a new pending order.
func (s *Store) Create(ctx context.Context, order *Order) error {
	if err := s.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

// Get loads an order by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return &order, nil
}

// MarkCompleted transitions the order to completed. Already-completed
// orders are left untouched so a replayed confirmation is a no-op.
func (s *Store) MarkCompleted(ctx context.Context, orderID uuid.UUID) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ? AND status <> ?", orderID, StatusCompleted).
		Updates(map[string]any{
			"status":       StatusCompleted,
			"completed_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("mark order completed: %w", result.Error)
	}
	return nil
}

// CompletedOrderCount returns how many completed orders the user has.
func (s *Store) CompletedOrderCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Order{}).
		Where("user_id = ? AND status = ?", userID, StatusCompleted).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count completed orders: %w", err)
	}
	return count, nil
}

// CommitReservation marks the order's reserved inventory as committed.
func (s *Store) CommitReservation(ctx context.Context, orderID uuid.UUID) error {
	result := s.db.WithContext(ctx).Model(&Order{}).
		Where("id = ?", orderID).
		Update("inventory_committed", true)
	if result.Error != nil {
		return fmt.Errorf("commit inventory reservation: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Compile-time checks against the coordinator's collaborator interfaces.
var (
	_ OrderStore     = (*Store)(nil)
	_ InventoryStore = (*Store)(nil)
)
