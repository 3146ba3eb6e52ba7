package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the order lifecycle state. Payment state lives on the
// payment intent; this tracks fulfillment only.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Order represents a customer order.
type Order struct {
	ID                 uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	UserID             uuid.UUID       `json:"user_id" gorm:"type:uuid;not null;index"`
	Status             Status          `json:"status" gorm:"not null;default:pending"`
	Total              decimal.Decimal `json:"total" gorm:"type:numeric(20,2);not null"`
	Currency           string          `json:"currency" gorm:"not null;default:gbp"`
	CustomerEmail      string          `json:"customer_email"`
	InventoryCommitted bool            `json:"-" gorm:"not null;default:false"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName returns the database table name.
func (Order) TableName() string {
	return "orders"
}
