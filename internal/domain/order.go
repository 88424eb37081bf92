package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order Model
type Order struct {
	ID              uint                 `json:"id" gorm:"primaryKey"`
	UserID          uint                 `json:"user_id" gorm:"index;not null"` // Buyer
	RestaurantID    uint                 `json:"restaurant_id" gorm:"index;not null"`
	Restaurant      *Restaurant          `json:"restaurant,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	DriverID        *uint                `json:"driver_id" gorm:"index"` // Assigned livreur, nil until assigned
	Status          OrderStatus          `json:"status" gorm:"size:30;index;not null;default:pending;check:status IN ('pending','confirmed','preparing','ready_for_delivery','out_for_delivery','delivered','cancelled')"`
	Subtotal        decimal.Decimal      `json:"subtotal" gorm:"type:decimal(12,2);not null"`
	DeliveryFee     decimal.Decimal      `json:"delivery_fee" gorm:"type:decimal(12,2);not null"`
	Total           decimal.Decimal      `json:"total" gorm:"type:decimal(12,2);not null"`
	Commission      decimal.Decimal      `json:"commission" gorm:"type:decimal(12,2);not null"`
	DeliveryAddress string               `json:"delivery_address" gorm:"type:text;not null"`
	Phone           string               `json:"phone" gorm:"size:20;not null"`
	PaymentMethod   PaymentMethod        `json:"payment_method" gorm:"size:20;not null;check:payment_method IN ('card','mobile','cash')"`
	PaymentStatus   PaymentStatus        `json:"payment_status" gorm:"size:20;index;not null;default:pending;check:payment_status IN ('pending','paid','failed','refunded')"`
	Notes           string               `json:"notes" gorm:"type:text"`
	Version         int                  `json:"version" gorm:"not null;default:1"` // Bumped on every status write
	Items           []OrderItem          `json:"items,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	History         []OrderStatusHistory `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Transactions    []Transaction        `json:"-" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// OrderItem is a dish line captured at order time
type OrderItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   uint            `json:"order_id" gorm:"index;not null"`
	DishID    uint            `json:"dish_id" gorm:"index;not null"`
	DishName  string          `json:"dish_name" gorm:"size:100;not null"`
	Quantity  int             `json:"quantity" gorm:"not null;check:quantity >= 1"`
	UnitPrice decimal.Decimal `json:"unit_price" gorm:"type:decimal(12,2);not null;check:unit_price >= 0"` // Snapshot of the dish price
	LineTotal decimal.Decimal `json:"line_total" gorm:"type:decimal(12,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
}

// OrderStatusHistory records every status an order went through
type OrderStatusHistory struct {
	ID         uint        `json:"id" gorm:"primaryKey"`
	OrderID    uint        `json:"order_id" gorm:"index;not null"`
	FromStatus OrderStatus `json:"from_status" gorm:"size:30"` // Empty for the creation row
	Status     OrderStatus `json:"status" gorm:"size:30;not null;check:status IN ('pending','confirmed','preparing','ready_for_delivery','out_for_delivery','delivered','cancelled')"`
	ChangedBy  *uint       `json:"changed_by"` // nil for system transitions such as payment settlement
	Note       string      `json:"note" gorm:"size:255"`
	CreatedAt  time.Time   `json:"created_at"`
}

// IsTerminal reports whether the order can no longer change status
func (o *Order) IsTerminal() bool {
	return o.Status == StatusDelivered || o.Status == StatusCancelled
}
