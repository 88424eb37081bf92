package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction Model
type Transaction struct {
	ID              string            `json:"id" gorm:"primaryKey;size:100"`                // KOLIA_{order}_{nanos} or MOCK_{order}_{nanos}
	OrderID         uint              `json:"order_id" gorm:"index;not null"`               // Foreign key to Order
	UserID          uint              `json:"user_id" gorm:"index;not null"`                // Paying buyer
	Amount          decimal.Decimal   `json:"amount" gorm:"type:decimal(12,2);not null"`    // Must equal the order total
	Currency        string            `json:"currency" gorm:"size:10;not null;default:CDF"` // ISO currency
	Status          TransactionStatus `json:"status" gorm:"size:20;index;not null;default:pending;check:status IN ('pending','completed','failed','refunded')"`
	PaymentMethod   string            `json:"payment_method" gorm:"size:20;not null"`      // cinetpay or mock
	GatewayToken    string            `json:"gateway_token,omitempty" gorm:"size:255"`     // Token returned by the gateway
	GatewayResponse string            `json:"gateway_response,omitempty" gorm:"type:text"` // Last raw gateway payload
	RefundReason    string            `json:"refund_reason,omitempty" gorm:"type:text"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	RefundedAt      *time.Time        `json:"refunded_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// IsMock reports whether the transaction was created without a gateway
func (t *Transaction) IsMock() bool {
	return t.PaymentMethod == TxMethodMock
}
