// Package gateway talks to the CinetPay payment API.
package gateway

import "context"

// Status codes returned by CinetPay
const (
	CodeInitialized = "201"
	CodeAccepted    = "00"
)

// InitRequest is the payload of a payment initialization
type InitRequest struct {
	TransactionID   string `json:"transaction_id"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	Description     string `json:"description"`
	ReturnURL       string `json:"return_url"`
	NotifyURL       string `json:"notify_url"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone_number"`
	CustomerAddress string `json:"customer_address"`
	CustomerCity    string `json:"customer_city"`
	CustomerCountry string `json:"customer_country"`
	CustomerState   string `json:"customer_state"`
}

// InitResponse carries where to send the buyer
type InitResponse struct {
	PaymentURL   string
	PaymentToken string
}

// StatusResponse is the gateway's verdict on a transaction
type StatusResponse struct {
	Code     string // CodeAccepted on success
	Message  string
	Amount   string
	Currency string
	Raw      []byte // Full response body, kept for audit
}

// Accepted reports whether the gateway confirmed the payment
func (r *StatusResponse) Accepted() bool {
	return r.Code == CodeAccepted
}

// Gateway initializes and checks payments
type Gateway interface {
	Initialize(ctx context.Context, req InitRequest) (*InitResponse, error)
	CheckStatus(ctx context.Context, transactionID string) (*StatusResponse, error)
}
