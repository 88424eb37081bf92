package domain

// Role is the account type of a user
type Role string

const (
	RoleClient     Role = "client"
	RoleRestaurant Role = "restaurant"
	RoleLivreur    Role = "livreur"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleRestaurant, RoleLivreur, RoleAdmin:
		return true
	}
	return false
}

// Commune is one of the delivery districts served
type Commune string

const (
	CommuneKadutu Commune = "Kadutu"
	CommuneIbanda Commune = "Ibanda"
	CommuneBagira Commune = "Bagira"
)

// Valid reports whether c is a served district
func (c Commune) Valid() bool {
	switch c {
	case CommuneKadutu, CommuneIbanda, CommuneBagira:
		return true
	}
	return false
}

// RestaurantStatus controls whether a restaurant is listed
type RestaurantStatus string

const (
	RestaurantActive    RestaurantStatus = "active"
	RestaurantInactive  RestaurantStatus = "inactive"
	RestaurantSuspended RestaurantStatus = "suspended"
)

// Valid reports whether s is a known restaurant status
func (s RestaurantStatus) Valid() bool {
	switch s {
	case RestaurantActive, RestaurantInactive, RestaurantSuspended:
		return true
	}
	return false
}

// OrderStatus is the fulfilment state of an order
type OrderStatus string

const (
	StatusPending          OrderStatus = "pending"
	StatusConfirmed        OrderStatus = "confirmed"
	StatusPreparing        OrderStatus = "preparing"
	StatusReadyForDelivery OrderStatus = "ready_for_delivery"
	StatusOutForDelivery   OrderStatus = "out_for_delivery"
	StatusDelivered        OrderStatus = "delivered"
	StatusCancelled        OrderStatus = "cancelled"
)

// OrderStatuses lists every order status in lifecycle order
var OrderStatuses = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReadyForDelivery,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is one of the seven order statuses
func (s OrderStatus) Valid() bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment state carried on an order
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// PaymentMethod is how the buyer intends to pay
type PaymentMethod string

const (
	MethodCard   PaymentMethod = "card"
	MethodMobile PaymentMethod = "mobile"
	MethodCash   PaymentMethod = "cash"
)

// Valid reports whether m is an accepted payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodMobile, MethodCash:
		return true
	}
	return false
}

// TransactionStatus is the state of a single payment attempt
type TransactionStatus string

const (
	TxPending   TransactionStatus = "pending"
	TxCompleted TransactionStatus = "completed"
	TxFailed    TransactionStatus = "failed"
	TxRefunded  TransactionStatus = "refunded"
)

// Transaction methods recorded on payment attempts
const (
	TxMethodCinetPay = "cinetpay"
	TxMethodMock     = "mock"
)
