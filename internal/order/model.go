package order

import "time"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodStripe       PaymentMethod = "stripe"
	MethodPayPal       PaymentMethod = "paypal"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

func ValidPaymentMethod(m PaymentMethod) bool {
	switch m {
	case MethodStripe, MethodPayPal, MethodBankTransfer:
		return true
	}
	return false
}

// RequiresAuthorization reports whether the method needs an upfront payment
// intent before the order is persisted.
func (m PaymentMethod) RequiresAuthorization() bool {
	return m == MethodStripe
}

type Order struct {
	ID          string `json:"id"`
	OrderNumber string `json:"order_number"`
	UserID      string `json:"user_id"`
	Status      Status `json:"status"`
	// NUMERIC -> string
	Total           string        `json:"total"`
	PaymentMethod   PaymentMethod `json:"payment_method"`
	PaymentIntentID string        `json:"payment_intent_id,omitempty"`
	ShippingAddress string        `json:"shipping_address"`
	TrackingNumber  string        `json:"tracking_number,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Line is immutable once written; PriceAtPurchase keeps the unit price the
// buyer saw even if the catalog price changes later.
type Line struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id"`
	ProductID       string `json:"product_id"`
	Quantity        int    `json:"quantity"`
	PriceAtPurchase string `json:"price_at_purchase"`
	Size            string `json:"size,omitempty"`
}

// StatusChange is one row of an order's transition history.
type StatusChange struct {
	OrderID   string    `json:"order_id"`
	Status    Status    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
