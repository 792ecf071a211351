package order

import "github.com/jess-collection/shop-api/internal/cart"

// CreateOrderRequest is the checkout payload. Items carry the cart's
// unit-price snapshots; TotalAmount is what the client displayed and is
// verified against the recomputed total, never trusted.
// swagger:model CreateOrderRequest
type CreateOrderRequest struct {
	Items           []cart.Line `json:"items"`
	TotalAmount     string      `json:"totalAmount" example:"60.00"`
	ShippingAddress string      `json:"shippingAddress" example:"12 Rue de Rivoli, Paris"`
	PaymentMethod   string      `json:"paymentMethod" example:"bank_transfer"`
	PaymentIntentID string      `json:"paymentIntentId,omitempty" example:"pi_123"`
}

// CreateOrderResponse is returned on a committed checkout.
// swagger:model CreateOrderResponse
type CreateOrderResponse struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Success     bool   `json:"success"`
}

// UpdateStatusRequest advances an order one lifecycle step.
// swagger:model UpdateStatusRequest
type UpdateStatusRequest struct {
	Status         string `json:"status" example:"shipped"`
	TrackingNumber string `json:"trackingNumber,omitempty" example:"1Z999AA10123456784"`
}

// Detail bundles an order with its lines and transition history for the
// tracking and admin views.
// swagger:model OrderDetail
type Detail struct {
	Order   *Order         `json:"order"`
	Items   []Line         `json:"items"`
	History []StatusChange `json:"history"`
}
