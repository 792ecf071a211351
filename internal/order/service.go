package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jess-collection/shop-api/internal/cart"
	"github.com/jess-collection/shop-api/internal/payment"
	"github.com/jess-collection/shop-api/internal/product"
)

var (
	ErrEmptyCart     = errors.New("order: cart is empty")
	ErrTotalMismatch = errors.New("order: client total does not match computed total")
	// ErrNeedsReconciliation marks the one state that cannot be cleaned up
	// automatically: an authorization exists at the gateway but voiding it
	// failed after the order could not be committed.
	ErrNeedsReconciliation = errors.New("order: payment authorization needs manual reconciliation")
)

// Gateway is the slice of the payment client the intake sequence consumes.
type Gateway interface {
	CreateIntent(ctx context.Context, amount int64, currency, description string, metadata map[string]string) (*payment.Intent, error)
	CancelIntent(ctx context.Context, id string) error
}

// Service runs the checkout commit sequence and the lifecycle transitions.
type Service struct {
	repo     Repository
	products product.Repository
	gateway  Gateway
	log      *zap.Logger
	currency string
	timeout  time.Duration
}

func NewService(repo Repository, products product.Repository, gw Gateway, log *zap.Logger, currency string) *Service {
	return &Service{
		repo:     repo,
		products: products,
		gateway:  gw,
		log:      log,
		currency: currency,
		timeout:  15 * time.Second,
	}
}

type CreateInput struct {
	UserID          string
	Lines           []cart.Line
	TotalAmount     string
	ShippingAddress string
	PaymentMethod   PaymentMethod
	PaymentIntentID string
}

// Create commits a checkout: validate, compute the authoritative total,
// acquire a payment authorization when the method needs one, persist the
// order aggregate, then decrement stock per line. Every step after the
// authorization has a compensating action so a failed checkout leaves no
// partial order and no dangling authorization behind.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	total, err := s.validate(ctx, in)
	if err != nil {
		return nil, err
	}

	intentID := in.PaymentIntentID
	ownIntent := false
	if intentID == "" && in.PaymentMethod.RequiresAuthorization() {
		amount := total.Mul(decimal.NewFromInt(100)).IntPart()
		intent, err := s.gateway.CreateIntent(ctx, amount, s.currency, "Order from Jess Collection", map[string]string{
			"user_id": in.UserID,
		})
		if err != nil {
			// Nothing persisted yet, nothing to undo.
			return nil, fmt.Errorf("order: authorize payment: %w", err)
		}
		intentID = intent.ID
		ownIntent = true
	}

	status := StatusPending
	if intentID != "" {
		status = StatusProcessing
	}

	now := time.Now().UTC()
	o := &Order{
		ID:              uuid.NewString(),
		OrderNumber:     NewNumber(),
		UserID:          in.UserID,
		Status:          status,
		Total:           total.StringFixed(2),
		PaymentMethod:   in.PaymentMethod,
		PaymentIntentID: intentID,
		ShippingAddress: in.ShippingAddress,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	lines := make([]Line, 0, len(in.Lines))
	for _, l := range in.Lines {
		lines = append(lines, Line{
			ID:              uuid.NewString(),
			OrderID:         o.ID,
			ProductID:       l.ProductID,
			Quantity:        l.Quantity,
			PriceAtPurchase: l.Price,
			Size:            l.Size,
		})
	}

	if err := s.repo.Create(ctx, o, lines); err != nil {
		return nil, s.compensateIntent(ctx, intentID, ownIntent, fmt.Errorf("order: persist: %w", err))
	}

	// Stock decrements run after the aggregate commit; each is conditional
	// at the store so concurrent buyers cannot drive stock negative.
	decremented := make([]Line, 0, len(lines))
	for _, l := range lines {
		if err := s.products.DecrementStock(ctx, l.ProductID, l.Quantity); err != nil {
			s.rollbackStock(ctx, decremented)
			if derr := s.repo.Delete(ctx, o.ID); derr != nil {
				s.log.Error("discard order after stock failure", zap.String("order_id", o.ID), zap.Error(derr))
			}
			return nil, s.compensateIntent(ctx, intentID, ownIntent,
				fmt.Errorf("order: product %s: %w", l.ProductID, err))
		}
		decremented = append(decremented, l)
	}

	s.log.Info("order created",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("status", string(o.Status)),
		zap.String("total", o.Total),
	)
	return o, nil
}

func (s *Service) validate(ctx context.Context, in CreateInput) (decimal.Decimal, error) {
	if len(in.Lines) == 0 {
		return decimal.Zero, ErrEmptyCart
	}
	if !ValidPaymentMethod(in.PaymentMethod) {
		return decimal.Zero, fmt.Errorf("order: unknown payment method %q", in.PaymentMethod)
	}

	total := decimal.Zero
	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return decimal.Zero, fmt.Errorf("order: product %s: %w", l.ProductID, cart.ErrInvalidQuantity)
		}
		price, err := decimal.NewFromString(l.Price)
		if err != nil {
			return decimal.Zero, fmt.Errorf("order: product %s: %w", l.ProductID, cart.ErrInvalidPrice)
		}
		p, err := s.products.GetByID(ctx, l.ProductID)
		if err != nil {
			return decimal.Zero, fmt.Errorf("order: product %s: %w", l.ProductID, err)
		}
		// Checked, not reserved: the conditional decrement is the real guard.
		if p.StockQuantity < l.Quantity {
			return decimal.Zero, fmt.Errorf("order: product %s: %w", l.ProductID, product.ErrInsufficientStock)
		}
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	if in.TotalAmount != "" {
		claimed, err := decimal.NewFromString(in.TotalAmount)
		if err != nil || !claimed.Equal(total) {
			return decimal.Zero, ErrTotalMismatch
		}
	}
	return total, nil
}

// compensateIntent voids an authorization after a downstream failure. The
// original failure is always kept; a failed void upgrades it to a
// reconciliation error. Runs detached from the request deadline so a timed
// out checkout can still clean up after itself.
func (s *Service) compensateIntent(ctx context.Context, intentID string, own bool, cause error) error {
	if intentID == "" || !own {
		return cause
	}
	vctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.gateway.CancelIntent(vctx, intentID); err != nil {
		s.log.Error("void payment intent failed",
			zap.String("payment_intent_id", intentID), zap.Error(err))
		return fmt.Errorf("%w: intent %s: %v", ErrNeedsReconciliation, intentID, cause)
	}
	return cause
}

func (s *Service) rollbackStock(ctx context.Context, lines []Line) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	for _, l := range lines {
		if err := s.products.RestoreStock(rctx, l.ProductID, l.Quantity); err != nil {
			s.log.Error("restock after failed checkout",
				zap.String("product_id", l.ProductID), zap.Int("qty", l.Quantity), zap.Error(err))
		}
	}
}

// Advance moves an order one lifecycle step. The transition table decides
// legality; the repository pins the expected current status so concurrent
// admin clicks cannot double-apply. Cancellation restocks every line and
// voids an associated authorization.
func (s *Service) Advance(ctx context.Context, orderID string, target Status, trackingNumber string) (*Order, error) {
	o, lines, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := CanTransition(o.Status, target); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateStatus(ctx, orderID, o.Status, target, trackingNumber); err != nil {
		return nil, err
	}

	if target == StatusCancelled {
		for _, l := range lines {
			if err := s.products.RestoreStock(ctx, l.ProductID, l.Quantity); err != nil {
				s.log.Error("restock on cancel",
					zap.String("order_id", orderID), zap.String("product_id", l.ProductID), zap.Error(err))
			}
		}
		if o.PaymentIntentID != "" {
			if err := s.gateway.CancelIntent(ctx, o.PaymentIntentID); err != nil {
				s.log.Warn("void intent on cancel",
					zap.String("order_id", orderID),
					zap.String("payment_intent_id", o.PaymentIntentID), zap.Error(err))
			}
		}
	}

	o.Status = target
	if trackingNumber != "" {
		o.TrackingNumber = trackingNumber
	}
	o.UpdatedAt = time.Now().UTC()
	s.log.Info("order status updated",
		zap.String("order_id", orderID), zap.String("status", string(target)))
	return o, nil
}

// Get returns the order with its lines and transition history.
func (s *Service) Get(ctx context.Context, orderID string) (*Detail, error) {
	o, lines, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	hist, err := s.repo.GetHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Detail{Order: o, Items: lines, History: hist}, nil
}
