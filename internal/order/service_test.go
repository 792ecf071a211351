package order

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jess-collection/shop-api/internal/cart"
	"github.com/jess-collection/shop-api/internal/payment"
	"github.com/jess-collection/shop-api/internal/product"
)

// ---------- fakes ----------

// memProducts honors the conditional-decrement contract under a mutex, the
// same guarantee the SQL guard gives against the real store.
type memProducts struct {
	mu    sync.Mutex
	items map[string]*product.Product
	// reportedStock, when set for an id, overrides the stock the read path
	// reports without touching the stored value. Lets a test reproduce the
	// window between precondition check and decrement.
	reportedStock map[string]int
}

func newMemProducts(ps ...*product.Product) *memProducts {
	m := &memProducts{items: map[string]*product.Product{}, reportedStock: map[string]int{}}
	for _, p := range ps {
		cp := *p
		m.items[p.ID] = &cp
	}
	return m
}

func (m *memProducts) GetByID(_ context.Context, id string) (*product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	if s, ok := m.reportedStock[id]; ok {
		cp.StockQuantity = s
	}
	return &cp, nil
}

func (m *memProducts) DecrementStock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return product.ErrNotFound
	}
	if p.StockQuantity < qty {
		return product.ErrInsufficientStock
	}
	p.StockQuantity -= qty
	return nil
}

func (m *memProducts) RestoreStock(_ context.Context, id string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.items[id]
	if !ok {
		return product.ErrNotFound
	}
	p.StockQuantity += qty
	return nil
}

func (m *memProducts) stock(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id].StockQuantity
}

func (m *memProducts) Create(context.Context, *product.Product) error { return nil }
func (m *memProducts) List(context.Context, product.Query) ([]product.Product, error) {
	return nil, nil
}
func (m *memProducts) Update(context.Context, *product.Product, bool) error { return nil }
func (m *memProducts) Delete(context.Context, string) (bool, error)         { return false, nil }

type memOrders struct {
	mu        sync.Mutex
	orders    map[string]*Order
	items     map[string][]Line
	hist      map[string][]StatusChange
	createErr error
}

func newMemOrders() *memOrders {
	return &memOrders{
		orders: map[string]*Order{},
		items:  map[string][]Line{},
		hist:   map[string][]StatusChange{},
	}
}

func (m *memOrders) Create(_ context.Context, o *Order, lines []Line) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	cp := *o
	m.orders[o.ID] = &cp
	m.items[o.ID] = append([]Line(nil), lines...)
	m.hist[o.ID] = []StatusChange{{OrderID: o.ID, Status: o.Status, Note: "order created", CreatedAt: time.Now()}}
	return nil
}

func (m *memOrders) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	delete(m.items, id)
	delete(m.hist, id)
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*Order, []Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil, ErrNotFound
	}
	cp := *o
	return &cp, append([]Line(nil), m.items[id]...), nil
}

func (m *memOrders) GetItems(_ context.Context, id string) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Line(nil), m.items[id]...), nil
}

func (m *memOrders) GetHistory(_ context.Context, id string) ([]StatusChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StatusChange(nil), m.hist[id]...), nil
}

func (m *memOrders) ListByUser(_ context.Context, userID string, _, _ int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memOrders) ListAll(context.Context, int, int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, from, to Status, tracking string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	if tracking != "" {
		o.TrackingNumber = tracking
	}
	o.UpdatedAt = time.Now()
	m.hist[id] = append(m.hist[id], StatusChange{OrderID: id, Status: to, Note: tracking, CreatedAt: time.Now()})
	return nil
}

func (m *memOrders) HasPurchased(context.Context, string, string) (bool, error) {
	return false, nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type fakeGateway struct {
	mu        sync.Mutex
	created   []int64
	cancelled []string
	createErr error
	cancelErr error
	seq       int
}

func (g *fakeGateway) CreateIntent(_ context.Context, amount int64, _, _ string, _ map[string]string) (*payment.Intent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.seq++
	g.created = append(g.created, amount)
	return &payment.Intent{ID: fmt.Sprintf("pi_fake_%d", g.seq), ClientSecret: "cs_fake"}, nil
}

func (g *fakeGateway) CancelIntent(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, id)
	return nil
}

// ---------- helpers ----------

func testProducts() (*product.Product, *product.Product) {
	a := &product.Product{ID: "prod-a", Name: "Dress", Category: product.CategoryClothing, Price: "25.00", StockQuantity: 5}
	b := &product.Product{ID: "prod-b", Name: "Bracelet", Category: product.CategoryJewelry, Price: "10.00", StockQuantity: 5}
	return a, b
}

func newTestService(repo Repository, prods product.Repository, gw Gateway) *Service {
	return NewService(repo, prods, gw, zap.NewNop(), "usd")
}

func twoLineCart() []cart.Line {
	return []cart.Line{
		{ProductID: "prod-a", Price: "25.00", Quantity: 2},
		{ProductID: "prod-b", Price: "10.00", Quantity: 1},
	}
}

// ---------- create ----------

func TestCreate_BankTransfer(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	gw := &fakeGateway{}
	svc := newTestService(repo, prods, gw)

	o, err := svc.Create(context.Background(), CreateInput{
		UserID:          "user-1",
		Lines:           twoLineCart(),
		TotalAmount:     "60.00",
		ShippingAddress: "12 Rue de Rivoli, Paris",
		PaymentMethod:   MethodBankTransfer,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, "60.00", o.Total)
	assert.Empty(t, o.PaymentIntentID)
	assert.Regexp(t, numberRe, o.OrderNumber)

	_, lines, err := repo.GetByID(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "25.00", lines[0].PriceAtPurchase)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "10.00", lines[1].PriceAtPurchase)

	assert.Equal(t, 3, prods.stock("prod-a"))
	assert.Equal(t, 4, prods.stock("prod-b"))
	assert.Empty(t, gw.created, "bank transfer must not touch the gateway")

	hist, err := repo.GetHistory(context.Background(), o.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, StatusPending, hist[0].Status)
}

func TestCreate_StripeWithClientIntent(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	gw := &fakeGateway{}
	svc := newTestService(repo, prods, gw)

	o, err := svc.Create(context.Background(), CreateInput{
		UserID:          "user-1",
		Lines:           twoLineCart(),
		PaymentMethod:   MethodStripe,
		PaymentIntentID: "pi_123",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, "pi_123", o.PaymentIntentID)
	assert.Empty(t, gw.created, "client already holds the intent")
}

func TestCreate_StripeRequestsIntent(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	gw := &fakeGateway{}
	svc := newTestService(repo, prods, gw)

	o, err := svc.Create(context.Background(), CreateInput{
		UserID:        "user-1",
		Lines:         twoLineCart(),
		PaymentMethod: MethodStripe,
	})
	require.NoError(t, err)

	assert.Equal(t, StatusProcessing, o.Status)
	assert.Equal(t, "pi_fake_1", o.PaymentIntentID)
	require.Len(t, gw.created, 1)
	assert.Equal(t, int64(6000), gw.created[0], "amount must be in minor units")
}

func TestCreate_GatewayFailureAbortsBeforePersistence(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	gw := &fakeGateway{createErr: payment.ErrDeclined}
	svc := newTestService(repo, prods, gw)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:        "user-1",
		Lines:         twoLineCart(),
		PaymentMethod: MethodStripe,
	})
	require.ErrorIs(t, err, payment.ErrDeclined)

	assert.Zero(t, repo.count(), "no partial order may exist")
	assert.Equal(t, 5, prods.stock("prod-a"))
	assert.Equal(t, 5, prods.stock("prod-b"))
}

func TestCreate_PersistFailureVoidsOwnIntent(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	repo.createErr = errors.New("store unavailable")
	gw := &fakeGateway{}
	svc := newTestService(repo, prods, gw)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:        "user-1",
		Lines:         twoLineCart(),
		PaymentMethod: MethodStripe,
	})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNeedsReconciliation)

	require.Len(t, gw.cancelled, 1)
	assert.Equal(t, "pi_fake_1", gw.cancelled[0])
}

func TestCreate_VoidFailureNeedsReconciliation(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	repo.createErr = errors.New("store unavailable")
	gw := &fakeGateway{cancelErr: errors.New("gateway down")}
	svc := newTestService(repo, prods, gw)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:        "user-1",
		Lines:         twoLineCart(),
		PaymentMethod: MethodStripe,
	})
	require.ErrorIs(t, err, ErrNeedsReconciliation)
}

func TestCreate_ValidationErrors(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	svc := newTestService(newMemOrders(), prods, &fakeGateway{})
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{UserID: "u", PaymentMethod: MethodBankTransfer})
	assert.ErrorIs(t, err, ErrEmptyCart)

	_, err = svc.Create(ctx, CreateInput{
		UserID: "u", PaymentMethod: MethodBankTransfer,
		Lines: []cart.Line{{ProductID: "prod-a", Price: "25.00", Quantity: 0}},
	})
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)

	_, err = svc.Create(ctx, CreateInput{
		UserID: "u", PaymentMethod: PaymentMethod("cheque"),
		Lines: twoLineCart(),
	})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateInput{
		UserID: "u", PaymentMethod: MethodBankTransfer,
		Lines: []cart.Line{{ProductID: "missing", Price: "5.00", Quantity: 1}},
	})
	assert.ErrorIs(t, err, product.ErrNotFound)

	_, err = svc.Create(ctx, CreateInput{
		UserID: "u", PaymentMethod: MethodBankTransfer,
		Lines: twoLineCart(), TotalAmount: "61.00",
	})
	assert.ErrorIs(t, err, ErrTotalMismatch)
}

func TestCreate_InsufficientStockPrecondition(t *testing.T) {
	a, _ := testProducts()
	a.StockQuantity = 1
	prods := newMemProducts(a)
	repo := newMemOrders()
	svc := newTestService(repo, prods, &fakeGateway{})

	_, err := svc.Create(context.Background(), CreateInput{
		UserID: "u", PaymentMethod: MethodBankTransfer,
		Lines: []cart.Line{{ProductID: "prod-a", Price: "25.00", Quantity: 2}},
	})
	require.ErrorIs(t, err, product.ErrInsufficientStock)
	assert.Zero(t, repo.count())
}

// The precondition passes on stale stock, the conditional decrement catches
// it, and the whole order is unwound: earlier lines restocked, aggregate
// deleted, authorization voided.
func TestCreate_MidSequenceStockFailureCompensates(t *testing.T) {
	a, b := testProducts()
	b.StockQuantity = 0
	prods := newMemProducts(a, b)
	prods.reportedStock["prod-b"] = 5 // reads lie, the store does not
	repo := newMemOrders()
	gw := &fakeGateway{}
	svc := newTestService(repo, prods, gw)

	_, err := svc.Create(context.Background(), CreateInput{
		UserID:        "user-1",
		Lines:         twoLineCart(),
		PaymentMethod: MethodStripe,
	})
	require.ErrorIs(t, err, product.ErrInsufficientStock)
	assert.Contains(t, err.Error(), "prod-b")

	assert.Zero(t, repo.count(), "partially created order must be discarded")
	assert.Equal(t, 5, prods.stock("prod-a"), "decremented line must be restocked")
	assert.Equal(t, 0, prods.stock("prod-b"))
	require.Len(t, gw.cancelled, 1)
}

func TestCreate_ConcurrentBuyersNeverOversell(t *testing.T) {
	const stock = 3
	const buyers = stock + 1

	a, _ := testProducts()
	a.StockQuantity = stock
	prods := newMemProducts(a)
	repo := newMemOrders()
	svc := newTestService(repo, prods, &fakeGateway{})

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), CreateInput{
				UserID: fmt.Sprintf("user-%d", i), PaymentMethod: MethodBankTransfer,
				Lines: []cart.Line{{ProductID: "prod-a", Price: "25.00", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			require.ErrorIs(t, err, product.ErrInsufficientStock)
		}
	}
	assert.LessOrEqual(t, ok, stock, "cannot sell more than stock")
	assert.Equal(t, ok, repo.count())
	assert.GreaterOrEqual(t, prods.stock("prod-a"), 0, "stock must never go negative")
}

func TestCreate_LastUnitRace(t *testing.T) {
	a, _ := testProducts()
	a.StockQuantity = 1
	prods := newMemProducts(a)
	repo := newMemOrders()
	svc := newTestService(repo, prods, &fakeGateway{})

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), CreateInput{
				UserID: fmt.Sprintf("user-%d", i), PaymentMethod: MethodBankTransfer,
				Lines: []cart.Line{{ProductID: "prod-a", Price: "25.00", Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, repo.count(), "exactly one order for the last unit")
	assert.Equal(t, 0, prods.stock("prod-a"))
	if errs[0] == nil {
		require.ErrorIs(t, errs[1], product.ErrInsufficientStock)
	} else {
		require.NoError(t, errs[1])
		require.ErrorIs(t, errs[0], product.ErrInsufficientStock)
	}
}

// ---------- lifecycle ----------

func seedOrder(t *testing.T, repo *memOrders, status Status, intentID string) *Order {
	t.Helper()
	o := &Order{
		ID: "ord-1", OrderNumber: NewNumber(), UserID: "user-1",
		Status: status, Total: "60.00", PaymentMethod: MethodStripe,
		PaymentIntentID: intentID, ShippingAddress: "somewhere",
	}
	require.NoError(t, repo.Create(context.Background(), o, []Line{
		{ID: "line-1", OrderID: o.ID, ProductID: "prod-a", Quantity: 2, PriceAtPurchase: "25.00"},
		{ID: "line-2", OrderID: o.ID, ProductID: "prod-b", Quantity: 1, PriceAtPurchase: "10.00"},
	}))
	return o
}

func TestAdvance_HappyPath(t *testing.T) {
	a, b := testProducts()
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	svc := newTestService(repo, prods, &fakeGateway{})
	seedOrder(t, repo, StatusPending, "")
	ctx := context.Background()

	o, err := svc.Advance(ctx, "ord-1", StatusProcessing, "")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, o.Status)

	o, err = svc.Advance(ctx, "ord-1", StatusShipped, "1Z999AA10123456784")
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, o.Status)
	assert.Equal(t, "1Z999AA10123456784", o.TrackingNumber)

	o, err = svc.Advance(ctx, "ord-1", StatusDelivered, "")
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, o.Status)

	hist, err := repo.GetHistory(ctx, "ord-1")
	require.NoError(t, err)
	assert.Len(t, hist, 4, "creation plus three transitions")
}

func TestAdvance_RejectsSkips(t *testing.T) {
	a, b := testProducts()
	repo := newMemOrders()
	svc := newTestService(repo, newMemProducts(a, b), &fakeGateway{})
	seedOrder(t, repo, StatusPending, "")

	_, err := svc.Advance(context.Background(), "ord-1", StatusDelivered, "")
	var te *TransitionError
	require.ErrorAs(t, err, &te)

	o, _, _ := repo.GetByID(context.Background(), "ord-1")
	assert.Equal(t, StatusPending, o.Status, "rejected transition must leave status unchanged")
}

func TestAdvance_TerminalStateRejectsAll(t *testing.T) {
	a, b := testProducts()
	repo := newMemOrders()
	svc := newTestService(repo, newMemProducts(a, b), &fakeGateway{})
	seedOrder(t, repo, StatusDelivered, "")

	for _, target := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusCancelled} {
		_, err := svc.Advance(context.Background(), "ord-1", target, "")
		assert.Error(t, err, "delivered -> %s", target)
	}
}

func TestAdvance_CancelRestocksAndVoidsIntent(t *testing.T) {
	a, b := testProducts()
	a.StockQuantity, b.StockQuantity = 3, 4 // as if the order already decremented
	prods := newMemProducts(a, b)
	repo := newMemOrders()
	gw := &fakeGateway{}
	svc := newTestService(repo, prods, gw)
	seedOrder(t, repo, StatusProcessing, "pi_123")

	o, err := svc.Advance(context.Background(), "ord-1", StatusCancelled, "")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)

	assert.Equal(t, 5, prods.stock("prod-a"))
	assert.Equal(t, 5, prods.stock("prod-b"))
	require.Len(t, gw.cancelled, 1)
	assert.Equal(t, "pi_123", gw.cancelled[0])
}

func TestAdvance_NotFound(t *testing.T) {
	svc := newTestService(newMemOrders(), newMemProducts(), &fakeGateway{})
	_, err := svc.Advance(context.Background(), "nope", StatusProcessing, "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGet_ReturnsDetail(t *testing.T) {
	a, b := testProducts()
	repo := newMemOrders()
	svc := newTestService(repo, newMemProducts(a, b), &fakeGateway{})
	seedOrder(t, repo, StatusPending, "")

	d, err := svc.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", d.Order.ID)
	assert.Len(t, d.Items, 2)
	require.Len(t, d.History, 1)
	assert.Equal(t, StatusPending, d.History[0].Status)
}
