package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/shopeasy/pkg/config"
	"github.com/example/shopeasy/pkg/models"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/repository"
	"github.com/example/shopeasy/pkg/validation"
	"github.com/example/shopeasy/pkg/widget"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var fixedNow = time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC)

var widgetConfig = config.WidgetConfig{ClientID: "test", Currency: "USD", Description: "ShopEasy Purchase"}

type fixture struct {
	ctx       context.Context
	store     *repository.MemoryStore
	cart      *repository.CartStore
	orders    *repository.KVOrderList
	book      *repository.OrderBook
	users     *repository.UserSession
	validator *validation.Validator
	committer *Committer
	payments  *PaymentHandler
	steps     *StepController
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	f := &fixture{
		ctx:       context.Background(),
		store:     store,
		cart:      repository.NewCartStore(store),
		orders:    repository.NewKVOrderList(store),
		users:     repository.NewUserSession(store, func() time.Time { return fixedNow }),
		validator: validation.New(func() time.Time { return fixedNow }),
	}
	f.book = repository.NewOrderBook(f.orders, nil, zaptest.NewLogger(t))
	f.committer = NewCommitter(f.book, f.cart, f.users, nil, zaptest.NewLogger(t), func() time.Time { return fixedNow })
	f.payments = NewPaymentHandler(f.committer, f.cart, pricing.DefaultPolicy, f.validator, zaptest.NewLogger(t))
	f.steps = NewStepController(f.validator)
	return f
}

func lineItem(id, price string, qty int) models.LineItem {
	return models.LineItem{ProductID: id, Title: "product " + id, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func (f *fixture) fill(t *testing.T, items ...models.LineItem) {
	t.Helper()
	for _, item := range items {
		_, err := f.cart.Add(f.ctx, item)
		require.NoError(t, err)
	}
}

// session returns a session built from the current cart.
func (f *fixture) session(t *testing.T) *Session {
	t.Helper()
	items, err := f.cart.Items(f.ctx)
	require.NoError(t, err)
	return NewSession("s-1", items, pricing.DefaultPolicy, fixedNow)
}

// atReview walks s through both forms with the given payment method.
func (f *fixture) atReview(t *testing.T, s *Session, method string) {
	t.Helper()
	require.NoError(t, f.steps.Advance(s, StepPayment, validShipping()))
	payment := map[string]string{validation.FieldPaymentMethod: method}
	if method == validation.MethodCredit {
		payment = validCard()
	}
	require.NoError(t, f.steps.Advance(s, StepReview, payment))
}

func (f *fixture) orderList(t *testing.T) []models.Order {
	t.Helper()
	orders, err := f.orders.ReadAll(f.ctx)
	require.NoError(t, err)
	return orders
}

func (f *fixture) cartItems(t *testing.T) []models.LineItem {
	t.Helper()
	items, err := f.cart.Items(f.ctx)
	require.NoError(t, err)
	return items
}

func validShipping() map[string]string {
	return map[string]string{
		"firstName": "Ann",
		"lastName":  "Lee",
		"email":     "ann@example.com",
		"phone":     "555-123-4567",
		"address":   "1 Main St",
		"city":      "Springfield",
		"state":     "IL",
		"zipCode":   "62701",
	}
}

func validCard() map[string]string {
	return map[string]string{
		validation.FieldPaymentMethod: validation.MethodCredit,
		"cardNumber":                  "4111 1111 1111 1111",
		"expiryDate":                  "12/28",
		"cvv":                         "123",
		"cardName":                    "Ann Lee",
	}
}

// fakeWidget wraps a sandbox and lets a test break capture.
type fakeWidget struct {
	*widget.Sandbox
	captureErr    error
	emptyCaptures bool
}

func newFakeWidget() *fakeWidget {
	return &fakeWidget{Sandbox: widget.NewSandbox(widgetConfig)}
}

func (w *fakeWidget) Capture(ctx context.Context, id string) (widget.Capture, error) {
	if w.captureErr != nil {
		return widget.Capture{}, w.captureErr
	}
	c, err := w.Sandbox.Capture(ctx, id)
	if w.emptyCaptures {
		c.ID = ""
	}
	return c, err
}

// brokenCart fails to clear while err is set.
type brokenCart struct {
	*repository.CartStore
	err error
}

var errClearFailed = errors.New("disk full")

func (c *brokenCart) Clear(ctx context.Context) error {
	if c.err != nil {
		return c.err
	}
	return c.CartStore.Clear(ctx)
}
