package widget

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/example/shopeasy/pkg/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotLoaded       = errors.New("payment widget not loaded")
	ErrUnknownOrder    = errors.New("payment widget order not found")
	ErrAlreadyCaptured = errors.New("payment widget order already captured")
	ErrInvalidAmount   = errors.New("invalid charge amount")
)

// Style is how the payment buttons are drawn.
type Style struct {
	Layout string `json:"layout"`
	Color  string `json:"color"`
	Shape  string `json:"shape"`
	Label  string `json:"label"`
}

var DefaultStyle = Style{Layout: "horizontal", Color: "blue", Shape: "rect", Label: "paypal"}

// Capture is the widget's confirmation that the funds were taken.
type Capture struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Widget is the third-party payment button. A widget lives as long as one
// checkout page: it is loaded once and rendered at most once per container.
type Widget interface {
	// Load fetches the widget script. Loading twice is a no-op.
	Load(ctx context.Context) error
	Loaded() bool
	// Render draws the buttons into container. It reports false without
	// drawing when the container already has content.
	Render(container string, style Style) (bool, error)
	// CreateOrder registers a charge and returns the widget's order reference.
	CreateOrder(ctx context.Context, amount string) (string, error)
	// Capture takes the funds of an approved order.
	Capture(ctx context.Context, orderID string) (Capture, error)
}

// Factory returns a fresh widget for a new checkout page.
type Factory func() Widget

type sandboxOrder struct {
	amount   decimal.Decimal
	captured bool
}

// Sandbox simulates the hosted payment button locally: orders are held in
// memory and every capture of a known order succeeds.
type Sandbox struct {
	mu          sync.Mutex
	scriptURL   string
	loaded      bool
	loads       int
	containers  map[string]Style
	orders      map[string]*sandboxOrder
	currency    string
	description string
}

func NewSandbox(cfg config.WidgetConfig) *Sandbox {
	q := url.Values{}
	q.Set("client-id", cfg.ClientID)
	q.Set("currency", cfg.Currency)
	return &Sandbox{
		scriptURL:   "https://www.paypal.com/sdk/js?" + q.Encode(),
		containers:  make(map[string]Style),
		orders:      make(map[string]*sandboxOrder),
		currency:    cfg.Currency,
		description: cfg.Description,
	}
}

// SandboxFactory builds a Factory producing sandboxes with cfg.
func SandboxFactory(cfg config.WidgetConfig) Factory {
	return func() Widget { return NewSandbox(cfg) }
}

func (s *Sandbox) ScriptURL() string {
	return s.scriptURL
}

func (s *Sandbox) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	s.loaded = true
	s.loads++
	return nil
}

func (s *Sandbox) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Loads is how many times the script was actually fetched.
func (s *Sandbox) Loads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loads
}

func (s *Sandbox) Render(container string, style Style) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return false, ErrNotLoaded
	}
	if _, ok := s.containers[container]; ok {
		return false, nil
	}
	s.containers[container] = style
	return true, nil
}

// Rendered reports how many button sets are drawn.
func (s *Sandbox) Rendered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.containers)
}

func (s *Sandbox) CreateOrder(ctx context.Context, amount string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	value, err := decimal.NewFromString(amount)
	if err != nil || !value.IsPositive() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return "", ErrNotLoaded
	}
	id := orderID()
	s.orders[id] = &sandboxOrder{amount: value}
	return id, nil
}

func (s *Sandbox) Capture(ctx context.Context, id string) (Capture, error) {
	if err := ctx.Err(); err != nil {
		return Capture{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return Capture{}, ErrUnknownOrder
	}
	if o.captured {
		return Capture{}, ErrAlreadyCaptured
	}
	o.captured = true
	return Capture{ID: id, Status: "COMPLETED"}, nil
}

// Amount returns the charge registered for an order.
func (s *Sandbox) Amount(id string) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return decimal.Zero, false
	}
	return o.amount, true
}

// orderID mimics the 17 character upper-case references of the hosted widget.
func orderID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:17]
}
