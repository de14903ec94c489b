package checkout

import (
	"strings"
	"time"

	"github.com/example/shopeasy/pkg/models"
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/validation"
	"github.com/example/shopeasy/pkg/widget"
)

// Step is the active checkout step.
type Step int

const (
	StepShipping Step = 1
	StepPayment  Step = 2
	StepReview   Step = 3
)

// Navigation targets of the storefront.
type Navigation string

const (
	NavigateSuccess   Navigation = "success"
	NavigateCancel    Navigation = "cancel"
	NavigateEmptyCart Navigation = "empty-cart"
)

// OrderDraft is the order being assembled across the checkout steps.
type OrderDraft struct {
	Items    []models.LineItem
	Shipping map[string]string
	Payment  map[string]string
	Totals   models.Totals
}

// Session is the state of one checkout attempt. It is created when the
// shopper enters checkout and discarded on commit, cancellation or when the
// shopper leaves.
type Session struct {
	ID            string
	Draft         OrderDraft
	Step          Step
	Method        string
	WidgetVisible bool
	WidgetOrderID string
	CreatedAt     time.Time

	// Captured is set once the widget took the funds for CapturedOrderID.
	Captured        *widget.Capture
	CapturedOrderID string

	closed  bool
	notices []notify.Notification
}

// NewSession snapshots items and computes the initial totals.
func NewSession(id string, items []models.LineItem, policy pricing.Policy, now time.Time) *Session {
	snapshot := models.CloneItems(items)
	return &Session{
		ID: id,
		Draft: OrderDraft{
			Items:    snapshot,
			Shipping: map[string]string{},
			Payment:  map[string]string{},
			Totals:   policy.Compute(snapshot),
		},
		Step:      StepShipping,
		CreatedAt: now,
	}
}

func (s *Session) Closed() bool {
	return s.closed
}

func (s *Session) close() {
	s.closed = true
}

func (s *Session) notify(message string, severity notify.Severity) {
	s.notices = append(s.notices, notify.Notification{Message: message, Severity: severity, At: time.Now().UTC()})
}

// drainNotices returns and forgets the notifications raised since the last call.
func (s *Session) drainNotices() []notify.Notification {
	out := s.notices
	s.notices = nil
	return out
}

// Outcome is the navigation a finished payment path asks for.
type Outcome struct {
	Navigate Navigation    `json:"navigate"`
	Order    *models.Order `json:"order,omitempty"`
}

// View is the read model of a session handed to the rendering layer.
type View struct {
	SessionID       string            `json:"sessionId"`
	Step            Step              `json:"step"`
	Items           []models.LineItem `json:"items"`
	Shipping        map[string]string `json:"shipping"`
	Payment         map[string]string `json:"payment"`
	Totals          models.Totals     `json:"totals"`
	Method          string            `json:"paymentMethod,omitempty"`
	CardFormVisible bool              `json:"cardFormVisible"`
	WidgetVisible   bool              `json:"widgetVisible"`
	WidgetOrderID   string            `json:"widgetOrderId,omitempty"`
}

func (s *Session) View() View {
	return View{
		SessionID:       s.ID,
		Step:            s.Step,
		Items:           models.CloneItems(s.Draft.Items),
		Shipping:        copyFields(s.Draft.Shipping),
		Payment:         maskPayment(s.Draft.Payment),
		Totals:          s.Draft.Totals,
		Method:          s.Method,
		CardFormVisible: s.Method == validation.MethodCredit,
		WidgetVisible:   s.WidgetVisible,
		WidgetOrderID:   s.WidgetOrderID,
	}
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = strings.TrimSpace(v)
	}
	return out
}

// maskPayment hides the card number but its last four digits and drops the CVV.
func maskPayment(fields map[string]string) map[string]string {
	out := copyFields(fields)
	delete(out, "cvv")
	if n, ok := out["cardNumber"]; ok {
		digits := strings.ReplaceAll(n, " ", "")
		if len(digits) > 4 {
			digits = strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
		}
		out["cardNumber"] = digits
	}
	return out
}
