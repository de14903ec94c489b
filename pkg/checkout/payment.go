package checkout

import (
	"context"
	"fmt"

	"github.com/example/shopeasy/pkg/models"
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/validation"
	"github.com/example/shopeasy/pkg/widget"
	"go.uber.org/zap"
)

// WidgetContainer is where the payment buttons are drawn.
const WidgetContainer = "paypalButtons"

// PaymentHandler runs the two payment paths of step 3: the local card
// simulation and the asynchronous payment widget.
type PaymentHandler struct {
	committer *Committer
	cart      Cart
	policy    pricing.Policy
	validator FormValidator
	style     widget.Style
	logger    *zap.Logger
}

func NewPaymentHandler(committer *Committer, cart Cart, policy pricing.Policy, v FormValidator, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		committer: committer,
		cart:      cart,
		policy:    policy,
		validator: v,
		style:     widget.DefaultStyle,
		logger:    logger,
	}
}

// SelectMethod toggles between the card form and the widget. Choosing the
// widget loads and renders it; both are no-ops when already done.
func (h *PaymentHandler) SelectMethod(ctx context.Context, s *Session, w widget.Widget, method string) error {
	if s.Step < StepPayment {
		return ErrWrongStep
	}

	switch method {
	case validation.MethodCredit:
		s.Method = method
		s.WidgetVisible = false
		return nil

	case validation.MethodPayPal:
		if err := w.Load(ctx); err != nil {
			return fmt.Errorf("failed to load payment widget: %w", err)
		}
		if _, err := w.Render(WidgetContainer, h.style); err != nil {
			return fmt.Errorf("failed to render payment widget: %w", err)
		}
		s.Method = method
		s.WidgetVisible = true
		return nil

	default:
		return ErrNoPaymentMethod
	}
}

// PlaceOrder completes the card path. With the widget method selected it only
// points the shopper at the widget.
func (h *PaymentHandler) PlaceOrder(ctx context.Context, s *Session, w widget.Widget) (*Outcome, error) {
	if s.Step != StepReview {
		return nil, ErrWrongStep
	}

	switch s.Method {
	case validation.MethodPayPal:
		s.notify("Click the PayPal button to complete payment", notify.Info)
		if err := h.SelectMethod(ctx, s, w, validation.MethodPayPal); err != nil {
			return nil, err
		}
		return nil, nil

	case validation.MethodCredit:
		if err := h.checkCard(s); err != nil {
			return nil, err
		}
		if err := h.checkCart(ctx, s); err != nil {
			return nil, err
		}
		now := h.committer.Now()
		order, err := h.committer.Commit(ctx, s.Draft, models.PaymentRecord{Method: models.PaymentCard}, CardOrderID(now), now)
		if err != nil {
			s.notify("Could not place order", notify.Error)
			return nil, err
		}
		s.close()
		return &Outcome{Navigate: NavigateSuccess, Order: &order}, nil

	default:
		return nil, ErrNoPaymentMethod
	}
}

// CreateWidgetOrder is the widget's order-creation callback: it recomputes
// the totals and registers the charge. The amount is authoritative.
func (h *PaymentHandler) CreateWidgetOrder(ctx context.Context, s *Session, w widget.Widget) (string, string, error) {
	if s.Method != validation.MethodPayPal || !s.WidgetVisible {
		return "", "", ErrWrongStep
	}

	if s.Captured != nil {
		// funds already taken; the pending commit is retried through Approve
		return pricing.ChargeAmount(s.Draft.Totals), s.CapturedOrderID, nil
	}

	s.Draft.Totals = h.policy.Compute(s.Draft.Items)
	amount := pricing.ChargeAmount(s.Draft.Totals)

	id, err := w.CreateOrder(ctx, amount)
	if err != nil {
		return "", "", fmt.Errorf("failed to create widget order: %w", err)
	}
	s.WidgetOrderID = id
	return amount, id, nil
}

// Approve handles the widget's approval: capture, then commit. A failed
// capture changes nothing but the shipping snapshot.
func (h *PaymentHandler) Approve(ctx context.Context, s *Session, w widget.Widget, ev *Approved) (*Outcome, error) {
	if s.WidgetOrderID == "" || ev.OrderID != s.WidgetOrderID {
		return nil, ErrStaleSession
	}
	if err := h.checkCart(ctx, s); err != nil {
		return nil, err
	}

	if len(ev.Shipping) > 0 {
		if errs := h.validator.Shipping(ev.Shipping); len(errs) > 0 {
			return nil, &ValidationError{Step: StepShipping, Fields: errs}
		}
		s.Draft.Shipping = copyFields(ev.Shipping)
	}

	// A retried approval of an order whose funds were already taken only
	// retries the commit.
	capture := s.Captured
	if capture == nil || s.CapturedOrderID != ev.OrderID {
		c, err := w.Capture(ctx, ev.OrderID)
		if err != nil {
			h.logger.Warn("Payment capture failed",
				zap.String("session_id", s.ID),
				zap.String("widget_order_id", ev.OrderID),
				zap.Error(err))
			s.notify("Payment capture failed", notify.Error)
			return nil, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		capture, s.Captured, s.CapturedOrderID = &c, &c, ev.OrderID
	}

	now := h.committer.Now()
	payment := models.PaymentRecord{Method: models.PaymentPayPal, ExternalReference: capture.ID}
	order, err := h.committer.Commit(ctx, s.Draft, payment, WidgetOrderID(capture.ID, now), now)
	if err != nil {
		h.logger.Error("Order commit failed after payment capture",
			zap.String("session_id", s.ID),
			zap.String("widget_order_id", ev.OrderID),
			zap.String("capture_id", capture.ID),
			zap.Error(err))
		s.notify("Could not place order", notify.Error)
		return nil, err
	}
	s.close()
	return &Outcome{Navigate: NavigateSuccess, Order: &order}, nil
}

// Cancel ends the session without touching the cart.
func (h *PaymentHandler) Cancel(s *Session) *Outcome {
	s.close()
	return &Outcome{Navigate: NavigateCancel}
}

// Fail reports a widget-internal failure.
func (h *PaymentHandler) Fail(s *Session, reason string) {
	h.logger.Warn("Payment widget error", zap.String("session_id", s.ID), zap.String("reason", reason))
	s.notify("PayPal error", notify.Error)
}

// checkCard requires card details that passed the payment step. Switching to
// credit after that step was passed with another method leaves none.
func (h *PaymentHandler) checkCard(s *Session) error {
	fields := copyFields(s.Draft.Payment)
	validated := fields[validation.FieldPaymentMethod] == validation.MethodCredit
	fields[validation.FieldPaymentMethod] = validation.MethodCredit
	errs := h.validator.Payment(fields)
	if validated && len(errs) == 0 {
		return nil
	}
	if len(errs) == 0 {
		errs = validation.FieldErrors{validation.FieldPaymentMethod: "Please enter your card details"}
	}
	return &ValidationError{Step: StepPayment, Fields: errs}
}

// checkCart makes sure the cart still holds what the session was built from.
// A cart emptied or changed elsewhere makes the session stale.
func (h *PaymentHandler) checkCart(ctx context.Context, s *Session) error {
	items, err := h.cart.Items(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 || !models.SameItems(items, s.Draft.Items) {
		return ErrStaleSession
	}
	return nil
}
