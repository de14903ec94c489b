package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/widget"
	"go.uber.org/zap"
)

// SessionActor owns one checkout session. Commands and widget callbacks are
// handled one at a time from its mailbox, so the session state is never
// touched concurrently.
type SessionActor struct {
	session  *Session
	widget   widget.Widget
	steps    *StepController
	payments *PaymentHandler
	notifier notify.Notifier
	logger   *zap.Logger
	timeout  time.Duration
	onClose  func(id string)
}

func (a *SessionActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *actor.Started:
		a.logger.Info("Checkout session started",
			zap.Int("item_count", len(a.session.Draft.Items)),
			zap.String("total", a.session.Draft.Totals.Total.StringFixed(2)))

	case *actor.Stopped:
		a.logger.Info("Checkout session stopped")

	case Message:
		reply := a.handle(msg)
		reply.Notifications = a.session.drainNotices()
		for _, n := range reply.Notifications {
			a.notifier.Notify(n.Message, n.Severity)
		}
		reply.State = a.session.View()

		if a.session.Closed() {
			a.onClose(a.session.ID)
			ctx.Stop(ctx.Self())
		}
		if ctx.Sender() != nil {
			ctx.Respond(reply)
		}
	}
}

func (a *SessionActor) handle(msg Message) *Reply {
	if msg.Session() != a.session.ID || a.session.Closed() {
		a.logger.Warn("Discarding stale checkout event",
			zap.String("event_session_id", msg.Session()),
			zap.Bool("closed", a.session.Closed()))
		return &Reply{Err: ErrStaleSession}
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	s := a.session
	switch m := msg.(type) {
	case *GetState:
		return &Reply{}

	case *Advance:
		err := a.steps.Advance(s, m.Step, m.Fields)
		if err == nil {
			a.logger.Info("Checkout step advanced", zap.Int("step", int(s.Step)))
		}
		return &Reply{Err: err}

	case *Retreat:
		return &Reply{Err: a.steps.Retreat(s, m.Step)}

	case *SelectMethod:
		return &Reply{Err: a.payments.SelectMethod(ctx, s, a.widget, m.Method)}

	case *PlaceOrder:
		outcome, err := a.payments.PlaceOrder(ctx, s, a.widget)
		return &Reply{Outcome: outcome, Err: err}

	case *CreateWidgetOrder:
		amount, id, err := a.payments.CreateWidgetOrder(ctx, s, a.widget)
		return &Reply{Amount: amount, WidgetOrderID: id, Err: err}

	case *Approved:
		outcome, err := a.payments.Approve(ctx, s, a.widget, m)
		if errors.Is(err, ErrStaleSession) {
			a.logger.Warn("Discarding stale approval", zap.String("widget_order_id", m.OrderID))
		}
		return &Reply{Outcome: outcome, Err: err}

	case *Cancelled:
		a.logger.Info("Payment cancelled by shopper")
		return &Reply{Outcome: a.payments.Cancel(s)}

	case *Failed:
		a.payments.Fail(s, m.Reason)
		return &Reply{}

	case *Leave:
		s.close()
		return &Reply{}
	}
	return &Reply{Err: ErrUndefinedTransition}
}
