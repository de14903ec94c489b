package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/widget"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map"
	"go.uber.org/zap"
)

// Deps are the collaborators shared by all checkout sessions.
type Deps struct {
	Cart      Cart
	Committer *Committer
	Validator FormValidator
	Widgets   widget.Factory
	Notifier  notify.Notifier
	Policy    pricing.Policy
	Logger    *zap.Logger
	// Timeout bounds every request to a session actor.
	Timeout time.Duration
}

// Manager owns the checkout session actors. At most one session is active:
// beginning checkout ends any earlier one, and events for a session that is
// no longer registered are discarded as stale.
type Manager struct {
	// beginMu serializes Begin so that ending old sessions and registering
	// the new one happen as one step.
	beginMu  sync.Mutex
	root     *actor.RootContext
	sessions cmap.ConcurrentMap
	cart     Cart
	steps    *StepController
	payments *PaymentHandler
	widgets  widget.Factory
	notifier notify.Notifier
	policy   pricing.Policy
	logger   *zap.Logger
	timeout  time.Duration
	newID    func() string
	now      func() time.Time
}

func NewManager(system *actor.ActorSystem, deps Deps) *Manager {
	if deps.Timeout <= 0 {
		deps.Timeout = 5 * time.Second
	}
	if deps.Notifier == nil {
		deps.Notifier = &notify.Recorder{}
	}
	return &Manager{
		root:     system.Root,
		sessions: cmap.New(),
		cart:     deps.Cart,
		steps:    NewStepController(deps.Validator),
		payments: NewPaymentHandler(deps.Committer, deps.Cart, deps.Policy, deps.Validator, deps.Logger),
		widgets:  deps.Widgets,
		notifier: deps.Notifier,
		policy:   deps.Policy,
		logger:   deps.Logger,
		timeout:  deps.Timeout,
		newID:    uuid.NewString,
		now:      deps.Committer.Now,
	}
}

// Begin snapshots the cart into a new session and returns its initial view.
// An empty cart yields ErrEmptyCart and no session.
func (m *Manager) Begin(ctx context.Context) (View, error) {
	m.beginMu.Lock()
	defer m.beginMu.Unlock()

	items, err := m.cart.Items(ctx)
	if err != nil {
		return View{}, fmt.Errorf("failed to read cart: %w", err)
	}
	if len(items) == 0 {
		return View{}, ErrEmptyCart
	}

	for _, id := range m.sessions.Keys() {
		m.end(id, "superseded")
	}

	session := NewSession(m.newID(), items, m.policy, m.now())
	logger := m.logger.Named("checkout-session").With(zap.String("session_id", session.ID))
	w := m.widgets()
	props := actor.PropsFromProducer(func() actor.Actor {
		return &SessionActor{
			session:  session,
			widget:   w,
			steps:    m.steps,
			payments: m.payments,
			notifier: m.notifier,
			logger:   logger,
			timeout:  m.timeout,
			onClose:  m.sessions.Remove,
		}
	})
	view := session.View()

	pid, err := m.root.SpawnNamed(props, "checkout-"+session.ID)
	if err != nil {
		return View{}, fmt.Errorf("failed to spawn checkout session: %w", err)
	}
	m.sessions.Set(session.ID, pid)
	return view, nil
}

// Active returns the id of the current session, or "" when there is none.
func (m *Manager) Active() string {
	keys := m.sessions.Keys()
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}

func (m *Manager) State(id string) (*Reply, error) {
	return m.request(&GetState{SessionID: id})
}

func (m *Manager) Advance(id string, step Step, fields map[string]string) (*Reply, error) {
	return m.request(&Advance{SessionID: id, Step: step, Fields: fields})
}

func (m *Manager) Retreat(id string, step Step) (*Reply, error) {
	return m.request(&Retreat{SessionID: id, Step: step})
}

func (m *Manager) SelectMethod(id, method string) (*Reply, error) {
	return m.request(&SelectMethod{SessionID: id, Method: method})
}

func (m *Manager) PlaceOrder(id string) (*Reply, error) {
	return m.request(&PlaceOrder{SessionID: id})
}

func (m *Manager) CreateWidgetOrder(id string) (*Reply, error) {
	return m.request(&CreateWidgetOrder{SessionID: id})
}

// Deliver routes a widget event to its session and waits for the result.
func (m *Manager) Deliver(event Message) (*Reply, error) {
	return m.request(event)
}

// Post routes a widget event without waiting for its outcome; notices it
// raises reach the shopper through the notifier. Events for a session that
// is not registered are dropped with ErrStaleSession.
func (m *Manager) Post(event Message) error {
	pid, ok := m.lookup(event.Session())
	if !ok {
		m.logger.Warn("Discarding event for unknown checkout session",
			zap.String("session_id", event.Session()),
			zap.String("event", fmt.Sprintf("%T", event)))
		return ErrStaleSession
	}
	m.root.Send(pid, event)
	return nil
}

// End closes the session because the shopper left checkout.
func (m *Manager) End(id string) error {
	if _, ok := m.lookup(id); !ok {
		return ErrSessionNotFound
	}
	m.end(id, "left")
	return nil
}

// Close ends every session.
func (m *Manager) Close() {
	for _, id := range m.sessions.Keys() {
		m.end(id, "shutdown")
	}
}

func (m *Manager) end(id, reason string) {
	pid, ok := m.lookup(id)
	if !ok {
		return
	}
	m.sessions.Remove(id)
	m.root.Send(pid, &Leave{SessionID: id})
	m.logger.Info("Checkout session ended", zap.String("session_id", id), zap.String("reason", reason))
}

func (m *Manager) lookup(id string) (*actor.PID, bool) {
	v, ok := m.sessions.Get(id)
	if !ok {
		return nil, false
	}
	return v.(*actor.PID), true
}

func (m *Manager) request(msg Message) (*Reply, error) {
	pid, ok := m.lookup(msg.Session())
	if !ok {
		if isWidgetEvent(msg) {
			m.logger.Warn("Discarding stale widget event",
				zap.String("session_id", msg.Session()),
				zap.String("event", fmt.Sprintf("%T", msg)))
			return nil, ErrStaleSession
		}
		return nil, ErrSessionNotFound
	}

	res, err := m.root.RequestFuture(pid, msg, m.timeout).Result()
	if err != nil {
		if errors.Is(err, actor.ErrDeadLetter) {
			if isWidgetEvent(msg) {
				return nil, ErrStaleSession
			}
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("checkout session did not respond: %w", err)
	}
	reply, ok := res.(*Reply)
	if !ok {
		return nil, fmt.Errorf("unexpected reply %T", res)
	}
	return reply, reply.Err
}

func isWidgetEvent(msg Message) bool {
	switch msg.(type) {
	case *Approved, *Cancelled, *Failed, *CreateWidgetOrder:
		return true
	}
	return false
}
