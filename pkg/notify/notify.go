package notify

import (
	"fmt"
	"sync"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

type Severity string

const (
	Success Severity = "success"
	Info    Severity = "info"
	Error   Severity = "error"
)

// Notification is a transient message shown to the shopper.
type Notification struct {
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
	At       time.Time `json:"at"`
}

// Notifier delivers notifications. Delivery is fire-and-forget.
type Notifier interface {
	Notify(message string, severity Severity)
}

// Messages
type SendNotification struct {
	Notification Notification
}

type GetRecent struct{}

type Recent struct {
	Notifications []Notification
}

// NotificationActor logs every notification and keeps the latest ones for
// the storefront to display.
type NotificationActor struct {
	logger *zap.Logger
	limit  int
	recent []Notification
}

func (a *NotificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *SendNotification:
		n := msg.Notification
		fields := []zap.Field{
			zap.String("severity", string(n.Severity)),
			zap.String("message", n.Message),
		}
		if n.Severity == Error {
			a.logger.Warn("Notification", fields...)
		} else {
			a.logger.Info("Notification", fields...)
		}

		a.recent = append(a.recent, n)
		if len(a.recent) > a.limit {
			a.recent = a.recent[len(a.recent)-a.limit:]
		}

	case *GetRecent:
		out := make([]Notification, len(a.recent))
		copy(out, a.recent)
		ctx.Respond(&Recent{Notifications: out})

	case *actor.Started:
		a.logger.Info("Notification actor started")
	}
}

// ActorNotifier posts notifications to a NotificationActor.
type ActorNotifier struct {
	root *actor.RootContext
	pid  *actor.PID
	now  func() time.Time
}

// Spawn starts the notification actor, keeping up to limit notifications.
func Spawn(system *actor.ActorSystem, logger *zap.Logger, limit int) (*ActorNotifier, error) {
	if limit <= 0 {
		limit = 20
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return &NotificationActor{logger: logger.Named("notification-actor"), limit: limit}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}
	return &ActorNotifier{root: system.Root, pid: pid, now: time.Now}, nil
}

func (n *ActorNotifier) Notify(message string, severity Severity) {
	n.root.Send(n.pid, &SendNotification{Notification: Notification{
		Message:  message,
		Severity: severity,
		At:       n.now().UTC(),
	}})
}

// Recent returns the retained notifications, oldest first.
func (n *ActorNotifier) Recent(timeout time.Duration) ([]Notification, error) {
	res, err := n.root.RequestFuture(n.pid, &GetRecent{}, timeout).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	recent, ok := res.(*Recent)
	if !ok {
		return nil, fmt.Errorf("unexpected reply %T", res)
	}
	return recent.Notifications, nil
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *Recorder) Notify(message string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, Notification{Message: message, Severity: severity, At: time.Now().UTC()})
}

func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}
