package checkout

import (
	"github.com/example/shopeasy/pkg/notify"
)

// Every message names the session it belongs to; the session actor drops
// messages addressed to another session.
type Message interface {
	Session() string
}

// Commands from the rendering layer.
type GetState struct{ SessionID string }

type Advance struct {
	SessionID string
	Step      Step
	Fields    map[string]string
}

type Retreat struct {
	SessionID string
	Step      Step
}

type SelectMethod struct {
	SessionID string
	Method    string
}

type PlaceOrder struct{ SessionID string }

// CreateWidgetOrder is posted by the widget before it shows its own UI.
type CreateWidgetOrder struct{ SessionID string }

// Leave ends the session because the shopper navigated away.
type Leave struct{ SessionID string }

// Widget events. They may arrive at any later time.
type Approved struct {
	SessionID string
	OrderID   string
	Shipping  map[string]string
}

type Cancelled struct{ SessionID string }

type Failed struct {
	SessionID string
	Reason    string
}

func (m *GetState) Session() string          { return m.SessionID }
func (m *Advance) Session() string           { return m.SessionID }
func (m *Retreat) Session() string           { return m.SessionID }
func (m *SelectMethod) Session() string      { return m.SessionID }
func (m *PlaceOrder) Session() string        { return m.SessionID }
func (m *CreateWidgetOrder) Session() string { return m.SessionID }
func (m *Leave) Session() string             { return m.SessionID }
func (m *Approved) Session() string          { return m.SessionID }
func (m *Cancelled) Session() string         { return m.SessionID }
func (m *Failed) Session() string            { return m.SessionID }

// Reply is the session actor's answer to every message.
type Reply struct {
	State         View
	Outcome       *Outcome
	Amount        string
	WidgetOrderID string
	Notifications []notify.Notification
	Err           error
}
