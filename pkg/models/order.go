package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// statusCycle is the order the admin console steps through.
var statusCycle = []OrderStatus{
	StatusPending,
	StatusConfirmed,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, st := range statusCycle {
		if s == st {
			return true
		}
	}
	return false
}

// Next returns the status after s in the admin cycle; cancelled wraps to pending.
// An unknown status advances to the first one.
func (s OrderStatus) Next() OrderStatus {
	for i, st := range statusCycle {
		if s == st {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return statusCycle[0]
}

func (s OrderStatus) String() string {
	return string(s)
}

const (
	PaymentCard   = "card"
	PaymentPayPal = "paypal"
)

// PaymentRecord is what an order keeps about how it was paid. Card details are
// never part of it.
type PaymentRecord struct {
	Method            string `json:"method"`
	ExternalReference string `json:"externalReference,omitempty"`
}

type Order struct {
	ID       string            `json:"id"`
	Date     time.Time         `json:"date"`
	Status   OrderStatus       `json:"status"`
	Items    []LineItem        `json:"items"`
	Shipping map[string]string `json:"shipping"`
	Payment  PaymentRecord     `json:"payment"`
	Totals   Totals            `json:"totals"`
	Customer Customer          `json:"customer"`
}

// OrderRow is the SQL representation of an Order. Nested values are kept as
// JSON text columns.
type OrderRow struct {
	ID            string          `gorm:"primaryKey;type:varchar(64)"`
	Position      int             `gorm:"not null;index"`
	Date          time.Time       `gorm:"not null"`
	Status        string          `gorm:"type:varchar(20);default:'pending';index"`
	Items         string          `gorm:"type:text"`
	Shipping      string          `gorm:"type:text"`
	PaymentMethod string          `gorm:"type:varchar(20)"`
	PaymentRef    string          `gorm:"type:varchar(64)"`
	Subtotal      decimal.Decimal `gorm:"type:decimal(10,2)"`
	ShippingCost  decimal.Decimal `gorm:"type:decimal(10,2)"`
	Tax           decimal.Decimal `gorm:"type:decimal(10,2)"`
	Total         decimal.Decimal `gorm:"type:decimal(10,2)"`
	CustomerEmail string          `gorm:"type:varchar(100);index"`
	CustomerName  string          `gorm:"type:varchar(100)"`
}

func (OrderRow) TableName() string {
	return "orders"
}

// ToRow flattens o for storage at the given list position.
func (o Order) ToRow(position int) (OrderRow, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return OrderRow{}, fmt.Errorf("failed to serialize items: %w", err)
	}
	shipping, err := json.Marshal(o.Shipping)
	if err != nil {
		return OrderRow{}, fmt.Errorf("failed to serialize shipping: %w", err)
	}

	return OrderRow{
		ID:            o.ID,
		Position:      position,
		Date:          o.Date,
		Status:        string(o.Status),
		Items:         string(items),
		Shipping:      string(shipping),
		PaymentMethod: o.Payment.Method,
		PaymentRef:    o.Payment.ExternalReference,
		Subtotal:      o.Totals.Subtotal,
		ShippingCost:  o.Totals.ShippingCost,
		Tax:           o.Totals.Tax,
		Total:         o.Totals.Total,
		CustomerEmail: o.Customer.Email,
		CustomerName:  o.Customer.Name,
	}, nil
}

// Order rebuilds the domain order from a row.
func (r OrderRow) Order() (Order, error) {
	var items []LineItem
	if err := json.Unmarshal([]byte(r.Items), &items); err != nil {
		return Order{}, fmt.Errorf("failed to parse items: %w", err)
	}
	var shipping map[string]string
	if r.Shipping != "" {
		if err := json.Unmarshal([]byte(r.Shipping), &shipping); err != nil {
			return Order{}, fmt.Errorf("failed to parse shipping: %w", err)
		}
	}

	return Order{
		ID:       r.ID,
		Date:     r.Date,
		Status:   OrderStatus(r.Status),
		Items:    items,
		Shipping: shipping,
		Payment: PaymentRecord{
			Method:            r.PaymentMethod,
			ExternalReference: r.PaymentRef,
		},
		Totals: Totals{
			Subtotal:     r.Subtotal,
			ShippingCost: r.ShippingCost,
			Tax:          r.Tax,
			Total:        r.Total,
		},
		Customer: Customer{Email: r.CustomerEmail, Name: r.CustomerName},
	}, nil
}
