package models

import (
	"time"
)

// CurrentUser is the shopper signed in on this storefront.
type CurrentUser struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	LoginTime time.Time `json:"loginTime"`
}

// Customer is the buyer recorded on an order.
type Customer struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}
