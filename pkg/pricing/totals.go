package pricing

import (
	"fmt"

	"github.com/example/shopeasy/pkg/config"
	"github.com/example/shopeasy/pkg/models"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Places is the currency minor-unit precision.
const Places = 2

// Policy is the shipping and tax table applied to a cart.
type Policy struct {
	FreeShippingThreshold decimal.Decimal
	FlatShipping          decimal.Decimal
	TaxRate               decimal.Decimal
}

// DefaultPolicy ships free above 50.00, charges 5.99 otherwise and taxes 8%.
var DefaultPolicy = Policy{
	FreeShippingThreshold: decimal.RequireFromString("50.00"),
	FlatShipping:          decimal.RequireFromString("5.99"),
	TaxRate:               decimal.RequireFromString("0.08"),
}

// PolicyFromConfig parses the checkout section; empty values keep the defaults.
func PolicyFromConfig(cfg config.CheckoutConfig) (Policy, error) {
	p := DefaultPolicy
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"free_shipping_threshold", cfg.FreeShippingThreshold, &p.FreeShippingThreshold},
		{"flat_shipping", cfg.FlatShipping, &p.FlatShipping},
		{"tax_rate", cfg.TaxRate, &p.TaxRate},
	}
	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Policy{}, fmt.Errorf("failed to parse %s: %w", f.name, err)
		}
		if d.IsNegative() {
			return Policy{}, fmt.Errorf("%s must not be negative", f.name)
		}
		*f.dst = d
	}
	return p, nil
}

// Compute returns the totals for items. It has no side effects; an empty list
// yields all-zero totals.
func (p Policy) Compute(items []models.LineItem) models.Totals {
	if len(items) == 0 {
		return models.Totals{
			Subtotal:     decimal.Zero,
			ShippingCost: decimal.Zero,
			Tax:          decimal.Zero,
			Total:        decimal.Zero,
		}
	}

	subtotal := decimal.Zero
	for _, item := range items {
		subtotal = subtotal.Add(item.LineTotal())
	}
	subtotal = subtotal.Round(Places)

	shipping := p.FlatShipping
	if subtotal.GreaterThan(p.FreeShippingThreshold) {
		shipping = decimal.Zero
	}
	tax := subtotal.Mul(p.TaxRate).Round(Places)

	return models.Totals{
		Subtotal:     subtotal,
		ShippingCost: shipping,
		Tax:          tax,
		Total:        subtotal.Add(shipping).Add(tax),
	}
}

// ChargeAmount is the total as the payment widget expects it, e.g. "38.39".
func ChargeAmount(t models.Totals) string {
	return t.Total.StringFixed(Places)
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatCurrency renders an amount as US dollars, e.g. "$1,234.50".
func FormatCurrency(amount decimal.Decimal) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	whole := amount.Truncate(0)
	cents := amount.Sub(whole).Shift(Places).Round(0)
	if cents.IntPart() == 100 {
		whole = whole.Add(decimal.NewFromInt(1))
		cents = decimal.Zero
	}
	return fmt.Sprintf("%s$%s.%02d", sign, printer.Sprintf("%d", whole.IntPart()), cents.IntPart())
}
