package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/shopeasy/pkg/models"
	"github.com/example/shopeasy/pkg/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Cart is the part of the cart store the checkout needs.
type Cart interface {
	Items(ctx context.Context) ([]models.LineItem, error)
	Clear(ctx context.Context) error
}

// Users resolves the signed-in shopper, nil when nobody is signed in.
type Users interface {
	Current(ctx context.Context) (*models.CurrentUser, error)
}

// Orders appends committed orders. The commit callback runs while the
// order list is held and its failure undoes the append.
type Orders interface {
	Append(ctx context.Context, order models.Order, commit func(context.Context) error) error
}

// Committer turns a finished draft into a persisted order.
type Committer struct {
	orders Orders
	cart   Cart
	users  Users
	audit  repository.Auditor
	logger *zap.Logger
	now    func() time.Time
}

func NewCommitter(orders Orders, cart Cart, users Users, audit repository.Auditor, logger *zap.Logger, now func() time.Time) *Committer {
	if audit == nil {
		audit = repository.NopAuditor{}
	}
	if now == nil {
		now = time.Now
	}
	return &Committer{orders: orders, cart: cart, users: users, audit: audit, logger: logger, now: now}
}

func (c *Committer) Now() time.Time {
	return c.now()
}

// CardOrderID is the id of an order paid on the card path.
func CardOrderID(now time.Time) string {
	return "ORD-" + strconv.FormatInt(now.UnixMilli(), 10)
}

// WidgetOrderID is the id of an order paid through the payment widget.
func WidgetOrderID(captureID string, now time.Time) string {
	if captureID == "" {
		captureID = strconv.FormatInt(now.UnixMilli(), 10)
	}
	return "PP-" + captureID
}

// Commit appends the order to the order list and empties the cart. When the
// cart cannot be cleared the order list is restored, so a failed commit
// leaves both untouched.
func (c *Committer) Commit(ctx context.Context, draft OrderDraft, payment models.PaymentRecord, id string, now time.Time) (models.Order, error) {
	customer, err := c.customer(ctx, draft)
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:       id,
		Date:     now.UTC(),
		Status:   models.StatusConfirmed,
		Items:    models.CloneItems(draft.Items),
		Shipping: copyFields(draft.Shipping),
		Payment:  payment,
		Totals:   draft.Totals,
		Customer: customer,
	}

	err = c.orders.Append(ctx, order, func(ctx context.Context) error {
		if err := c.cart.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	c.logger.Info("Order committed",
		zap.String("order_id", order.ID),
		zap.String("payment_method", payment.Method),
		zap.Int("item_count", len(order.Items)),
		zap.String("total", order.Totals.Total.StringFixed(2)))

	if err := c.audit.Record(ctx, &repository.AuditLog{
		Service:  "checkout",
		Action:   "commit_order",
		EntityID: order.ID,
		Data: bson.M{
			"payment_method": payment.Method,
			"total":          order.Totals.Total.StringFixed(2),
			"customer":       customer.Email,
		},
	}); err != nil {
		c.logger.Warn("Failed to write audit log", zap.String("order_id", order.ID), zap.Error(err))
	}

	return order, nil
}

func (c *Committer) customer(ctx context.Context, draft OrderDraft) (models.Customer, error) {
	if c.users != nil {
		user, err := c.users.Current(ctx)
		if err != nil {
			return models.Customer{}, fmt.Errorf("failed to read current user: %w", err)
		}
		if user != nil {
			return models.Customer{Email: user.Email, Name: user.Name}, nil
		}
	}
	return models.Customer{Email: draft.Shipping["email"]}, nil
}
