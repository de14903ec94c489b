package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/example/shopeasy/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrInvalidStatus = errors.New("invalid order status")
)

// OrderList is the persisted list of committed orders. Writers replace the
// whole list (read-modify-write, last writer wins).
type OrderList interface {
	ReadAll(ctx context.Context) ([]models.Order, error)
	WriteAll(ctx context.Context, orders []models.Order) error
}

// KVOrderList keeps the list as one JSON document under the "orders" key.
type KVOrderList struct {
	store Store
}

func NewKVOrderList(store Store) *KVOrderList {
	return &KVOrderList{store: store}
}

func (l *KVOrderList) ReadAll(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	if _, err := getJSON(ctx, l.store, KeyOrders, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (l *KVOrderList) WriteAll(ctx context.Context, orders []models.Order) error {
	if orders == nil {
		orders = []models.Order{}
	}
	return setJSON(ctx, l.store, KeyOrders, orders)
}

// OrderBook is the admin view over the order list: lookup, filtering and
// status changes. Status is the only field that changes after commit.
type OrderBook struct {
	mu     sync.Mutex
	list   OrderList
	audit  Auditor
	logger *zap.Logger
}

func NewOrderBook(list OrderList, audit Auditor, logger *zap.Logger) *OrderBook {
	if audit == nil {
		audit = NopAuditor{}
	}
	return &OrderBook{list: list, audit: audit, logger: logger}
}

// List returns all orders, or only those with the given status when it is set.
func (b *OrderBook) List(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	orders, err := b.list.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return orders, nil
	}
	filtered := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

func (b *OrderBook) Get(ctx context.Context, id string) (models.Order, error) {
	orders, err := b.list.ReadAll(ctx)
	if err != nil {
		return models.Order{}, err
	}
	for _, o := range orders {
		if o.ID == id {
			return o, nil
		}
	}
	return models.Order{}, ErrOrderNotFound
}

// Append adds order at the end of the list, then runs commit. When commit
// fails the list is written back as it was. Status changes wait for both.
func (b *OrderBook) Append(ctx context.Context, order models.Order, commit func(context.Context) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	previous, err := b.list.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to read orders: %w", err)
	}
	next := make([]models.Order, 0, len(previous)+1)
	next = append(next, previous...)
	next = append(next, order)
	if err := b.list.WriteAll(ctx, next); err != nil {
		return fmt.Errorf("failed to write orders: %w", err)
	}

	if commit == nil {
		return nil
	}
	if err := commit(ctx); err != nil {
		if rbErr := b.list.WriteAll(ctx, previous); rbErr != nil {
			b.logger.Error("Failed to roll back order list",
				zap.String("order_id", order.ID),
				zap.Error(rbErr))
		}
		return err
	}
	return nil
}

// SetStatus moves an order to status.
func (b *OrderBook) SetStatus(ctx context.Context, id string, status models.OrderStatus) (models.Order, error) {
	if !status.Valid() {
		return models.Order{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	return b.update(ctx, id, func(models.OrderStatus) models.OrderStatus { return status })
}

// AdvanceStatus moves an order to the next status of the admin cycle.
func (b *OrderBook) AdvanceStatus(ctx context.Context, id string) (models.Order, error) {
	return b.update(ctx, id, models.OrderStatus.Next)
}

func (b *OrderBook) update(ctx context.Context, id string, next func(models.OrderStatus) models.OrderStatus) (models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	orders, err := b.list.ReadAll(ctx)
	if err != nil {
		return models.Order{}, err
	}
	for i := range orders {
		if orders[i].ID != id {
			continue
		}
		from := orders[i].Status
		orders[i].Status = next(from)
		if err := b.list.WriteAll(ctx, orders); err != nil {
			return models.Order{}, err
		}

		b.logger.Info("Order status updated",
			zap.String("order_id", id),
			zap.String("from", from.String()),
			zap.String("to", orders[i].Status.String()))
		if err := b.audit.Record(ctx, &AuditLog{
			Service:  "admin",
			Action:   "update_order_status",
			EntityID: id,
			Data:     bson.M{"from": from.String(), "to": orders[i].Status.String()},
		}); err != nil {
			b.logger.Warn("Failed to write audit log", zap.String("order_id", id), zap.Error(err))
		}
		return orders[i], nil
	}
	return models.Order{}, ErrOrderNotFound
}
