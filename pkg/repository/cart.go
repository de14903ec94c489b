package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/example/shopeasy/pkg/models"
)

var (
	ErrItemNotFound = errors.New("item not found in cart")
	ErrInvalidItem  = errors.New("invalid cart item")
)

// CartStore is the shopper's cart, persisted under the "cart" key.
type CartStore struct {
	mu    sync.Mutex
	store Store
}

func NewCartStore(store Store) *CartStore {
	return &CartStore{store: store}
}

// Items returns the cart lines in insertion order. A missing key is an empty cart.
func (c *CartStore) Items(ctx context.Context) ([]models.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *CartStore) load(ctx context.Context) ([]models.LineItem, error) {
	var items []models.LineItem
	if _, err := getJSON(ctx, c.store, KeyCart, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *CartStore) save(ctx context.Context, items []models.LineItem) error {
	if items == nil {
		items = []models.LineItem{}
	}
	return setJSON(ctx, c.store, KeyCart, items)
}

// Add puts item in the cart. A product already in the cart has its quantity
// increased instead. A zero quantity means one.
func (c *CartStore) Add(ctx context.Context, item models.LineItem) ([]models.LineItem, error) {
	if item.ProductID == "" || item.UnitPrice.IsNegative() || item.Quantity < 0 {
		return nil, ErrInvalidItem
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Quantity += item.Quantity
			found = true
			break
		}
	}
	if !found {
		items = append(items, item)
	}
	if err := c.save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetQuantity changes the quantity of a line; zero or less removes it.
func (c *CartStore) SetQuantity(ctx context.Context, productID string, quantity int) ([]models.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, productID)
	if idx < 0 {
		return nil, ErrItemNotFound
	}
	if quantity <= 0 {
		items = append(items[:idx], items[idx+1:]...)
	} else {
		items[idx].Quantity = quantity
	}
	if err := c.save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *CartStore) Remove(ctx context.Context, productID string) ([]models.LineItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, err := c.load(ctx)
	if err != nil {
		return nil, err
	}
	idx := indexOf(items, productID)
	if idx < 0 {
		return items, nil
	}
	items = append(items[:idx], items[idx+1:]...)
	if err := c.save(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// Clear empties the cart and erases its persisted key.
func (c *CartStore) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(ctx, KeyCart)
}

func indexOf(items []models.LineItem, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}
