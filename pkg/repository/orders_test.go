package repository

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/example/shopeasy/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingAuditor struct {
	logs []*AuditLog
	err  error
}

func (r *recordingAuditor) Record(_ context.Context, log *AuditLog) error {
	r.logs = append(r.logs, log)
	return r.err
}

func seedOrders(t *testing.T, list OrderList) {
	t.Helper()
	orders := []models.Order{
		{ID: "ORD-1", Date: time.Unix(1, 0).UTC(), Status: models.StatusConfirmed},
		{ID: "PP-2", Date: time.Unix(2, 0).UTC(), Status: models.StatusShipped},
		{ID: "ORD-3", Date: time.Unix(3, 0).UTC(), Status: models.StatusConfirmed},
	}
	require.NoError(t, list.WriteAll(context.Background(), orders))
}

func TestKVOrderList_EmptyByDefault(t *testing.T) {
	orders, err := NewKVOrderList(NewMemoryStore()).ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestOrderBook_ListAndFilter(t *testing.T) {
	list := NewKVOrderList(NewMemoryStore())
	seedOrders(t, list)
	book := NewOrderBook(list, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	all, err := book.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	confirmed, err := book.List(ctx, models.StatusConfirmed)
	require.NoError(t, err)
	require.Len(t, confirmed, 2)
	assert.Equal(t, "ORD-1", confirmed[0].ID)
	assert.Equal(t, "ORD-3", confirmed[1].ID)

	o, err := book.Get(ctx, "PP-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, o.Status)

	_, err = book.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderBook_StatusChanges(t *testing.T) {
	list := NewKVOrderList(NewMemoryStore())
	seedOrders(t, list)
	audit := &recordingAuditor{}
	book := NewOrderBook(list, audit, zaptest.NewLogger(t))
	ctx := context.Background()

	o, err := book.AdvanceStatus(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusShipped, o.Status)

	o, err = book.SetStatus(ctx, "ORD-1", models.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, o.Status)

	o, err = book.AdvanceStatus(ctx, "ORD-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, o.Status)

	stored, err := list.ReadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored[0].Status)
	assert.Equal(t, models.StatusShipped, stored[1].Status, "other orders untouched")
	assert.Len(t, audit.logs, 3)
	assert.Equal(t, "update_order_status", audit.logs[0].Action)

	_, err = book.SetStatus(ctx, "ORD-1", "lost")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	_, err = book.AdvanceStatus(ctx, "nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderBook_AuditFailureIsNotFatal(t *testing.T) {
	list := NewKVOrderList(NewMemoryStore())
	seedOrders(t, list)
	book := NewOrderBook(list, &recordingAuditor{err: errors.New("mongo down")}, zaptest.NewLogger(t))

	o, err := book.AdvanceStatus(context.Background(), "PP-2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusDelivered, o.Status)
}

func TestOrderBook_AppendRollsBackOnFailedCommit(t *testing.T) {
	list := NewKVOrderList(NewMemoryStore())
	seedOrders(t, list)
	book := NewOrderBook(list, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	err := book.Append(ctx, models.Order{ID: "ORD-4"}, func(context.Context) error {
		return errors.New("cart locked")
	})
	require.EqualError(t, err, "cart locked")
	orders, err := list.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 3)

	require.NoError(t, book.Append(ctx, models.Order{ID: "ORD-4"}, nil))
	o, err := book.Get(ctx, "ORD-4")
	require.NoError(t, err)
	assert.Equal(t, "ORD-4", o.ID)
}

func TestOrderBook_AppendAndStatusChangesDoNotLoseWrites(t *testing.T) {
	list := NewKVOrderList(NewMemoryStore())
	seedOrders(t, list)
	book := NewOrderBook(list, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, book.Append(ctx, models.Order{ID: "ORD-X" + strconv.Itoa(i), Status: models.StatusConfirmed}, nil))
		}(i)
		go func() {
			defer wg.Done()
			_, err := book.AdvanceStatus(ctx, "PP-2")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	orders, err := list.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, orders, 3+n)
	for i := 0; i < n; i++ {
		_, err := book.Get(ctx, "ORD-X"+strconv.Itoa(i))
		assert.NoError(t, err)
	}
}
