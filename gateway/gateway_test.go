package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/shopeasy/pkg/checkout"
	"github.com/example/shopeasy/pkg/config"
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/repository"
	"github.com/example/shopeasy/pkg/validation"
	"github.com/example/shopeasy/pkg/widget"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	cfg, err := config.Default()
	require.NoError(t, err)

	system := actor.NewActorSystem()
	t.Cleanup(system.Shutdown)
	notifier, err := notify.Spawn(system, logger, 10)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	cart := repository.NewCartStore(store)
	users := repository.NewUserSession(store, nil)
	orders := repository.NewKVOrderList(store)
	v := validation.New(time.Now)

	book := repository.NewOrderBook(orders, nil, logger)
	committer := checkout.NewCommitter(book, cart, users, nil, logger, nil)
	manager := checkout.NewManager(system, checkout.Deps{
		Cart:      cart,
		Committer: committer,
		Validator: v,
		Widgets:   widget.SandboxFactory(cfg.Checkout.Widget),
		Notifier:  notifier,
		Policy:    pricing.DefaultPolicy,
		Logger:    logger,
		Timeout:   time.Second,
	})
	t.Cleanup(manager.Close)

	gw := NewGateway(cfg, logger, Services{
		Cart:     cart,
		Users:    users,
		Orders:   book,
		Checkout: manager,
		Notices:  notifier,
		History:  fakeHistory{},
		Policy:   pricing.DefaultPolicy,
	})
	return &testServer{handler: gw.Handler()}
}

// fakeHistory holds one checkout entry per order.
type fakeHistory struct{}

func (fakeHistory) History(_ context.Context, q repository.HistoryQuery) ([]*repository.AuditLog, error) {
	if q.Service != "" && q.Service != "checkout" {
		return []*repository.AuditLog{}, nil
	}
	return []*repository.AuditLog{{Service: "checkout", Action: "commit_order", EntityID: q.EntityID}}, nil
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)

	var out map[string]interface{}
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	}
	return w.Code, out
}

func shipping() map[string]string {
	return map[string]string{
		"firstName": "Ann",
		"lastName":  "Lee",
		"email":     "ann@example.com",
		"phone":     "555-123-4567",
		"address":   "1 Main St",
		"city":      "Springfield",
		"state":     "IL",
		"zipCode":   "62701",
	}
}

func (s *testServer) beginWith(t *testing.T, price string) string {
	t.Helper()
	code, _ := s.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"productId": "1", "title": "Lamp", "price": price, "quantity": 1})
	require.Equal(t, http.StatusOK, code)

	code, body := s.do(t, http.MethodPost, "/api/v1/checkout", nil)
	require.Equal(t, http.StatusCreated, code)
	return body["state"].(map[string]interface{})["sessionId"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestCart(t *testing.T) {
	s := newTestServer(t)

	code, body := s.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"productId": "1", "title": "Lamp", "price": "30.00"})
	require.Equal(t, http.StatusOK, code)
	s.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{"productId": "1", "title": "Lamp", "price": "30.00"})

	code, body = s.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, "$64.80", body["formattedTotal"])

	code, _ = s.do(t, http.MethodPut, "/api/v1/cart/items/9", gin.H{"quantity": 3})
	assert.Equal(t, http.StatusNotFound, code)

	code, body = s.do(t, http.MethodPut, "/api/v1/cart/items/1", gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["items"])
}

func TestCheckout_EmptyCart(t *testing.T) {
	s := newTestServer(t)
	code, body := s.do(t, http.MethodPost, "/api/v1/checkout", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "empty-cart", body["navigate"])
}

func TestCheckout_CardFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.beginWith(t, "60.00")
	base := "/api/v1/checkout/" + id

	code, body := s.do(t, http.MethodPost, base+"/advance", gin.H{"step": 2, "fields": gin.H{"email": "bad"}})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["fields"], "firstName")

	code, _ = s.do(t, http.MethodPost, base+"/advance", gin.H{"step": 3, "fields": gin.H{}})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(t, http.MethodPost, base+"/advance", gin.H{"step": 2, "fields": shipping()})
	require.Equal(t, http.StatusOK, code)
	code, _ = s.do(t, http.MethodPost, base+"/advance", gin.H{"step": 3, "fields": gin.H{
		"paymentMethod": "credit",
		"cardNumber":    "4111111111111111",
		"expiryDate":    "12/99",
		"cvv":           "123",
		"cardName":      "Ann Lee",
	}})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, base+"/place-order", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["navigate"])
	order := body["order"].(map[string]interface{})
	assert.True(t, strings.HasPrefix(order["id"].(string), "ORD-"))

	code, body = s.do(t, http.MethodGet, "/api/v1/orders?status=confirmed", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["total"])

	code, body = s.do(t, http.MethodGet, "/api/v1/orders/"+order["id"].(string)+"/history", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["history"], 1)

	code, body = s.do(t, http.MethodGet, "/api/v1/orders/"+order["id"].(string)+"/history?service=admin&limit=10", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, body["history"])

	code, _ = s.do(t, http.MethodGet, "/api/v1/orders/"+order["id"].(string)+"/history?limit=lots", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusGone, code)
}

func TestCheckout_WidgetFlow(t *testing.T) {
	s := newTestServer(t)
	id := s.beginWith(t, "30.00")
	base := "/api/v1/checkout/" + id

	code, _ := s.do(t, http.MethodPost, base+"/advance", gin.H{"step": 2, "fields": shipping()})
	require.Equal(t, http.StatusOK, code)
	code, body := s.do(t, http.MethodPost, base+"/payment-method", gin.H{"method": "paypal"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["state"].(map[string]interface{})["widgetVisible"])
	code, _ = s.do(t, http.MethodPost, base+"/advance", gin.H{"step": 3, "fields": gin.H{"paymentMethod": "paypal"}})
	require.Equal(t, http.StatusOK, code)

	code, body = s.do(t, http.MethodPost, base+"/place-order", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["navigate"])

	code, body = s.do(t, http.MethodPost, base+"/widget/orders", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "38.39", body["amount"])
	orderID := body["orderId"].(string)

	code, body = s.do(t, http.MethodPost, base+"/widget/approve", gin.H{"orderId": orderID})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "PP-"+orderID, body["order"].(map[string]interface{})["id"])

	code, _ = s.do(t, http.MethodPost, base+"/widget/approve", gin.H{"orderId": orderID})
	assert.Equal(t, http.StatusGone, code)

	code, body = s.do(t, http.MethodPost, "/api/v1/orders/PP-"+orderID+"/status/next", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "shipped", body["status"])

	code, body = s.do(t, http.MethodGet, "/api/v1/notifications", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["notifications"], 1)
}

func TestCheckout_WidgetCancel(t *testing.T) {
	s := newTestServer(t)
	id := s.beginWith(t, "30.00")

	code, body := s.do(t, http.MethodPost, "/api/v1/checkout/"+id+"/widget/cancel", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cancel", body["navigate"])

	code, body = s.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["count"])
}

func TestCheckout_WidgetErrorReachesNotifications(t *testing.T) {
	s := newTestServer(t)
	id := s.beginWith(t, "30.00")
	base := "/api/v1/checkout/" + id

	code, body := s.do(t, http.MethodPost, base+"/widget/error", gin.H{"reason": "popup blocked"})
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, id, body["sessionId"])

	assert.Eventually(t, func() bool {
		_, body := s.do(t, http.MethodGet, "/api/v1/notifications", nil)
		notices, _ := body["notifications"].([]interface{})
		for _, n := range notices {
			if n.(map[string]interface{})["message"] == "PayPal error" {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	code, _ = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, code, "a widget error keeps the session open")

	code, _ = s.do(t, http.MethodPost, "/api/v1/checkout/gone/widget/error", nil)
	assert.Equal(t, http.StatusGone, code)
}

func TestSessionUser(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodPost, "/api/v1/session/register", gin.H{
		"name": "Ann", "email": "ann@example.com", "password": "a", "confirmPassword": "b",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := s.do(t, http.MethodPost, "/api/v1/session/login", gin.H{"email": "ann@example.com", "password": "x"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ann", body["user"].(map[string]interface{})["name"])

	code, _ = s.do(t, http.MethodDelete, "/api/v1/session", nil)
	assert.Equal(t, http.StatusNoContent, code)
	_, body = s.do(t, http.MethodGet, "/api/v1/session", nil)
	assert.Nil(t, body["user"])
}

func TestOrders_NotFoundAndBadStatus(t *testing.T) {
	s := newTestServer(t)

	code, _ := s.do(t, http.MethodGet, "/api/v1/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodGet, "/api/v1/orders/nope/history", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.do(t, http.MethodPut, "/api/v1/orders/nope/status", gin.H{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, code)
}
