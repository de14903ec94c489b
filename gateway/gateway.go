package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/shopeasy/pkg/checkout"
	"github.com/example/shopeasy/pkg/config"
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/repository"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// NoticeFeed lists recent notifications for the storefront banner.
type NoticeFeed interface {
	Recent(timeout time.Duration) ([]notify.Notification, error)
}

// AuditHistory lists the recorded changes of an order, newest first.
type AuditHistory interface {
	History(ctx context.Context, q repository.HistoryQuery) ([]*repository.AuditLog, error)
}

// Services are the state components the HTTP layer renders.
type Services struct {
	Cart     *repository.CartStore
	Users    *repository.UserSession
	Orders   *repository.OrderBook
	Checkout *checkout.Manager
	Notices  NoticeFeed
	History  AuditHistory
	Policy   pricing.Policy
}

// Gateway is the JSON rendering layer of the storefront. Handlers only
// translate requests into calls on the state components.
type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	services Services
}

func NewGateway(cfg *config.Config, logger *zap.Logger, services Services) *Gateway {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	g := &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		services: services,
	}
	g.SetupRoutes()
	return g
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := g.router.Group("/api/v1")
	{
		cart := v1.Group("/cart")
		{
			cart.GET("", g.getCart)
			cart.POST("/items", g.addCartItem)
			cart.PUT("/items/:productId", g.updateCartItem)
			cart.DELETE("/items/:productId", g.removeCartItem)
		}

		session := v1.Group("/session")
		{
			session.GET("", g.currentUser)
			session.POST("/login", g.login)
			session.POST("/register", g.register)
			session.DELETE("", g.logout)
		}

		co := v1.Group("/checkout")
		{
			co.POST("", g.beginCheckout)
			co.GET("/:id", g.getCheckout)
			co.DELETE("/:id", g.leaveCheckout)
			co.POST("/:id/advance", g.advance)
			co.POST("/:id/retreat", g.retreat)
			co.POST("/:id/payment-method", g.selectPaymentMethod)
			co.POST("/:id/place-order", g.placeOrder)
			co.POST("/:id/widget/orders", g.createWidgetOrder)
			co.POST("/:id/widget/approve", g.approve)
			co.POST("/:id/widget/cancel", g.cancel)
			co.POST("/:id/widget/error", g.widgetError)
		}

		orders := v1.Group("/orders")
		{
			orders.GET("", g.listOrders)
			orders.GET("/:id", g.getOrder)
			orders.PUT("/:id/status", g.updateOrderStatus)
			orders.POST("/:id/status/next", g.advanceOrderStatus)
			orders.GET("/:id/history", g.orderHistory)
		}

		v1.GET("/notifications", g.notifications)
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Start serves HTTP until Shutdown is called.
func (g *Gateway) Start() error {
	addr := g.config.Server.Addr()
	g.server = &http.Server{Addr: addr, Handler: g.router}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, checkout.ErrUndefinedTransition),
		errors.Is(err, checkout.ErrWrongStep),
		errors.Is(err, checkout.ErrNoPaymentMethod),
		errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, checkout.ErrStaleSession):
		return http.StatusGone
	case errors.Is(err, checkout.ErrCaptureFailed):
		return http.StatusBadGateway
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrItemNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrInvalidStatus),
		errors.Is(err, repository.ErrInvalidItem),
		errors.Is(err, repository.ErrMissingCredentials),
		errors.Is(err, repository.ErrPasswordMismatch):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (g *Gateway) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		g.logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	body := gin.H{"error": err.Error()}
	var verr *checkout.ValidationError
	if errors.As(err, &verr) {
		body["fields"] = verr.Fields
	}
	c.JSON(status, body)
}
