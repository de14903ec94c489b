package gateway

import (
	"net/http"
	"time"

	"github.com/example/shopeasy/pkg/models"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/repository"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type addItemRequest struct {
	ProductID string          `json:"productId" binding:"required"`
	Title     string          `json:"title" binding:"required"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity" binding:"gte=0"`
	Image     string          `json:"image"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (g *Gateway) renderCart(c *gin.Context, items []models.LineItem) {
	if items == nil {
		items = []models.LineItem{}
	}
	totals := g.services.Policy.Compute(items)
	c.JSON(http.StatusOK, gin.H{
		"items":          items,
		"count":          models.TotalQuantity(items),
		"totals":         totals,
		"formattedTotal": pricing.FormatCurrency(totals.Total),
	})
}

func (g *Gateway) getCart(c *gin.Context) {
	items, err := g.services.Cart.Items(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	g.renderCart(c, items)
}

func (g *Gateway) addCartItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := g.services.Cart.Add(c.Request.Context(), models.LineItem{
		ProductID: req.ProductID,
		Title:     req.Title,
		UnitPrice: req.Price,
		Quantity:  req.Quantity,
		ImageRef:  req.Image,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	g.renderCart(c, items)
}

func (g *Gateway) updateCartItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := g.services.Cart.SetQuantity(c.Request.Context(), c.Param("productId"), *req.Quantity)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.renderCart(c, items)
}

func (g *Gateway) removeCartItem(c *gin.Context) {
	items, err := g.services.Cart.Remove(c.Request.Context(), c.Param("productId"))
	if err != nil {
		g.fail(c, err)
		return
	}
	g.renderCart(c, items)
}

func (g *Gateway) currentUser(c *gin.Context) {
	user, err := g.services.Users.Current(c.Request.Context())
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (g *Gateway) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := g.services.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

func (g *Gateway) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	user, err := g.services.Users.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.ConfirmPassword)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (g *Gateway) logout(c *gin.Context) {
	if err := g.services.Users.Logout(c.Request.Context()); err != nil {
		g.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) listOrders(c *gin.Context) {
	orders, err := g.services.Orders.List(c.Request.Context(), models.OrderStatus(c.Query("status")))
	if err != nil {
		g.fail(c, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  len(orders),
	})
}

func (g *Gateway) getOrder(c *gin.Context) {
	order, err := g.services.Orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := g.services.Orders.SetStatus(c.Request.Context(), c.Param("id"), models.OrderStatus(req.Status))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (g *Gateway) advanceOrderStatus(c *gin.Context) {
	order, err := g.services.Orders.AdvanceStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

type historyQuery struct {
	Service string `form:"service" binding:"omitempty,oneof=checkout admin"`
	Limit   int64  `form:"limit" binding:"omitempty,min=1,max=500"`
}

func (g *Gateway) orderHistory(c *gin.Context) {
	id := c.Param("id")
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := g.services.Orders.Get(c.Request.Context(), id); err != nil {
		g.fail(c, err)
		return
	}
	if g.services.History == nil {
		c.JSON(http.StatusOK, gin.H{"history": []interface{}{}})
		return
	}
	logs, err := g.services.History.History(c.Request.Context(), repository.HistoryQuery{
		EntityID: id,
		Service:  q.Service,
		Limit:    q.Limit,
	})
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": logs})
}

func (g *Gateway) notifications(c *gin.Context) {
	if g.services.Notices == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []interface{}{}})
		return
	}
	recent, err := g.services.Notices.Recent(2 * time.Second)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": recent})
}
