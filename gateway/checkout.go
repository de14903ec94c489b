package gateway

import (
	"errors"
	"net/http"

	"github.com/example/shopeasy/pkg/checkout"
	"github.com/gin-gonic/gin"
)

type advanceRequest struct {
	Step   int               `json:"step" binding:"required"`
	Fields map[string]string `json:"fields"`
}

type retreatRequest struct {
	Step int `json:"step" binding:"required"`
}

type methodRequest struct {
	Method string `json:"method" binding:"required"`
}

type approveRequest struct {
	OrderID  string            `json:"orderId" binding:"required"`
	Shipping map[string]string `json:"shipping"`
}

type widgetErrorRequest struct {
	Reason string `json:"reason"`
}

// respond renders a session reply. Errors still carry the session state and
// the notifications raised while handling them.
func (g *Gateway) respond(c *gin.Context, reply *checkout.Reply, err error) {
	if reply == nil {
		g.fail(c, err)
		return
	}

	body := gin.H{
		"state":         reply.State,
		"notifications": reply.Notifications,
	}
	if reply.Outcome != nil {
		body["navigate"] = reply.Outcome.Navigate
		if reply.Outcome.Order != nil {
			body["order"] = reply.Outcome.Order
		}
	}
	if err != nil {
		body["error"] = err.Error()
		var verr *checkout.ValidationError
		if errors.As(err, &verr) {
			body["fields"] = verr.Fields
		}
		c.JSON(statusFor(err), body)
		return
	}
	c.JSON(http.StatusOK, body)
}

func (g *Gateway) beginCheckout(c *gin.Context) {
	view, err := g.services.Checkout.Begin(c.Request.Context())
	if errors.Is(err, checkout.ErrEmptyCart) {
		c.JSON(http.StatusOK, gin.H{"navigate": checkout.NavigateEmptyCart})
		return
	}
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"state": view})
}

func (g *Gateway) getCheckout(c *gin.Context) {
	reply, err := g.services.Checkout.State(c.Param("id"))
	g.respond(c, reply, err)
}

func (g *Gateway) leaveCheckout(c *gin.Context) {
	if err := g.services.Checkout.End(c.Param("id")); err != nil {
		g.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) advance(c *gin.Context) {
	var req advanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := g.services.Checkout.Advance(c.Param("id"), checkout.Step(req.Step), req.Fields)
	g.respond(c, reply, err)
}

func (g *Gateway) retreat(c *gin.Context) {
	var req retreatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := g.services.Checkout.Retreat(c.Param("id"), checkout.Step(req.Step))
	g.respond(c, reply, err)
}

func (g *Gateway) selectPaymentMethod(c *gin.Context) {
	var req methodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := g.services.Checkout.SelectMethod(c.Param("id"), req.Method)
	g.respond(c, reply, err)
}

func (g *Gateway) placeOrder(c *gin.Context) {
	reply, err := g.services.Checkout.PlaceOrder(c.Param("id"))
	g.respond(c, reply, err)
}

func (g *Gateway) createWidgetOrder(c *gin.Context) {
	reply, err := g.services.Checkout.CreateWidgetOrder(c.Param("id"))
	if err != nil {
		g.respond(c, reply, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orderId": reply.WidgetOrderID, "amount": reply.Amount})
}

func (g *Gateway) approve(c *gin.Context) {
	var req approveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	reply, err := g.services.Checkout.Deliver(&checkout.Approved{
		SessionID: c.Param("id"),
		OrderID:   req.OrderID,
		Shipping:  req.Shipping,
	})
	g.respond(c, reply, err)
}

func (g *Gateway) cancel(c *gin.Context) {
	reply, err := g.services.Checkout.Deliver(&checkout.Cancelled{SessionID: c.Param("id")})
	g.respond(c, reply, err)
}

func (g *Gateway) widgetError(c *gin.Context) {
	var req widgetErrorRequest
	// the widget may post an empty body
	_ = c.ShouldBindJSON(&req)
	id := c.Param("id")
	// the widget does not wait on its error callback
	if err := g.services.Checkout.Post(&checkout.Failed{SessionID: id, Reason: req.Reason}); err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sessionId": id})
}
