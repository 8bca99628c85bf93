package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/middlewares"
	"storefront/models"
	"storefront/services"
)

type OrderController struct {
	orders *services.OrderService
	logger *zap.Logger
}

func NewOrderController(orders *services.OrderService, logger *zap.Logger) *OrderController {
	return &OrderController{orders: orders, logger: logger}
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	requestID := c.GetString(middlewares.RequestIDKey)

	var req models.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		oc.logger.Warn("Invalid order payload", zap.String("request_id", requestID), zap.Error(err))
		middlewares.RecordOrderOperation("create", middlewares.OutcomeRejected)
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid order payload"})
		return
	}

	order, err := oc.orders.PlaceOrder(c.Request.Context(), req, requestID)
	middlewares.RecordOrderOperation("create", orderOutcome(err))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrEmptyOrder):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Order must contain items"})
		return
	case errors.Is(err, services.ErrValidation):
		oc.logger.Warn("Order rejected", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid order payload"})
		return
	default:
		oc.logger.Error("Error creating order", zap.String("request_id", requestID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to create order"})
		return
	}

	middlewares.RecordOrderValue(order.Total)
	c.JSON(http.StatusCreated, models.CreateOrderResponse{
		Message: "Order created successfully",
		OrderID: order.ID,
	})
}

// ListOrders is the operator view of every stored order.
func (oc *OrderController) ListOrders(c *gin.Context) {
	orders, err := oc.orders.ListOrders(c.Request.Context())
	middlewares.RecordOrderOperation("list", orderOutcome(err))
	if err != nil {
		oc.logger.Error("Error listing orders",
			zap.String("request_id", c.GetString(middlewares.RequestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to list orders"})
		return
	}
	c.JSON(http.StatusOK, orders)
}

// orderOutcome classifies a service result for the order metrics.
func orderOutcome(err error) string {
	switch {
	case err == nil:
		return middlewares.OutcomeSuccess
	case errors.Is(err, services.ErrValidation):
		return middlewares.OutcomeRejected
	default:
		return middlewares.OutcomeFailed
	}
}
