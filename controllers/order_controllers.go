package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/services"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

type OrderController struct {
	Session *services.Session
	Logger  *logrus.Logger
}

func NewOrderController(session *services.Session, logger *logrus.Logger) *OrderController {
	return &OrderController{Session: session, Logger: logger}
}

// GetAllOrders -> board view: ?type=&status=&q=&page=&page_size=
func (oc *OrderController) GetAllOrders(c *gin.Context) {
	var filter services.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	orders, err := oc.Session.Board.View(c.Request.Context(), filter)
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	utils.RespondJSON(c, http.StatusOK, "List of orders", services.Paginate(orders, page, pageSize))
}

// GetOrderByID -> detail 1 order
func (oc *OrderController) GetOrderByID(c *gin.Context) {
	order, err := oc.Session.Orders.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Order detail", order)
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	var draft services.OrderDraft
	if err := c.ShouldBindJSON(&draft); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := oc.Session.Orders.Create(c.Request.Context(), draft)
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

// UpdateOrderStatus goes through the optimistic mutation controller so the session cache
// reflects the change right away.
func (oc *OrderController) UpdateOrderStatus(c *gin.Context) {
	var body struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	status, err := models.ParseOrderStatus(body.Status)
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}

	orderID := c.Param("order_id")
	result, err := oc.Session.Mutations.ChangeStatus(c.Request.Context(), orderID, status)
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}

	oc.Logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"from":     result.From,
		"to":       result.To,
		"user_id":  c.GetUint("user_id"),
	}).Info("Order status updated via API")
	utils.RespondJSON(c, http.StatusOK, "Order status updated", result)
}

// GetAllowedTransitions -> statuses the order may move to next
func (oc *OrderController) GetAllowedTransitions(c *gin.Context) {
	order, err := oc.Session.Orders.Get(c.Request.Context(), c.Param("order_id"))
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}

	next := models.AllowedTransitions(order.Status, order.OrderType)
	options := make([]gin.H, 0, len(next))
	for _, s := range next {
		options = append(options, gin.H{"status": s, "label": s.Label()})
	}
	utils.RespondJSON(c, http.StatusOK, "Allowed transitions", gin.H{
		"order_id":    order.ID,
		"status":      order.Status,
		"order_type":  order.OrderType,
		"transitions": options,
	})
}

func (oc *OrderController) MarkOrdersViewed(c *gin.Context) {
	var body struct {
		OrderIDs []string `json:"order_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if len(body.OrderIDs) == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("order_ids must not be empty"))
		return
	}

	updated, err := oc.Session.Orders.MarkViewed(c.Request.Context(), body.OrderIDs)
	if err != nil {
		utils.RespondFailure(c, err)
		return
	}
	oc.Session.Cache.Invalidate(services.OrdersKey)
	utils.RespondJSON(c, http.StatusOK, "Orders marked as viewed", gin.H{"updated": updated})
}

func (oc *OrderController) DeleteOrder(c *gin.Context) {
	orderID := c.Param("order_id")
	if err := oc.Session.Orders.Delete(c.Request.Context(), orderID); err != nil {
		utils.RespondFailure(c, err)
		return
	}
	oc.Session.Cache.Invalidate(services.OrdersKey)
	oc.Session.Cache.Invalidate(services.TopSellingKey)
	utils.RespondJSON(c, http.StatusOK, "Order deleted", gin.H{"order_id": orderID})
}
