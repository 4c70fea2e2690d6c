package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/database"
	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

var newestFirst = &database.Ordering{Column: "created_at", Desc: true}

// OrderDraft is what a caller supplies to create an order. Items may be any shape the
// normalizer accepts.
type OrderDraft struct {
	CustomerID        *uint            `json:"customer_id"`
	OrderType         models.OrderType `json:"order_type" binding:"required"`
	Items             any              `json:"order_items"`
	SubtotalAmount    *float64         `json:"subtotal_amount"`
	ShippingCost      *float64         `json:"shipping_cost"`
	TotalAmount       *float64         `json:"total_amount"`
	DeliveryAddressID *uint            `json:"delivery_address_id"`
}

// OrderRepository reads and writes orders through a Store. Every failure is
// classified, logged, notified and returned.
type OrderRepository struct {
	store    database.Store
	notifier Notifier
	logger   *logrus.Logger
}

func NewOrderRepository(store database.Store, notifier Notifier, logger *logrus.Logger) *OrderRepository {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &OrderRepository{store: store, notifier: notifier, logger: logger}
}

// Silent returns a repository over the same store that leaves notifying to its caller.
func (r *OrderRepository) Silent() *OrderRepository {
	return &OrderRepository{store: r.store, notifier: nopNotifier{}, logger: r.logger}
}

func (r *OrderRepository) List(ctx context.Context) ([]models.Order, error) {
	return r.query(ctx, "carregar pedidos", nil)
}

func (r *OrderRepository) ListByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	return r.query(ctx, "carregar pedidos", []database.Filter{{Column: "status", Value: string(status)}})
}

func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID uint) ([]models.Order, error) {
	return r.query(ctx, "carregar pedidos do cliente", []database.Filter{{Column: "customer_id", Value: customerID}})
}

func (r *OrderRepository) Get(ctx context.Context, orderID string) (models.Order, error) {
	records, err := r.store.Query(ctx, database.CollectionOrders, []database.Filter{{Column: "order_id", Value: orderID}}, nil)
	if err != nil {
		return models.Order{}, r.fail("carregar pedido", orderID, models.ErrTransport, err)
	}
	if len(records) == 0 {
		err := &models.OrderError{Kind: models.ErrNotFound, Op: "get order", OrderID: orderID, Err: errors.New("order does not exist")}
		return models.Order{}, r.fail("carregar pedido", orderID, models.ErrNotFound, err)
	}
	return decodeOrder(records[0]), nil
}

// Create inserts a pending order. Missing amounts are derived from the items.
func (r *OrderRepository) Create(ctx context.Context, draft OrderDraft) (models.Order, error) {
	if _, err := models.ParseOrderType(string(draft.OrderType)); err != nil {
		return models.Order{}, r.fail("criar pedido", "", models.ErrValidation, err)
	}

	items := utils.NormalizeOrderItems(draft.Items)
	subtotal := 0.0
	for _, item := range items {
		subtotal += item.Subtotal()
	}
	if draft.SubtotalAmount != nil {
		subtotal = *draft.SubtotalAmount
	}
	shipping := 0.0
	if draft.ShippingCost != nil {
		shipping = *draft.ShippingCost
	}
	total := subtotal + shipping
	if draft.TotalAmount != nil {
		total = *draft.TotalAmount
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return models.Order{}, r.fail("criar pedido", "", models.ErrValidation, err)
	}

	record := database.Record{
		"order_type":      string(draft.OrderType),
		"order_items":     string(encoded),
		"subtotal_amount": subtotal,
		"shipping_cost":   shipping,
		"total_amount":    total,
	}
	if draft.CustomerID != nil {
		record["customer_id"] = *draft.CustomerID
	}
	if draft.DeliveryAddressID != nil {
		record["delivery_address_id"] = *draft.DeliveryAddressID
	}

	created, err := r.store.Insert(ctx, database.CollectionOrders, record)
	if err != nil {
		return models.Order{}, r.fail("criar pedido", "", models.ErrTransport, err)
	}

	order := decodeOrder(created)
	r.logger.WithFields(logrus.Fields{
		"order_id":   order.ID,
		"order_type": order.OrderType,
	}).Info("Order created")
	r.notifier.NotifySuccess(fmt.Sprintf("Pedido criado com sucesso! Total: %s", utils.FormatCurrency(order.TotalAmount)))
	return order, nil
}

// UpdateStatus asks the store to move the order atomically; the store is the final
// authority on whether the transition is legal.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (models.Order, error) {
	result, err := r.store.CallProcedure(ctx, database.ProcUpdateOrderStatus, map[string]any{
		"order_id": orderID,
		"status":   string(status),
	})
	if err != nil {
		return models.Order{}, r.fail("atualizar status", orderID, models.ErrOperationFailed, err)
	}

	rec := recordField(result)
	if rec == nil {
		err := &models.OrderError{Kind: models.ErrOperationFailed, Op: "update order status", OrderID: orderID, Err: errors.New("store returned no record")}
		return models.Order{}, r.fail("atualizar status", orderID, models.ErrOperationFailed, err)
	}

	r.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   status,
	}).Info("Order status changed")
	return decodeOrder(rec), nil
}

// MarkViewed acknowledges orders and returns how many were newly acknowledged.
func (r *OrderRepository) MarkViewed(ctx context.Context, orderIDs []string) (int64, error) {
	result, err := r.store.CallProcedure(ctx, database.ProcMarkOrdersViewed, map[string]any{"order_ids": orderIDs})
	if err != nil {
		return 0, r.fail("marcar pedidos como vistos", "", models.ErrOperationFailed, err)
	}
	return int64(floatField(result)), nil
}

// Delete is administrative; the deletion reaches other sessions as a realtime event.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	if _, err := r.store.CallProcedure(ctx, database.ProcDeleteOrder, map[string]any{"order_id": orderID}); err != nil {
		return r.fail("remover pedido", orderID, models.ErrOperationFailed, err)
	}
	r.logger.WithField("order_id", orderID).Warn("Order removed")
	r.notifier.NotifySuccess("Pedido removido com sucesso")
	return nil
}

func (r *OrderRepository) TopSellingProducts(ctx context.Context, limit int) ([]models.ProductSales, error) {
	result, err := r.store.CallProcedure(ctx, database.ProcTopSellingProducts, map[string]any{"limit": limit})
	if err != nil {
		return nil, r.fail("carregar mais vendidos", "", models.ErrTransport, err)
	}
	if typed, ok := result.([]models.ProductSales); ok {
		return typed, nil
	}

	products := make([]models.ProductSales, 0)
	encoded, err := json.Marshal(result)
	if err == nil {
		err = json.Unmarshal(encoded, &products)
	}
	if err != nil {
		return nil, r.fail("carregar mais vendidos", "", models.ErrOperationFailed, err)
	}
	return products, nil
}

// PendingCount counts pending orders nobody has acknowledged yet.
func (r *OrderRepository) PendingCount(ctx context.Context) (int64, error) {
	result, err := r.store.CallProcedure(ctx, database.ProcPendingOrdersCount, nil)
	if err != nil {
		return 0, r.fail("contar pedidos pendentes", "", models.ErrTransport, err)
	}
	return int64(floatField(result)), nil
}

func (r *OrderRepository) query(ctx context.Context, action string, filters []database.Filter) ([]models.Order, error) {
	records, err := r.store.Query(ctx, database.CollectionOrders, filters, newestFirst)
	if err != nil {
		return nil, r.fail(action, "", models.ErrTransport, err)
	}
	return decodeOrders(records), nil
}

// fail classifies err (kind applies when the store did not classify it), logs it and
// notifies the user.
func (r *OrderRepository) fail(action, orderID string, kind error, err error) error {
	err = models.Classify(kind, action, orderID, err)

	r.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"action":   action,
	}).WithError(err).Error("Order operation failed")
	r.notifier.NotifyError(fmt.Sprintf("Erro ao %s: %s", action, models.ReasonOf(err)))
	return err
}
