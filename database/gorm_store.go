package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

var (
	orderFilterColumns = map[string]bool{
		"order_id":    true,
		"status":      true,
		"customer_id": true,
		"order_type":  true,
	}
	orderSortColumns = map[string]bool{
		"created_at":      true,
		"last_updated_at": true,
		"total_amount":    true,
	}
)

// GormStore implements Store on top of gorm. Every write to orders also appends a
// db_changes row inside the same transaction.
type GormStore struct {
	db     *gorm.DB
	logger *logrus.Logger
	now    func() time.Time
}

func NewGormStore(db *gorm.DB, logger *logrus.Logger) *GormStore {
	return &GormStore{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

func (s *GormStore) Query(ctx context.Context, collection string, filters []Filter, ordering *Ordering) ([]Record, error) {
	if collection != CollectionOrders {
		return nil, unknownCollection("query", collection)
	}

	q := s.ordersQuery(ctx)
	for _, f := range filters {
		if !orderFilterColumns[f.Column] {
			return nil, &models.OrderError{Kind: models.ErrValidation, Op: "query orders", Err: fmt.Errorf("cannot filter on %q", f.Column)}
		}
		q = q.Where(clause.Eq{Column: clause.Column{Table: "orders", Name: f.Column}, Value: f.Value})
	}
	if ordering != nil {
		if !orderSortColumns[ordering.Column] {
			return nil, &models.OrderError{Kind: models.ErrValidation, Op: "query orders", Err: fmt.Errorf("cannot sort on %q", ordering.Column)}
		}
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Table: "orders", Name: ordering.Column}, Desc: ordering.Desc})
	}

	var rows []models.OrderRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, classifyDBError("query orders", "", err)
	}

	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, orderRecord(row))
	}
	return records, nil
}

func (s *GormStore) Insert(ctx context.Context, collection string, record Record) (Record, error) {
	if collection != CollectionOrders {
		return nil, unknownCollection("insert", collection)
	}

	row, err := s.newOrderRow(record)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if row.CustomerID != nil {
			var count int64
			if err := tx.Model(&models.Customer{}).Where("id = ?", *row.CustomerID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return &models.OrderError{Kind: models.ErrNotFound, Op: "insert order", Err: fmt.Errorf("customer %d does not exist", *row.CustomerID)}
			}
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return recordChange(tx, CollectionOrders, row.OrderID, models.ActionInsert, nil, &row, s.now())
	})
	if err != nil {
		return nil, classifyDBError("insert order", row.OrderID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":   row.OrderID,
		"order_type": row.OrderType,
	}).Info("Order inserted")

	return s.fetchOrder(ctx, s.db, row.OrderID)
}

func (s *GormStore) CallProcedure(ctx context.Context, name string, args map[string]any) (any, error) {
	switch name {
	case ProcUpdateOrderStatus:
		return s.updateOrderStatus(ctx, args)
	case ProcMarkOrdersViewed:
		return s.markOrdersViewed(ctx, args)
	case ProcDeleteOrder:
		return s.deleteOrder(ctx, args)
	case ProcTopSellingProducts:
		return s.topSellingProducts(ctx, args)
	case ProcPendingOrdersCount:
		return s.pendingOrdersCount(ctx)
	default:
		return nil, &models.OrderError{Kind: models.ErrOperationFailed, Op: "call procedure", Err: fmt.Errorf("unknown procedure %q", name)}
	}
}

func (s *GormStore) ordersQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.OrderRow{}).
		Preload("Customer").
		Preload("DeliveryAddress")
}

func (s *GormStore) fetchOrder(ctx context.Context, db *gorm.DB, orderID string) (Record, error) {
	var row models.OrderRow
	err := db.WithContext(ctx).
		Preload("Customer").
		Preload("DeliveryAddress").
		Where("order_id = ?", orderID).
		First(&row).Error
	if err != nil {
		return nil, classifyDBError("fetch order", orderID, err)
	}
	return orderRecord(row), nil
}

func (s *GormStore) newOrderRow(record Record) (models.OrderRow, error) {
	invalid := func(format string, a ...any) error {
		return &models.OrderError{Kind: models.ErrValidation, Op: "insert order", Err: fmt.Errorf(format, a...)}
	}

	orderType, err := models.ParseOrderType(fmt.Sprint(record["order_type"]))
	if err != nil {
		return models.OrderRow{}, err
	}

	items, err := encodeItems(record["order_items"])
	if err != nil {
		return models.OrderRow{}, invalid("encode order_items: %v", err)
	}

	now := s.now()
	row := models.OrderRow{
		OrderID:       uuid.NewString(),
		OrderType:     string(orderType),
		Status:        string(models.StatusPending),
		OrderItems:    items,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}

	amounts := map[string]*float64{
		"subtotal_amount": &row.SubtotalAmount,
		"shipping_cost":   &row.ShippingCost,
		"total_amount":    &row.TotalAmount,
	}
	for field, target := range amounts {
		value, ok := numberArg(record[field])
		if !ok && record[field] != nil {
			return models.OrderRow{}, invalid("%s must be a number", field)
		}
		if value < 0 {
			return models.OrderRow{}, invalid("%s must not be negative", field)
		}
		*target = value
	}

	if id, ok := uintArg(record["customer_id"]); ok {
		row.CustomerID = &id
	}
	if id, ok := uintArg(record["delivery_address_id"]); ok {
		row.DeliveryAddressID = &id
	}
	return row, nil
}

func encodeItems(raw any) (string, error) {
	switch v := raw.(type) {
	case nil:
		return "[]", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	}
}

// orderRecord flattens a row with its preloaded relations into plain values.
func orderRecord(row models.OrderRow) Record {
	rec := Record{
		"order_id":            row.OrderID,
		"order_type":          row.OrderType,
		"status":              row.Status,
		"order_items":         row.OrderItems,
		"subtotal_amount":     row.SubtotalAmount,
		"shipping_cost":       row.ShippingCost,
		"total_amount":        row.TotalAmount,
		"created_at":          row.CreatedAt,
		"last_updated_at":     row.LastUpdatedAt,
		"customer_id":         nil,
		"delivery_address_id": nil,
		"viewed_at":           nil,
	}
	if row.CustomerID != nil {
		rec["customer_id"] = *row.CustomerID
	}
	if row.DeliveryAddressID != nil {
		rec["delivery_address_id"] = *row.DeliveryAddressID
	}
	if row.ViewedAt != nil {
		rec["viewed_at"] = *row.ViewedAt
	}
	if row.Customer != nil {
		customer := Record{
			"id":   row.Customer.ID,
			"name": row.Customer.Name,
		}
		if row.Customer.Phone != nil {
			customer["phone"] = *row.Customer.Phone
		}
		rec["customer"] = customer
	}
	if a := row.DeliveryAddress; a != nil {
		rec["delivery_address"] = Record{
			"id":           a.ID,
			"customer_id":  a.CustomerID,
			"street":       a.Street,
			"number":       a.Number,
			"neighborhood": a.Neighborhood,
			"city":         a.City,
			"complement":   a.Complement,
		}
	}
	return rec
}

func unknownCollection(op, collection string) error {
	return &models.OrderError{Kind: models.ErrValidation, Op: op, Err: fmt.Errorf("unknown collection %q", collection)}
}

// classifyDBError keeps already classified errors and maps the rest.
func classifyDBError(op, orderID string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.OrderError{Kind: models.ErrNotFound, Op: op, OrderID: orderID, Err: errors.New("order does not exist")}
	}
	return models.Classify(models.ErrTransport, op, orderID, err)
}

// normalizedItems reads a stored order_items column.
func normalizedItems(raw string) []models.LineItem {
	return utils.NormalizeOrderItems(raw)
}
