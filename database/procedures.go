package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yeremiapane/restaurant-backoffice/models"
)

const defaultTopSellingLimit = 5

// updateOrderStatus validates the transition against the stored status and writes it
// with a compare-and-set, so two concurrent writers cannot both win.
func (s *GormStore) updateOrderStatus(ctx context.Context, args map[string]any) (any, error) {
	const op = "update order status"

	orderID := stringArg(args["order_id"])
	if orderID == "" {
		return nil, &models.OrderError{Kind: models.ErrValidation, Op: op, Err: errors.New("order_id is required")}
	}
	next, err := models.ParseOrderStatus(stringArg(args["status"]))
	if err != nil {
		return nil, models.Classify(models.ErrValidation, op, orderID, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.OrderRow
		q := tx.Where("order_id = ?", orderID)
		if tx.Dialector.Name() != "sqlite" {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.First(&current).Error; err != nil {
			return err
		}

		from := models.OrderStatus(current.Status)
		if err := models.ValidateTransition(orderID, from, next, models.OrderType(current.OrderType)); err != nil {
			return err
		}

		now := s.now()
		res := tx.Model(&models.OrderRow{}).
			Where("order_id = ? AND status = ?", orderID, current.Status).
			Updates(map[string]any{
				"status":          string(next),
				"last_updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &models.OrderError{Kind: models.ErrOperationFailed, Op: op, OrderID: orderID, Err: errors.New("order status changed concurrently")}
		}

		updated := current
		updated.Status = string(next)
		updated.LastUpdatedAt = now
		return recordChange(tx, CollectionOrders, orderID, models.ActionUpdate, &current, &updated, now)
	})
	if err != nil {
		return nil, classifyDBError(op, orderID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   next,
	}).Info("Order status updated")

	return s.fetchOrder(ctx, s.db, orderID)
}

func (s *GormStore) markOrdersViewed(ctx context.Context, args map[string]any) (any, error) {
	const op = "mark orders viewed"

	ids := stringsArg(args["order_ids"])
	if len(ids) == 0 {
		return int64(0), nil
	}

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.OrderRow
		if err := tx.Where("order_id IN ? AND viewed_at IS NULL", ids).Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}

		now := s.now()
		pending := make([]string, 0, len(rows))
		for _, row := range rows {
			pending = append(pending, row.OrderID)
		}
		res := tx.Model(&models.OrderRow{}).
			Where("order_id IN ? AND viewed_at IS NULL", pending).
			Update("viewed_at", now)
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected

		for i := range rows {
			old := rows[i]
			updated := old
			updated.ViewedAt = &now
			if err := recordChange(tx, CollectionOrders, old.OrderID, models.ActionUpdate, &old, &updated, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, classifyDBError(op, "", err)
	}
	return affected, nil
}

func (s *GormStore) deleteOrder(ctx context.Context, args map[string]any) (any, error) {
	const op = "delete order"

	orderID := stringArg(args["order_id"])
	if orderID == "" {
		return nil, &models.OrderError{Kind: models.ErrValidation, Op: op, Err: errors.New("order_id is required")}
	}

	var deleted models.OrderRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ?", orderID).First(&deleted).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderRow{}).Error; err != nil {
			return err
		}
		return recordChange(tx, CollectionOrders, orderID, models.ActionDelete, &deleted, nil, s.now())
	})
	if err != nil {
		return nil, classifyDBError(op, orderID, err)
	}

	s.logger.WithField("order_id", orderID).Warn("Order deleted")
	return orderRecord(deleted), nil
}

// topSellingProducts aggregates normalized line items of completed orders by name.
func (s *GormStore) topSellingProducts(ctx context.Context, args map[string]any) (any, error) {
	limit := defaultTopSellingLimit
	if n, ok := numberArg(args["limit"]); ok && n > 0 {
		limit = int(n)
	}

	var stored []string
	err := s.db.WithContext(ctx).
		Model(&models.OrderRow{}).
		Where("status = ?", string(models.StatusCompleted)).
		Pluck("order_items", &stored).Error
	if err != nil {
		return nil, classifyDBError("top selling products", "", err)
	}

	totals := make(map[string]*models.ProductSales)
	for _, raw := range stored {
		for _, item := range normalizedItems(raw) {
			sales, ok := totals[item.Name]
			if !ok {
				sales = &models.ProductSales{Name: item.Name}
				totals[item.Name] = sales
			}
			sales.Quantity += item.Quantity
			sales.Revenue += item.Subtotal()
		}
	}

	ranked := make([]models.ProductSales, 0, len(totals))
	for _, sales := range totals {
		ranked = append(ranked, *sales)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Quantity != ranked[j].Quantity {
			return ranked[i].Quantity > ranked[j].Quantity
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func (s *GormStore) pendingOrdersCount(ctx context.Context) (any, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.OrderRow{}).
		Where("status = ? AND viewed_at IS NULL", string(models.StatusPending)).
		Count(&count).Error
	if err != nil {
		return nil, classifyDBError("pending orders count", "", err)
	}
	return count, nil
}

func stringArg(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case models.OrderStatus:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return ""
	}
}

func stringsArg(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s := stringArg(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func numberArg(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func uintArg(v any) (uint, bool) {
	switch n := v.(type) {
	case uint:
		return n, true
	case *uint:
		if n == nil {
			return 0, false
		}
		return *n, true
	}
	f, ok := numberArg(v)
	if !ok || f <= 0 {
		return 0, false
	}
	return uint(f), true
}
