package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/yeremiapane/restaurant-backoffice/database"
	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

// decodeOrder maps a store record to an Order. Missing or oddly typed fields fall back to
// zero values; order_items always goes through the normalizer.
func decodeOrder(rec database.Record) models.Order {
	order := models.Order{
		ID:                stringField(rec["order_id"]),
		OrderType:         models.OrderType(stringField(rec["order_type"])),
		Status:            models.OrderStatus(stringField(rec["status"])),
		OrderItems:        utils.NormalizeOrderItems(rec["order_items"]),
		SubtotalAmount:    floatField(rec["subtotal_amount"]),
		ShippingCost:      floatField(rec["shipping_cost"]),
		TotalAmount:       floatField(rec["total_amount"]),
		CustomerID:        uintField(rec["customer_id"]),
		DeliveryAddressID: uintField(rec["delivery_address_id"]),
		ViewedAt:          timePtrField(rec["viewed_at"]),
	}
	order.CreatedAt, _ = timeField(rec["created_at"])
	order.LastUpdatedAt, _ = timeField(rec["last_updated_at"])

	if customer := recordField(rec["customer"]); customer != nil {
		order.CustomerName = strings.TrimSpace(stringField(customer["name"]))
		if phone := stringField(customer["phone"]); phone != "" {
			order.CustomerPhone = &phone
		}
	}
	if order.CustomerName == "" {
		order.CustomerName = stringField(rec["customerName"])
	}
	if order.CustomerName == "" {
		order.CustomerName = models.PlaceholderCustomerName(order.ID)
	}

	if addr := recordField(rec["delivery_address"]); addr != nil {
		order.DeliveryAddress = &models.Address{
			Street:       stringField(addr["street"]),
			Number:       stringField(addr["number"]),
			Neighborhood: stringField(addr["neighborhood"]),
			City:         stringField(addr["city"]),
			Complement:   stringField(addr["complement"]),
		}
		if id := uintField(addr["id"]); id != nil {
			order.DeliveryAddress.ID = *id
		}
		if id := uintField(addr["customer_id"]); id != nil {
			order.DeliveryAddress.CustomerID = *id
		}
	}
	return order
}

func decodeOrders(records []database.Record) []models.Order {
	orders := make([]models.Order, 0, len(records))
	for _, rec := range records {
		orders = append(orders, decodeOrder(rec))
	}
	return orders
}

func recordField(v any) map[string]any {
	switch m := v.(type) {
	case database.Record:
		return m
	case map[string]any:
		return m
	case nil:
		return nil
	default:
		encoded, err := json.Marshal(m)
		if err != nil {
			return nil
		}
		var out map[string]any
		if err := json.Unmarshal(encoded, &out); err != nil {
			return nil
		}
		return out
	}
}

func stringField(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case int:
		return strconv.Itoa(s)
	case int64:
		return strconv.FormatInt(s, 10)
	case uint:
		return strconv.FormatUint(uint64(s), 10)
	default:
		return ""
	}
}

func floatField(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case string:
		f, _ := utils.ParsePrice(n)
		return f
	default:
		return 0
	}
}

func uintField(v any) *uint {
	var id uint
	switch n := v.(type) {
	case uint:
		id = n
	case *uint:
		if n == nil {
			return nil
		}
		id = *n
	case int:
		if n <= 0 {
			return nil
		}
		id = uint(n)
	case int64:
		if n <= 0 {
			return nil
		}
		id = uint(n)
	case float64:
		if n <= 0 {
			return nil
		}
		id = uint(n)
	case string:
		parsed, err := strconv.ParseUint(n, 10, 64)
		if err != nil || parsed == 0 {
			return nil
		}
		id = uint(parsed)
	default:
		return nil
	}
	return &id
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func timeField(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func timePtrField(v any) *time.Time {
	t, ok := timeField(v)
	if !ok {
		return nil
	}
	return &t
}
