package utils

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/yeremiapane/restaurant-backoffice/models"
)

var (
	nameFields        = []string{"name", "nome", "product_name", "productName", "item_name", "title", "description"}
	priceFields       = []string{"price", "preco", "unit_price", "unitPrice", "valor", "value"}
	quantityFields    = []string{"quantity", "quantidade", "qty", "qtd", "amount"}
	observationFields = []string{"observation", "observacao", "notes", "note", "obs"}
)

const (
	defaultItemName = "Item"
	// Larger quantities are treated as garbage, like zero or negative ones.
	maxQuantity = math.MaxInt32
)

// NormalizeOrderItems turns whatever was persisted in order_items into canonical line items.
// Accepted shapes: JSON text (also double encoded), []byte, arrays, a single object, an object
// wrapping an "items" array, or typed Go values. Anything else yields an empty slice.
func NormalizeOrderItems(raw any) []models.LineItem {
	items := make([]models.LineItem, 0)
	for _, element := range itemSequence(decodeItems(raw, 0)) {
		obj, ok := element.(map[string]any)
		if !ok {
			continue
		}
		items = append(items, normalizeItem(obj))
	}
	return items
}

// decodeItems reduces raw to plain JSON values ([]any, map[string]any, scalars).
func decodeItems(raw any, depth int) any {
	if depth > 3 {
		return nil
	}
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		return decodeItems([]byte(v), depth)
	case []byte:
		text := strings.TrimSpace(string(v))
		if text == "" {
			return nil
		}
		var parsed any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return nil
		}
		if s, ok := parsed.(string); ok {
			return decodeItems(s, depth+1)
		}
		return parsed
	case json.RawMessage:
		return decodeItems([]byte(v), depth)
	default:
		// Typed values and in-memory maps go through a JSON round trip so nested
		// numbers come out as float64.
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var parsed any
		if err := json.Unmarshal(encoded, &parsed); err != nil {
			return nil
		}
		return parsed
	}
}

func itemSequence(value any) []any {
	switch v := value.(type) {
	case []any:
		return v
	case map[string]any:
		if inner, ok := v["items"]; ok {
			if seq, ok := decodeItems(inner, 1).([]any); ok {
				return seq
			}
			return nil
		}
		return []any{v}
	default:
		return nil
	}
}

func normalizeItem(obj map[string]any) models.LineItem {
	observation := firstString(obj, observationFields)
	name := firstString(obj, nameFields)
	if name == "" {
		if observation != "" {
			name = observation
			observation = ""
		} else {
			name = defaultItemName
		}
	}

	return models.LineItem{
		Name:        name,
		Price:       itemPrice(obj),
		Quantity:    itemQuantity(obj),
		Observation: observation,
	}
}

func firstString(obj map[string]any, fields []string) string {
	for _, field := range fields {
		if s, ok := obj[field].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func itemPrice(obj map[string]any) float64 {
	for _, field := range priceFields {
		var (
			price float64
			ok    bool
		)
		switch v := obj[field].(type) {
		case float64:
			price, ok = v, true
		case string:
			price, ok = ParsePrice(v)
		}
		if !ok {
			continue
		}
		if price < 0 || math.IsNaN(price) || math.IsInf(price, 0) {
			return 0
		}
		return price
	}
	return 0
}

func itemQuantity(obj map[string]any) int {
	for _, field := range quantityFields {
		var (
			qty float64
			ok  bool
		)
		switch v := obj[field].(type) {
		case float64:
			qty, ok = v, true
		case string:
			parsed, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64)
			qty, ok = parsed, err == nil
		}
		if !ok {
			continue
		}
		if qty < 1 || qty > maxQuantity || math.IsNaN(qty) || math.IsInf(qty, 0) {
			return 1
		}
		return int(qty)
	}
	return 1
}
