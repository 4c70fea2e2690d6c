package models

import (
	"fmt"
	"strings"
	"time"
)

type OrderType string

const (
	OrderTypeDelivery OrderType = "delivery"
	OrderTypePickup   OrderType = "pickup"
)

// Order is the canonical in-memory shape of an order, as handed to the cache and the views.
type Order struct {
	ID                string      `json:"order_id"`
	CustomerID        *uint       `json:"customer_id"`
	CustomerName      string      `json:"customerName"`
	CustomerPhone     *string     `json:"customer_phone,omitempty"`
	OrderType         OrderType   `json:"order_type"`
	Status            OrderStatus `json:"status"`
	OrderItems        []LineItem  `json:"order_items"`
	SubtotalAmount    float64     `json:"subtotal_amount"`
	ShippingCost      float64     `json:"shipping_cost"`
	TotalAmount       float64     `json:"total_amount"`
	DeliveryAddressID *uint       `json:"delivery_address_id"`
	DeliveryAddress   *Address    `json:"delivery_address,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	LastUpdatedAt     time.Time   `json:"last_updated_at"`
	ViewedAt          *time.Time  `json:"viewed_at"`
}

// OrderRow is the persisted orders table. OrderItems keeps whatever JSON text the writer
// produced; readers must go through the item normalizer.
type OrderRow struct {
	OrderID           string     `gorm:"column:order_id;primaryKey;type:varchar(36)" json:"order_id"`
	CustomerID        *uint      `gorm:"index" json:"customer_id"`
	Customer          *Customer  `gorm:"foreignKey:CustomerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"customer"`
	OrderType         string     `gorm:"type:varchar(20);not null" json:"order_type"`
	Status            string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	OrderItems        string     `gorm:"column:order_items;type:text" json:"order_items"`
	SubtotalAmount    float64    `gorm:"type:decimal(10,2);not null;default:0" json:"subtotal_amount"`
	ShippingCost      float64    `gorm:"type:decimal(10,2);not null;default:0" json:"shipping_cost"`
	TotalAmount       float64    `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	DeliveryAddressID *uint      `json:"delivery_address_id"`
	DeliveryAddress   *Address   `gorm:"foreignKey:DeliveryAddressID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"delivery_address"`
	CreatedAt         time.Time  `gorm:"not null;index" json:"created_at"`
	LastUpdatedAt     time.Time  `gorm:"not null" json:"last_updated_at"`
	ViewedAt          *time.Time `json:"viewed_at"`
}

func (OrderRow) TableName() string {
	return "orders"
}

// PlaceholderCustomerName labels orders with no linked customer, e.g. "Pedido #A1B2C3".
func PlaceholderCustomerName(orderID string) string {
	suffix := strings.ReplaceAll(orderID, "-", "")
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	return fmt.Sprintf("Pedido #%s", strings.ToUpper(suffix))
}

// AddressLabel is what the screens print for the delivery address.
func (o *Order) AddressLabel() string {
	if o.OrderType != OrderTypeDelivery || o.DeliveryAddress == nil {
		return "não informado"
	}
	return o.DeliveryAddress.Label()
}

// ItemCount sums the quantities of all line items.
func (o *Order) ItemCount() int {
	total := 0
	for _, item := range o.OrderItems {
		total += item.Quantity
	}
	return total
}

// Clone copies the order deeply enough that patching the copy never touches the original.
func (o Order) Clone() Order {
	c := o
	if o.OrderItems != nil {
		c.OrderItems = make([]LineItem, len(o.OrderItems))
		copy(c.OrderItems, o.OrderItems)
	}
	if o.ViewedAt != nil {
		viewed := *o.ViewedAt
		c.ViewedAt = &viewed
	}
	return c
}

// CloneOrders copies a collection with Clone.
func CloneOrders(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
