package database

import (
	"context"
)

// Record is one row as plain values: strings, numbers, bools, time.Time, nested Records.
type Record map[string]any

// Filter is an equality condition on a column.
type Filter struct {
	Column string
	Value  any
}

type Ordering struct {
	Column string
	Desc   bool
}

// Store is the data access collaborator of the order core.
type Store interface {
	Query(ctx context.Context, collection string, filters []Filter, ordering *Ordering) ([]Record, error)
	Insert(ctx context.Context, collection string, record Record) (Record, error)
	CallProcedure(ctx context.Context, name string, args map[string]any) (any, error)
}

const (
	CollectionOrders = "orders"

	ProcUpdateOrderStatus  = "update_order_status"
	ProcMarkOrdersViewed   = "mark_orders_viewed"
	ProcDeleteOrder        = "delete_order"
	ProcTopSellingProducts = "top_selling_products"
	ProcPendingOrdersCount = "pending_orders_count"
)
