package services

import (
	"context"

	"github.com/yeremiapane/restaurant-backoffice/cache"
	"github.com/yeremiapane/restaurant-backoffice/models"
)

type DashboardStats struct {
	PendingCount  int64                      `json:"pending_count"`
	StatusCounts  map[models.OrderStatus]int `json:"status_counts"`
	TypeCounts    map[models.OrderType]int   `json:"type_counts"`
	TotalOrders   int                        `json:"total_orders"`
	Revenue       float64                    `json:"revenue"`
	AverageTicket float64                    `json:"average_ticket"`
	TopSelling    []models.ProductSales      `json:"top_selling_products"`
}

// Dashboard aggregates the cached orders for the overview screen.
type Dashboard struct {
	cache *cache.QueryCache
	repo  *OrderRepository
}

func NewDashboard(c *cache.QueryCache, repo *OrderRepository) *Dashboard {
	return &Dashboard{cache: c, repo: repo}
}

// Stats counts orders by status and type. Revenue only includes completed orders.
func (d *Dashboard) Stats(ctx context.Context) (DashboardStats, error) {
	orders, err := cache.Load[[]models.Order](ctx, d.cache, OrdersKey)
	if err != nil {
		return DashboardStats{}, err
	}
	top, err := cache.Load[[]models.ProductSales](ctx, d.cache, TopSellingKey)
	if err != nil {
		return DashboardStats{}, err
	}
	pending, err := d.repo.PendingCount(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := summarize(orders)
	stats.PendingCount = pending
	stats.TopSelling = top
	if stats.TopSelling == nil {
		stats.TopSelling = []models.ProductSales{}
	}
	return stats, nil
}

func summarize(orders []models.Order) DashboardStats {
	stats := DashboardStats{
		StatusCounts: make(map[models.OrderStatus]int),
		TypeCounts:   make(map[models.OrderType]int),
		TotalOrders:  len(orders),
	}
	completed := 0
	for _, o := range orders {
		stats.StatusCounts[o.Status]++
		stats.TypeCounts[o.OrderType]++
		if o.Status == models.StatusCompleted {
			stats.Revenue += o.TotalAmount
			completed++
		}
	}
	if completed > 0 {
		stats.AverageTicket = stats.Revenue / float64(completed)
	}
	return stats
}
