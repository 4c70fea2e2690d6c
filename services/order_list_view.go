package services

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/yeremiapane/restaurant-backoffice/cache"
	"github.com/yeremiapane/restaurant-backoffice/models"
)

const FilterAll = "all"

// ListFilter holds the board filters. Empty Type or Status means "all".
type ListFilter struct {
	Type   string `form:"type"`
	Status string `form:"status"`
	Search string `form:"q"`
}

func (f ListFilter) normalized() ListFilter {
	f.Type = strings.ToLower(strings.TrimSpace(f.Type))
	f.Status = strings.ToLower(strings.TrimSpace(f.Status))
	f.Search = strings.TrimSpace(f.Search)
	if f.Type == "" {
		f.Type = FilterAll
	}
	if f.Status == "" {
		f.Status = FilterAll
	}
	return f
}

// DeriveOrderList filters and sorts orders for the board. With every status shown,
// orders go least progressed first and newest first within a status; with one status
// selected, newest first only. The input is never modified.
func DeriveOrderList(orders []models.Order, filter ListFilter) []models.Order {
	filter = filter.normalized()
	search := strings.ToLower(filter.Search)

	out := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if filter.Type != FilterAll && string(o.OrderType) != filter.Type {
			continue
		}
		if filter.Status != FilterAll && string(o.Status) != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(o.ID), search) &&
			!strings.Contains(strings.ToLower(o.CustomerName), search) {
			continue
		}
		out = append(out, o)
	}

	byPriority := filter.Status == FilterAll
	sort.SliceStable(out, func(i, j int) bool {
		if byPriority {
			pi, pj := models.StatusPriority(out[i].Status), models.StatusPriority(out[j].Status)
			if pi != pj {
				return pi < pj
			}
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Page is one page of a derived list.
type Page struct {
	Orders     []models.Order `json:"orders"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	Total      int            `json:"total"`
	TotalPages int            `json:"total_pages"`
}

// Paginate cuts a 1-based page out of orders. Out of range pages are empty.
func Paginate(orders []models.Order, page, pageSize int) Page {
	if pageSize <= 0 {
		pageSize = 20
	}
	if page <= 0 {
		page = 1
	}

	total := len(orders)
	p := Page{
		Orders:     []models.Order{},
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: (total + pageSize - 1) / pageSize,
	}
	start := (page - 1) * pageSize
	if start >= total {
		return p
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	p.Orders = orders[start:end]
	return p
}

// OrderListView derives the board from the orders cache and remembers the last result
// until the cache or the filter changes.
type OrderListView struct {
	cache *cache.QueryCache

	mu          sync.Mutex
	lastVersion uint64
	lastFilter  ListFilter
	lastResult  []models.Order
	memoized    bool
}

func NewOrderListView(c *cache.QueryCache) *OrderListView {
	return &OrderListView{cache: c}
}

// View loads the orders if needed and derives the list for filter.
func (v *OrderListView) View(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	if _, err := v.cache.Get(ctx, OrdersKey); err != nil {
		if _, ok := v.cache.Peek(OrdersKey); !ok {
			return nil, err
		}
	}

	snap, ok := v.cache.Peek(OrdersKey)
	if !ok {
		return []models.Order{}, nil
	}
	orders, _ := snap.Value.([]models.Order)
	filter = filter.normalized()

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.memoized && v.lastVersion == snap.Version && v.lastFilter == filter {
		return v.lastResult, nil
	}

	result := DeriveOrderList(orders, filter)
	v.lastVersion = snap.Version
	v.lastFilter = filter
	v.lastResult = result
	v.memoized = true
	return result, nil
}
