package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/cache"
	"github.com/yeremiapane/restaurant-backoffice/database"
	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

const topSellingLimit = 5

// Session owns the orders cache and every component that reads or writes it.
type Session struct {
	Cache     *cache.QueryCache
	Orders    *OrderRepository
	Mutations *OrderMutations
	Sync      *RealtimeSync
	Board     *OrderListView
	Dashboard *Dashboard

	logger *logrus.Logger
}

func NewSession(store database.Store, transport realtime.Transport, notifier Notifier, logger *logrus.Logger) *Session {
	c := cache.New(logger)
	repo := NewOrderRepository(store, notifier, logger)

	c.Register(OrdersKey, func(ctx context.Context) (any, error) {
		return repo.List(ctx)
	})
	c.Register(TopSellingKey, func(ctx context.Context) (any, error) {
		return repo.TopSellingProducts(ctx, topSellingLimit)
	})

	return &Session{
		Cache:     c,
		Orders:    repo,
		Mutations: NewOrderMutations(c, repo.Silent(), notifier, logger),
		Sync:      NewRealtimeSync(transport, c, notifier, logger),
		Board:     NewOrderListView(c),
		Dashboard: NewDashboard(c, repo),
		logger:    logger,
	}
}

// Start subscribes to realtime changes.
func (s *Session) Start(ctx context.Context) {
	s.Sync.Start(ctx)
}

// Close unsubscribes and stops background fetches.
func (s *Session) Close() {
	s.Sync.Stop()
	s.Cache.Close()
	s.logger.Info("Session closed")
}
