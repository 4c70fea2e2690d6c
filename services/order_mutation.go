package services

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/cache"
	"github.com/yeremiapane/restaurant-backoffice/models"
)

const (
	OrdersKey     = "orders"
	TopSellingKey = "top_selling_products"
)

// settleTimeout bounds the wait for the post-mutation refetch.
const settleTimeout = 10 * time.Second

type MutationState int

const (
	MutationIdle MutationState = iota
	MutationOptimistic
	MutationCommitted
	MutationRolledBack
	MutationSettled
)

func (s MutationState) String() string {
	switch s {
	case MutationIdle:
		return "idle"
	case MutationOptimistic:
		return "optimistic"
	case MutationCommitted:
		return "committed"
	case MutationRolledBack:
		return "rolled_back"
	case MutationSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// MutationResult reports what happened to one status change. Trace lists every state
// the mutation went through.
type MutationResult struct {
	OrderID string             `json:"order_id"`
	From    models.OrderStatus `json:"from,omitempty"`
	To      models.OrderStatus `json:"to"`
	Order   *models.Order      `json:"order,omitempty"`
	Trace   []MutationState    `json:"-"`
}

func (r MutationResult) State() MutationState {
	if len(r.Trace) == 0 {
		return MutationIdle
	}
	return r.Trace[len(r.Trace)-1]
}

func (r *MutationResult) advance(s MutationState) {
	r.Trace = append(r.Trace, s)
}

// StatusUpdater is the part of the repository the mutation controller needs.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (models.Order, error)
}

// OrderMutations applies status changes optimistically to the cached orders and
// reconciles with the store once it answers.
type OrderMutations struct {
	cache    *cache.QueryCache
	repo     StatusUpdater
	notifier Notifier
	logger   *logrus.Logger
}

// NewOrderMutations expects a repository that does not notify on its own, so that each
// mutation produces exactly one notification.
func NewOrderMutations(c *cache.QueryCache, repo StatusUpdater, notifier Notifier, logger *logrus.Logger) *OrderMutations {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &OrderMutations{cache: c, repo: repo, notifier: notifier, logger: logger}
}

// ChangeStatus moves an order to status. The returned error is the store's, after the
// cache has been rolled back.
func (m *OrderMutations) ChangeStatus(ctx context.Context, orderID string, status models.OrderStatus) (MutationResult, error) {
	result := MutationResult{OrderID: orderID, To: status, Trace: []MutationState{MutationIdle}}
	log := m.logger.WithFields(logrus.Fields{"order_id": orderID, "status": status})

	// A rejected change never touches the cache, so it needs no refetch either.
	if current, ok := m.cachedOrder(orderID); ok {
		result.From = current.Status
		if err := models.ValidateTransition(orderID, current.Status, status, current.OrderType); err != nil {
			log.WithError(err).Warn("Rejected status change before dispatch")
			m.notifier.NotifyError(fmt.Sprintf("Erro ao atualizar status: %s", models.ReasonOf(err)))
			result.advance(MutationRolledBack)
			result.advance(MutationSettled)
			return result, err
		}
	}

	m.cache.BeginMutation(OrdersKey)
	ended := false
	endMutation := func() {
		if !ended {
			ended = true
			m.cache.EndMutation(OrdersKey)
		}
	}
	defer endMutation()

	snapshot, cached := cache.Read[[]models.Order](m.cache, OrdersKey)
	snapshot = models.CloneOrders(snapshot)
	if current, ok := findOrder(snapshot, orderID); ok {
		result.From = current.Status
	}

	patched := patchStatus(snapshot, orderID, status)
	if cached {
		m.cache.Update(OrdersKey, func(any) any { return patched })
	}
	result.advance(MutationOptimistic)

	order, err := m.repo.UpdateStatus(ctx, orderID, status)
	if err == nil {
		result.Order = &order
		result.advance(MutationCommitted)
		log.Info("Status change committed")
		m.notifier.NotifySuccess(fmt.Sprintf("Status do pedido atualizado para %s", status.Label()))
	} else {
		if cached {
			restored := reconcile(snapshot, patched, err)
			m.cache.Update(OrdersKey, func(any) any { return restored })
		}
		result.advance(MutationRolledBack)
		log.WithError(err).Warn("Status change rolled back")
		m.notifier.NotifyError(fmt.Sprintf("Erro ao atualizar status: %s", models.ReasonOf(err)))
	}

	endMutation()
	m.settle(ctx, &result)
	return result, err
}

// settle invalidates the orders and the aggregates derived from them and waits for the
// refetch, bounded by ctx and settleTimeout.
func (m *OrderMutations) settle(ctx context.Context, result *MutationResult) {
	waits := []<-chan struct{}{
		m.cache.Invalidate(OrdersKey),
		m.cache.Invalidate(TopSellingKey),
	}

	wctx, cancel := context.WithTimeout(ctx, settleTimeout)
	defer cancel()
	for _, done := range waits {
		select {
		case <-done:
		case <-wctx.Done():
			m.logger.WithField("order_id", result.OrderID).Warn("Refetch after mutation still running")
		}
	}
	result.advance(MutationSettled)
}

func (m *OrderMutations) cachedOrder(orderID string) (models.Order, bool) {
	orders, ok := cache.Read[[]models.Order](m.cache, OrdersKey)
	if !ok {
		return models.Order{}, false
	}
	return findOrder(orders, orderID)
}

// reconcile picks the collection the cache should hold once the store has answered.
func reconcile(snapshot, patched []models.Order, err error) []models.Order {
	if err != nil {
		return models.CloneOrders(snapshot)
	}
	return patched
}

// patchStatus returns a copy of orders with only the status of orderID replaced.
func patchStatus(orders []models.Order, orderID string, status models.OrderStatus) []models.Order {
	patched := models.CloneOrders(orders)
	for i := range patched {
		if patched[i].ID == orderID {
			patched[i].Status = status
		}
	}
	return patched
}

func findOrder(orders []models.Order, orderID string) (models.Order, bool) {
	for _, o := range orders {
		if o.ID == orderID {
			return o, true
		}
	}
	return models.Order{}, false
}
