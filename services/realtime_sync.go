package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/cache"
	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

type SyncState string

const (
	SyncLoading SyncState = "loading"
	SyncReady   SyncState = "ready"
	SyncError   SyncState = "error"
	SyncStopped SyncState = "stopped"
)

// RealtimeSync keeps the orders cache in step with changes made anywhere: each change
// event invalidates the cache and produces an info notification.
type RealtimeSync struct {
	transport realtime.Transport
	cache     *cache.QueryCache
	notifier  Notifier
	logger    *logrus.Logger

	mu     sync.RWMutex
	state  SyncState
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRealtimeSync(transport realtime.Transport, c *cache.QueryCache, notifier Notifier, logger *logrus.Logger) *RealtimeSync {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &RealtimeSync{
		transport: transport,
		cache:     c,
		notifier:  notifier,
		logger:    logger,
		state:     SyncLoading,
	}
}

// Start subscribes in the background. Failure to subscribe is reported by Status, not returned.
func (s *RealtimeSync) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = SyncLoading
	s.err = nil

	go s.run(ctx, s.done)
}

// Stop unsubscribes and waits for the consumer goroutine.
func (s *RealtimeSync) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if done == nil {
		return
	}

	cancel()
	<-done

	s.mu.Lock()
	s.done = nil
	s.cancel = nil
	if s.state != SyncError {
		s.state = SyncStopped
	}
	s.mu.Unlock()
}

// Status reports whether the subscription is still being established and the
// subscription failure, if any.
func (s *RealtimeSync) Status() (isLoading bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == SyncLoading, s.err
}

func (s *RealtimeSync) State() SyncState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *RealtimeSync) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	sub, err := s.transport.Subscribe(ctx, OrdersKey, realtime.Filter{
		Events: []realtime.EventType{realtime.EventInsert, realtime.EventUpdate, realtime.EventDelete},
	})
	if err != nil {
		err = models.Classify(models.ErrTransport, "subscribe to orders", "", err)
		s.setState(SyncError, err)
		s.logger.WithError(err).Error("Realtime subscription failed")
		return
	}
	defer sub.Unsubscribe()

	s.setState(SyncReady, nil)
	s.logger.WithField("collection", OrdersKey).Info("Realtime subscription ready")

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				err := &models.OrderError{Kind: models.ErrTransport, Op: "realtime subscription", Err: fmt.Errorf("feed closed")}
				s.setState(SyncError, err)
				s.logger.Warn("Realtime feed closed")
				return
			}
			s.handle(event)
		}
	}
}

func (s *RealtimeSync) handle(event realtime.ChangeEvent) {
	s.logger.WithFields(logrus.Fields{
		"event":     event.Type,
		"record_id": event.RecordID,
	}).Debug("Order change received")

	s.cache.Invalidate(OrdersKey)

	if message, ok := changeMessage(event); ok {
		s.notifier.NotifyInfo(message)
	}
}

// changeMessage is the operator message for a change event. Updates without a status on
// the new record produce no message.
func changeMessage(event realtime.ChangeEvent) (string, bool) {
	switch event.Type {
	case realtime.EventInsert:
		return "Novo pedido recebido!", true
	case realtime.EventUpdate:
		status, _ := event.New["status"].(string)
		if status == "" {
			return "", false
		}
		return fmt.Sprintf("Pedido atualizado: %s", models.OrderStatus(status).Label()), true
	case realtime.EventDelete:
		return "Pedido removido", true
	default:
		return "", false
	}
}

func (s *RealtimeSync) setState(state SyncState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.err = err
}
