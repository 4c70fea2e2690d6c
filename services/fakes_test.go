package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-backoffice/database"
	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

func testLogger() *logrus.Logger {
	return utils.NewTestLogger()
}

// fakeStore answers from canned records and errors.
type fakeStore struct {
	mu       sync.Mutex
	records  []database.Record
	queryErr error
	insert   func(database.Record) (database.Record, error)
	procs    map[string]func(map[string]any) (any, error)
	queries  []queryCall
	calls    []string
}

type queryCall struct {
	filters  []database.Filter
	ordering *database.Ordering
}

func (s *fakeStore) Query(ctx context.Context, collection string, filters []database.Filter, ordering *database.Ordering) ([]database.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, queryCall{filters: filters, ordering: ordering})
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	out := make([]database.Record, 0, len(s.records))
	for _, rec := range s.records {
		match := true
		for _, f := range filters {
			if rec[f.Column] != f.Value {
				match = false
			}
		}
		if match {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *fakeStore) Insert(ctx context.Context, collection string, record database.Record) (database.Record, error) {
	if s.insert != nil {
		return s.insert(record)
	}
	return record, nil
}

func (s *fakeStore) CallProcedure(ctx context.Context, name string, args map[string]any) (any, error) {
	s.mu.Lock()
	s.calls = append(s.calls, name)
	proc := s.procs[name]
	s.mu.Unlock()
	if proc == nil {
		return nil, &models.OrderError{Kind: models.ErrOperationFailed, Op: name}
	}
	return proc(args)
}

// fakeUpdater stands in for the repository in mutation tests.
type fakeUpdater struct {
	mu    sync.Mutex
	err   error
	calls int
	hook  func()
}

func (u *fakeUpdater) UpdateStatus(ctx context.Context, orderID string, status models.OrderStatus) (models.Order, error) {
	u.mu.Lock()
	u.calls++
	hook := u.hook
	u.mu.Unlock()
	if hook != nil {
		hook()
	}
	if u.err != nil {
		return models.Order{}, u.err
	}
	return models.Order{ID: orderID, Status: status}, nil
}

func threeOrders() []models.Order {
	base := time.Date(2024, 5, 1, 18, 0, 0, 0, time.UTC)
	return []models.Order{
		{ID: "o1", CustomerName: "Ana", OrderType: models.OrderTypeDelivery, Status: models.StatusPending, CreatedAt: base},
		{ID: "o2", CustomerName: "Bruno", OrderType: models.OrderTypeDelivery, Status: models.StatusConfirmed, CreatedAt: base.Add(time.Minute)},
		{ID: "o3", CustomerName: "Carla", OrderType: models.OrderTypePickup, Status: models.StatusPreparing, CreatedAt: base.Add(2 * time.Minute)},
	}
}

func eventually(t *testing.T, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
