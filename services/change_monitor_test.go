package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-backoffice/database"
	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

type failingSink struct{}

func (failingSink) Publish(context.Context, realtime.ChangeEvent) error {
	return errors.New("broker unavailable")
}

func insertTestOrder(t *testing.T, store database.Store) database.Record {
	t.Helper()
	rec, err := store.Insert(context.Background(), database.CollectionOrders, database.Record{
		"order_type":      "delivery",
		"order_items":     `[{"name":"Pizza","price":30,"quantity":1}]`,
		"subtotal_amount": 30.0,
		"total_amount":    30.0,
	})
	require.NoError(t, err)
	return rec
}

func TestChangeMonitorPublishesInOrder(t *testing.T) {
	db := setupTestDB(t)
	store := database.NewGormStore(db, testLogger())
	broker := realtime.NewBroker(testLogger())
	defer broker.Close()

	sub, err := broker.Subscribe(context.Background(), OrdersKey, realtime.Filter{})
	require.NoError(t, err)
	defer sub.Unsubscribe()

	created := insertTestOrder(t, store)
	id := created["order_id"].(string)
	_, err = store.CallProcedure(context.Background(), database.ProcUpdateOrderStatus, map[string]any{
		"order_id": id,
		"status":   "confirmed",
	})
	require.NoError(t, err)

	monitor := NewChangeMonitor(db, testLogger(), broker)
	n, err := monitor.CheckChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	insert := <-sub.C
	assert.Equal(t, realtime.EventInsert, insert.Type)
	assert.Equal(t, id, insert.RecordID)
	assert.Equal(t, "pending", insert.New["status"])
	assert.Nil(t, insert.Old)

	update := <-sub.C
	assert.Equal(t, realtime.EventUpdate, update.Type)
	assert.Equal(t, "pending", update.Old["status"])
	assert.Equal(t, "confirmed", update.New["status"])

	var unprocessed int64
	require.NoError(t, db.Model(&models.DBChange{}).Where("processed = ?", false).Count(&unprocessed).Error)
	assert.Zero(t, unprocessed)

	n, err = monitor.CheckChanges(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChangeMonitorKeepsRowsWhenSinkFails(t *testing.T) {
	db := setupTestDB(t)
	store := database.NewGormStore(db, testLogger())
	insertTestOrder(t, store)

	monitor := NewChangeMonitor(db, testLogger(), failingSink{})
	n, err := monitor.CheckChanges(context.Background())
	assert.Error(t, err)
	assert.Zero(t, n)

	var unprocessed int64
	require.NoError(t, db.Model(&models.DBChange{}).Where("processed = ?", false).Count(&unprocessed).Error)
	assert.Equal(t, int64(1), unprocessed)
}

func TestChangeMonitorSkipsUndecodableRows(t *testing.T) {
	db := setupTestDB(t)
	broken := "{not json"
	require.NoError(t, db.Create(&models.DBChange{
		Collection: "orders",
		RecordID:   "x",
		ActionType: models.ActionUpdate,
		NewRecord:  &broken,
		ChangedAt:  time.Now(),
	}).Error)

	monitor := NewChangeMonitor(db, testLogger())
	n, err := monitor.CheckChanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChangeMonitorStartStop(t *testing.T) {
	db := setupTestDB(t)
	store := database.NewGormStore(db, testLogger())
	broker := realtime.NewBroker(testLogger())
	defer broker.Close()
	sub, err := broker.Subscribe(context.Background(), OrdersKey, realtime.Filter{})
	require.NoError(t, err)

	monitor := NewChangeMonitor(db, testLogger(), broker)
	monitor.Interval = 10 * time.Millisecond
	monitor.Start()
	defer monitor.Stop()

	insertTestOrder(t, store)
	select {
	case event := <-sub.C:
		assert.Equal(t, realtime.EventInsert, event.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("change was not published")
	}

	monitor.Stop()
	monitor.Stop()
}
