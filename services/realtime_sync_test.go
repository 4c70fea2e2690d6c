package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/restaurant-backoffice/cache"
	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/realtime"
)

type failingTransport struct{}

func (failingTransport) Subscribe(context.Context, string, realtime.Filter) (*realtime.Subscription, error) {
	return nil, errors.New("websocket refused")
}

func TestRealtimeSyncInvalidatesAndNotifies(t *testing.T) {
	broker := realtime.NewBroker(testLogger())
	defer broker.Close()
	server := &fakeServer{orders: threeOrders()}
	c := loadedCache(t, server)
	notifier := &RecordingNotifier{}

	sync := NewRealtimeSync(broker, c, notifier, testLogger())
	loading, err := sync.Status()
	assert.True(t, loading)
	assert.NoError(t, err)

	sync.Start(context.Background())
	defer sync.Stop()
	require.True(t, eventually(t, func() bool { return sync.State() == SyncReady }))

	ctx := context.Background()
	require.NoError(t, broker.Publish(ctx, realtime.ChangeEvent{Type: realtime.EventInsert, Collection: OrdersKey, RecordID: "o4"}))
	require.NoError(t, broker.Publish(ctx, realtime.ChangeEvent{
		Type: realtime.EventUpdate, Collection: OrdersKey, RecordID: "o1",
		New: map[string]any{"status": "confirmed"},
	}))
	require.NoError(t, broker.Publish(ctx, realtime.ChangeEvent{
		Type: realtime.EventUpdate, Collection: OrdersKey, RecordID: "o1",
		New: map[string]any{"viewed_at": "2024-05-01T12:00:00Z"},
	}))
	require.NoError(t, broker.Publish(ctx, realtime.ChangeEvent{Type: realtime.EventDelete, Collection: OrdersKey, RecordID: "o2"}))
	require.NoError(t, broker.Publish(ctx, realtime.ChangeEvent{Type: realtime.EventInsert, Collection: "customers", RecordID: "9"}))

	require.True(t, eventually(t, func() bool { return len(notifier.Notices()) == 3 }))
	messages := []string{}
	for _, n := range notifier.Notices() {
		assert.Equal(t, models.NotificationInfo, n.Level)
		messages = append(messages, n.Message)
	}
	assert.Equal(t, []string{"Novo pedido recebido!", "Pedido atualizado: Confirmado", "Pedido removido"}, messages)
	assert.True(t, eventually(t, func() bool { return atomic.LoadInt32(&server.fetches) > 1 }))
}

func TestRealtimeSyncReportsSubscribeFailure(t *testing.T) {
	c := cache.New(testLogger())
	defer c.Close()

	sync := NewRealtimeSync(failingTransport{}, c, nil, testLogger())
	sync.Start(context.Background())
	require.True(t, eventually(t, func() bool { return sync.State() == SyncError }))

	loading, err := sync.Status()
	assert.False(t, loading)
	assert.ErrorIs(t, err, models.ErrTransport)
	assert.Contains(t, err.Error(), "websocket refused")

	sync.Stop()
	assert.Equal(t, SyncError, sync.State())
}

func TestRealtimeSyncClosedFeed(t *testing.T) {
	broker := realtime.NewBroker(testLogger())
	c := cache.New(testLogger())
	defer c.Close()

	sync := NewRealtimeSync(broker, c, nil, testLogger())
	sync.Start(context.Background())
	require.True(t, eventually(t, func() bool { return sync.State() == SyncReady }))

	broker.Close()
	require.True(t, eventually(t, func() bool { return sync.State() == SyncError }))
	sync.Stop()
}

func TestRealtimeSyncStop(t *testing.T) {
	broker := realtime.NewBroker(testLogger())
	defer broker.Close()
	c := cache.New(testLogger())
	defer c.Close()

	sync := NewRealtimeSync(broker, c, nil, testLogger())
	sync.Start(context.Background())
	require.True(t, eventually(t, func() bool { return sync.State() == SyncReady }))

	sync.Stop()
	assert.Equal(t, SyncStopped, sync.State())
	sync.Stop()
}

func TestChangeMessage(t *testing.T) {
	msg, ok := changeMessage(realtime.ChangeEvent{Type: realtime.EventUpdate, New: map[string]any{"status": "out_for_delivery"}})
	assert.True(t, ok)
	assert.Equal(t, "Pedido atualizado: Saiu para entrega", msg)

	_, ok = changeMessage(realtime.ChangeEvent{Type: realtime.EventUpdate})
	assert.False(t, ok)

	_, ok = changeMessage(realtime.ChangeEvent{Type: "TRUNCATE"})
	assert.False(t, ok)
}
