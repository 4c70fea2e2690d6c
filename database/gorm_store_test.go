package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yeremiapane/restaurant-backoffice/models"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Customer{},
		&models.Address{},
		&models.OrderRow{},
		&models.DBChange{},
	))
	return db
}

func newTestStore(t *testing.T) (*GormStore, *gorm.DB) {
	db := setupTestDB(t)
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return NewGormStore(db, log), db
}

func insertOrder(t *testing.T, s *GormStore, orderType string) Record {
	t.Helper()
	rec, err := s.Insert(context.Background(), CollectionOrders, Record{
		"order_type":      orderType,
		"order_items":     []map[string]any{{"name": "Pizza", "price": 30.0, "quantity": 2}},
		"subtotal_amount": 60.0,
		"shipping_cost":   5.0,
		"total_amount":    65.0,
	})
	require.NoError(t, err)
	return rec
}

func TestInsertOrder(t *testing.T) {
	s, db := newTestStore(t)

	rec := insertOrder(t, s, "delivery")

	assert.NotEmpty(t, rec["order_id"])
	assert.Equal(t, "pending", rec["status"])
	assert.Equal(t, "delivery", rec["order_type"])
	assert.Equal(t, 65.0, rec["total_amount"])
	assert.Nil(t, rec["viewed_at"])
	assert.JSONEq(t, `[{"name":"Pizza","price":30,"quantity":2}]`, rec["order_items"].(string))

	var changes []models.DBChange
	require.NoError(t, db.Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Equal(t, models.ActionInsert, changes[0].ActionType)
	assert.Equal(t, "orders", changes[0].Collection)
	assert.Nil(t, changes[0].OldRecord)
	assert.NotNil(t, changes[0].NewRecord)
}

func TestInsertOrderValidation(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Insert(ctx, CollectionOrders, Record{"order_type": "dine_in"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.Insert(ctx, CollectionOrders, Record{"order_type": "pickup", "total_amount": -1.0})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.Insert(ctx, CollectionOrders, Record{"order_type": "pickup", "customer_id": uint(99)})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.Insert(ctx, "menus", Record{})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestQueryJoinsAndSorts(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	phone := "81999990000"
	customer := models.Customer{Name: "João Silva", Phone: &phone}
	require.NoError(t, db.Create(&customer).Error)
	address := models.Address{CustomerID: customer.ID, Street: "Rua A", Number: "10", City: "Recife"}
	require.NoError(t, db.Create(&address).Error)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	first := insertOrder(t, s, "pickup")

	s.now = func() time.Time { return base.Add(time.Minute) }
	second, err := s.Insert(ctx, CollectionOrders, Record{
		"order_type":          "delivery",
		"customer_id":         customer.ID,
		"delivery_address_id": address.ID,
	})
	require.NoError(t, err)

	records, err := s.Query(ctx, CollectionOrders, nil, &Ordering{Column: "created_at", Desc: true})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, second["order_id"], records[0]["order_id"])
	assert.Equal(t, first["order_id"], records[1]["order_id"])

	joined := records[0]["customer"].(Record)
	assert.Equal(t, "João Silva", joined["name"])
	assert.Equal(t, "Rua A", records[0]["delivery_address"].(Record)["street"])
	assert.Equal(t, "[]", records[0]["order_items"])

	byCustomer, err := s.Query(ctx, CollectionOrders, []Filter{{Column: "customer_id", Value: customer.ID}}, nil)
	require.NoError(t, err)
	assert.Len(t, byCustomer, 1)

	_, err = s.Query(ctx, CollectionOrders, []Filter{{Column: "total_amount; DROP TABLE orders", Value: 1}}, nil)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateOrderStatus(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	rec := insertOrder(t, s, "delivery")
	id := rec["order_id"].(string)

	later := time.Now().Add(time.Hour)
	s.now = func() time.Time { return later }

	result, err := s.CallProcedure(ctx, ProcUpdateOrderStatus, map[string]any{"order_id": id, "status": "confirmed"})
	require.NoError(t, err)
	updated := result.(Record)
	assert.Equal(t, "confirmed", updated["status"])
	assert.WithinDuration(t, later, updated["last_updated_at"].(time.Time), time.Second)

	var changes []models.DBChange
	require.NoError(t, db.Where("action_type = ?", models.ActionUpdate).Find(&changes).Error)
	require.Len(t, changes, 1)
	assert.Contains(t, *changes[0].OldRecord, `"status":"pending"`)
	assert.Contains(t, *changes[0].NewRecord, `"status":"confirmed"`)
}

func TestUpdateOrderStatusRejectsIllegalTransition(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	id := insertOrder(t, s, "delivery")["order_id"].(string)

	_, err := s.CallProcedure(ctx, ProcUpdateOrderStatus, map[string]any{"order_id": id, "status": "out_for_delivery"})
	assert.ErrorIs(t, err, models.ErrValidation)

	var row models.OrderRow
	require.NoError(t, db.Where("order_id = ?", id).First(&row).Error)
	assert.Equal(t, "pending", row.Status)

	var count int64
	db.Model(&models.DBChange{}).Where("action_type = ?", models.ActionUpdate).Count(&count)
	assert.Zero(t, count)
}

func TestUpdateOrderStatusErrors(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.CallProcedure(ctx, ProcUpdateOrderStatus, map[string]any{"order_id": "missing", "status": "confirmed"})
	assert.ErrorIs(t, err, models.ErrNotFound)

	_, err = s.CallProcedure(ctx, ProcUpdateOrderStatus, map[string]any{"order_id": "x", "status": "teleported"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.CallProcedure(ctx, ProcUpdateOrderStatus, map[string]any{"status": "confirmed"})
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.CallProcedure(ctx, "drop_everything", nil)
	assert.ErrorIs(t, err, models.ErrOperationFailed)
}

func TestPickupLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	id := insertOrder(t, s, "pickup")["order_id"].(string)

	for _, status := range []string{"confirmed", "preparing", "completed"} {
		_, err := s.CallProcedure(ctx, ProcUpdateOrderStatus, map[string]any{"order_id": id, "status": status})
		require.NoError(t, err, status)
	}

	_, err := s.CallProcedure(ctx, ProcUpdateOrderStatus, map[string]any{"order_id": id, "status": "cancelled"})
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestMarkViewedAndPendingCount(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	a := insertOrder(t, s, "pickup")["order_id"].(string)
	insertOrder(t, s, "delivery")

	count, err := s.CallProcedure(ctx, ProcPendingOrdersCount, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	affected, err := s.CallProcedure(ctx, ProcMarkOrdersViewed, map[string]any{"order_ids": []any{a, "unknown"}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = s.CallProcedure(ctx, ProcMarkOrdersViewed, map[string]any{"order_ids": []string{a}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	count, err = s.CallProcedure(ctx, ProcPendingOrdersCount, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDeleteOrder(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()
	id := insertOrder(t, s, "pickup")["order_id"].(string)

	_, err := s.CallProcedure(ctx, ProcDeleteOrder, map[string]any{"order_id": id})
	require.NoError(t, err)

	_, err = s.CallProcedure(ctx, ProcDeleteOrder, map[string]any{"order_id": id})
	assert.ErrorIs(t, err, models.ErrNotFound)

	var change models.DBChange
	require.NoError(t, db.Where("action_type = ?", models.ActionDelete).First(&change).Error)
	assert.Equal(t, id, change.RecordID)
	assert.Nil(t, change.NewRecord)
}

func TestTopSellingProducts(t *testing.T) {
	s, db := newTestStore(t)
	ctx := context.Background()

	rows := []models.OrderRow{
		{OrderID: "1", OrderType: "pickup", Status: "completed", OrderItems: `[{"name":"Pizza","price":"30,00","quantity":2}]`},
		{OrderID: "2", OrderType: "pickup", Status: "completed", OrderItems: `{"items":[{"nome":"Pizza","preco":30,"qtd":1},{"name":"Suco","price":8}]}`},
		{OrderID: "3", OrderType: "pickup", Status: "pending", OrderItems: `[{"name":"Suco","quantity":10}]`},
		{OrderID: "4", OrderType: "pickup", Status: "completed", OrderItems: `garbage`},
	}
	for i := range rows {
		rows[i].CreatedAt = time.Now()
		rows[i].LastUpdatedAt = time.Now()
		require.NoError(t, db.Create(&rows[i]).Error)
	}

	result, err := s.CallProcedure(ctx, ProcTopSellingProducts, map[string]any{"limit": 5})
	require.NoError(t, err)
	top := result.([]models.ProductSales)
	require.Len(t, top, 2)
	assert.Equal(t, models.ProductSales{Name: "Pizza", Quantity: 3, Revenue: 90}, top[0])
	assert.Equal(t, models.ProductSales{Name: "Suco", Quantity: 1, Revenue: 8}, top[1])

	result, err = s.CallProcedure(ctx, ProcTopSellingProducts, map[string]any{"limit": 1.0})
	require.NoError(t, err)
	assert.Len(t, result.([]models.ProductSales), 1)
}
