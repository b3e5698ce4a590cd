package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"

	"github.com/betselot/herdstore/internal/core/domain"
	"github.com/betselot/herdstore/internal/port"
)

func getMySQLDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("MYSQL_DSN")
	if dsn == "" {
		dsn = "root:root@tcp(localhost:3306)/herdstore?parseTime=true"
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}

	return db
}

type fixture struct {
	adapter *MySQLAdapter
	db      *sql.DB
	buyer   *domain.Buyer
	animal  int64
}

// setupFixture seeds one available animal and one buyer, and tears both
// down (with any orders and dedup rows they accrued) after the test.
func setupFixture(t *testing.T, price int64) *fixture {
	t.Helper()
	db := getMySQLDB(t)
	adapter := NewMySQLAdapter(db)
	ctx := context.Background()

	animalID, err := adapter.CreateAnimal(ctx, domain.Animal{
		Kind: "goat", Size: "medium", Price: price, Available: true,
	})
	if err != nil {
		t.Fatalf("create animal: %v", err)
	}

	telegramID := "test-" + uuid.NewString()
	buyer, err := adapter.UpsertBuyer(ctx, domain.Buyer{TelegramID: telegramID, Name: "Test Buyer"})
	if err != nil {
		t.Fatalf("upsert buyer: %v", err)
	}

	t.Cleanup(func() {
		db.ExecContext(ctx, `DELETE FROM processed_events WHERE order_id IN (SELECT id FROM orders WHERE animal_id = ?)`, animalID)
		db.ExecContext(ctx, `DELETE FROM processed_events WHERE event_id LIKE 'test-%'`)
		db.ExecContext(ctx, `DELETE FROM orders WHERE animal_id = ?`, animalID)
		db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, buyer.ID)
		db.ExecContext(ctx, `DELETE FROM animals WHERE id = ?`, animalID)
		db.Close()
	})

	return &fixture{adapter: adapter, db: db, buyer: buyer, animal: animalID}
}

func testEventID() string {
	return "test-" + uuid.NewString()
}

func TestPlaceOrder_CommitsAndFlipsAvailability(t *testing.T) {
	f := setupFixture(t, 5000)
	ctx := context.Background()

	placed, err := f.adapter.PlaceOrder(ctx, testEventID(), domain.Order{
		BuyerID:       f.buyer.ID,
		AnimalID:      f.animal,
		Quantity:      2,
		PaymentMethod: "cod",
		Status:        domain.OrderStatusPending,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}
	if placed.Replayed {
		t.Error("fresh event must not be marked replayed")
	}
	if placed.Confirmation.TotalPrice != 10000 {
		t.Errorf("expected total 10000, got %d", placed.Confirmation.TotalPrice)
	}
	if placed.Confirmation.Status != domain.OrderStatusPending {
		t.Errorf("expected pending, got %s", placed.Confirmation.Status)
	}

	var available bool
	f.db.QueryRowContext(ctx, `SELECT available FROM animals WHERE id = ?`, f.animal).Scan(&available)
	if available {
		t.Error("animal still available after reservation")
	}

	var outcome string
	var orderID sql.NullInt64
	err = f.db.QueryRowContext(ctx, `
		SELECT e.outcome, e.order_id FROM processed_events e
		JOIN orders o ON o.id = e.order_id WHERE o.animal_id = ?`, f.animal,
	).Scan(&outcome, &orderID)
	if err != nil {
		t.Fatalf("dedup row missing: %v", err)
	}
	if outcome != "ordered" || orderID.Int64 != placed.Confirmation.OrderID {
		t.Errorf("dedup row outcome=%s order_id=%d, want ordered/%d", outcome, orderID.Int64, placed.Confirmation.OrderID)
	}
}

func TestPlaceOrder_SecondEventSoldOut(t *testing.T) {
	f := setupFixture(t, 5000)
	ctx := context.Background()

	draft := domain.Order{
		BuyerID: f.buyer.ID, AnimalID: f.animal, Quantity: 1,
		PaymentMethod: "cod", Status: domain.OrderStatusPending,
	}

	if _, err := f.adapter.PlaceOrder(ctx, testEventID(), draft); err != nil {
		t.Fatalf("first PlaceOrder failed: %v", err)
	}

	_, err := f.adapter.PlaceOrder(ctx, testEventID(), draft)
	if !errors.Is(err, port.ErrAnimalUnavailable) {
		t.Errorf("expected ErrAnimalUnavailable, got: %v", err)
	}

	var count int
	f.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE animal_id = ?`, f.animal).Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 order, got %d", count)
	}
}

func TestPlaceOrder_MissingAnimal(t *testing.T) {
	f := setupFixture(t, 5000)

	_, err := f.adapter.PlaceOrder(context.Background(), testEventID(), domain.Order{
		BuyerID: f.buyer.ID, AnimalID: -1, Quantity: 1,
		PaymentMethod: "cod", Status: domain.OrderStatusPending,
	})
	if !errors.Is(err, port.ErrAnimalUnavailable) {
		t.Errorf("expected ErrAnimalUnavailable, got: %v", err)
	}
}

func TestPlaceOrder_RedeliveryReplays(t *testing.T) {
	f := setupFixture(t, 5000)
	ctx := context.Background()
	eventID := testEventID()

	draft := domain.Order{
		BuyerID: f.buyer.ID, AnimalID: f.animal, Quantity: 1,
		PaymentMethod: "cod", Status: domain.OrderStatusPending,
	}

	first, err := f.adapter.PlaceOrder(ctx, eventID, draft)
	if err != nil {
		t.Fatalf("first PlaceOrder failed: %v", err)
	}

	second, err := f.adapter.PlaceOrder(ctx, eventID, draft)
	if err != nil {
		t.Fatalf("redelivery failed: %v", err)
	}
	if !second.Replayed {
		t.Error("redelivery must be marked replayed")
	}
	if second.Confirmation != first.Confirmation {
		t.Errorf("replayed %+v differs from original %+v", second.Confirmation, first.Confirmation)
	}

	var count int
	f.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders WHERE animal_id = ?`, f.animal).Scan(&count)
	if count != 1 {
		t.Errorf("expected exactly 1 order, got %d", count)
	}
}

func TestPlaceOrder_DuplicateWithoutOrder(t *testing.T) {
	f := setupFixture(t, 5000)
	ctx := context.Background()
	eventID := testEventID()

	if _, err := f.db.ExecContext(ctx, `
		INSERT INTO processed_events (event_id, outcome, processed_at) VALUES (?, 'accepted', NOW())`,
		eventID); err != nil {
		t.Fatalf("seed dedup row: %v", err)
	}

	_, err := f.adapter.PlaceOrder(ctx, eventID, domain.Order{
		BuyerID: f.buyer.ID, AnimalID: f.animal, Quantity: 1,
		PaymentMethod: "cod", Status: domain.OrderStatusPending,
	})
	if !errors.Is(err, port.ErrDuplicateEvent) {
		t.Errorf("expected ErrDuplicateEvent, got: %v", err)
	}
}

func TestPlaceOrder_Concurrent(t *testing.T) {
	f := setupFixture(t, 5000)
	totalRequests := 10

	var successCount atomic.Int32
	var soldOutCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := f.adapter.PlaceOrder(context.Background(), fmt.Sprintf("test-conc-%s-%d", uuid.NewString(), n), domain.Order{
				BuyerID: f.buyer.ID, AnimalID: f.animal, Quantity: 1,
				PaymentMethod: "cod", Status: domain.OrderStatusPending,
			})
			if err == nil {
				successCount.Add(1)
			} else if errors.Is(err, port.ErrAnimalUnavailable) {
				soldOutCount.Add(1)
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}
	if soldOutCount.Load() != int32(totalRequests-1) {
		t.Errorf("expected %d sold-out, got %d", totalRequests-1, soldOutCount.Load())
	}
}

func TestGetBuyerByTelegramID_NotFound(t *testing.T) {
	db := getMySQLDB(t)
	defer db.Close()

	buyer, err := NewMySQLAdapter(db).GetBuyerByTelegramID(context.Background(), "no-such-"+uuid.NewString())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buyer != nil {
		t.Error("expected nil for unknown buyer")
	}
}

func TestUpsertBuyer_Idempotent(t *testing.T) {
	f := setupFixture(t, 5000)
	ctx := context.Background()

	updated, err := f.adapter.UpsertBuyer(ctx, domain.Buyer{
		TelegramID: f.buyer.TelegramID, Name: "Renamed", Phone: "0911", Language: "en",
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if updated.ID != f.buyer.ID {
		t.Errorf("upsert created a new row: %d vs %d", updated.ID, f.buyer.ID)
	}
	if updated.Name != "Renamed" || updated.Phone != "0911" {
		t.Errorf("profile not refreshed: %+v", updated)
	}
}

func TestLatestOrders_ExcludesCancelled(t *testing.T) {
	f := setupFixture(t, 5000)
	ctx := context.Background()

	placed, err := f.adapter.PlaceOrder(ctx, testEventID(), domain.Order{
		BuyerID: f.buyer.ID, AnimalID: f.animal, Quantity: 1,
		PaymentMethod: "cod", Status: domain.OrderStatusPending,
	})
	if err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	summaries, err := f.adapter.LatestOrders(ctx, 50)
	if err != nil {
		t.Fatalf("LatestOrders failed: %v", err)
	}
	if !containsOrder(summaries, placed.Confirmation.OrderID) {
		t.Fatalf("fresh order %d missing from report", placed.Confirmation.OrderID)
	}

	if _, err := f.db.ExecContext(ctx, `UPDATE orders SET status = 'cancelled' WHERE id = ?`,
		placed.Confirmation.OrderID); err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	summaries, err = f.adapter.LatestOrders(ctx, 50)
	if err != nil {
		t.Fatalf("LatestOrders failed: %v", err)
	}
	if containsOrder(summaries, placed.Confirmation.OrderID) {
		t.Errorf("cancelled order %d still in report", placed.Confirmation.OrderID)
	}
}

func containsOrder(summaries []domain.OrderSummary, orderID int64) bool {
	for _, s := range summaries {
		if s.ID == orderID {
			return true
		}
	}
	return false
}

func TestSalesByKind(t *testing.T) {
	f := setupFixture(t, 5000)
	ctx := context.Background()

	if _, err := f.adapter.PlaceOrder(ctx, testEventID(), domain.Order{
		BuyerID: f.buyer.ID, AnimalID: f.animal, Quantity: 1,
		PaymentMethod: "cod", Status: domain.OrderStatusPending,
	}); err != nil {
		t.Fatalf("PlaceOrder failed: %v", err)
	}

	stats, err := f.adapter.SalesByKind(ctx)
	if err != nil {
		t.Fatalf("SalesByKind failed: %v", err)
	}

	found := false
	for _, s := range stats {
		if s.Kind == "goat" && s.Count >= 1 && s.Total >= 5000 {
			found = true
		}
	}
	if !found {
		t.Errorf("expected goat sales in stats, got %+v", stats)
	}
}
