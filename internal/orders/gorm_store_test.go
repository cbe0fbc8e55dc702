package orders

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/ashendes/order-saga/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus/hooks/test"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSQLiteStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "orders.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store, err := NewGormStore(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestGormStore_Lifecycle(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx := context.Background()

	order := models.NewOrder("Alice")
	if err := store.Create(ctx, order); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.OrderStatusPendingCreation || got.TotalAmount != nil || got.CancellationReason != nil {
		t.Fatalf("expected pending order with null total and reason, got %+v", got)
	}
	if got.CustomerName != "Alice" {
		t.Fatalf("customer name lost: %q", got.CustomerName)
	}

	if err := order.MarkAwaitingPayment(models.MustMoney("15.50")); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := store.Update(ctx, order); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Writing the same state again is not an error.
	if err := store.Update(ctx, order); err != nil {
		t.Fatalf("repeat update: %v", err)
	}

	if err := order.Cancel(ReasonPaymentFailed); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := store.Update(ctx, order); err != nil {
		t.Fatalf("update to cancelled: %v", err)
	}
	got, err = store.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != models.OrderStatusCancelled || got.TotalAmount == nil || !got.TotalAmount.Equal(models.MustMoney("15.5")) {
		t.Fatalf("expected cancelled order keeping its total, got %+v", got)
	}
	if got.CancellationReason == nil || *got.CancellationReason != ReasonPaymentFailed {
		t.Fatalf("expected reason %q, got %v", ReasonPaymentFailed, got.CancellationReason)
	}
}

func TestGormStore_RejectsUpdatesToTerminalOrders(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx := context.Background()

	for _, terminal := range []models.OrderStatus{models.OrderStatusPaid, models.OrderStatusCancelled} {
		order := models.NewOrder("Bob")
		if err := store.Create(ctx, order); err != nil {
			t.Fatalf("create: %v", err)
		}
		_ = order.MarkAwaitingPayment(models.MustMoney("10"))
		if err := store.Update(ctx, order); err != nil {
			t.Fatalf("update: %v", err)
		}
		if terminal == models.OrderStatusPaid {
			_ = order.MarkPaid()
		} else {
			_ = order.Cancel("Product p1 not found")
		}
		if err := store.Update(ctx, order); err != nil {
			t.Fatalf("update to %s: %v", terminal, err)
		}

		rewrite := order.Clone()
		rewrite.Status = models.OrderStatusAwaitingPayment
		if err := store.Update(ctx, rewrite); !errors.Is(err, models.ErrOrderFinalized) {
			t.Fatalf("%s: expected ErrOrderFinalized, got %v", terminal, err)
		}
		got, err := store.Get(ctx, order.ID)
		if err != nil || got.Status != terminal {
			t.Fatalf("%s: stored order changed to %+v (%v)", terminal, got, err)
		}
	}
}

func TestGormStore_NotFound(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on get, got %v", err)
	}
	if err := store.Update(ctx, models.NewOrder("x")); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on update, got %v", err)
	}
}

func TestGormStore_BacksTheSaga(t *testing.T) {
	t.Parallel()
	store := newSQLiteStore(t)
	log, _ := test.NewNullLogger()
	catalog := newFakeCatalog(product("p1", "Pen", "10.00", 5), product("p2", "Ink", "5.50", 0))
	svc := NewService(catalog, newFakePayments(), store, log, Options{})

	paid, err := svc.CreateOrder(context.Background(), "Cat", []string{"p1"})
	if err != nil || paid.Status != models.OrderStatusPaid {
		t.Fatalf("expected PAID, got %v (%v)", paid, err)
	}
	cancelled, err := svc.CreateOrder(context.Background(), "Dee", []string{"p1", "p2"})
	if err != nil || cancelled.Status != models.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %v (%v)", cancelled, err)
	}

	details, err := svc.GetOrderDetails(context.Background(), cancelled.ID)
	if err != nil {
		t.Fatalf("details: %v", err)
	}
	if details.TotalAmount != nil || details.CancellationReason == nil || *details.CancellationReason != "Product Ink is out of stock." {
		t.Fatalf("unexpected stored cancellation %+v", details.Order)
	}
}
