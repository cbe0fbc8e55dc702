package orders

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ashendes/order-saga/internal/catalog"
	"github.com/ashendes/order-saga/internal/clients"
	"github.com/ashendes/order-saga/internal/config"
	"github.com/ashendes/order-saga/internal/models"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/ashendes/order-saga/internal/payments"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
)

type stack struct {
	svc      *Service
	catalog  *catalog.Service
	payments *payments.Service
	charges  *int32
	// afterCharge runs once a charge was handled and before the reply is flushed.
	afterCharge atomic.Pointer[func()]
}

// newStack runs real catalog and payment handlers behind httptest servers.
// The first failCharges payment calls answer 503.
func newStack(t *testing.T, reserve bool, failCharges int32) *stack {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	st := &stack{}

	catSvc := catalog.NewService(logger,
		models.Product{ID: "p1", Name: "Pen", Price: models.MustMoney("10.00"), Stock: 5},
		models.Product{ID: "p2", Name: "Ink", Price: models.MustMoney("5.50"), Stock: 0},
		models.Product{ID: "p3", Name: "Pad", Price: models.MustMoney("5.50"), Stock: 1},
	)
	catRouter := gin.New()
	catalog.NewHandler(catSvc, patterns.NewChaos("e2e-catalog", logger), logger).Register(catRouter)
	catSrv := httptest.NewServer(catRouter)
	t.Cleanup(catSrv.Close)

	paySvc := payments.NewService(logger)
	payRouter := gin.New()
	var charges int32
	payRouter.Use(func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || c.FullPath() != "/payments/" {
			c.Next()
			return
		}
		if atomic.AddInt32(&charges, 1) <= failCharges {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
		if hook := st.afterCharge.Load(); hook != nil {
			(*hook)()
		}
	})
	payments.NewHandler(paySvc, patterns.NewChaos("e2e-payment", logger), logger).Register(payRouter)
	paySrv := httptest.NewServer(payRouter)
	t.Cleanup(paySrv.Close)

	ep := config.Endpoints{CatalogBaseURL: catSrv.URL, PaymentBaseURL: paySrv.URL, Timeout: time.Second}
	res := clients.Resilience{Service: "e2e", BulkheadSize: 4}
	retry := config.Retry{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	st.svc = NewService(
		clients.NewCatalogClient(ep, res, logger),
		clients.NewPaymentClient(ep, retry, res, logger),
		NewMemoryStore(),
		logger,
		Options{ReserveStock: reserve},
	)
	st.catalog = catSvc
	st.payments = paySvc
	st.charges = &charges
	return st
}

func TestEndToEnd_Scenarios(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		reserve     bool
		failCharges int32
		ids         []string
		wantStatus  models.OrderStatus
		wantReason  string
		wantCharges int32
		wantPayment *models.PaymentStatus
	}{
		{"paid", false, 0, []string{"p1", "p3"}, models.OrderStatusPaid, "", 1, statusPtr(models.PaymentStatusCompleted)},
		{"alice out of stock", false, 0, []string{"p1", "p2"}, models.OrderStatusCancelled, "Product Ink is out of stock.", 0, nil},
		{"unknown product", false, 0, []string{"nope"}, models.OrderStatusCancelled, "Product nope not found", 0, nil},
		{"retry then paid", false, 2, []string{"p1"}, models.OrderStatusPaid, "", 3, statusPtr(models.PaymentStatusCompleted)},
		{"payment exhausted", false, 100, []string{"p1"}, models.OrderStatusCancelled, ReasonPaymentFailed, 3, nil},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newStack(t, tt.reserve, tt.failCharges)
			ctx := context.Background()

			order, err := s.svc.CreateOrder(ctx, "Alice", tt.ids)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			if order.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, order.Status)
			}
			if tt.wantReason != "" && (order.CancellationReason == nil || *order.CancellationReason != tt.wantReason) {
				t.Fatalf("expected reason %q, got %v", tt.wantReason, order.CancellationReason)
			}
			if got := atomic.LoadInt32(s.charges); got != tt.wantCharges {
				t.Fatalf("expected %d charge calls, got %d", tt.wantCharges, got)
			}

			details, err := s.svc.GetOrderDetails(ctx, order.ID)
			if err != nil {
				t.Fatalf("details: %v", err)
			}
			switch {
			case tt.wantPayment == nil && details.PaymentStatus != nil:
				t.Fatalf("expected no payment status, got %s", *details.PaymentStatus)
			case tt.wantPayment != nil && (details.PaymentStatus == nil || *details.PaymentStatus != *tt.wantPayment):
				t.Fatalf("expected payment status %s, got %v", *tt.wantPayment, details.PaymentStatus)
			}
		})
	}
}

func TestEndToEnd_ReservationCompensatedOnPaymentFailure(t *testing.T) {
	t.Parallel()
	s := newStack(t, true, 100)

	order, err := s.svc.CreateOrder(context.Background(), "Bob", []string{"p1", "p3"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != models.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", order.Status)
	}
	for id, want := range map[string]int{"p1": 5, "p3": 1} {
		if p, _ := s.catalog.Get(id); p.Stock != want {
			t.Fatalf("%s: expected stock restored to %d, got %d", id, want, p.Stock)
		}
	}
}

func TestEndToEnd_LastUnitSoldOnce(t *testing.T) {
	t.Parallel()
	s := newStack(t, true, 0)
	ctx := context.Background()

	first, err := s.svc.CreateOrder(ctx, "Cat", []string{"p3"})
	if err != nil || first.Status != models.OrderStatusPaid {
		t.Fatalf("expected first order PAID, got %v (%v)", first, err)
	}
	second, err := s.svc.CreateOrder(ctx, "Dee", []string{"p3"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if second.Status != models.OrderStatusCancelled || *second.CancellationReason != "Product Pad is out of stock." {
		t.Fatalf("expected second order cancelled for stock, got %+v", second)
	}
}

func TestEndToEnd_CallerGoneAfterChargeStillPaid(t *testing.T) {
	t.Parallel()
	s := newStack(t, true, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hangUp := func() { cancel() }
	s.afterCharge.Store(&hangUp)

	order, err := s.svc.CreateOrder(ctx, "Eve", []string{"p1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ctx.Err() == nil {
		t.Fatalf("caller context was expected to be cancelled during the charge")
	}

	charged, err := s.payments.Get(order.ID)
	if err != nil {
		t.Fatalf("payment record: %v", err)
	}
	if charged.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED charge, got %s", charged.Status)
	}
	if order.Status != models.OrderStatusPaid {
		t.Fatalf("order %s contradicts the COMPLETED charge (reason %v)", order.Status, order.CancellationReason)
	}
	if p, _ := s.catalog.Get("p1"); p.Stock != 4 {
		t.Fatalf("expected the reserved unit to stay sold, stock %d", p.Stock)
	}
}

func statusPtr(s models.PaymentStatus) *models.PaymentStatus {
	return &s
}
