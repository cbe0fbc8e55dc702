package payments

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ashendes/order-saga/internal/models"
	"github.com/ashendes/order-saga/internal/patterns"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
)

func newRouter() (*gin.Engine, *Service, *patterns.Chaos) {
	gin.SetMode(gin.TestMode)
	logger, _ := test.NewNullLogger()
	svc := NewService(logger)
	chaos := patterns.NewChaos("payment-test", logger)
	r := gin.New()
	NewHandler(svc, chaos, logger).Register(r)
	return r, svc, chaos
}

func do(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestService_ChargeUpsertsByOrder(t *testing.T) {
	t.Parallel()
	logger, _ := test.NewNullLogger()
	svc := NewService(logger)

	first := svc.Charge("o1", models.MustMoney("0"))
	if first.Status != models.PaymentStatusFailed {
		t.Fatalf("expected FAILED for zero amount, got %s", first.Status)
	}
	second := svc.Charge("o1", models.MustMoney("12.30"))
	if second.Status != models.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", second.Status)
	}
	if second.ID != first.ID {
		t.Fatalf("expected one record per order, ids %s and %s", first.ID, second.ID)
	}

	got, err := svc.Get("o1")
	if err != nil || !got.Amount.Equal(models.MustMoney("12.3")) {
		t.Fatalf("unexpected stored payment %+v (%v)", got, err)
	}
	if _, err := svc.Get("o2"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestHandler_Charge(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		body       string
		wantCode   int
		wantStatus models.PaymentStatus
	}{
		{"completed", `{"order_id":"o1","amount":"15.50"}`, http.StatusCreated, models.PaymentStatusCompleted},
		{"numeric amount", `{"order_id":"o2","amount":15.5}`, http.StatusCreated, models.PaymentStatusCompleted},
		{"negative amount", `{"order_id":"o3","amount":"-1"}`, http.StatusCreated, models.PaymentStatusFailed},
		{"missing order", `{"amount":"1"}`, http.StatusBadRequest, ""},
		{"missing amount", `{"order_id":"o4"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r, _, _ := newRouter()
			w := do(t, r, http.MethodPost, "/payments/", tt.body)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, w.Code, w.Body.String())
			}
			if tt.wantStatus == "" {
				return
			}
			var p models.Payment
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if p.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, p.Status)
			}
		})
	}
}

func TestHandler_GetPayment(t *testing.T) {
	t.Parallel()
	r, svc, _ := newRouter()
	svc.Charge("o1", models.MustMoney("3.00"))

	w := do(t, r, http.MethodGet, "/payments/o1/", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var p models.Payment
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil || p.Status != models.PaymentStatusCompleted {
		t.Fatalf("unexpected body %s (%v)", w.Body.String(), err)
	}

	if w := do(t, r, http.MethodGet, "/payments/unknown/", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestHandler_ChaosRejectsCharges(t *testing.T) {
	t.Parallel()
	r, svc, chaos := newRouter()
	chaos.SetProfile(1, 0, 0)
	if w := do(t, r, http.MethodPost, "/chaos/payment/enable", ""); w.Code != http.StatusOK {
		t.Fatalf("enable chaos: %d", w.Code)
	}

	if w := do(t, r, http.MethodPost, "/payments/", `{"order_id":"o1","amount":"1"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	if _, err := svc.Get("o1"); !errors.Is(err, ErrPaymentNotFound) {
		t.Fatalf("rejected charge must not be recorded")
	}
}
