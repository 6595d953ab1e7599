package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/easytech-h/fashion-to-yoncell/internal/activity"
	"github.com/easytech-h/fashion-to-yoncell/internal/domain"
	kvmemory "github.com/easytech-h/fashion-to-yoncell/internal/kv/memory"
	"github.com/easytech-h/fashion-to-yoncell/internal/store"
)

type testAPI struct {
	handler http.Handler
	orders  *store.OrderStore
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	ctx := context.Background()
	backend := kvmemory.New()
	feed := activity.NewRecorder(ctx, backend, nil)

	sales, err := store.NewSalesStore(ctx, backend, feed, nil)
	if err != nil {
		t.Fatalf("new sales store: %v", err)
	}
	orders, err := store.NewOrderStore(ctx, backend, sales, feed, nil, "Main Store")
	if err != nil {
		t.Fatalf("new order store: %v", err)
	}
	t.Cleanup(orders.Close)

	api := New(sales, orders, feed, "http://127.0.0.1:3000", nil)
	return testAPI{handler: api.Handler(), orders: orders}
}

func (ta testAPI) do(t *testing.T, method string, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ta.handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/v1/orders", domain.OrderInput{
		CustomerName:     "A",
		Items:            []domain.OrderItem{{ProductID: "p1", Qty: 2, PriceCents: 1000}},
		TotalCents:       2000,
		FinalAmountCents: 1800,
		DiscountCents:    200,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create order: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created struct {
		Order domain.Order `json:"order"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Order.SaleCreated {
		t.Fatalf("expected sale_created false on creation")
	}

	rec = ta.do(t, http.MethodPatch, "/api/v1/orders/"+created.Order.ID, map[string]any{
		"status": domain.OrderStatusCompleted,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("patch order: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	ta.orders.Flush()

	rec = ta.do(t, http.MethodGet, "/api/v1/sales", nil)
	var listed struct {
		Sales []domain.Sale `json:"sales"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode sales list: %v", err)
	}
	if len(listed.Sales) != 1 {
		t.Fatalf("expected one derived sale, got %d", len(listed.Sales))
	}
	if listed.Sales[0].TotalCents != 1800 {
		t.Fatalf("expected derived sale total 1800, got %d", listed.Sales[0].TotalCents)
	}

	rec = ta.do(t, http.MethodGet, "/api/v1/orders/"+created.Order.ID, nil)
	var fetched struct {
		Order domain.Order `json:"order"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if !fetched.Order.SaleCreated {
		t.Fatalf("expected sale_created true after derivation")
	}
}

func TestRecordAndClearSales(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/v1/sales", domain.SaleInput{
		Items:      []domain.SaleItem{{ProductID: "p2", Qty: 1, PriceCents: 300}},
		TotalCents: 300,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: expected 201, got %d", rec.Code)
	}
	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	rec = ta.do(t, http.MethodDelete, "/api/v1/sales", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("clear sales: expected 200, got %d", rec.Code)
	}

	rec = ta.do(t, http.MethodGet, "/api/v1/sales/"+created.Sale.ID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after clear, got %d", rec.Code)
	}
}

func TestCreateOrderRejectsUnknownStatus(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_name": "B",
		"status":        "shipped",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestUnknownFieldsRejected(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPost, "/api/v1/orders", map[string]any{
		"customer_name": "C",
		"surprise":      true,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodPut, "/api/v1/sales", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestActivityEndpoint(t *testing.T) {
	ta := newTestAPI(t)

	_ = ta.do(t, http.MethodPost, "/api/v1/orders", domain.OrderInput{CustomerName: "D"})

	rec := ta.do(t, http.MethodGet, "/api/v1/activity?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activity: expected 200, got %d", rec.Code)
	}
	var resp struct {
		Activity []domain.ActivityEntry `json:"activity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode activity: %v", err)
	}
	if len(resp.Activity) == 0 {
		t.Fatalf("expected at least one activity entry")
	}
	if resp.Activity[0].EventType != domain.EventOrderCreated {
		t.Fatalf("expected ORDER_CREATED first, got %s", resp.Activity[0].EventType)
	}
}

func TestOptionsPreflightShortCircuits(t *testing.T) {
	ta := newTestAPI(t)

	rec := ta.do(t, http.MethodOptions, "/api/v1/orders", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:3000" {
		t.Fatalf("unexpected CORS origin %q", got)
	}
}
