package web_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/adapters/web"
	"accounting-engine/internal/app"
	"accounting-engine/internal/core"
	"accounting-engine/internal/store/memory"
)

type envelope struct {
	Code      string `json:"code"`
	Status    int    `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type testServer struct {
	handler http.Handler
	seed    memory.Seed
}

func newTestServer(t *testing.T, bodyLimit int64) *testServer {
	t.Helper()
	store, seed := memory.NewSeeded(decimal.NewFromInt(100000))
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := app.NewAppService(store, nil, logger, 0)
	return &testServer{
		handler: web.NewHandler(svc, logger, web.Options{RequestBodyLimit: bodyLimit}),
		seed:    seed,
	}
}

func (s *testServer) do(t *testing.T, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) purchaseBody(paymentType string, qty int, price string) string {
	return fmt.Sprintf(`{"supplier_id":%d,"date":"2025-01-10T00:00:00Z","payment_type":%q,
		"lines":[{"product_id":%d,"quantity":%d,"unit_price":%q}]}`,
		s.seed.Supplier.ID, paymentType, s.seed.Widget.ID, qty, price)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","inventory_method":"FIFO"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestPurchaseLifecycle(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPost, "/api/purchases", s.purchaseBody("CASH", 10, "1000"), "X-Actor", "clerk")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[core.Purchase](t, rec)
	assert.Equal(t, "11000.00", p.Total.StringFixed(2))
	assert.Equal(t, "clerk", p.CreatedBy)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/purchases/%d", p.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/journals/%d", p.JournalID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/trial-balance", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tb := decode[app.TrialBalanceResult](t, rec)
	assert.True(t, tb.Balanced)

	rec = s.do(t, http.MethodGet, "/api/stock", "")
	require.Equal(t, http.StatusOK, rec.Code)
	levels := decode[[]core.StockLevel](t, rec)
	require.NotEmpty(t, levels)
	assert.Equal(t, 10, levels[0].OnHand)

	rec = s.do(t, http.MethodGet, "/api/reconciliation", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/purchases/%d", p.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/purchases/%d", p.ID), "", "X-Request-ID", "req-42")
	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decode[envelope](t, rec)
	assert.Equal(t, "NOT_FOUND", env.Code)
	assert.Equal(t, http.StatusNotFound, env.Status)
	assert.Equal(t, "req-42", env.RequestID)
}

func TestRequestErrors(t *testing.T) {
	s := newTestServer(t, 256)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"empty lines", http.MethodPost, "/api/purchases",
			fmt.Sprintf(`{"supplier_id":%d,"date":"2025-01-10T00:00:00Z","payment_type":"CASH","lines":[]}`, s.seed.Supplier.ID),
			http.StatusBadRequest, "VALIDATION_FAILED"},
		{"unknown field", http.MethodPost, "/api/sales", `{"customer":1}`, http.StatusBadRequest, "VALIDATION_FAILED"},
		{"malformed id", http.MethodGet, "/api/sales/abc", "", http.StatusBadRequest, "VALIDATION_FAILED"},
		{"oversell", http.MethodPost, "/api/sales",
			fmt.Sprintf(`{"customer_id":%d,"date":"2025-01-10T00:00:00Z","payment_type":"CASH","lines":[{"product_id":%d,"quantity":1,"unit_price":"10"}]}`,
				s.seed.Customer.ID, s.seed.Widget.ID),
			http.StatusBadRequest, "INSUFFICIENT_STOCK"},
		{"bad method", http.MethodPut, "/api/settings/inventory-method", `{"inventory_method":"HIFO"}`,
			http.StatusBadRequest, "VALIDATION_FAILED"},
		{"too large", http.MethodPost, "/api/purchases", `{"supplier_id":1,"pad":"` + strings.Repeat("x", 512) + `"}`,
			http.StatusRequestEntityTooLarge, "REQUEST_TOO_LARGE"},
		{"unknown schema", http.MethodGet, "/api/schemas/invoice", "", http.StatusNotFound, "NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			env := decode[envelope](t, rec)
			assert.Equal(t, tt.code, env.Code)
			assert.Equal(t, tt.status, env.Status)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestPayablePayments(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodPost, "/api/purchases", s.purchaseBody("CREDIT", 1, "1000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/payables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]core.Obligation](t, rec)
	require.Len(t, list, 1)
	o := list[0]

	rec = s.do(t, http.MethodGet, "/api/receivables", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	pay := `{"amount":"400","payment_date":"2025-01-12T00:00:00Z","method":"CASH"}`
	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/payables/%d/payments", o.ID), pay)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	p := decode[core.Payment](t, rec)

	// A payment is only reachable through its own obligation.
	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/payables/%d/payments/%d", o.ID+1, p.ID), pay)
	require.Equal(t, http.StatusNotFound, rec.Code)

	update := `{"amount":"600","payment_date":"2025-01-13T00:00:00Z","method":"TRANSFER"}`
	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/payables/%d/payments/%d", o.ID, p.ID), update)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[core.Payment](t, rec)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/payables/%d", o.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[app.ObligationResult](t, rec)
	assert.Equal(t, core.StatusPartial, got.Obligation.Status)
	assert.Equal(t, "500.00", got.Obligation.RemainingAmount.StringFixed(2))
	require.Len(t, got.Payments, 1)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/payables/%d/payments/%d", o.ID, updated.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/payables/%d", o.ID), "")
	got = decode[app.ObligationResult](t, rec)
	assert.Equal(t, core.StatusUnpaid, got.Obligation.Status)
	assert.Empty(t, got.Payments)
}

func TestSettingsAndMargin(t *testing.T) {
	s := newTestServer(t, 0)

	rec := s.do(t, http.MethodPut, "/api/settings/inventory-method", `{"inventory_method":"LIFO"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	setting := decode[core.GeneralSetting](t, rec)
	assert.Equal(t, core.LIFO, setting.InventoryMethod)

	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/products/%d/margin", s.seed.Gadget.ID), `{"profit_margin":"350"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p := decode[core.Product](t, rec)
	assert.Equal(t, "350.00", p.ProfitMargin.StringFixed(2))

	rec = s.do(t, http.MethodPut, "/api/products/999/margin", `{"profit_margin":"1"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchemas(t *testing.T) {
	s := newTestServer(t, 0)
	rec := s.do(t, http.MethodGet, "/api/schemas/purchase", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`"supplier_id"`)))
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`"lines"`)))

	rec = s.do(t, http.MethodGet, "/api/schemas/payment", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_date"`)
}

func TestCORS(t *testing.T) {
	store, _ := memory.NewSeeded(decimal.Zero)
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	h := web.NewHandler(app.NewAppService(store, nil, logger, 0), logger, web.Options{AllowedOrigins: "https://books.example"})

	req := httptest.NewRequest(http.MethodOptions, "/api/purchases", nil)
	req.Header.Set("Origin", "https://books.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://books.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
