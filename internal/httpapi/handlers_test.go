package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"dukaan/backend/internal/cache"
	"dukaan/backend/internal/restock"
	"dukaan/backend/internal/service"
	"dukaan/backend/internal/store/memory"
)

const testManagerPIN = "482913"

type testServer struct {
	t       *testing.T
	handler http.Handler
	csrf    string
}

// newTestServer wires the real router, auth manager and service over a
// seeded memory store so each request takes the full path.
func newTestServer(t *testing.T) *testServer {
	t.Helper()

	repo := memory.NewSeeded()
	logger := zaptest.NewLogger(t)
	svc := service.New(repo, restock.NewAdvisor(14, 7), cache.NoopReportCache{}, time.Minute, logger)
	auth := NewAuthManager("test-secret-key", time.Hour, testManagerPIN, repo)
	api := New(svc, auth, "http://localhost:5173", logger)

	return &testServer{t: t, handler: api.Handler(), csrf: api.csrf.Issue()}
}

type response struct {
	Code    int
	Header  http.Header
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *testServer) do(method string, path string, token string, body any, headers ...string) response {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(csrfHeader, s.csrf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	resp := response{Code: rec.Code, Header: rec.Header()}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	} else {
		resp.Data = rec.Body.Bytes()
	}
	return resp
}

func (s *testServer) login(username string, password string) string {
	s.t.Helper()
	resp := s.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, resp.Code, resp.Error)

	var body struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(s.t, json.Unmarshal(resp.Data, &body))
	require.NotEmpty(s.t, body.AccessToken)
	return body.AccessToken
}

func decodeData(t *testing.T, resp response, dest any) {
	t.Helper()
	require.True(t, resp.Success, resp.Error)
	require.NoError(t, json.Unmarshal(resp.Data, dest))
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp := srv.do(http.MethodGet, "/healthz", "", nil)

	require.Equal(t, http.StatusOK, resp.Code)
	var body map[string]any
	decodeData(t, resp, &body)
	assert.Equal(t, true, body["ok"])
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	srv.login("admin", "admin123")

	resp := srv.do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid credentials", resp.Error)
}

func TestSaleLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("cashier", "cashier123")

	resp := srv.do(http.MethodPost, "/api/v1/sales", token, `{
		"products": [{"productId": "prod-tea-250", "quantity": 3, "sellingPrice": 1.80}],
		"amountDue": "5.40",
		"amountPaid": 2,
		"paymentMethod": "zaad",
		"customerName": "Hodan"
	}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Error)
	var sale map[string]any
	decodeData(t, resp, &sale)
	assert.Equal(t, "PARTIALLY_PAID", sale["status"])
	assert.Equal(t, "3.4", sale["remainingBalance"])
	assert.Equal(t, "ZAAD", sale["paymentMethod"])
	id := sale["id"].(string)

	resp = srv.do(http.MethodPost, "/api/v1/sales/"+id+"/payments", token, map[string]any{"amount": "5"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Error, "exceeds remaining balance")

	resp = srv.do(http.MethodPost, "/api/v1/sales/"+id+"/payments", token, map[string]any{"amount": "3.40", "paymentMethod": "cash"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Error)
	decodeData(t, resp, &sale)
	assert.Equal(t, "COMPLETED", sale["status"])
	assert.Len(t, sale["payments"], 2)

	resp = srv.do(http.MethodDelete, "/api/v1/sales/"+id, token, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = srv.do(http.MethodDelete, "/api/v1/sales/"+id, token, nil, managerPINHeader, "000000")
	assert.Equal(t, http.StatusForbidden, resp.Code)
	assert.Equal(t, "invalid manager PIN", resp.Error)

	resp = srv.do(http.MethodDelete, "/api/v1/sales/"+id, token, nil, managerPINHeader, testManagerPIN)
	require.Equal(t, http.StatusOK, resp.Code, resp.Error)

	resp = srv.do(http.MethodGet, "/api/v1/sales/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)

	var product map[string]any
	decodeData(t, srv.do(http.MethodGet, "/api/v1/products/prod-tea-250", token, nil), &product)
	assert.EqualValues(t, 80, product["stock"])
}

func TestCreateSaleErrors(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("cashier", "cashier123")

	cases := []struct {
		name string
		body string
		code int
	}{
		{"insufficient stock", `{"products":[{"productId":"prod-flour-2","quantity":9,"sellingPrice":"2.10"}],"amountDue":"18.90"}`, http.StatusBadRequest},
		{"unknown product", `{"products":[{"productId":"prod-none","quantity":1,"sellingPrice":"1"}],"amountDue":"1"}`, http.StatusNotFound},
		{"paid above due", `{"products":[{"productId":"prod-tea-250","quantity":1,"sellingPrice":"1.80"}],"amountDue":"1.80","amountPaid":"2"}`, http.StatusBadRequest},
		{"unknown field", `{"products":[],"amountDue":"1","tip":"5"}`, http.StatusBadRequest},
		{"malformed", `{"products":`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := srv.do(http.MethodPost, "/api/v1/sales", token, tc.body)
			assert.Equal(t, tc.code, resp.Code, resp.Error)
			assert.False(t, resp.Success)
		})
	}
}

func TestListSalesFiltersAndTotals(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("cashier", "cashier123")

	for _, body := range []string{
		`{"products":[{"productId":"prod-oil-3","quantity":1,"sellingPrice":"5"}],"amountDue":"5","amountPaid":"5"}`,
		`{"products":[{"productId":"prod-oil-3","quantity":2,"sellingPrice":"5"}],"amountDue":"10","paymentMethod":"credit"}`,
	} {
		require.Equal(t, http.StatusCreated, srv.do(http.MethodPost, "/api/v1/sales", token, body).Code)
	}

	var list struct {
		Sales       []map[string]any `json:"sales"`
		Total       int              `json:"total"`
		StatusCount map[string]int   `json:"statusCount"`
		Totals      struct {
			AmountDue string `json:"amountDue"`
		} `json:"totals"`
	}
	decodeData(t, srv.do(http.MethodGet, "/api/v1/sales?limit=1", token, nil), &list)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Sales, 1)
	assert.Equal(t, "15", list.Totals.AmountDue)
	assert.Equal(t, map[string]int{"completed": 1, "pending": 1}, list.StatusCount)

	decodeData(t, srv.do(http.MethodGet, "/api/v1/sales?status=pending&paymentMethod=CREDIT", token, nil), &list)
	assert.Equal(t, 1, list.Total)

	resp := srv.do(http.MethodGet, "/api/v1/sales?from=15-03-2026", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var receivables []map[string]any
	decodeData(t, srv.do(http.MethodGet, "/api/v1/receivables", token, nil), &receivables)
	assert.Len(t, receivables, 1)
}

func TestVendorPurchaseFlow(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login("admin", "admin123")

	resp := srv.do(http.MethodPost, "/api/v1/vendors", admin, map[string]string{"name": "Burao Supplies", "location": "Burao"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Error)
	var vendor map[string]any
	decodeData(t, resp, &vendor)
	vendorPath := "/api/v1/vendors/" + vendor["id"].(string)

	resp = srv.do(http.MethodPost, vendorPath+"/purchases", admin, `{
		"products": [{"productId": "prod-rice-25", "quantity": 4, "unitPrice": "21.00"}],
		"amountPaid": "30"
	}`)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Error)
	var result struct {
		Purchase map[string]any `json:"purchase"`
		Vendor   map[string]any `json:"vendor"`
	}
	decodeData(t, resp, &result)
	assert.Equal(t, "54", result.Vendor["balance"])
	purchasePath := vendorPath + "/purchases/" + result.Purchase["id"].(string)

	resp = srv.do(http.MethodPost, purchasePath+"/payments", admin, map[string]string{"amount": "54"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Error)
	decodeData(t, resp, &result)
	assert.Equal(t, "COMPLETED", result.Purchase["status"])
	assert.Equal(t, "0", result.Vendor["balance"])

	resp = srv.do(http.MethodDelete, vendorPath, admin, nil)
	assert.Equal(t, http.StatusConflict, resp.Code)

	resp = srv.do(http.MethodPost, vendorPath+"/reconcile", admin, nil)
	require.Equal(t, http.StatusOK, resp.Code, resp.Error)
	var reconciliation map[string]any
	decodeData(t, resp, &reconciliation)
	assert.Equal(t, false, reconciliation["drifted"])

	resp = srv.do(http.MethodDelete, purchasePath, admin, nil, managerPINHeader, testManagerPIN)
	require.Equal(t, http.StatusOK, resp.Code, resp.Error)
	resp = srv.do(http.MethodDelete, vendorPath, admin, nil)
	assert.Equal(t, http.StatusOK, resp.Code, resp.Error)
}

func TestRoleChecks(t *testing.T) {
	srv := newTestServer(t)
	cashier := srv.login("cashier", "cashier123")

	resp := srv.do(http.MethodPost, "/api/v1/products", cashier, map[string]any{"name": "Caano", "price": "1"})
	assert.Equal(t, http.StatusForbidden, resp.Code)

	for _, path := range []string{"/api/v1/reports/daily", "/api/v1/audit-logs", "/api/v1/users/cashiers"} {
		resp = srv.do(http.MethodGet, path, cashier, nil)
		assert.Equal(t, http.StatusForbidden, resp.Code, path)
	}
	resp = srv.do(http.MethodPost, "/api/v1/vendors/reconcile", cashier, nil)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	resp = srv.do(http.MethodGet, "/api/v1/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	resp = srv.do(http.MethodGet, "/api/v1/products", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestCashierAccounts(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login("admin", "admin123")

	resp := srv.do(http.MethodPost, "/api/v1/users/cashiers", admin, map[string]string{"username": "faadumo", "password": "shop-2026"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Error)
	resp = srv.do(http.MethodPost, "/api/v1/users/cashiers", admin, map[string]string{"username": "faadumo", "password": "shop-2026"})
	assert.Equal(t, http.StatusConflict, resp.Code)

	srv.login("faadumo", "shop-2026")

	var cashiers []map[string]any
	decodeData(t, srv.do(http.MethodGet, "/api/v1/users/cashiers", admin, nil), &cashiers)
	assert.Len(t, cashiers, 2)
}

func TestReportsAsJSONAndCSV(t *testing.T) {
	srv := newTestServer(t)
	admin := srv.login("admin", "admin123")

	resp := srv.do(http.MethodPost, "/api/v1/expenses", admin, map[string]any{"expenseType": "Electricity", "amountDue": "12.50", "amountPaid": "12.50"})
	require.Equal(t, http.StatusCreated, resp.Code, resp.Error)

	today := time.Now().UTC().Format("2006-01-02")
	var report map[string]any
	decodeData(t, srv.do(http.MethodGet, "/api/v1/reports/daily/"+today, admin, nil), &report)
	assert.Equal(t, "12.5", report["expensesPaid"])
	assert.Equal(t, "-12.5", report["net"])

	resp = srv.do(http.MethodGet, "/api/v1/reports/daily/"+today+"?format=csv", admin, nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(resp.Data), "summary,expenses_paid,12.50")

	resp = srv.do(http.MethodGet, "/api/v1/reports/monthly/2026/13", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	resp = srv.do(http.MethodGet, "/api/v1/reports/yearly/abc", admin, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Code)

	var logs []map[string]any
	decodeData(t, srv.do(http.MethodGet, "/api/v1/audit-logs", admin, nil), &logs)
	require.NotEmpty(t, logs)
	assert.Equal(t, "expense_create", logs[0]["action"])
}

func TestLowStockEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := srv.login("cashier", "cashier123")

	var low struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
		Suggestions []map[string]any `json:"suggestions"`
	}
	decodeData(t, srv.do(http.MethodGet, "/api/v1/products/low-stock", token, nil), &low)
	require.Len(t, low.Products, 1)
	assert.Equal(t, "prod-flour-2", low.Products[0].ID)
	assert.NotEmpty(t, low.Suggestions)
}
