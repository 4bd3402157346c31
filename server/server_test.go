package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"repairshop-backend/config"
	"repairshop-backend/middlewares"
	"repairshop-backend/models"
	"repairshop-backend/printing"
	"repairshop-backend/routes"
	"repairshop-backend/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type memStatsCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *memStatsCache) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (m *memStatsCache) Set(_ context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

func (m *memStatsCache) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = map[string][]byte{}
	return nil
}

type stubRenderer struct{}

func (stubRenderer) RenderPDF(_ context.Context, html []byte) ([]byte, error) {
	return append([]byte("%PDF-stub\n"), html[:16]...), nil
}

type testEnv struct {
	app   *fiber.App
	db    *gorm.DB
	auth  *middlewares.JWTAuth
	cache *memStatsCache
	logs  *observer.ObservedLogs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.UseDB(t, db)

	cfg := &config.Config{
		App:  config.AppConfig{Env: "test"},
		JWT:  config.JWTConfig{Secret: "test-secret", TTL: time.Hour},
		HTTP: config.HTTPConfig{AllowedOrigins: "*", RateLimitMax: 1000, RateLimitWindow: time.Minute, BodyLimitBytes: 1 << 20},
		Shop: config.ShopConfig{Name: "Fix It Fast", Currency: "GBP", TaxRate: decimal.Zero},
	}
	auth := middlewares.NewJWTAuth(cfg.JWT)
	statsCache := &memStatsCache{data: map[string][]byte{}}
	printer := printing.NewPrinter(cfg.Shop, stubRenderer{}, nil, zap.NewNop())
	core, logs := observer.New(zap.InfoLevel)

	app := New(cfg, routes.Deps{
		Shop:       cfg.Shop,
		Log:        zap.New(core),
		Auth:       auth,
		StatsCache: statsCache,
		Printer:    printer,
	})
	return &testEnv{app: app, db: db, auth: auth, cache: statsCache, logs: logs}
}

// token creates a user with the given role and returns a bearer token for it.
func (e *testEnv) token(t *testing.T, email, role string) string {
	t.Helper()
	user := &models.User{FirstName: "Test", LastName: role, Email: email, Role: role}
	require.NoError(t, user.SetPassword("password123"))
	require.NoError(t, e.db.Create(user).Error)
	tok, _, err := e.auth.GenerateJWT(user.Id, user.Role)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers ...string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func money(t *testing.T, v any) string {
	t.Helper()
	var d decimal.Decimal
	switch x := v.(type) {
	case string:
		d = decimal.RequireFromString(x)
	case float64:
		d = decimal.NewFromFloat(x)
	default:
		t.Fatalf("not a money value: %#v", v)
	}
	return d.StringFixed(2)
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRegistrationAndLogin(t *testing.T) {
	env := newTestEnv(t)

	reg := map[string]any{
		"first_name": "Ada", "last_name": "Owner", "email": "Ada@Shop.example",
		"password": "password123", "password_confirm": "password123",
	}
	resp, body := env.do(t, http.MethodPost, "/api/registration", "", reg)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, models.RoleAdmin, body["role"])
	assert.NotContains(t, body, "password")

	// only the first account may self-register
	reg["email"] = "second@shop.example"
	resp, _ = env.do(t, http.MethodPost, "/api/registration", "", reg)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = env.do(t, http.MethodPost, "/api/login", "", map[string]any{"email": "ada@shop.example", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.do(t, http.MethodPost, "/api/login", "", map[string]any{"email": "ada@shop.example", "password": "password123"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)

	resp, body = env.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ada@shop.example", body["email"])

	resp, _ = env.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = env.do(t, http.MethodGet, "/api/me", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateCustomer_Validation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "staff@shop.example", models.RoleStaff)

	resp, body := env.do(t, http.MethodPost, "/api/customer", token, map[string]any{"name": "No Phone"})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	errs, _ := body["errors"].(map[string]any)
	assert.Equal(t, "required", errs["phone"])

	resp, body = env.do(t, http.MethodPost, "/api/customer", token, map[string]any{"name": " Grace ", "phone": "07700 900123"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "Grace", body["name"])

	resp, body = env.do(t, http.MethodGet, "/api/customers?q=gra", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])

	resp, _ = env.do(t, http.MethodGet, "/api/customer/does-not-exist", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	staff := env.token(t, "staff@shop.example", models.RoleStaff)
	admin := env.token(t, "admin@shop.example", models.RoleAdmin)

	resp, _ := env.do(t, http.MethodGet, "/api/users", staff, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp, _ = env.do(t, http.MethodPost, "/api/admin/maintenance/recompute-parts", staff, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := env.do(t, http.MethodGet, "/api/users", admin, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total"])

	resp, _ = env.do(t, http.MethodPost, "/api/admin/maintenance/recompute-customers", admin, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestInvoiceRefundFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "till@shop.example", models.RoleStaff)

	resp, product := env.do(t, http.MethodPost, "/api/product", token, map[string]any{
		"sku": "CASE-01", "name": "Clear case", "category": "accessory",
		"cost_price": "4", "sell_price": "15", "quantity": 3,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, product)
	productID := product["id"].(string)

	resp, invoice := env.do(t, http.MethodPost, "/api/invoice", token, map[string]any{
		"items": []map[string]any{{"item_type": "product", "ref_id": productID, "quantity": 2}},
		"paid":  "30",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, invoice)
	assert.Equal(t, "30.00", money(t, invoice["total"]))
	assert.Equal(t, models.InvoicePaid, invoice["status"])
	invoiceID := invoice["id"].(string)
	items := invoice["items"].([]any)
	itemID := items[0].(map[string]any)["id"]

	resp, got := env.do(t, http.MethodGet, "/api/product/"+productID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, got["quantity"])

	// selling more than is on the shelf rolls the whole request back
	resp, _ = env.do(t, http.MethodPost, "/api/invoice", token, map[string]any{
		"items": []map[string]any{{"item_type": "product", "ref_id": productID, "quantity": 5}},
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var count int64
	env.db.Model(&models.Invoice{}).Count(&count)
	assert.EqualValues(t, 1, count)

	resp, result := env.do(t, http.MethodPost, "/api/invoice/"+invoiceID+"/refund", token, map[string]any{
		"items":        []map[string]any{{"invoice_item_id": itemID, "quantity": 1, "restock": true}},
		"payment_made": "-15",
		"reason":       "cracked",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, result)
	note := result["credit_note"].(map[string]any)
	assert.Equal(t, "15.00", money(t, note["total"]))
	assert.Equal(t, models.InvoicePartiallyRefunded, result["invoice"].(map[string]any)["status"])

	resp, got = env.do(t, http.MethodGet, "/api/product/"+productID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, got["quantity"])

	resp, list := env.do(t, http.MethodGet, "/api/credit-notes?invoice_id="+invoiceID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, list["total"])

	req := httptest.NewRequest(http.MethodGet, "/api/invoice/"+invoiceID+"/print", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	printed, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, printed.StatusCode)
	assert.Contains(t, printed.Header.Get("Content-Type"), "text/html")

	req = httptest.NewRequest(http.MethodGet, "/api/invoice/"+invoiceID+"/pdf", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	pdf, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdf.Header.Get("Content-Type"))

	resp, _ = env.do(t, http.MethodGet, "/api/invoice/"+invoiceID+"/pdf?store=true", token, nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestIdempotencyKey(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "till@shop.example", models.RoleStaff)
	payload := map[string]any{"name": "Linus", "phone": "07700 900456"}

	resp, first := env.do(t, http.MethodPost, "/api/customer", token, payload, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Idempotent-Replayed"))

	resp, second := env.do(t, http.MethodPost, "/api/customer", token, payload, "Idempotency-Key", "abc-123")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, first["id"], second["id"])

	var count int64
	env.db.Model(&models.Customer{}).Where("is_walk_in = ?", false).Count(&count)
	assert.EqualValues(t, 1, count)

	resp, _ = env.do(t, http.MethodPost, "/api/customer", token,
		map[string]any{"name": "Other", "phone": "1"}, "Idempotency-Key", "abc-123")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestDashboardCache(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "owner@shop.example", models.RoleAdmin)
	path := "/api/dashboard?from=2026-01-01&to=2026-01-31"

	resp, body := env.do(t, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))
	assert.Contains(t, body, "sales_total")

	resp, _ = env.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, "HIT", resp.Header.Get("X-Cache"))

	resp, _ = env.do(t, http.MethodGet, path+"&fresh=true", token, nil)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	// rebuilding totals drops cached figures
	resp, _ = env.do(t, http.MethodPost, "/api/admin/maintenance/recompute-customers", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, env.cache.data)
	resp, _ = env.do(t, http.MethodGet, path, token, nil)
	assert.Equal(t, "MISS", resp.Header.Get("X-Cache"))

	resp, _ = env.do(t, http.MethodGet, "/api/dashboard?from=2026-02-01&to=2026-01-01", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdjustProduct_LogsReason(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "stock@shop.example", models.RoleStaff)

	resp, product := env.do(t, http.MethodPost, "/api/product", token, map[string]any{
		"sku": "CBL-02", "name": "USB-C cable", "category": "accessory",
		"cost_price": "1", "sell_price": "8", "quantity": 5,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, product)
	productID := product["id"].(string)

	resp, body := env.do(t, http.MethodPost, "/api/product/"+productID+"/adjust", token,
		map[string]any{"delta": -2, "reason": "  damaged in storage "})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "damaged in storage", body["reason"])

	entries := env.logs.FilterMessage("stock adjusted").AllUntimed()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, productID, fields["product_id"])
	assert.Equal(t, "damaged in storage", fields["reason"])
	assert.EqualValues(t, -2, fields["delta"])
	assert.EqualValues(t, 3, fields["quantity"])
	assert.NotEmpty(t, fields["user_id"])
}

func TestGetInvoices_DateOnlyToIncludesThatDay(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "till@shop.example", models.RoleStaff)

	resp, invoice := env.do(t, http.MethodPost, "/api/invoice", token, map[string]any{
		"items": []map[string]any{{"item_type": "custom", "description": "Screen clean", "quantity": 1, "unit_price": "5"}},
		"paid":  "5",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, invoice)

	today := time.Now().UTC().Format(time.DateOnly)
	resp, list := env.do(t, http.MethodGet, "/api/invoices?from="+today+"&to="+today, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, list)
	assert.EqualValues(t, 1, list["total"])

	yesterday := time.Now().UTC().AddDate(0, 0, -1).Format(time.DateOnly)
	resp, list = env.do(t, http.MethodGet, "/api/invoices?to="+yesterday, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, list)
	assert.EqualValues(t, 0, list["total"])
}
