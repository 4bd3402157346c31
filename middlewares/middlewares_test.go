package middlewares

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"repairshop-backend/config"
	"repairshop-backend/database"
	"repairshop-backend/models"
	"repairshop-backend/services"
	"repairshop-backend/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
}

// asUser fakes what IsAuthenticatedHeader leaves behind.
func asUser(id, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals(LocalsUserID, id)
		c.Locals(LocalsRole, role)
		return c.Next()
	}
}

func send(t *testing.T, app *fiber.App, method, path, body string, headers ...string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestErrorHandler_StatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fiber.NewError(fiber.StatusTeapot, "short and stout"), fiber.StatusTeapot},
		{fmt.Errorf("%w: customer", services.ErrNotFound), http.StatusNotFound},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: bad qty", services.ErrInvalidInput), http.StatusBadRequest},
		{services.ErrWalkInDebt, http.StatusBadRequest},
		{fmt.Errorf("%w: only 1 left", services.ErrInsufficientStock), http.StatusConflict},
		{services.ErrInvalidState, http.StatusConflict},
		{services.ErrProtected, http.StatusConflict},
		{gorm.ErrDuplicatedKey, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			app := newApp()
			app.Get("/", func(c *fiber.Ctx) error { return tc.err })
			resp, body := send(t, app, http.MethodGet, "/", "")
			assert.Equal(t, tc.want, resp.StatusCode)
			if tc.want == http.StatusInternalServerError {
				assert.NotContains(t, body, "boom")
			}
		})
	}
}

func TestBindAndValidate(t *testing.T) {
	type lineDTO struct {
		Quantity int `json:"quantity" validate:"required,gt=0"`
	}
	type orderDTO struct {
		Name  string    `json:"name" validate:"required"`
		Lines []lineDTO `json:"lines" validate:"required,min=1,dive"`
	}
	app := newApp()
	app.Post("/", func(c *fiber.Ctx) error {
		var in orderDTO
		if err := BindAndValidate(c, &in); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	resp, _ := send(t, app, http.MethodPost, "/", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body := send(t, app, http.MethodPost, "/", `{"name":"x","lines":[{"quantity":0}]}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	var out struct {
		Errors map[string]string `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "required", out.Errors["lines[0].quantity"])

	resp, _ = send(t, app, http.MethodPost, "/", `{"name":"x","lines":[{"quantity":2}]}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestJWTAuth(t *testing.T) {
	auth := NewJWTAuth(config.JWTConfig{Secret: "s3cret", TTL: time.Hour})
	app := newApp()
	app.Use(auth.IsAuthenticatedHeader())
	app.Get("/who", func(c *fiber.Ctx) error { return c.SendString(CurrentUserID(c)) })
	app.Get("/admin", RequireRole(models.RoleAdmin), func(c *fiber.Ctx) error { return c.SendString("ok") })

	staff, _, err := auth.GenerateJWT("u-1", models.RoleStaff)
	require.NoError(t, err)

	resp, body := send(t, app, http.MethodGet, "/who", "", "Authorization", "Bearer "+staff)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u-1", body)

	resp, _ = send(t, app, http.MethodGet, "/admin", "", "Authorization", "Bearer "+staff)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin, _, err := auth.GenerateJWT("u-2", models.RoleAdmin)
	require.NoError(t, err)
	resp, _ = send(t, app, http.MethodGet, "/admin", "", "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	other := NewJWTAuth(config.JWTConfig{Secret: "different", TTL: time.Hour})
	forged, _, err := other.GenerateJWT("u-1", models.RoleAdmin)
	require.NoError(t, err)
	resp, _ = send(t, app, http.MethodGet, "/who", "", "Authorization", "Bearer "+forged)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	expired := NewJWTAuth(config.JWTConfig{Secret: "s3cret", TTL: time.Hour})
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, err := expired.GenerateJWT("u-1", models.RoleStaff)
	require.NoError(t, err)
	_, err = auth.Parse(old)
	assert.Error(t, err)
}

func TestRequestTx_RollsBackOnError(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseDB(t, db)

	app := newApp()
	app.Use(RequestTx(zap.NewNop()))
	create := func(fail bool) fiber.Handler {
		return func(c *fiber.Ctx) error {
			tx, err := database.GetDB(c)
			if err != nil {
				return err
			}
			if err := tx.Create(&models.Supplier{Name: c.Query("name")}).Error; err != nil {
				return err
			}
			if fail {
				return fmt.Errorf("%w: after insert", services.ErrInvalidState)
			}
			return c.SendStatus(fiber.StatusCreated)
		}
	}
	app.Post("/ok", create(false))
	app.Post("/fail", create(true))
	app.Post("/status", func(c *fiber.Ctx) error {
		tx, _ := database.GetDB(c)
		if err := tx.Create(&models.Supplier{Name: "written then rejected"}).Error; err != nil {
			return err
		}
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "nope"})
	})

	resp, _ := send(t, app, http.MethodPost, "/ok?name=kept", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, _ = send(t, app, http.MethodPost, "/fail?name=dropped", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = send(t, app, http.MethodPost, "/status", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var names []string
	require.NoError(t, db.Model(&models.Supplier{}).Pluck("name", &names).Error)
	assert.Equal(t, []string{"kept"}, names)
}

func TestIdempotency(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseDB(t, db)

	calls := 0
	app := newApp()
	app.Use(asUser("u-1", models.RoleStaff), Idempotency())
	app.Post("/count", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
	})
	app.Post("/reject", func(c *fiber.Ctx) error {
		calls++
		return fiber.NewError(fiber.StatusConflict, "not now")
	})

	resp, first := send(t, app, http.MethodPost, "/count", `{"a":1}`, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp, again := send(t, app, http.MethodPost, "/count", `{"a":1}`, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.JSONEq(t, first, again)
	assert.Equal(t, 1, calls)

	resp, _ = send(t, app, http.MethodPost, "/count", `{"a":2}`, "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// without a key every request runs
	send(t, app, http.MethodPost, "/count", `{"a":1}`)
	assert.Equal(t, 2, calls)

	// failures are not stored, so a retry runs the handler again
	send(t, app, http.MethodPost, "/reject", ``, "Idempotency-Key", "k2")
	send(t, app, http.MethodPost, "/reject", ``, "Idempotency-Key", "k2")
	assert.Equal(t, 4, calls)

	long := string(bytes.Repeat([]byte("x"), 129))
	resp, _ = send(t, app, http.MethodPost, "/count", `{}`, "Idempotency-Key", long)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var stored models.IdempotencyKey
	require.NoError(t, db.Where("key = ?", "k1").First(&stored).Error)
	assert.Equal(t, http.StatusCreated, stored.ResponseStatus)
	assert.NotNil(t, stored.CompletedAt)
}

func TestIdempotency_ScopedPerUserAndExpires(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.UseDB(t, db)

	calls := 0
	handler := func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"call": calls})
	}
	alice := newApp()
	alice.Use(asUser("alice", models.RoleStaff), Idempotency())
	alice.Post("/", handler)
	bob := newApp()
	bob.Use(asUser("bob", models.RoleStaff), Idempotency())
	bob.Post("/", handler)

	send(t, alice, http.MethodPost, "/", `{"x":1}`, "Idempotency-Key", "shared")
	resp, _ := send(t, bob, http.MethodPost, "/", `{"x":2}`, "Idempotency-Key", "shared")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Empty(t, resp.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, 2, calls)

	// an expired key can be reused for a new request
	stale := time.Now().UTC().Add(-IdempotencyWindow - time.Hour)
	require.NoError(t, db.Model(&models.IdempotencyKey{}).Where("user_id = ?", "alice").Update("created_at", stale).Error)
	resp, _ = send(t, alice, http.MethodPost, "/", `{"x":3}`, "Idempotency-Key", "shared")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 3, calls)

	resp, _ = send(t, alice, http.MethodPost, "/", `{"x":3}`, "Idempotency-Key", "shared")
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, 3, calls)
}
