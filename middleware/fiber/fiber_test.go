package fiber

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/hookgen/pkg/hookgen"
	"github.com/mihaimyh/hookgen/storage/memory"
)

func setup(t *testing.T, cfg Config, handler fiber.Handler) (*fiber.App, *memory.Storage) {
	t.Helper()
	store := memory.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gate, err := hookgen.NewGate(store, hookgen.GateConfig{Now: func() time.Time { return now }})
	require.NoError(t, err)
	guard, err := hookgen.NewGuard(hookgen.GuardConfig{Gate: gate})
	require.NoError(t, err)

	cfg.Guard = guard
	if cfg.GetUserID == nil {
		cfg.GetUserID = FromHeader("X-User-ID")
	}

	app := fiber.New()
	app.Use(Middleware(cfg))
	app.Post("/generate", handler)
	return app, store
}

func echoUser(c *fiber.Ctx) error {
	return c.SendString(c.Locals(UserIDKey).(string))
}

func serve(t *testing.T, app *fiber.App, userID string) (*http.Response, string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/generate", http.NoBody)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestMiddleware_Success(t *testing.T) {
	app, store := setup(t, Config{}, echoUser)

	resp, body := serve(t, app, "user1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user1", body)
	assert.Equal(t, "3", resp.Header.Get(hookgen.HeaderQuotaLimit))
	assert.Equal(t, "2", resp.Header.Get(hookgen.HeaderQuotaRemaining))

	got, err := store.GetRecord(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.GenerationsToday)
}

func TestMiddleware_QuotaExceeded(t *testing.T) {
	app, _ := setup(t, Config{}, echoUser)

	for i := 0; i < 3; i++ {
		resp, _ := serve(t, app, "user1")
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, body := serve(t, app, "user1")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body, "Daily generation limit reached")
	assert.Equal(t, "0", resp.Header.Get(hookgen.HeaderQuotaRemaining))
}

func TestMiddleware_HandlerErrorNotCounted(t *testing.T) {
	app, store := setup(t, Config{}, func(*fiber.Ctx) error {
		return fiber.NewError(fiber.StatusBadGateway, "model down")
	})

	resp, _ := serve(t, app, "user1")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	_, err := store.GetRecord(context.Background(), "user1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
}

func TestMiddleware_ErrorStatusNotCounted(t *testing.T) {
	app, store := setup(t, Config{}, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusServiceUnavailable)
	})

	resp, _ := serve(t, app, "user1")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	_, err := store.GetRecord(context.Background(), "user1")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
}

func TestMiddleware_MissingAuth(t *testing.T) {
	app, _ := setup(t, Config{}, echoUser)
	resp, _ := serve(t, app, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMiddleware_FromLocals(t *testing.T) {
	app, _ := setup(t, Config{GetUserID: FromLocals("auth.user")}, echoUser)
	resp, _ := serve(t, app, "ignored")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMiddleware_RequiresGuard(t *testing.T) {
	assert.PanicsWithValue(t, "hookgen/fiber: Config.Guard is required", func() {
		Middleware(Config{GetUserID: FromHeader("X-User-ID")})
	})
}
