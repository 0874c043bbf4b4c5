package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/hookgen/internal/fixture"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
	"github.com/mihaimyh/hookgen/storage/memory"
)

const (
	testUserID  = "user123"
	testAdminID = "admin1"
)

// scriptedModel replays responses in order; the last one repeats.
type scriptedModel struct {
	mu        sync.Mutex
	responses []string
	err       error
	calls     int
}

func (m *scriptedModel) Complete(_ context.Context, _ hookgen.CompletionRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	i := m.calls - 1
	if i >= len(m.responses) {
		i = len(m.responses) - 1
	}
	return m.responses[i], nil
}

type testServer struct {
	engine *gin.Engine
	store  *memory.Storage
	model  *scriptedModel
}

func newTestServer(t *testing.T, model *scriptedModel) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.New()
	require.NoError(t, store.SetRecord(context.Background(), &hookgen.Record{
		UserID:    testAdminID,
		Email:     "boss@example.com",
		CreatedAt: time.Now().UTC(),
	}))

	gate, err := hookgen.NewGate(store, hookgen.GateConfig{})
	require.NoError(t, err)
	access, err := hookgen.NewAccess(store, hookgen.AccessConfig{AdminEmails: []string{"boss@example.com"}})
	require.NoError(t, err)
	caller, err := hookgen.NewCaller(model, hookgen.CallerConfig{Timeout: time.Second})
	require.NoError(t, err)
	generator, err := hookgen.NewGenerator(caller, hookgen.GeneratorConfig{RetryDelays: []time.Duration{}})
	require.NoError(t, err)
	service, err := hookgen.NewService(hookgen.ServiceConfig{
		Gate:      gate,
		Generator: generator,
		Caller:    caller,
		Access:    access,
		Recorder:  store,
	})
	require.NoError(t, err)
	admin, err := hookgen.NewAdmin(store, nil)
	require.NoError(t, err)

	handler, err := NewHandler(Config{Service: service, Admin: admin, Access: access})
	require.NoError(t, err)

	engine := gin.New()
	handler.Register(engine)
	return &testServer{engine: engine, store: store, model: model}
}

func (s *testServer) do(method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(DefaultUserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func generateBody(userID string) map[string]string {
	return map[string]string{
		"niche":      "fitness",
		"videoStyle": "talking head",
		"topic":      "morning routine",
		"language":   "en",
		"userId":     userID,
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestNewHandler_Validation(t *testing.T) {
	_, err := NewHandler(Config{})
	assert.Error(t, err)
}

func TestGenerate_Success(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodPost, "/api/generate", "", generateBody(testUserID))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result hookgen.GenerationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Len(t, result.Scripts, 10)
	assert.Equal(t, "2", w.Header().Get("X-Quota-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.NotEmpty(t, w.Header().Get("X-Generation-ID"))
	assert.Len(t, s.store.Generations(testUserID), 1)
}

func TestGenerate_EchoesRequestID(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(generateBody(testUserID))
	req := httptest.NewRequest(http.MethodPost, "/api/generate", &buf)
	req.Header.Set("X-Request-ID", "req-abc")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-abc", w.Header().Get("X-Request-ID"))
	gens := s.store.Generations(testUserID)
	require.Len(t, gens, 1)
	assert.Equal(t, "req-abc", gens[0].RequestID)
}

func TestGenerate_MissingFields(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodPost, "/api/generate", "", map[string]string{"niche": "fitness", "userId": testUserID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error, "Missing required fields")
	assert.Equal(t, 0, s.model.calls)
}

func TestGenerate_MissingUser(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodPost, "/api/generate", "", generateBody(""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 0, s.model.calls)
}

func TestGenerate_UserFromHeader(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodPost, "/api/generate", testUserID, generateBody(""))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_QuotaExceeded(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	for i := 0; i < hookgen.DefaultFreeLimit; i++ {
		w := s.do(http.MethodPost, "/api/generate", "", generateBody(testUserID))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(http.MethodPost, "/api/generate", "", generateBody(testUserID))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "Daily generation limit reached", resp.Error)
	assert.Empty(t, resp.Code)
	require.NotNil(t, resp.Remaining)
	assert.Equal(t, 0, *resp.Remaining)
	assert.Equal(t, hookgen.DefaultFreeLimit, s.model.calls)
}

func TestGenerate_AdminBypassesQuota(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	for i := 0; i < hookgen.DefaultFreeLimit+2; i++ {
		w := s.do(http.MethodPost, "/api/generate", "", generateBody(testAdminID))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Header().Get("X-Quota-Remaining"))
	}
}

func TestGenerate_UpstreamRateLimit(t *testing.T) {
	s := newTestServer(t, &scriptedModel{err: errors.New("googleapi: Error 429: quota exhausted")})

	w := s.do(http.MethodPost, "/api/generate", "", generateBody(testUserID))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, CodeRateLimit, decodeError(t, w).Code)
	assert.Equal(t, 1, s.model.calls)
}

func TestGenerate_ServerErrorHidesDetail(t *testing.T) {
	s := newTestServer(t, &scriptedModel{err: errors.New("bad key sk-abc123XYZ")})

	w := s.do(http.MethodPost, "/api/generate", "", generateBody(testUserID))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeServerError, resp.Code)
	assert.Equal(t, "An error occurred", resp.Detail)
	assert.NotContains(t, w.Body.String(), "sk-abc123XYZ")
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		dev        bool
		wantStatus int
		wantCode   string
		wantDetail string
	}{
		{"invalid", hookgen.ErrInvalidRequest, false, http.StatusBadRequest, "", "invalid generation request"},
		{"unauthenticated", hookgen.ErrUnauthenticated, false, http.StatusUnauthorized, "", ""},
		{"forbidden", hookgen.ErrForbidden, false, http.StatusForbidden, "", ""},
		{"not found", hookgen.ErrRecordNotFound, false, http.StatusNotFound, "", ""},
		{"timeout", &hookgen.TimeoutError{RequestID: "r"}, false, http.StatusServiceUnavailable, CodeTimeout,
			"The AI took too long to respond. Please try again."},
		{"rate limit", &hookgen.RateLimitError{Err: errors.New("429")}, false, http.StatusTooManyRequests, CodeRateLimit,
			"Too many requests to AI service. Please wait a moment."},
		{"server prod", errors.New("boom sk-secret1"), false, http.StatusInternalServerError, CodeServerError, "An error occurred"},
		{"server dev", errors.New("boom sk-secret1"), true, http.StatusInternalServerError, CodeServerError, "boom [REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := errorStatus(tt.err, tt.dev)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body.Code)
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body.Detail)
			}
		})
	}
}

func TestErrorStatus_QuotaDetail(t *testing.T) {
	status, body := errorStatus(&hookgen.QuotaExceededError{Decision: hookgen.Decision{Limit: 3}}, false)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "You've used all 3 generations today. Upgrade to Pro for more!", body.Detail)

	_, body = errorStatus(&hookgen.QuotaExceededError{Decision: hookgen.Decision{Limit: 100, IsPro: true}}, false)
	assert.Equal(t, "You've used all 100 generations today.", body.Detail)
}

func TestAnalyze(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.Fenced(fixture.Analysis())}})

	w := s.do(http.MethodPost, "/api/analyze", "", map[string]string{
		"hook": "Stop doing this",
		"body": "Most people skip the warm-up.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.EqualValues(t, 78, resp["viralScore"])
}

func TestAnalyze_MissingFields(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.Analysis()}})

	w := s.do(http.MethodPost, "/api/analyze", "", map[string]string{"hook": "only a hook"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, s.model.calls)
}

func TestQuota(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodPost, "/api/generate", "", generateBody(testUserID))
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/quota", testUserID, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp QuotaResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, testUserID, resp.UserID)
	assert.Equal(t, 3, resp.Limit)
	assert.Equal(t, 1, resp.Used)
	assert.Equal(t, 2, resp.Remaining)
	assert.False(t, resp.IsAdmin)
}

func TestQuota_Unauthenticated(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodGet, "/api/quota", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetOffline(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})
	ctx := context.Background()
	require.NoError(t, s.store.SetRecord(ctx, &hookgen.Record{UserID: testUserID, IsOnline: true}))

	w := s.do(http.MethodPost, "/api/set-offline?userId="+testUserID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	rec, err := s.store.GetRecord(ctx, testUserID)
	require.NoError(t, err)
	assert.False(t, rec.IsOnline)
}

func TestAdmin_RequiresAdmin(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/admin/users", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/api/admin/users", testUserID, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/admin/users", testAdminID, nil).Code)
}

func TestAdmin_UserLifecycle(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})
	ctx := context.Background()

	w := s.do(http.MethodPost, "/api/admin/users", testAdminID, map[string]interface{}{
		"userId": "new-user",
		"email":  "New@Example.com",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/api/admin/users/new-user/pro", testAdminID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec, err := s.store.GetRecord(ctx, "new-user")
	require.NoError(t, err)
	assert.True(t, rec.IsPro)
	assert.Equal(t, "new@example.com", rec.Email)

	w = s.do(http.MethodPost, "/api/admin/users/new-user/pro", testAdminID, map[string]bool{"isPro": true})
	require.Equal(t, http.StatusOK, w.Code)
	rec, err = s.store.GetRecord(ctx, "new-user")
	require.NoError(t, err)
	assert.True(t, rec.IsPro)

	_, err = s.store.IncrementGenerations(ctx, "new-user", hookgen.DayKey(time.Now()), time.Now())
	require.NoError(t, err)
	w = s.do(http.MethodPost, "/api/admin/users/new-user/reset", testAdminID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	rec, err = s.store.GetRecord(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.GenerationsToday)
	assert.Equal(t, 1, rec.GenerationsTotal)

	w = s.do(http.MethodGet, "/api/admin/stats", testAdminID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats hookgen.DashboardStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.ProUsers)

	w = s.do(http.MethodDelete, "/api/admin/users/new-user", testAdminID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	_, err = s.store.GetRecord(ctx, "new-user")
	assert.ErrorIs(t, err, hookgen.ErrRecordNotFound)
}

func TestAdmin_CreateUserInvalidEmail(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodPost, "/api/admin/users", testAdminID, map[string]string{
		"userId": "u",
		"email":  "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdmin_TogglePro_NotFound(t *testing.T) {
	s := newTestServer(t, &scriptedModel{responses: []string{fixture.ValidResult()}})

	w := s.do(http.MethodPost, "/api/admin/users/ghost/pro", testAdminID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
