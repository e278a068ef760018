// internal/server/http_test.go
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"krishi-sahayak/internal/agent"
	"krishi-sahayak/internal/common/auth"
	"krishi-sahayak/internal/landregistry"
	"krishi-sahayak/internal/lifecycle"
	"krishi-sahayak/internal/models"
	"krishi-sahayak/internal/reconcile"
	"krishi-sahayak/internal/store"
)

type testEnv struct {
	handler  http.Handler
	sessions *reconcile.SessionStore
}

func newTestEnv(t *testing.T, registryURL string) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	tokens := auth.NewTokenManager("test-secret", "test-refresh", 15*time.Minute, time.Hour)
	users := store.NewMemoryUserStore()
	apps := store.NewMemoryStore()
	lc := lifecycle.NewService(apps, tokens, nil)
	sessions := reconcile.NewSessionStore(rdb, time.Hour, 3*time.Second, nil)
	proc := agent.NewProcessor(users, lc, sessions, rdb, nil)
	registry := landregistry.NewClient(registryURL, "test-key", 5*time.Second, nil)

	srv := New(Deps{
		Tokens:    tokens,
		Users:     users,
		Lifecycle: lc,
		Agent:     proc,
		Registry:  registry,
		Sessions:  sessions,
		ReadyChecks: map[string]func(ctx context.Context) error{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		},
	})
	return &testEnv{handler: srv.Handler(), sessions: sessions}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, mobile string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"name": "Ram Kumar", "mobileNumber": mobile,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Tokens struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Tokens.AccessToken)
	return resp.Tokens.AccessToken
}

func TestDraftSubmitListFlow(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	token := env.login(t, "9876543210")

	rec := env.do(t, http.MethodPost, "/api/applications/draft", token, map[string]interface{}{
		"loanType": "Mechanization",
		"details": map[string]interface{}{
			"farmerName": "Ram Kumar", "mobile": "9876543210", "village": "Pune",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/applications/submit", token, map[string]interface{}{
		"loanType": "Mechanization",
		"details": map[string]interface{}{
			"farmerName": "Ram Kumar", "mobile": "9876543210", "village": "Pune",
			"equipment": "Tractor-5310", "dealer": "ABC Motors", "price": 500000,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/applications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Applications []*models.LoanApplication `json:"applications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Applications, 1)
	assert.Equal(t, models.StatusSubmitted, list.Applications[0].Status)
}

func TestDraft_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/api/applications/draft", "", map[string]interface{}{
		"loanType": "Dairy",
		"details":  map[string]interface{}{"mobile": "9876543210"},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmit_ValidationFailureIs422WithField(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	token := env.login(t, "9876543210")

	rec := env.do(t, http.MethodPost, "/api/applications/submit", token, map[string]interface{}{
		"loanType": "Mechanization",
		"details": map[string]interface{}{
			"farmerName": "Ram Kumar", "mobile": "9876543210", "village": "Pune",
			"equipment": "Tractor-5310", "dealer": "ABC Motors", "price": 5000,
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Field   string `json:"field"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.Code)
	assert.Equal(t, "price", resp.Error.Field)
	assert.Contains(t, resp.Error.Message, "at least 10000")
}

func TestList_AnonymousGetsEmptyList(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodGet, "/api/applications", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Applications []*models.LoanApplication `json:"applications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list.Applications)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"mobileNumber": "9876543210"})
	require.Equal(t, http.StatusOK, rec.Code)
	var loginResp struct {
		Tokens struct {
			RefreshToken string `json:"refreshToken"`
		} `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": loginResp.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": "garbage",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAgentWebhook_UpdateForm(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/api/webhooks/agent", "", map[string]interface{}{
		"tool": "update_form",
		"payload": map[string]string{
			"sessionId": "sess-1", "loanType": "CropInput", "crop": "Sugarcane",
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var state reconcile.FormState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "Sugarcane", state.Values["crop"])
}

func TestAgentWebhook_UnknownTool(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/api/webhooks/agent", "", map[string]interface{}{
		"tool":    "delete_everything",
		"payload": map[string]string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegistryVerify_AppliesUpdatesToSession(t *testing.T) {
	registry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"surveyNo":"123/4A","village":"Pune","ownerName":"Ram Kumar","areaAcres":2.5}`))
	}))
	defer registry.Close()

	env := newTestEnv(t, registry.URL)
	token := env.login(t, "9876543210")

	rec := env.do(t, http.MethodPost, "/api/registry/verify", token, map[string]string{
		"surveyNo": "123/4A", "village": "Pune", "sessionId": "sess-1", "loanType": "CropInput",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	state, err := env.sessions.Get(context.Background(), "sess-1", models.LoanTypeCropInput)
	require.NoError(t, err)
	assert.Equal(t, "2.5", state.Values["acreage"])
	assert.Equal(t, "Ram Kumar", state.Values["farmerName"])
	assert.Contains(t, state.Highlighted, "acreage")
}

func TestRegistryVerify_RequiresAuth(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodPost, "/api/registry/verify", "", map[string]string{
		"surveyNo": "123/4A", "village": "Pune",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealthAndReady(t *testing.T) {
	env := newTestEnv(t, "http://unused")

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t, "http://unused")
	rec := env.do(t, http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
