package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cspacehr/internal/config"
	"cspacehr/internal/middleware"
	"cspacehr/internal/rbac"
	"cspacehr/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "router-test-secret-0123456789abcdef"

func testConfig(env string) *config.Config {
	return &config.Config{
		Env:               env,
		StateBackend:      config.StateBackendMemory,
		JWTSecret:         testSecret,
		SessionTTLMinutes: 15,
		RefreshTTLHours:   24,
		BcryptCost:        bcrypt.MinCost,
		PINMaxAttempts:    5,
		PINLockoutMinutes: 15,
	}
}

// The database is never touched by requests that authorization rejects.
func newEngine(t *testing.T, env string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := testConfig(env)
	return New(ctx, cfg, nil, nil, NewState(ctx, cfg, nil))
}

func TestNewState_MemoryBackendHasNoBreaker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg := testConfig("development")
	cfg.StateBackend = config.StateBackendRedis

	// A nil client forces the memory backend whatever the setting.
	st := NewState(ctx, cfg, nil)
	assert.Nil(t, st.Breaker)
	assert.NotNil(t, st.Lockout)
	assert.NotNil(t, st.Refresh)
}

func TestRoutes_Registered(t *testing.T) {
	r := newEngine(t, "development")
	have := map[string]bool{}
	for _, ri := range r.Routes() {
		have[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"POST /v1/auth/login",
		"POST /v1/auth/refresh",
		"POST /v1/auth/logout",
		"GET /v1/auth/me",
		"GET /v1/auth/permissions",
		"POST /v1/kiosk/login",
		"POST /v1/kiosk/logout",
		"POST /v1/branches/:branch_id/operator/switch",
		"GET /v1/branches/:branch_id/operator/logs",
		"POST /v1/pins/assign",
		"POST /v1/branch-access",
		"GET /v1/branch-access",
		"DELETE /v1/branch-access/:id",
		"POST /v1/users",
		"GET /v1/users",
		"PUT /v1/users/:id",
		"DELETE /v1/users/:id",
		"PATCH /v1/users/:id/reactivate",
		"GET /swagger/*any",
	} {
		assert.True(t, have[want], "missing route %s", want)
	}
}

func TestSwagger_HiddenInProduction(t *testing.T) {
	r := newEngine(t, "production")
	for _, ri := range r.Routes() {
		assert.NotEqual(t, "/swagger/*any", ri.Path)
	}
}

func TestRoutes_Authorization(t *testing.T) {
	r := newEngine(t, "development")

	sessions := token.NewSessionCodec(testSecret)
	employee, _, err := sessions.Issue(token.Principal{
		ID: "u-1", Name: "Aziz", Role: rbac.RoleEmployee, SessionID: "s-1",
	}, time.Minute)
	require.NoError(t, err)

	kiosk, _, err := token.NewKioskCodec(testSecret).Issue("chilonzor")
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		kiosk  string
		want   int
	}{
		{"me without token", http.MethodGet, "/v1/auth/me", "", "", http.StatusUnauthorized},
		{"kiosk token is not a session", http.MethodGet, "/v1/auth/me", "", kiosk, http.StatusUnauthorized},
		{"employee cannot manage users", http.MethodGet, "/v1/users", employee, "", http.StatusForbidden},
		{"employee cannot manage grants", http.MethodGet, "/v1/branch-access", employee, "", http.StatusForbidden},
		{"employee cannot assign pins", http.MethodPost, "/v1/pins/assign", employee, "", http.StatusForbidden},
		{"kiosk cannot read logs", http.MethodGet, "/v1/branches/chilonzor/operator/logs", "", kiosk, http.StatusUnauthorized},
		{"kiosk bound to another branch", http.MethodPost, "/v1/branches/yunusabad/operator/switch", "", kiosk, http.StatusForbidden},
		{"kiosk logout needs a kiosk", http.MethodPost, "/v1/kiosk/logout", "", "", http.StatusUnauthorized},
		{"kiosk logout ignores a session", http.MethodPost, "/v1/kiosk/logout", employee, "", http.StatusUnauthorized},
		{"kiosk logout alongside a session", http.MethodPost, "/v1/kiosk/logout", employee, kiosk, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			if tc.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tc.bearer)
			}
			if tc.kiosk != "" {
				req.Header.Set(middleware.KioskHeader, tc.kiosk)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.want, w.Code)
			assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
		})
	}
}

func TestCORS_Preflight(t *testing.T) {
	r := newEngine(t, "development")
	req := httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
	req.Header.Set("Origin", "https://hr.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
