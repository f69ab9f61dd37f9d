package routes

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/terravest/terravest-backend/pkg/config"
	"github.com/terravest/terravest-backend/pkg/logger"
)

func testRouter() http.Handler {
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "issuer"},
	}
	logg := logger.New(logger.Options{ServiceName: "test"})
	return NewRouter(cfg, logg, nil, nil, nil, nil, nil, nil)
}

func mintToken(t *testing.T, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":  uuid.NewString(),
		"iss":  "issuer",
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestRouterHealthLive(t *testing.T) {
	resp := httptest.NewRecorder()
	testRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRouterMemberRoutesRequireAuth(t *testing.T) {
	paths := []string{
		"/api/v1/wallet/balance",
		"/api/v1/wallet/transactions",
		"/api/v1/commissions",
		"/api/v1/payouts",
		"/api/v1/network/tree",
		"/api/v1/network/stats",
	}
	router := testRouter()
	for _, path := range paths {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", path, resp.Code)
		}
	}
}

func TestRouterAdminRoutesRequireAdminRole(t *testing.T) {
	router := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/payouts", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, "member"))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/admin/v1/payouts", nil)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}
