package handler_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printops/mps-console/internal/handler"
	"github.com/printops/mps-console/internal/handler/middleware"
	"github.com/printops/mps-console/internal/repository/postgres"
	"github.com/printops/mps-console/internal/service"
	"github.com/printops/mps-console/internal/session"
	"github.com/printops/mps-console/internal/upstream"
	"github.com/printops/mps-console/pkg/blacklist"
	"github.com/printops/mps-console/pkg/jwt"
	"github.com/printops/mps-console/pkg/validator"
)

// routedApp wires the full route table the way main does. The requests
// below never get past the auth middleware, so the mock DB serves no
// queries.
func routedApp(t *testing.T) *fiber.App {
	t.Helper()

	mockDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	db := sqlx.NewDb(mockDB, "sqlmock")

	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})

	codec, err := jwt.NewSessionCodec([]byte("0123456789abcdef0123456789abcdef"), time.Hour, "mps-console")
	require.NoError(t, err)
	store := session.NewCookieStore(codec, false, 15*time.Minute, 7*24*time.Hour)

	client, err := upstream.NewClient(upstream.Config{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})
	require.NoError(t, err)

	tokenBlacklist := blacklist.NewTokenBlacklist(redisClient)
	authService := service.NewAuthService(client, tokenBlacklist)
	policyService := service.NewPolicyService(postgres.NewPolicyRepository(db), postgres.NewResourceTypeRepository(db))
	assistant := service.NewAssistant(policyService, time.Second)
	navService := service.NewNavigationService(postgres.NewNavigationRepository(db), redisClient)

	v := validator.NewValidator()
	app := fiber.New()
	handler.SetupRoutes(app,
		handler.NewAuthHandler(authService, store, v),
		handler.NewPolicyHandler(policyService, assistant, v),
		handler.NewResourceTypeHandler(postgres.NewResourceTypeRepository(db), v),
		handler.NewNavigationHandler(navService, v),
		handler.NewHealthHandler(db, redisClient),
		navService,
		middleware.AuthMiddleware(store, tokenBlacklist),
	)
	return app
}

// The auth surface is part of the public contract; a client built
// against it must reach the handler, not a 404.
func TestSetupRoutes_AuthSurfaceIsMounted(t *testing.T) {
	app := routedApp(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/profile"},
		{http.MethodPatch, "/api/auth/change-password"},
		{http.MethodGet, "/api/auth/customer-managers"},
		{http.MethodGet, "/api/me/"},
		{http.MethodPost, "/api/me/change-password"},
		{http.MethodGet, "/api/customer-managers"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(tt.method, tt.path, nil))
			require.NoError(t, err)
			defer resp.Body.Close()

			// Unauthenticated requests stop at the middleware.
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		})
	}
}
