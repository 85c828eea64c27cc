package service_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printops/mps-console/internal/service"
	"github.com/printops/mps-console/internal/upstream"
)

type sessionBackend struct {
	logins    atomic.Int64
	refreshes atomic.Int64
	failAuth  atomic.Bool
}

func (b *sessionBackend) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.logins.Add(1)
		if b.failAuth.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "svc-access-1",
			"refresh_token": "svc-refresh-1",
			"user":          map[string]interface{}{"id": "svc", "role": "SystemAdmin"},
		})
	})
	mux.HandleFunc("/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		b.refreshes.Add(1)
		if b.failAuth.Load() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "svc-access-2",
			"refresh_token": "svc-refresh-2",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newServiceSession(t *testing.T, baseURL string) *service.ServiceSession {
	t.Helper()
	client, err := upstream.NewClient(upstream.Config{BaseURL: baseURL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return service.NewServiceSession(client, "svc-account", "svc-password")
}

func TestServiceSession_LoginStoresTokens(t *testing.T) {
	backend := &sessionBackend{}
	sess := newServiceSession(t, backend.server(t).URL)

	assert.Empty(t, sess.AccessToken())

	require.NoError(t, sess.Login(context.Background()))
	assert.Equal(t, "svc-access-1", sess.AccessToken())
	assert.Equal(t, int64(1), backend.logins.Load())
}

func TestServiceSession_RefreshRotates(t *testing.T) {
	backend := &sessionBackend{}
	sess := newServiceSession(t, backend.server(t).URL)

	require.NoError(t, sess.Login(context.Background()))
	require.NoError(t, sess.Refresh(context.Background()))

	assert.Equal(t, "svc-access-2", sess.AccessToken())
	assert.Equal(t, int64(1), backend.refreshes.Load())
}

func TestServiceSession_RefreshWithoutTokensLogsIn(t *testing.T) {
	backend := &sessionBackend{}
	sess := newServiceSession(t, backend.server(t).URL)

	// Never logged in: Refresh performs a full login instead
	require.NoError(t, sess.Refresh(context.Background()))
	assert.Equal(t, "svc-access-1", sess.AccessToken())
	assert.Equal(t, int64(1), backend.logins.Load())
	assert.Equal(t, int64(0), backend.refreshes.Load())
}

func TestServiceSession_FailedRefreshDropsSession(t *testing.T) {
	backend := &sessionBackend{}
	sess := newServiceSession(t, backend.server(t).URL)

	require.NoError(t, sess.Login(context.Background()))
	backend.failAuth.Store(true)

	err := sess.Refresh(context.Background())
	require.Error(t, err)

	// The scheduler's next poll must see a logged-out session
	assert.Empty(t, sess.AccessToken())
}
