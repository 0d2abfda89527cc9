package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fivetwenty-io/bitable-client/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPersister struct {
	appID   string
	token   string
	expires time.Time
	calls   int
}

func (p *recordingPersister) UpdateTenantToken(appID, token string, expiresAt time.Time) error {
	p.appID = appID
	p.token = token
	p.expires = expiresAt
	p.calls++

	return nil
}

func TestConfigTokenManager(t *testing.T) {
	t.Parallel()

	t.Run("persists newly acquired token once", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":0,"tenant_access_token":"t-fresh","expire":7200}`))
		}))
		defer server.Close()

		persister := &recordingPersister{}
		manager := auth.NewConfigTokenManager(&auth.TenantConfig{
			TokenURL:  server.URL,
			AppID:     "cli_app",
			AppSecret: "secret",
		}, persister, "", time.Time{})

		for range 3 {
			token, err := manager.GetToken(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "t-fresh", token)
		}

		assert.Equal(t, 1, persister.calls)
		assert.Equal(t, "cli_app", persister.appID)
		assert.Equal(t, "t-fresh", persister.token)
		assert.False(t, persister.expires.IsZero())
	})

	t.Run("seeded token is used without a request", func(t *testing.T) {
		t.Parallel()

		var calls int32

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}))
		defer server.Close()

		persister := &recordingPersister{}
		manager := auth.NewConfigTokenManager(&auth.TenantConfig{TokenURL: server.URL}, persister,
			"t-saved", time.Now().Add(time.Hour))

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t-saved", token)
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
		assert.Equal(t, 0, persister.calls)
	})

	t.Run("missing persister does not fail the call", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"code":0,"tenant_access_token":"t-x","expire":60}`))
		}))
		defer server.Close()

		manager := auth.NewConfigTokenManager(&auth.TenantConfig{TokenURL: server.URL}, nil, "", time.Time{})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "t-x", token)
	})
}
