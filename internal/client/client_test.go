package client_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	. "github.com/fivetwenty-io/bitable-client/internal/client"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), nil)
		require.ErrorIs(t, err, bitable.ErrConfigRequired)

		_, err = NewWithTokenManager(context.Background(), nil, nil)
		require.ErrorIs(t, err, bitable.ErrConfigRequired)
	})

	t.Run("requires base URL", func(t *testing.T) {
		t.Parallel()

		_, err := New(context.Background(), &bitable.Config{})
		require.ErrorIs(t, err, ErrBaseURLRequired)
	})

	t.Run("creates client with tenant access token", func(t *testing.T) {
		t.Parallel()

		client, err := New(context.Background(), &bitable.Config{
			BaseURL:           "https://open.example.com/open-apis/",
			TenantAccessToken: "t-static",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://open.example.com/open-apis", client.BaseURL())
		assert.NotNil(t, client.TokenManager())
	})

	t.Run("creates client with app credentials", func(t *testing.T) {
		t.Parallel()

		client, err := New(context.Background(), &bitable.Config{
			BaseURL:   "https://open.example.com/open-apis",
			AppID:     "cli_a",
			AppSecret: "secret",
		})
		require.NoError(t, err)
		assert.NotNil(t, client.TokenManager())
	})

	t.Run("creates client without authentication", func(t *testing.T) {
		t.Parallel()

		client, err := New(context.Background(), &bitable.Config{BaseURL: "https://open.example.com"})
		require.NoError(t, err)
		assert.Nil(t, client.TokenManager())

		err = client.Authenticate(context.Background())
		require.ErrorIs(t, err, ErrNoTokenManagerConfigured)
	})
}

func newAuthServer(t *testing.T, tokenCalls *int32, handler http.HandlerFunc) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/v3/tenant_access_token/internal", func(writer http.ResponseWriter, request *http.Request) {
		n := atomic.AddInt32(tokenCalls, 1)
		_ = json.NewEncoder(writer).Encode(map[string]interface{}{
			"code":                0,
			"tenant_access_token": map[int32]string{1: "t-one", 2: "t-two"}[n],
			"expire":              7200,
		})
	})
	mux.HandleFunc("/", handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

func TestClient_Query(t *testing.T) {
	t.Parallel()
	t.Run("authenticates lazily and reuses the token", func(t *testing.T) {
		t.Parallel()

		var tokenCalls int32

		server := newAuthServer(t, &tokenCalls, func(writer http.ResponseWriter, request *http.Request) {
			assert.Equal(t, "Bearer t-one", request.Header.Get("Authorization"))
			WriteEnvelope(writer, 0, map[string]interface{}{"ok": true})
		})

		client, err := New(context.Background(), &bitable.Config{BaseURL: server.URL, AppID: "a", AppSecret: "s"})
		require.NoError(t, err)

		for range 3 {
			envelope, err := client.Query(context.Background(), server.URL+"/anything", "GET", nil)
			require.NoError(t, err)
			assert.Equal(t, 0, envelope.Code)
		}

		assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
	})

	t.Run("authenticate fetches a fresh token", func(t *testing.T) {
		t.Parallel()

		var tokenCalls int32

		server := newAuthServer(t, &tokenCalls, func(writer http.ResponseWriter, request *http.Request) {
			WriteEnvelope(writer, 0, map[string]string{"token": request.Header.Get("Authorization")})
		})

		client, err := New(context.Background(), &bitable.Config{BaseURL: server.URL, AppID: "a", AppSecret: "s"})
		require.NoError(t, err)

		require.NoError(t, client.Authenticate(context.Background()))
		require.NoError(t, client.Authenticate(context.Background()))

		envelope, err := client.Query(context.Background(), server.URL+"/x", "GET", nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"token":"Bearer t-two"}`, string(envelope.Data))
		assert.Equal(t, int32(2), atomic.LoadInt32(&tokenCalls))
	})

	t.Run("static token cannot be refreshed", func(t *testing.T) {
		t.Parallel()

		client, err := New(context.Background(), &bitable.Config{BaseURL: "https://x.example", TenantAccessToken: "t"})
		require.NoError(t, err)

		err = client.Authenticate(context.Background())
		require.ErrorIs(t, err, bitable.ErrStaticTokenRefresh)
	})

	t.Run("blank body and invalid JSON", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if request.URL.Path == "/blank" {
				return
			}

			_, _ = writer.Write([]byte("not json"))
		}))
		defer server.Close()

		client := NewTestClient(server.URL)

		_, err := client.Query(context.Background(), server.URL+"/blank", "GET", nil)
		assert.Equal(t, bitable.KindEmptyResponse, bitable.KindOf(err))

		_, err = client.Query(context.Background(), server.URL+"/bad", "GET", nil)
		assert.Equal(t, bitable.KindDecode, bitable.KindOf(err))
	})
}

func TestClient_Table(t *testing.T) {
	t.Parallel()

	client := NewTestClient("https://open.example.com/open-apis")

	table := client.Table(bitable.TableCoordinates{AppToken: "app", TableID: "tbl"})
	assert.Equal(t, "app", table.AppToken())
	assert.Equal(t, "tbl", table.TableID())

	other := client.Table(bitable.TableCoordinates{AppToken: "app", TableID: "tbl2"})
	assert.Equal(t, "tbl", table.TableID())
	assert.Equal(t, "tbl2", other.TableID())
}
