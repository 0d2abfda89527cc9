package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/fivetwenty-io/bitable-client/internal/constants"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// TenantConfig configures tenant access token acquisition.
type TenantConfig struct {
	TokenURL  string
	AppID     string
	AppSecret string
	// RefreshOnExpiry re-acquires the token once the server-reported expiry passes.
	// When false the first token is reused until RefreshToken is called.
	RefreshOnExpiry bool
	HTTPClient      *http.Client
	Logger          bitable.Logger
}

// TenantTokenManager exchanges app credentials for a tenant access token.
// Concurrent callers share one in-flight request.
type TenantTokenManager struct {
	config     *TenantConfig
	httpClient *http.Client
	store      *TokenStore
	group      singleflight.Group
}

// NewTenantTokenManager creates a manager. No request is made until a token is needed.
func NewTenantTokenManager(config *TenantConfig) *TenantTokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	return &TenantTokenManager{
		config:     config,
		httpClient: httpClient,
		store:      NewTokenStore(),
	}
}

// GetToken returns the held token, acquiring one on first use.
func (m *TenantTokenManager) GetToken(ctx context.Context) (string, error) {
	token := m.store.Get()
	if m.usable(token) {
		return token.AccessToken, nil
	}

	token, err := m.acquire(ctx, false)
	if err != nil {
		return "", err
	}

	return token.AccessToken, nil
}

// RefreshToken fetches a fresh token unconditionally.
func (m *TenantTokenManager) RefreshToken(ctx context.Context) error {
	_, err := m.acquire(ctx, true)

	return err
}

// SetToken manually sets the access token.
func (m *TenantTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt, ObtainedAt: time.Now()})
}

// Token returns the held token, or nil before the first acquisition.
func (m *TenantTokenManager) Token() *Token {
	return m.store.Get()
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *TenantTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	token := m.store.Get()
	if token == nil {
		return true
	}

	if token.ExpiresAt.IsZero() {
		return false
	}

	return time.Now().Add(within).After(token.ExpiresAt)
}

func (m *TenantTokenManager) usable(token *Token) bool {
	if token == nil || token.AccessToken == "" {
		return false
	}

	return !m.config.RefreshOnExpiry || token.Valid()
}

// acquire runs at most one token request at a time. Unless force is set, a caller
// that lost the race to a finished flight reuses its token instead of fetching again.
// The request is not bound to any one caller's context; each caller stops
// waiting when its own ctx ends.
func (m *TenantTokenManager) acquire(ctx context.Context, force bool) (*Token, error) {
	flightCtx := context.WithoutCancel(ctx)

	results := m.group.DoChan("tenant_access_token", func() (interface{}, error) {
		if current := m.store.Get(); !force && m.usable(current) {
			return current, nil
		}

		token, fetchErr := m.fetch(flightCtx)
		if fetchErr != nil {
			return nil, fetchErr
		}

		m.store.Set(token)

		return token, nil
	})

	var result singleflight.Result

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for tenant access token: %w", ctx.Err())
	case result = <-results:
	}

	if result.Err != nil {
		return nil, result.Err
	}

	token := result.Val.(*Token)

	if m.config.Logger != nil && !result.Shared {
		m.config.Logger.Debug("Acquired tenant access token", map[string]interface{}{
			"expires_at": token.ExpiresAt,
		})
	}

	return token, nil
}

type tenantTokenRequest struct {
	AppID     string `json:"app_id"`
	AppSecret string `json:"app_secret"`
}

type tenantTokenResponse struct {
	Code              int    `json:"code"`
	Msg               string `json:"msg"`
	TenantAccessToken string `json:"tenant_access_token"`
	Expire            int    `json:"expire"`
}

func (m *TenantTokenManager) fetch(ctx context.Context) (*Token, error) {
	payload, err := json.Marshal(tenantTokenRequest{AppID: m.config.AppID, AppSecret: m.config.AppSecret})
	if err != nil {
		return nil, fmt.Errorf("encoding token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting tenant access token: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("requesting tenant access token: %w", bitable.NewTransportError(resp.StatusCode, body))
	}

	if bitable.IsBlank(body) {
		return nil, fmt.Errorf("requesting tenant access token: %w", &bitable.EmptyResponseError{StatusCode: resp.StatusCode})
	}

	var tokenResp tenantTokenResponse

	err = json.Unmarshal(body, &tokenResp)
	if err != nil {
		return nil, fmt.Errorf("parsing token response: %w", &bitable.DecodeError{Body: body, Err: err})
	}

	if tokenResp.Code != constants.CodeOK {
		return nil, fmt.Errorf("requesting tenant access token: %w", &bitable.APIError{Code: tokenResp.Code, Msg: tokenResp.Msg})
	}

	if tokenResp.TenantAccessToken == "" {
		return nil, bitable.ErrMissingToken
	}

	now := time.Now()
	token := &Token{AccessToken: tokenResp.TenantAccessToken, ObtainedAt: now}

	if tokenResp.Expire > 0 {
		token.ExpiresAt = now.Add(time.Duration(tokenResp.Expire) * time.Second)
	}

	return token, nil
}
