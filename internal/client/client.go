package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fivetwenty-io/bitable-client/internal/auth"
	"github.com/fivetwenty-io/bitable-client/internal/constants"
	"github.com/fivetwenty-io/bitable-client/internal/http"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// Static errors for err113 compliance.
var (
	ErrBaseURLRequired          = errors.New("base URL is required")
	ErrNoTokenManagerConfigured = errors.New("no token manager configured")
)

// Client implements the bitable.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	baseURL      string
	logger       bitable.Logger
	maxPages     int
	cache        bitable.Cache
	cacheTTL     time.Duration
}

// createTokenManager creates appropriate token manager based on config.
func createTokenManager(config *bitable.Config) auth.TokenManager {
	if config.TenantAccessToken != "" {
		return auth.NewStaticTokenManager(config.TenantAccessToken)
	}

	if config.AppID != "" || config.AppSecret != "" {
		return auth.NewTenantTokenManager(createTenantConfig(config))
	}

	return nil // No authentication
}

// createTenantConfig builds the tenant token settings shared by every token manager.
func createTenantConfig(config *bitable.Config) *auth.TenantConfig {
	timeout := constants.ShortHTTPTimeout
	if config.HTTPTimeout > 0 {
		timeout = config.HTTPTimeout
	}

	return &auth.TenantConfig{
		TokenURL:        strings.TrimSuffix(config.BaseURL, "/") + constants.TenantTokenPath,
		AppID:           config.AppID,
		AppSecret:       config.AppSecret,
		RefreshOnExpiry: config.RefreshTokenOnExpiry,
		HTTPClient:      http.NewClient(config.BaseURL, nil, http.WithTimeout(timeout)).StandardClient(),
		Logger:          config.Logger,
	}
}

// NewTenantConfig exposes the tenant token settings New would use, for callers
// that wrap the token manager (the CLI persists tokens between runs).
func NewTenantConfig(config *bitable.Config) *auth.TenantConfig {
	return createTenantConfig(config)
}

// createHTTPClientOptions builds HTTP client options from config.
func createHTTPClientOptions(config *bitable.Config) []http.Option {
	var httpOpts []http.Option

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.Debug {
		httpOpts = append(httpOpts, http.WithDebug(true))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

// New creates a new bitable client from config.
func New(ctx context.Context, config *bitable.Config) (*Client, error) {
	if config == nil {
		return nil, bitable.ErrConfigRequired
	}

	return NewWithTokenManager(ctx, config, createTokenManager(config))
}

// NewWithTokenManager creates a client that authenticates through tokenManager.
func NewWithTokenManager(_ context.Context, config *bitable.Config, tokenManager auth.TokenManager) (*Client, error) {
	if config == nil {
		return nil, bitable.ErrConfigRequired
	}

	if config.BaseURL == "" {
		return nil, ErrBaseURLRequired
	}

	baseURL := strings.TrimSuffix(config.BaseURL, "/")

	// A nil auth.TokenManager must stay a nil http.TokenManager.
	var httpTokens http.TokenManager
	if tokenManager != nil {
		httpTokens = tokenManager
	}

	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = constants.DefaultCacheTTL
	}

	client := &Client{
		httpClient:   http.NewClient(baseURL, httpTokens, createHTTPClientOptions(config)...),
		tokenManager: tokenManager,
		baseURL:      baseURL,
		logger:       config.Logger,
		maxPages:     config.MaxPages,
		cache:        config.Cache,
		cacheTTL:     cacheTTL,
	}

	return client, nil
}

// Authenticate implements bitable.Client.Authenticate.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.tokenManager == nil {
		return ErrNoTokenManagerConfigured
	}

	err := c.tokenManager.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("authenticating: %w", err)
	}

	return nil
}

// Query implements bitable.Client.Query.
func (c *Client) Query(ctx context.Context, url, method string, body interface{}) (*bitable.Envelope, error) {
	return c.httpClient.Query(ctx, url, method, body)
}

// Table implements bitable.Client.Table.
func (c *Client) Table(coords bitable.TableCoordinates) bitable.Table {
	return newTable(c, coords)
}

// TokenManager returns the token manager, or nil when the client is unauthenticated.
func (c *Client) TokenManager() auth.TokenManager {
	return c.tokenManager
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) logError(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Error(msg, fields)
	}
}

func (c *Client) logDebug(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}
