// Package feishu provides the main entry point for creating bitable API clients
package feishu

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/bitable-client/internal/client"
	"github.com/fivetwenty-io/bitable-client/internal/constants"
	"github.com/fivetwenty-io/bitable-client/pkg/bitable"
)

// New creates a new bitable client. The config is copied; the caller's value is not modified.
func New(ctx context.Context, config *bitable.Config) (bitable.Client, error) {
	if config == nil {
		return nil, bitable.ErrConfigRequired
	}

	normalized := *config
	normalized.BaseURL = normalizeBaseURL(config.BaseURL)

	err := validateCredentials(&normalized)
	if err != nil {
		return nil, err
	}

	// Use the internal client implementation
	c, err := client.New(ctx, &normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return c, nil
}

// NewWithAppCredentials creates a client that exchanges app credentials for a tenant access token.
func NewWithAppCredentials(ctx context.Context, appID, appSecret string) (bitable.Client, error) {
	return New(ctx, &bitable.Config{AppID: appID, AppSecret: appSecret})
}

// NewWithToken creates a client using a tenant access token obtained elsewhere.
func NewWithToken(ctx context.Context, tenantAccessToken string) (bitable.Client, error) {
	return New(ctx, &bitable.Config{TenantAccessToken: tenantAccessToken})
}

// NewTable creates a client and binds it to one table.
func NewTable(ctx context.Context, config *bitable.Config, coords bitable.TableCoordinates) (bitable.Table, error) {
	c, err := New(ctx, config)
	if err != nil {
		return nil, err
	}

	return c.Table(coords), nil
}

// normalizeBaseURL defaults the API root and strips trailing slashes.
func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return constants.DefaultBaseURL
	}

	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "https://" + baseURL
	}

	return baseURL
}

func validateCredentials(config *bitable.Config) error {
	if config.TenantAccessToken != "" {
		return nil
	}

	if config.AppID == "" {
		return bitable.ErrAppIDRequired
	}

	if config.AppSecret == "" {
		return bitable.ErrAppSecretRequired
	}

	return nil
}
