package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister saves tenant tokens so later processes can reuse them.
type ConfigPersister interface {
	UpdateTenantToken(appID, token string, expiresAt time.Time) error
}

// ConfigTokenManager wraps TenantTokenManager and persists every newly acquired token.
type ConfigTokenManager struct {
	tenant          *TenantTokenManager
	configPersister ConfigPersister
	appID           string
	mutex           sync.Mutex
	persistedToken  string
}

// NewConfigTokenManager creates a config-persisting token manager. A non-empty
// initialToken is seeded into the tenant manager so no request is made for it.
func NewConfigTokenManager(config *TenantConfig, configPersister ConfigPersister, initialToken string, initialExpiry time.Time) *ConfigTokenManager {
	tenant := NewTenantTokenManager(config)

	if initialToken != "" {
		tenant.SetToken(initialToken, initialExpiry)
	}

	return &ConfigTokenManager{
		tenant:          tenant,
		configPersister: configPersister,
		appID:           config.AppID,
		persistedToken:  initialToken,
	}
}

// GetToken returns the tenant token, persisting it if it changed.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.tenant.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.persistIfChanged()

	return token, nil
}

// RefreshToken forces a token refresh and persists the result.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	err := m.tenant.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.persistIfChanged()

	return nil
}

// SetToken manually sets the access token without persisting it.
func (m *ConfigTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.tenant.SetToken(token, expiresAt)
	m.persistedToken = token
}

// Token returns the held token, or nil before the first acquisition.
func (m *ConfigTokenManager) Token() *Token {
	return m.tenant.Token()
}

// IsTokenExpiringSoon returns true if the token expires within the given duration.
func (m *ConfigTokenManager) IsTokenExpiringSoon(within time.Duration) bool {
	return m.tenant.IsTokenExpiringSoon(within)
}

func (m *ConfigTokenManager) persistIfChanged() {
	current := m.tenant.Token()
	if current == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if current.AccessToken == m.persistedToken {
		return
	}

	err := m.persistToken(current)
	if err != nil {
		if m.tenant.config.Logger != nil {
			m.tenant.config.Logger.Warn("Failed to persist tenant token", map[string]interface{}{
				"error": err.Error(),
			})
		}

		return
	}

	m.persistedToken = current.AccessToken
}

// persistToken saves the token to config.
func (m *ConfigTokenManager) persistToken(token *Token) error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.UpdateTenantToken(m.appID, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update tenant token: %w", err)
	}

	return nil
}
