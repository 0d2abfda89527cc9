package commands

import (
	"sync"
	"time"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateTenantToken saves the tenant token and the app it was issued to. The
// rest of the file is written back as it was on disk.
func (p *ConfigPersister) UpdateTenantToken(appID, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config, err := loadConfigFile()
	if err != nil {
		return err
	}

	config.TenantToken = token
	config.TenantTokenAppID = appID

	if !expiresAt.IsZero() {
		config.TenantTokenExpiresAt = &expiresAt
	} else {
		config.TenantTokenExpiresAt = nil
	}

	return saveConfigStruct(config)
}
