package twofa

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a 2FA settings repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
}

// NewSettingsRepository creates a new 2FA settings repository based on the persistence type
func NewSettingsRepository(persistenceType string, config RepositoryConfig) (SettingsRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresSettingsRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemSettingsRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
