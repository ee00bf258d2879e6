package settings

import "fmt"

// Repositories groups the stores a Resolver needs
type Repositories struct {
	Settings SettingsRepository
	Profiles ProfileRepository
	System   SystemConfigRepository
}

// RepositoryConfig contains configuration for creating the settings repositories
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories
	DB DBTX
}

// NewRepositories creates the settings repositories based on the persistence type
func NewRepositories(persistenceType string, config RepositoryConfig) (Repositories, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return Repositories{}, fmt.Errorf("db required for postgres repository")
		}
		repo := NewPostgresRepository(config.DB)
		return Repositories{Settings: repo, Profiles: repo, System: repo}, nil
	case "inmem", "memory":
		repo := NewInMemRepository()
		return Repositories{Settings: repo, Profiles: repo, System: repo}, nil
	default:
		return Repositories{}, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
