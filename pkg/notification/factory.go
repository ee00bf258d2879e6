package notification

import (
	"fmt"
)

// RepositoryConfig contains configuration for creating a record repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
}

// NewRecordRepository creates a new record repository based on the persistence type
func NewRecordRepository(persistenceType string, config RepositoryConfig) (RecordRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresRecordRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemRecordRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
