package config

import "os"

// Environment is the deployment environment read from APP_ENV
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// GetEnvironment returns the current environment from APP_ENV or defaults to development
func GetEnvironment() Environment {
	switch os.Getenv("APP_ENV") {
	case "production", "prod":
		return Production
	case "test", "testing":
		return Test
	default:
		return Development
	}
}

// IsProduction gates the stricter secret checks in OTPConfig.Validator
func IsProduction() bool {
	return GetEnvironment() == Production
}
