package config

// JWTConfig holds the HS256 secret shared with the identity provider that
// issues bearer tokens
type JWTConfig struct {
	Secret string `env:"JWT_SECRET" env-default:"very-secure-jwt-secret"`
}
