package config

import (
	"os"
	"strings"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// GetEnv returns the value of an environment variable or a default value if not set.
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvironment reads YOOZAK_SERVER_ENVIRONMENT, defaulting to development.
func GetEnvironment() string {
	return strings.ToLower(strings.TrimSpace(GetEnv("YOOZAK_SERVER_ENVIRONMENT", EnvDevelopment)))
}

// IsProductionLike reports whether env requires hardened configuration:
// real secrets, a remote database and a remote broker.
func IsProductionLike(env string) bool {
	switch strings.ToLower(env) {
	case EnvStaging, EnvProduction:
		return true
	}
	return false
}
