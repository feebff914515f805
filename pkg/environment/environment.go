// Package environment names the deployment environments the notifier runs in.
package environment

import "strings"

// Environment represents application environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Normalize maps common spellings ("prod", "stage", "dev") onto an Environment.
// Unknown or empty values resolve to Development.
func Normalize(env string) Environment {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case string(Production), "prod":
		return Production
	case string(Staging), "stage":
		return Staging
	default:
		return Development
	}
}

// IsProduction reports whether env names the production environment.
func IsProduction(env string) bool {
	return Normalize(env) == Production
}
