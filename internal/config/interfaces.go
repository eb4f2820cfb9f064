package config

import "context"

// SecretProvider resolves parameter paths named by *_SSM_PARAM variables.
type SecretProvider interface {
	// GetParametersBatch returns path -> plaintext for every resolved key.
	// Keys that cannot be resolved are reported as an error.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
