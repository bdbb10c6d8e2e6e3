package secrets

import "context"

// Credentials holds the retrieved username and password.
type Credentials struct {
	Username string
	Password string
}

// SecretManager is a backend that can supply database credentials.
type SecretManager interface {
	// GetCredentials reads the secret at pathOrID and returns the values
	// stored under usernameKey and passwordKey.
	GetCredentials(ctx context.Context, pathOrID string, usernameKey string, passwordKey string) (*Credentials, error)

	IsEnabled() bool
}
