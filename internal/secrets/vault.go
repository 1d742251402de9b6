// Package secrets holds the shared secrets guarding the HTTP surface and
// swaps them atomically on reload.
package secrets

import (
	"fmt"
	"sync"

	"github.com/Strob0t/ticketslack/internal/config"
)

// Keys under which ConfigLoader publishes secrets.
const (
	KeyIngressSecret = "ingress.secret"
	KeyAdminToken    = "server.admin_token"
)

// Loader retrieves secrets from a source.
type Loader func() (map[string]string, error)

// ConfigLoader returns a Loader that re-reads the configuration hierarchy
// and extracts the ingress secret and admin token.
func ConfigLoader(load func() (*config.Config, error)) Loader {
	return func() (map[string]string, error) {
		cfg, err := load()
		if err != nil {
			return nil, err
		}
		return map[string]string{
			KeyIngressSecret: cfg.Ingress.Secret,
			KeyAdminToken:    cfg.Server.AdminToken,
		}, nil
	}
}

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Getter returns a function reading the current value of key.
func (v *Vault) Getter(key string) func() string {
	return func() string { return v.Get(key) }
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}

// Redacted returns a masked form of the secret for logs: the first two
// characters followed by "****", or "****" alone for short values.
func (v *Vault) Redacted(key string) string {
	val := v.Get(key)
	if val == "" {
		return ""
	}
	if len(val) <= 4 {
		return "****"
	}
	return val[:2] + "****"
}
