// Package registry keeps the configured responder roles synced into the
// store and resolves role settings and secret references at runtime.
package registry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mberos/quorum/internal/config"
	"github.com/mberos/quorum/internal/store"
	"github.com/mberos/quorum/internal/vault"
)

type Registry struct {
	store *store.Store
	vault *vault.Vault
	roles map[string]config.RoleConfig
}

func New(st *store.Store, v *vault.Vault, roles map[string]config.RoleConfig) *Registry {
	return &Registry{store: st, vault: v, roles: roles}
}

// Sync writes the configured role definitions into the store so they are
// visible over the API.
func (r *Registry) Sync() error {
	for name, rc := range r.roles {
		err := r.store.SaveRoleDefinition(&store.RoleDefinition{
			Role:        name,
			Description: rc.Description,
			Model:       rc.Model,
			Temperature: rc.Temperature,
			MaxTokens:   rc.MaxTokens,
			Timeout:     rc.Timeout,
		})
		if err != nil {
			return fmt.Errorf("sync role %s: %w", name, err)
		}
	}
	return nil
}

func (r *Registry) Role(name string) (config.RoleConfig, bool) {
	rc, ok := r.roles[name]
	return rc, ok
}

func (r *Registry) ResolveModel(name string) string {
	if rc, ok := r.roles[name]; ok && rc.Model != "" {
		return rc.Model
	}
	return "gpt-4"
}

func (r *Registry) ResolveTimeout(name string) time.Duration {
	if rc, ok := r.roles[name]; ok && rc.Timeout > 0 {
		return rc.Timeout
	}
	return 45 * time.Second
}

// ResolveAPIKey expands a "secret:<name>" reference through the vault;
// anything else is returned verbatim.
func (r *Registry) ResolveAPIKey(name string) (string, error) {
	rc, ok := r.roles[name]
	if !ok {
		return "", nil
	}
	ref, found := strings.CutPrefix(rc.APIKey, "secret:")
	if !found {
		return rc.APIKey, nil
	}
	if r.vault == nil {
		return "", fmt.Errorf("role %s references secret %q but vault is not configured", name, ref)
	}
	sec, err := r.store.GetSecretByName(ref)
	if err != nil {
		return "", fmt.Errorf("load secret %s: %w", ref, err)
	}
	if sec == nil {
		return "", fmt.Errorf("secret %s not found", ref)
	}
	plain, err := r.vault.Decrypt(sec.Value, sec.Nonce)
	if err != nil {
		return "", fmt.Errorf("decrypt secret %s: %w", ref, err)
	}
	return string(plain), nil
}

// StoreSecret encrypts and persists a named secret.
func (r *Registry) StoreSecret(name, value string) error {
	if r.vault == nil {
		return fmt.Errorf("vault is not configured")
	}
	ct, nonce, err := r.vault.Encrypt([]byte(value))
	if err != nil {
		return fmt.Errorf("encrypt secret %s: %w", name, err)
	}
	return r.store.SaveSecret(&store.Secret{
		ID:    uuid.NewString(),
		Name:  name,
		Value: ct,
		Nonce: nonce,
	})
}
