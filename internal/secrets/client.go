// Package secrets resolves provider API credentials from HashiCorp Vault,
// with an in-memory fallback for development setups without a Vault server.
package secrets

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"trading-signal-engine/config"
)

// Credential is one upstream provider's API credential.
type Credential struct {
	Provider string `json:"provider"` // "technical" or "sentiment"
	APIKey   string `json:"api_key"`
	BaseURL  string `json:"base_url,omitempty"`
}

// Client wraps the HashiCorp Vault client
type Client struct {
	client       *api.Client
	config       config.VaultConfig
	mu           sync.RWMutex
	cache        map[string]*Credential
	cacheEnabled bool
}

// NewClient creates a new Vault client. When Vault is disabled the client
// serves only credentials seeded through Store.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{
			config:       cfg,
			cache:        make(map[string]*Credential),
			cacheEnabled: true,
		}, nil
	}

	vaultConfig := api.DefaultConfig()
	vaultConfig.Address = cfg.Address

	if cfg.TLSEnabled && cfg.CACert != "" {
		tlsConfig := &api.TLSConfig{CACert: cfg.CACert}
		if err := vaultConfig.ConfigureTLS(tlsConfig); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := api.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}

	client.SetToken(cfg.Token)

	return &Client{
		client:       client,
		config:       cfg,
		cache:        make(map[string]*Credential),
		cacheEnabled: true,
	}, nil
}

// Store writes a provider credential to Vault.
func (c *Client) Store(ctx context.Context, cred Credential) error {
	if !c.config.Enabled {
		c.mu.Lock()
		c.cache[cred.Provider] = &cred
		c.mu.Unlock()
		return nil
	}

	path := c.secretPath(cred.Provider)
	secretData := map[string]interface{}{
		"data": map[string]interface{}{
			"provider": cred.Provider,
			"api_key":  cred.APIKey,
			"base_url": cred.BaseURL,
		},
	}

	if _, err := c.client.Logical().WriteWithContext(ctx, path, secretData); err != nil {
		return fmt.Errorf("failed to store credential in vault: %w", err)
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[cred.Provider] = &cred
		c.mu.Unlock()
	}
	return nil
}

// Get retrieves a provider credential.
func (c *Client) Get(ctx context.Context, provider string) (*Credential, error) {
	if c.cacheEnabled {
		c.mu.RLock()
		if cached, ok := c.cache[provider]; ok {
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()
	}

	if !c.config.Enabled {
		return nil, fmt.Errorf("credential for %q not found and vault is disabled", provider)
	}

	secret, err := c.client.Logical().ReadWithContext(ctx, c.secretPath(provider))
	if err != nil {
		return nil, fmt.Errorf("failed to read credential from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("credential for %q not found", provider)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid secret format")
	}

	cred := &Credential{
		Provider: getString(data, "provider"),
		APIKey:   getString(data, "api_key"),
		BaseURL:  getString(data, "base_url"),
	}

	if c.cacheEnabled {
		c.mu.Lock()
		c.cache[provider] = cred
		c.mu.Unlock()
	}
	return cred, nil
}

// Delete removes a provider credential.
func (c *Client) Delete(ctx context.Context, provider string) error {
	c.mu.Lock()
	delete(c.cache, provider)
	c.mu.Unlock()

	if !c.config.Enabled {
		return nil
	}

	if _, err := c.client.Logical().DeleteWithContext(ctx, c.metadataPath(provider)); err != nil {
		return fmt.Errorf("failed to delete credential from vault: %w", err)
	}
	return nil
}

// ClearCache clears the in-memory cache
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cache = make(map[string]*Credential)
	c.mu.Unlock()
}

// IsEnabled returns whether Vault is enabled
func (c *Client) IsEnabled() bool {
	return c.config.Enabled
}

// Health checks the Vault connection
func (c *Client) Health(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault health check failed: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault is sealed")
	}
	return nil
}

func (c *Client) secretPath(provider string) string {
	return fmt.Sprintf("%s/data/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}

func (c *Client) metadataPath(provider string) string {
	return fmt.Sprintf("%s/metadata/%s/%s", c.config.MountPath, c.config.SecretPath, provider)
}

func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}
