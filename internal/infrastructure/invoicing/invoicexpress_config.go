package invoicing

import (
	"errors"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/fiscal"
)

// InvoiceXpressConfig contains configuration for the InvoiceXpress API
type InvoiceXpressConfig struct {
	// AccountName is the InvoiceXpress account subdomain
	AccountName string
	// APIKey is the per-account API key
	APIKey string
	// BaseURL overrides the account URL; used for testing
	BaseURL string
	// Timeout bounds every API call. Defaults to 30s.
	Timeout time.Duration
}

// Errors for configuration validation
var (
	ErrMissingAccountName = errors.New("invoicexpress: missing account name")
	ErrMissingAPIKey      = errors.New("invoicexpress: missing API key")
)

// Validate validates the configuration
func (c *InvoiceXpressConfig) Validate() error {
	if c.AccountName == "" {
		return ErrMissingAccountName
	}
	if c.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// apiBaseURL returns the account's API root
func (c *InvoiceXpressConfig) apiBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("https://%s.app.invoicexpress.com", c.AccountName)
}

// timeout returns the configured timeout or the default
func (c *InvoiceXpressConfig) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 30 * time.Second
}

// ConfigFromCredentials builds an adapter config from a tenant's stored
// credentials
func ConfigFromCredentials(creds fiscal.ProviderCredentials, timeout time.Duration) *InvoiceXpressConfig {
	return &InvoiceXpressConfig{
		AccountName: creds.AccountName,
		APIKey:      creds.APIKey,
		BaseURL:     creds.BaseURL,
		Timeout:     timeout,
	}
}
