package fiscal

import (
	"context"
	"fmt"

	"github.com/crm/backend/internal/domain/fiscal"
	"github.com/google/uuid"
)

// ProviderFactory builds an invoicing provider client from a tenant's
// credentials. Injected so the application layer never depends on a
// concrete provider implementation.
type ProviderFactory func(creds fiscal.ProviderCredentials) (fiscal.InvoicingProvider, error)

// ResolvedProvider pairs a ready-to-use provider client with the settings
// it was built from, so callers can reach the tax configuration without a
// second settings lookup.
type ResolvedProvider struct {
	Provider fiscal.InvoicingProvider
	Settings *fiscal.OrganizationSettings
}

// CredentialResolver resolves the per-tenant invoicing provider. Every
// document operation goes through it: missing or incomplete credentials
// surface as ErrProviderNotConfigured before any network call is made.
type CredentialResolver struct {
	settingsRepo    fiscal.OrganizationSettingsRepository
	providerFactory ProviderFactory
}

// NewCredentialResolver creates a new CredentialResolver
func NewCredentialResolver(
	settingsRepo fiscal.OrganizationSettingsRepository,
	providerFactory ProviderFactory,
) *CredentialResolver {
	return &CredentialResolver{
		settingsRepo:    settingsRepo,
		providerFactory: providerFactory,
	}
}

// Settings loads the organization settings for a tenant. Returns nil when
// the tenant has never saved settings; callers treat that as defaults.
func (r *CredentialResolver) Settings(ctx context.Context, tenantID uuid.UUID) (*fiscal.OrganizationSettings, error) {
	settings, err := r.settingsRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization settings: %w", err)
	}
	return settings, nil
}

// Resolve builds the provider client for a tenant. Fails with
// ErrProviderNotConfigured when no credentials are stored, and with the
// tax validation error when the stored tax configuration would produce an
// illegal document.
func (r *CredentialResolver) Resolve(ctx context.Context, tenantID uuid.UUID) (*ResolvedProvider, error) {
	settings, err := r.settingsRepo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load organization settings: %w", err)
	}
	if settings == nil {
		return nil, fiscal.ErrProviderNotConfigured
	}
	if err := settings.ValidateForIssuance(); err != nil {
		return nil, err
	}

	provider, err := r.providerFactory(settings.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to build invoicing provider: %w", err)
	}
	return &ResolvedProvider{Provider: provider, Settings: settings}, nil
}
